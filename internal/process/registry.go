// Package process answers liveness questions about spawned driver processes
// and force-terminates them together with their helper children.
package process

import "os/exec"

// Registry checks and terminates OS processes by pid.
type Registry interface {
	IsRunning(pid int) bool
	Terminate(pid int)
}

// OS is the Registry backed by the host operating system.
type OS struct{}

// NewOS returns the host Registry.
func NewOS() OS { return OS{} }

// IsRunning reports whether pid refers to a live process. It never fails:
// unknown, reaped or invalid pids report false.
func (OS) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	return isRunning(pid)
}

// Terminate force-kills pid and its process tree. Failures are logged and
// swallowed since the OS may already have reaped the process.
func (OS) Terminate(pid int) {
	if pid <= 0 {
		return
	}
	terminate(pid)
}

// Detach configures cmd so the child survives the exit of the spawning CLI.
func Detach(cmd *exec.Cmd) {
	detach(cmd)
}
