//go:build !windows

package process

import (
	"errors"
	"log/slog"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func isRunning(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	// EPERM: the process exists but belongs to someone else.
	return errors.Is(err, unix.EPERM)
}

func terminate(pid int) {
	pgid, err := unix.Getpgid(pid)
	if err == nil && pgid == pid {
		if err := unix.Kill(-pgid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			slog.Warn("process group kill failed", "pid", pid, "error", err)
		}
	}
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		slog.Warn("process kill failed", "pid", pid, "error", err)
	}
}

func detach(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true
}
