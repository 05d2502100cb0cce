// Package session persists browser session descriptors and runs the
// open/reattach/close lifecycle across independent CLI invocations.
package session

import (
	"slices"

	"github.com/dgnsrekt/aria/internal/browser"
)

// Descriptor is the on-disk record needed to reattach to a running driver.
type Descriptor struct {
	SessionID string       `json:"session_id"`
	URL       string       `json:"url"`
	Browser   browser.Kind `json:"browser"`
	DriverPID int          `json:"driver_pid"`
	// Tags maps window handle to its user tags.
	Tags map[string][]string `json:"tags,omitempty"`
}

// AddTag adds tag to handle and reports whether it was new.
func (d *Descriptor) AddTag(handle, tag string) bool {
	if d.Tags == nil {
		d.Tags = make(map[string][]string)
	}
	if slices.Contains(d.Tags[handle], tag) {
		return false
	}
	d.Tags[handle] = append(d.Tags[handle], tag)
	return true
}

// HandlesWithTag returns every handle carrying tag, live or not.
func (d *Descriptor) HandlesWithTag(tag string) map[string]bool {
	out := make(map[string]bool)
	for handle, tags := range d.Tags {
		if slices.Contains(tags, tag) {
			out[handle] = true
		}
	}
	return out
}

type currentPointer struct {
	Browser browser.Kind `json:"browser"`
}
