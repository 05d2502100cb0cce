package session

import "github.com/dgnsrekt/aria/internal/browser"

// Store is the durable map from browser kind to Descriptor plus the
// current-browser pointer. Implementations never fail loudly: read problems
// report absence and write problems are returned for the caller to log.
type Store interface {
	Load(kind browser.Kind) (*Descriptor, bool)
	// Save writes d and makes kind current.
	Save(kind browser.Kind, d *Descriptor) error
	// Remove deletes kind's descriptor and clears the pointer if it named kind.
	Remove(kind browser.Kind)
	ListKinds() []browser.Kind
	CurrentKind() (browser.Kind, bool)
	SetCurrent(kind browser.Kind)
	// Update reloads kind's descriptor, applies fn and saves the result as
	// one read-modify-write. It returns ErrNoSession when kind has none.
	Update(kind browser.Kind, fn func(*Descriptor) error) error
}
