package session

import (
	"sort"
	"sync"

	"github.com/dgnsrekt/aria/internal/browser"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[browser.Kind]Descriptor
	current browser.Kind
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[browser.Kind]Descriptor)}
}

func (s *MemoryStore) Load(kind browser.Kind) (*Descriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.entries[kind]
	if !ok {
		return nil, false
	}
	c := cloneDescriptor(d)
	return &c, true
}

func (s *MemoryStore) Save(kind browser.Kind, d *Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.Browser = kind
	s.entries[kind] = cloneDescriptor(*d)
	s.current = kind
	return nil
}

func (s *MemoryStore) Remove(kind browser.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, kind)
	if s.current == kind {
		s.current = ""
	}
}

func (s *MemoryStore) ListKinds() []browser.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]browser.Kind, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *MemoryStore) CurrentKind() (browser.Kind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != ""
}

func (s *MemoryStore) SetCurrent(kind browser.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = kind
}

func (s *MemoryStore) Update(kind browser.Kind, fn func(*Descriptor) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.entries[kind]
	if !ok {
		return ErrNoSession
	}
	c := cloneDescriptor(d)
	if err := fn(&c); err != nil {
		return err
	}
	s.entries[kind] = c
	return nil
}

func cloneDescriptor(d Descriptor) Descriptor {
	if d.Tags != nil {
		tags := make(map[string][]string, len(d.Tags))
		for h, t := range d.Tags {
			tags[h] = append([]string(nil), t...)
		}
		d.Tags = tags
	}
	return d
}
