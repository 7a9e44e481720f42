package overlay

import (
	"sync"

	"github.com/dudu/facelasers/internal/geometry"
)

// Update replaces everything the renderer draws. A nil Geometry clears it.
type Update struct {
	Frame    uint64
	Geometry *geometry.DrawableFaceGeometry
}

// Mailbox hands updates from the detection goroutine to the rendering
// goroutine. It holds one update; a newer post overwrites an unread one.
type Mailbox struct {
	mu      sync.Mutex
	pending Update
	full    bool
	dropped uint64
}

// NewMailbox creates an empty mailbox
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Post stores u, replacing any update not yet taken
func (m *Mailbox) Post(u Update) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.full {
		m.dropped++
	}
	m.pending = u
	m.full = true
}

// Take returns the pending update, if any
func (m *Mailbox) Take() (Update, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.full {
		return Update{}, false
	}
	u := m.pending
	m.pending = Update{}
	m.full = false
	return u, true
}

// Dropped returns how many updates were overwritten before being taken
func (m *Mailbox) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}
