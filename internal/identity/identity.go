// Package identity assigns the pseudonymous owner identifier attached to
// memory entries written from one client.
package identity

import (
	"sync"

	"github.com/google/uuid"
)

// Provider hands out the current client identity. Implementations never fail:
// a client without usable storage is anonymous and gets the empty string.
type Provider interface {
	// GetOrCreate returns the persisted identity, creating and persisting one
	// on first use.
	GetOrCreate() string
	// Rotate replaces the identity with a fresh one, forgetting ownership of
	// previously written entries.
	Rotate() string
}

func newID() string { return uuid.NewString() }

// InMemory keeps the identity for the lifetime of the process.
type InMemory struct {
	mu sync.Mutex
	id string
}

// NewInMemory seeds the provider; an empty seed is generated lazily.
func NewInMemory(seed string) *InMemory { return &InMemory{id: seed} }

func (p *InMemory) GetOrCreate() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.id == "" {
		p.id = newID()
	}
	return p.id
}

func (p *InMemory) Rotate() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.id = newID()
	return p.id
}

// Anonymous is the provider for clients without local storage.
type Anonymous struct{}

func (Anonymous) GetOrCreate() string { return "" }
func (Anonymous) Rotate() string      { return "" }
