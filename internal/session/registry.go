package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Entry pairs a live machine with the Remote its clients attach to.
type Entry struct {
	Machine *Machine
	Remote  *Remote
}

// Registry holds the live session machines, exactly one per exam and
// user. It is the single owner of machine lifecycles: removal closes
// the machine, so no timer or listener survives eviction.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

func registryKey(examID uuid.UUID, userID int) string {
	return fmt.Sprintf("%s:%d", examID, userID)
}

// Get returns the live entry for an attempt, or nil.
func (r *Registry) Get(examID uuid.UUID, userID int) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[registryKey(examID, userID)]
}

// GetOrCreate returns the existing entry or builds one. build runs
// under the registry lock so concurrent joins cannot double-create.
func (r *Registry) GetOrCreate(examID uuid.UUID, userID int, build func() (*Entry, error)) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := registryKey(examID, userID)
	if e, ok := r.entries[key]; ok {
		return e, nil
	}
	e, err := build()
	if err != nil {
		return nil, err
	}
	r.entries[key] = e
	return e, nil
}

// Remove evicts and closes the entry if present.
func (r *Registry) Remove(examID uuid.UUID, userID int) {
	r.mu.Lock()
	e := r.entries[registryKey(examID, userID)]
	delete(r.entries, registryKey(examID, userID))
	r.mu.Unlock()
	if e != nil {
		e.Machine.Close()
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
