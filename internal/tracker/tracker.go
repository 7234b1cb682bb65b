// Package tracker remembers which images already went through the full
// publish-and-archive sequence so a continuous run never offers them again.
package tracker

import (
	"fmt"
	"sync"

	"github.com/kalambet/susi/internal/storage"
)

// Memory is an append-only id set that lives for the duration of one process.
type Memory struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewMemory returns a set pre-populated with ids.
func NewMemory(ids ...string) *Memory {
	m := &Memory{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		m.ids[id] = struct{}{}
	}
	return m
}

func (m *Memory) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ids[id]
	return ok
}

func (m *Memory) Add(id string) error {
	m.mu.Lock()
	m.ids[id] = struct{}{}
	m.mu.Unlock()
	return nil
}

// Len returns the number of ids in the set.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// SeenStore is the subset of storage.Store the durable tracker needs.
type SeenStore interface {
	SeenImageIDs() ([]string, error)
	MarkImageSeen(img storage.SeenImage) error
}

// Durable mirrors an in-memory set into the seen_images table. Lookups are
// served from memory; additions are written through.
type Durable struct {
	mem   *Memory
	store SeenStore
}

// Load reads every recorded id from store.
func Load(store SeenStore) (*Durable, error) {
	ids, err := store.SeenImageIDs()
	if err != nil {
		return nil, fmt.Errorf("loading seen images: %w", err)
	}
	return &Durable{mem: NewMemory(ids...), store: store}, nil
}

func (d *Durable) Has(id string) bool {
	return d.mem.Has(id)
}

// Add records id in memory first so the current run never re-offers it, even
// if the write to the store fails.
func (d *Durable) Add(id string) error {
	d.mem.Add(id)
	if err := d.store.MarkImageSeen(storage.SeenImage{ID: id}); err != nil {
		return fmt.Errorf("recording seen image %s: %w", id, err)
	}
	return nil
}

// Record is Add with the image name and public URL kept alongside the id.
func (d *Durable) Record(id, name, remoteURL string) error {
	d.mem.Add(id)
	if err := d.store.MarkImageSeen(storage.SeenImage{ID: id, Name: name, RemoteURL: remoteURL}); err != nil {
		return fmt.Errorf("recording seen image %s: %w", id, err)
	}
	return nil
}

func (d *Durable) Len() int {
	return d.mem.Len()
}
