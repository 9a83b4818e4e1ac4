package testutil

import (
	"sync"

	"github.com/roach88/ctprun/internal/detector"
)

// FakeRegistry is a detector.Registry whose names, ids and masks are set
// by the test. Masks need not be single bits.
type FakeRegistry struct {
	mu      sync.Mutex
	byName  map[string]fakeDetector
	byID    map[detector.ID]string
	lookups int
}

type fakeDetector struct {
	id   detector.ID
	mask uint64
}

// NewFakeRegistry returns an empty registry.
func NewFakeRegistry() *FakeRegistry {
	return &FakeRegistry{
		byName: map[string]fakeDetector{},
		byID:   map[detector.ID]string{},
	}
}

// Add registers name. Returns r for chaining.
func (r *FakeRegistry) Add(name string, id detector.ID, mask uint64) *FakeRegistry {
	r.mu.Lock()
	defer r.mu.Unlock()
	name = detector.Normalize(name)
	r.byName[name] = fakeDetector{id: id, mask: mask}
	r.byID[id] = name
	return r
}

// Resolve implements detector.Registry.
func (r *FakeRegistry) Resolve(name string) (detector.ID, uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	d, ok := r.byName[detector.Normalize(name)]
	if !ok {
		return detector.Invalid, 0, false
	}
	return d.id, d.mask, true
}

// Name implements detector.Registry.
func (r *FakeRegistry) Name(id detector.ID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name, ok := r.byID[id]; ok {
		return name
	}
	return "?"
}

// Lookups reports how many times Resolve was called.
func (r *FakeRegistry) Lookups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups
}
