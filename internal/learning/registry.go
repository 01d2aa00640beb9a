package learning

import (
	"fmt"
	"sync"
)

// Handle identifies a TrainingData slot in a Registry. A handle goes stale
// as soon as its slot is released, even if the slot is later reused.
type Handle struct {
	index      int
	generation uint64
}

func (h Handle) String() string {
	return fmt.Sprintf("%d@%d", h.index, h.generation)
}

type slot struct {
	generation uint64
	data       *TrainingData
}

// Registry is an arena of live TrainingData. Hyperparameters refer to a
// TrainingData through a Ref into the registry instead of holding a pointer,
// so destroying the TrainingData is visible to every outstanding Ref.
// It is goroutine-safe.
type Registry struct {
	mu    sync.RWMutex
	slots []slot
	free  []int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) register(td *TrainingData) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.free); n > 0 {
		idx := r.free[n-1]
		r.free = r.free[:n-1]
		r.slots[idx].data = td
		return Handle{index: idx, generation: r.slots[idx].generation}
	}
	r.slots = append(r.slots, slot{data: td})
	return Handle{index: len(r.slots) - 1}
}

// release drops the slot's reference and invalidates every handle to it.
// Releasing a stale handle is a no-op.
func (r *Registry) release(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.validLocked(h) {
		return false
	}
	r.slots[h.index].data = nil
	r.slots[h.index].generation++
	r.free = append(r.free, h.index)
	return true
}

func (r *Registry) validLocked(h Handle) bool {
	return h.index >= 0 && h.index < len(r.slots) &&
		r.slots[h.index].generation == h.generation &&
		r.slots[h.index].data != nil
}

// Resolve returns the TrainingData behind h, or ErrBrokenReference if it has
// been destroyed.
func (r *Registry) Resolve(h Handle) (*TrainingData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.validLocked(h) {
		return nil, fmt.Errorf("%w: handle %s", ErrBrokenReference, h)
	}
	return r.slots[h.index].data, nil
}

// Len returns the number of live TrainingData.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.slots) - len(r.free)
}

// Ref is a non-owning reference to a TrainingData. The zero Ref is broken.
type Ref struct {
	registry *Registry
	handle   Handle
}

// Resolve looks the TrainingData up again. Callers must not cache the result
// beyond a single operation.
func (r Ref) Resolve() (*TrainingData, error) {
	if r.registry == nil {
		return nil, fmt.Errorf("%w: unbound reference", ErrBrokenReference)
	}
	return r.registry.Resolve(r.handle)
}

// Alive reports whether the referenced TrainingData still exists.
func (r Ref) Alive() bool {
	_, err := r.Resolve()
	return err == nil
}
