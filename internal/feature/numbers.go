package feature

import (
	"sort"
	"sync"
)

// NumbersForDevice creates a Number for every mutable number-type feature
// of snap and its children.
func NumbersForDevice(source Source, snap DeviceSnapshot, opts ...NumberOption) []*Number {
	var numbers []*Number
	snap.Walk(func(dev DeviceSnapshot) {
		keys := make([]string, 0, len(dev.Features))
		for key, f := range dev.Features {
			if f.Type == TypeNumber && f.Mutable {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)
		for _, key := range keys {
			numbers = append(numbers, NewNumber(source, dev.ID, key, opts...))
		}
	})
	return numbers
}

// Numbers indexes Number entities by unique ID.
type Numbers struct {
	mu      sync.RWMutex
	numbers map[string]*Number
}

// NewNumbers creates an empty index.
func NewNumbers() *Numbers {
	return &Numbers{numbers: make(map[string]*Number)}
}

// Add registers numbers, replacing any with the same unique ID.
func (r *Numbers) Add(numbers ...*Number) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range numbers {
		r.numbers[n.UniqueID()] = n
	}
}

// Get returns the number with the given unique ID.
func (r *Numbers) Get(uniqueID string) (*Number, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.numbers[uniqueID]
	if !ok {
		return nil, ErrNumberNotFound
	}
	return n, nil
}

// States returns the state of every number ordered by unique ID.
func (r *Numbers) States() []NumberState {
	r.mu.RLock()
	numbers := make([]*Number, 0, len(r.numbers))
	for _, n := range r.numbers {
		numbers = append(numbers, n)
	}
	r.mu.RUnlock()

	states := make([]NumberState, 0, len(numbers))
	for _, n := range numbers {
		states = append(states, n.State())
	}
	sort.Slice(states, func(i, j int) bool { return states[i].UniqueID < states[j].UniqueID })
	return states
}

// Len returns the number of registered numbers.
func (r *Numbers) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.numbers)
}
