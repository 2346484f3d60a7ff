// Package history keeps the most recent generated errors in a bounded,
// thread-safe ring buffer.
package history

import (
	"sync"

	"github.com/polisai/errorflow/pkg/domain"
)

// DefaultCapacity is the number of errors kept when no capacity is configured.
const DefaultCapacity = 10

// History is a fixed-size circular buffer of AppErrors with oldest-first eviction.
type History struct {
	entries  []domain.AppError
	head     int // Index of oldest element
	tail     int // Index where next element will be inserted
	size     int // Current number of elements
	capacity int // Maximum capacity
	mu       sync.RWMutex
}

// New creates a history with the specified capacity.
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{
		entries:  make([]domain.AppError, capacity),
		capacity: capacity,
	}
}

// Add stores an error, evicting the oldest if necessary.
// Returns true if an entry was evicted to make room.
func (h *History) Add(e domain.AppError) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	evicted := false

	h.entries[h.tail] = e.Clone()
	h.tail = (h.tail + 1) % h.capacity

	if h.size < h.capacity {
		h.size++
	} else {
		h.head = (h.head + 1) % h.capacity
		evicted = true
	}

	return evicted
}

// List returns all stored errors, newest first.
func (h *History) List() []domain.AppError {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]domain.AppError, 0, h.size)
	for i := h.size - 1; i >= 0; i-- {
		idx := (h.head + i) % h.capacity
		result = append(result, h.entries[idx].Clone())
	}
	return result
}

// Get finds an error by ID.
func (h *History) Get(id string) (domain.AppError, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i := 0; i < h.size; i++ {
		idx := (h.head + i) % h.capacity
		if h.entries[idx].ID == id {
			return h.entries[idx].Clone(), true
		}
	}
	return domain.AppError{}, false
}

// Latest returns the most recently added error.
func (h *History) Latest() (domain.AppError, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.size == 0 {
		return domain.AppError{}, false
	}
	// tail points to next insertion point, so newest is at tail-1
	newestIdx := (h.tail - 1 + h.capacity) % h.capacity
	return h.entries[newestIdx].Clone(), true
}

// Len returns the current number of stored errors.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Capacity returns the maximum number of stored errors.
func (h *History) Capacity() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.capacity
}

// Clear removes all stored errors.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.entries {
		h.entries[i] = domain.AppError{}
	}
	h.head = 0
	h.tail = 0
	h.size = 0
}
