package object

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("object table closed")

// ID is a table slot reference. ID 0 is reserved and always invalid.
type ID uint32

// Disposer is called for live values when a table is closed.
type Disposer interface {
	Dispose()
}

// Table is a slot table with a free list.
type Table[T any] struct {
	entries  []entry[T]
	freeList []ID
	mu       sync.RWMutex
	closed   bool
}

type entry[T any] struct {
	value T
	valid bool
}

func NewTable[T any]() *Table[T] {
	return &Table[T]{
		entries:  make([]entry[T], 0, 64),
		freeList: make([]ID, 0, 16),
	}
}

// Insert stores a value and returns its ID.
func (t *Table[T]) Insert(value T) (ID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, ErrClosed
	}

	e := entry[T]{value: value, valid: true}

	if len(t.freeList) > 0 {
		id := t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[id-1] = e
		return id, nil
	}

	t.entries = append(t.entries, e)
	return ID(len(t.entries)), nil
}

// Get retrieves a value by ID.
func (t *Table[T]) Get(id ID) (T, bool) {
	var zero T
	if id == 0 {
		return zero, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	idx := id - 1
	if int(idx) >= len(t.entries) {
		return zero, false
	}

	e := t.entries[idx]
	if !e.valid {
		return zero, false
	}
	return e.value, true
}

// Remove frees the slot and returns the value it held.
func (t *Table[T]) Remove(id ID) (T, bool) {
	var zero T
	if id == 0 {
		return zero, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx := id - 1
	if int(idx) >= len(t.entries) {
		return zero, false
	}

	e := &t.entries[idx]
	if !e.valid {
		return zero, false
	}

	value := e.value
	e.valid = false
	e.value = zero
	t.freeList = append(t.freeList, id)

	return value, true
}

// Len returns the number of live entries.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, e := range t.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over a snapshot of live entries. fn may modify the table.
func (t *Table[T]) Each(fn func(ID, T) bool) {
	t.mu.RLock()
	ids := make([]ID, 0, len(t.entries))
	vals := make([]T, 0, len(t.entries))
	for i, e := range t.entries {
		if e.valid {
			ids = append(ids, ID(i+1))
			vals = append(vals, e.value)
		}
	}
	t.mu.RUnlock()

	for i := range ids {
		if !fn(ids[i], vals[i]) {
			break
		}
	}
}

// Close disposes every live value that implements Disposer. Dispose runs
// without the table lock held.
func (t *Table[T]) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true

	var live []T
	for i := range t.entries {
		if t.entries[i].valid {
			live = append(live, t.entries[i].value)
		}
	}
	t.entries = nil
	t.freeList = nil
	t.mu.Unlock()

	for _, v := range live {
		if d, ok := any(v).(Disposer); ok {
			d.Dispose()
		}
	}
	return nil
}
