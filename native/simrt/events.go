package simrt

import (
	"fmt"
	"sync"

	"github.com/wippyai/objbridge/native"
)

type eventKey struct {
	library string
	name    string
}

type handler struct {
	cb   native.EventFunc
	obj  native.Ptr
	ev   native.EventID
	id   native.HandlerID
	data uintptr
}

type eventTable struct {
	byKey    map[eventKey]native.EventID
	names    []eventKey
	handlers map[native.Ptr][]*handler
	nextID   native.HandlerID
	mu       sync.Mutex
}

func newEventTable() *eventTable {
	return &eventTable{
		byKey:    make(map[eventKey]native.EventID),
		handlers: make(map[native.Ptr][]*handler),
	}
}

func (t *eventTable) dropObject(p native.Ptr) {
	t.mu.Lock()
	delete(t.handlers, p)
	t.mu.Unlock()
}

// DefineEvent declares an event so that ResolveEvent can find it.
// Defining the same event twice returns the existing descriptor.
func (r *Runtime) DefineEvent(library, name string) native.EventID {
	t := r.events
	t.mu.Lock()
	defer t.mu.Unlock()

	k := eventKey{library: library, name: name}
	if id, ok := t.byKey[k]; ok {
		return id
	}
	t.names = append(t.names, k)
	id := native.EventID(len(t.names))
	t.byKey[k] = id
	return id
}

func (r *Runtime) ResolveEvent(library, name string) (native.EventID, bool) {
	t := r.events
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byKey[eventKey{library: library, name: name}]
	return id, ok
}

// EventName returns the name an event was defined with.
func (r *Runtime) EventName(ev native.EventID) string {
	t := r.events
	t.mu.Lock()
	defer t.mu.Unlock()
	if ev == 0 || int(ev) > len(t.names) {
		return ""
	}
	return t.names[ev-1].name
}

func (r *Runtime) Connect(obj native.Ptr, ev native.EventID, cb native.EventFunc, data uintptr) (native.HandlerID, error) {
	if !r.Alive(obj) {
		return 0, ErrDeadObject
	}

	t := r.events
	t.mu.Lock()
	defer t.mu.Unlock()

	if ev == 0 || int(ev) > len(t.names) {
		return 0, fmt.Errorf("simrt: unknown event %d", ev)
	}
	t.nextID++
	h := &handler{id: t.nextID, obj: obj, ev: ev, cb: cb, data: data}
	t.handlers[obj] = append(t.handlers[obj], h)
	r.counters.connects.Add(1)
	return h.id, nil
}

// Disconnect removes a registration. Unknown handler ids are ignored.
func (r *Runtime) Disconnect(obj native.Ptr, id native.HandlerID) {
	t := r.events
	t.mu.Lock()
	defer t.mu.Unlock()

	hs := t.handlers[obj]
	for i, h := range hs {
		if h.id == id {
			t.handlers[obj] = append(hs[:i:i], hs[i+1:]...)
			r.counters.disconnects.Add(1)
			return
		}
	}
}

// Handlers returns the number of native registrations on obj.
func (r *Runtime) Handlers(obj native.Ptr) int {
	t := r.events
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handlers[obj])
}

// Emit fires ev on obj, calling handlers in connection order.
func (r *Runtime) Emit(obj native.Ptr, ev native.EventID, payload ...uint64) int {
	t := r.events
	t.mu.Lock()
	var snapshot []*handler
	for _, h := range t.handlers[obj] {
		if h.ev == ev {
			snapshot = append(snapshot, h)
		}
	}
	t.mu.Unlock()

	r.counters.emits.Add(1)
	for _, h := range snapshot {
		h.cb(obj, payload, h.data)
	}
	return len(snapshot)
}

// EmitByName resolves and fires an event in one step.
func (r *Runtime) EmitByName(obj native.Ptr, library, name string, payload ...uint64) (int, error) {
	ev, ok := r.ResolveEvent(library, name)
	if !ok {
		return 0, fmt.Errorf("simrt: event %s:%s not defined", library, name)
	}
	return r.Emit(obj, ev, payload...), nil
}
