package bridge

import (
	"math"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/objbridge/class"
	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/marshal"
	"github.com/wippyai/objbridge/native"
	"github.com/wippyai/objbridge/object"
)

// EventKey names a native event.
type EventKey struct {
	Library string
	Name    string
}

// ListenerID identifies one Go subscription.
type ListenerID uint64

// objectEvents is the event state of one native object. Its mutex makes
// the subscriber count and native (de)registration one atomic step.
type objectEvents struct {
	slots map[EventKey]*eventSlot
	ptr   native.Ptr
	mu    sync.Mutex
}

type eventSlot struct {
	owner     *objectEvents
	key       EventKey
	listeners []listener
	count     int
	handler   native.HandlerID
	id        object.ID
	shape     class.Shape
}

type listener struct {
	fn    func(any)
	owner *Object
	id    ListenerID
}

// Connect subscribes fn to a native event of the object. Payloads arrive
// as nil, bool, int64, float64 or a borrowed Wrapper depending on the
// event's shape. It reports false, leaving no state behind, when the event
// cannot be resolved or registered.
func (o *Object) Connect(event string, fn func(any)) (ListenerID, bool) {
	if o.b == nil || fn == nil {
		return 0, false
	}
	return o.b.subscribe(o, event, fn)
}

// Disconnect removes a listener added through this wrapper.
func (o *Object) Disconnect(id ListenerID) bool {
	if o.b == nil {
		return false
	}
	return o.b.unsubscribe(o, id)
}

// eventOf resolves the key and payload shape of an event for d.
func eventOf(d *class.Descriptor, name string) (EventKey, class.Shape, bool) {
	if ev, decl, ok := d.Event(name); ok {
		return EventKey{Library: decl.Def.Library, Name: ev.Name}, ev.Payload, true
	}
	g := d.Generated()
	if g == nil {
		return EventKey{}, class.ShapeNone, false
	}
	return EventKey{Library: g.Def.Library, Name: name}, class.ShapeNone, false
}

// resolveEvent caches native descriptors; failures are not cached.
// Caller holds evMu.
func (b *Bridge) resolveEvent(key EventKey) (native.EventID, bool) {
	if id, ok := b.eventIDs[key]; ok {
		return id, true
	}
	id, ok := b.rt.ResolveEvent(key.Library, key.Name)
	if ok {
		b.eventIDs[key] = id
	}
	return id, ok
}

func (b *Bridge) subscribe(o *Object, name string, fn func(any)) (ListenerID, bool) {
	key, shape, declared := eventOf(o.desc, name)
	ptr := o.Ptr()

	b.evMu.Lock()
	evID, ok := b.resolveEvent(key)
	if !ok {
		b.evMu.Unlock()
		b.log.Warn("event could not be resolved",
			zap.String("event", name),
			zap.String("library", key.Library),
			zap.String("object", o.String()))
		return 0, false
	}
	if !declared {
		b.log.Debug("event missing from binding metadata, assuming no payload",
			zap.String("event", name))
	}
	oe := b.objEvents[ptr]
	if oe == nil {
		oe = &objectEvents{ptr: ptr, slots: make(map[EventKey]*eventSlot)}
		b.objEvents[ptr] = oe
	}
	oe.mu.Lock()
	b.evMu.Unlock()

	id, ok := b.attach(oe, key, shape, evID, name, o, fn)
	empty := len(oe.slots) == 0
	oe.mu.Unlock()

	if !ok && empty {
		b.forget(oe)
	}
	return id, ok
}

// attach adds a listener to the slot of key, registering the native
// callback when it is the first. Caller holds oe.mu.
func (b *Bridge) attach(oe *objectEvents, key EventKey, shape class.Shape, evID native.EventID, name string, o *Object, fn func(any)) (ListenerID, bool) {
	slot := oe.slots[key]
	if slot == nil {
		slot = &eventSlot{owner: oe, key: key, shape: shape}
		id, err := b.slots.Insert(slot)
		if err != nil {
			return 0, false
		}
		slot.id = id
		oe.slots[key] = slot
	}

	if slot.count == 0 {
		h, err := b.rt.Connect(oe.ptr, evID, b.proxy, uintptr(slot.id))
		if err != nil {
			b.log.Warn("native event registration failed",
				zap.String("event", name),
				zap.String("object", o.String()),
				zap.Error(err))
			delete(oe.slots, key)
			b.slots.Remove(slot.id)
			return 0, false
		}
		slot.handler = h
		b.log.Debug("native event registered",
			zap.String("event", name),
			zap.String("object", o.String()))
	}
	slot.count++

	id := ListenerID(b.nextListener.Add(1))
	slot.listeners = append(slot.listeners, listener{fn: fn, owner: o, id: id})

	b.idxMu.Lock()
	b.listeners[id] = slot
	b.idxMu.Unlock()
	return id, true
}

// forget drops oe from the index if it is still empty.
func (b *Bridge) forget(oe *objectEvents) {
	b.evMu.Lock()
	defer b.evMu.Unlock()
	oe.mu.Lock()
	defer oe.mu.Unlock()
	if len(oe.slots) == 0 && b.objEvents[oe.ptr] == oe {
		delete(b.objEvents, oe.ptr)
	}
}

func (b *Bridge) unsubscribe(o *Object, id ListenerID) bool {
	b.idxMu.Lock()
	slot, ok := b.listeners[id]
	if ok && slot.owner.ptr != o.Ptr() {
		ok = false
	}
	b.idxMu.Unlock()
	if !ok {
		return false
	}

	b.evMu.Lock()
	defer b.evMu.Unlock()
	oe := slot.owner
	oe.mu.Lock()
	defer oe.mu.Unlock()

	// another wrapper of the same object cannot remove o's listeners
	i := slices.IndexFunc(slot.listeners, func(l listener) bool { return l.id == id && l.owner == o })
	if i < 0 {
		return false
	}
	slot.listeners = slices.Delete(slot.listeners, i, i+1)
	b.idxMu.Lock()
	delete(b.listeners, id)
	b.idxMu.Unlock()

	b.release(slot, 1)
	return true
}

// disconnectOwner drops every listener o registered.
func (b *Bridge) disconnectOwner(o *Object) {
	b.evMu.Lock()
	defer b.evMu.Unlock()
	oe := b.objEvents[o.Ptr()]
	if oe == nil {
		return
	}
	oe.mu.Lock()
	defer oe.mu.Unlock()

	for _, slot := range oe.slots {
		removed := 0
		kept := slot.listeners[:0]
		b.idxMu.Lock()
		for _, l := range slot.listeners {
			if l.owner == o {
				delete(b.listeners, l.id)
				removed++
				continue
			}
			kept = append(kept, l)
		}
		b.idxMu.Unlock()
		clear(slot.listeners[len(kept):])
		slot.listeners = kept
		if removed > 0 {
			b.release(slot, removed)
		}
	}
}

// release lowers the subscriber count of slot by n and deregisters the
// native callback when it reaches zero. Caller holds evMu and the slot's
// object lock.
func (b *Bridge) release(slot *eventSlot, n int) {
	slot.count -= n
	if slot.count > 0 {
		return
	}
	oe := slot.owner
	b.rt.Disconnect(oe.ptr, slot.handler)
	b.log.Debug("native event deregistered", zap.String("event", slot.key.Name))

	slot.count = 0
	slot.handler = 0
	delete(oe.slots, slot.key)
	b.slots.Remove(slot.id)
	if len(oe.slots) == 0 && b.objEvents[oe.ptr] == oe {
		delete(b.objEvents, oe.ptr)
	}
}

// proxy is the single native callback behind every registration. It
// delivers to a snapshot of the listeners, in subscription order, outside
// the object lock.
func (b *Bridge) proxy(obj native.Ptr, payload []uint64, data uintptr) {
	slot, ok := b.slots.Get(object.ID(data))
	if !ok {
		return
	}
	oe := slot.owner
	oe.mu.Lock()
	listeners := slices.Clone(slot.listeners)
	key, shape := slot.key, slot.shape
	oe.mu.Unlock()

	v, err := b.decode(shape, payload)
	if err != nil {
		b.log.Warn("event payload dropped",
			zap.String("event", key.Name),
			zap.Error(err))
		return
	}
	for _, l := range listeners {
		b.deliver(key, l, v)
	}
}

func (b *Bridge) deliver(key EventKey, l listener, v any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event listener panicked",
				zap.String("event", key.Name),
				zap.Uint64("listener", uint64(l.id)),
				zap.Any("panic", r))
		}
	}()
	l.fn(v)
}

func (b *Bridge) decode(shape class.Shape, payload []uint64) (any, error) {
	if shape == class.ShapeNone {
		return nil, nil
	}
	if len(payload) == 0 {
		return nil, errors.InvalidData(errors.PhaseEvent, nil, "missing payload for "+shape.String()+" event")
	}
	p := payload[0]
	switch shape {
	case class.ShapeBool:
		return p&0xff != 0, nil
	case class.ShapeInt:
		return int64(p), nil
	case class.ShapeFloat:
		return math.Float64frombits(p), nil
	case class.ShapeObject:
		w, err := b.Wrap(native.Ptr(p), marshal.Borrowed, nil)
		if err != nil || w == nil {
			return nil, err
		}
		return w, nil
	}
	return nil, errors.Unsupported(errors.PhaseEvent, "payload shape "+shape.String())
}
