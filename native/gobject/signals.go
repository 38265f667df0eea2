//go:build linux || darwin

package gobject

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/native"
)

const maxSignalParams = 4

type handler struct {
	cb   native.EventFunc
	data uintptr
}

type handlerKey struct {
	obj native.Ptr
	id  native.HandlerID
}

var (
	signalCBs [maxSignalParams + 1]uintptr

	// handlers maps the user_data token passed to g_signal_connect_data to
	// the Go callback. Tokens are never reused.
	handlers  sync.Map // uintptr -> *handler
	lastToken atomic.Uintptr
)

func signal0(inst, token uintptr) uintptr { return emit(inst, token) }

func signal1(inst, a1, token uintptr) uintptr { return emit(inst, token, a1) }

func signal2(inst, a1, a2, token uintptr) uintptr { return emit(inst, token, a1, a2) }

func signal3(inst, a1, a2, a3, token uintptr) uintptr { return emit(inst, token, a1, a2, a3) }

func signal4(inst, a1, a2, a3, a4, token uintptr) uintptr {
	return emit(inst, token, a1, a2, a3, a4)
}

func emit(inst, token uintptr, args ...uintptr) uintptr {
	v, ok := handlers.Load(token)
	if !ok {
		return 0
	}
	h := v.(*handler)
	payload := make([]uint64, len(args))
	for i, a := range args {
		payload[i] = uint64(a)
	}
	h.cb(native.Ptr(inst), payload, h.data)
	return 0
}

// ResolveEvent interns a signal name. GObject signals belong to types, not
// libraries, so existence is checked against the instance type on Connect.
func (r *Runtime) ResolveEvent(library, name string) (native.EventID, bool) {
	if name == "" {
		return 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.eventID[name]; ok {
		return id, true
	}
	r.events = append(r.events, name)
	id := native.EventID(len(r.events))
	r.eventID[name] = id
	return id, true
}

func (r *Runtime) eventName(ev native.EventID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev == 0 || int(ev) > len(r.events) {
		return ""
	}
	return r.events[ev-1]
}

// Connect looks the signal up on the instance type and connects the
// callback trampoline matching its parameter count.
func (r *Runtime) Connect(obj native.Ptr, ev native.EventID, cb native.EventFunc, data uintptr) (native.HandlerID, error) {
	name := r.eventName(ev)
	if name == "" {
		return 0, errors.NotFound(errors.PhaseEvent, "event descriptor", "")
	}
	if obj == 0 {
		return 0, errors.NilPointer(errors.PhaseEvent, []string{name}, "instance")
	}
	sig := r.fn.signalLookup(name, uintptr(r.ClassOf(obj)))
	if sig == 0 {
		return 0, errors.Unresolved(errors.PhaseEvent, "signal", name)
	}
	var q signalQuery
	r.fn.signalQuery(sig, &q)
	if q.nParams > maxSignalParams {
		return 0, errors.Unsupported(errors.PhaseEvent, "signal "+name+" with more than 4 parameters")
	}

	token := lastToken.Add(1)
	handlers.Store(token, &handler{cb: cb, data: data})
	hid := r.fn.signalConnect(uintptr(obj), name, signalCBs[q.nParams], token, 0, 0)
	if hid == 0 {
		handlers.Delete(token)
		return 0, errors.New(errors.PhaseEvent, errors.KindRegistration).
			Path(name).
			Detail("g_signal_connect_data failed").
			Build()
	}

	id := native.HandlerID(hid)
	r.mu.Lock()
	r.tokens[handlerKey{obj, id}] = token
	r.mu.Unlock()
	r.log.Debug("signal connected", zap.String("signal", name), zap.Uint64("handler", hid))
	return id, nil
}

func (r *Runtime) Disconnect(obj native.Ptr, h native.HandlerID) {
	key := handlerKey{obj, h}
	r.mu.Lock()
	token, ok := r.tokens[key]
	delete(r.tokens, key)
	r.mu.Unlock()
	if !ok {
		return
	}
	r.fn.signalDisconnect(uintptr(obj), uint64(h))
	handlers.Delete(token)
}
