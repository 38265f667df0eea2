package simrt

import (
	_ "embed"
	"encoding/binary"
	"math"
	"sync"

	"github.com/wippyai/objbridge/native"
)

// ToolkitLibrary is the library name of every toolkit event.
const ToolkitLibrary = "Sim"

// ToolkitBindings describes the toolkit classes in binding format.
//
//go:embed toolkit.toml
var ToolkitBindings []byte

// Toolkit event names.
const (
	EventSizeChanged       = "size-changed"
	EventClicked           = "clicked"
	EventToggled           = "toggled"
	EventOpacityChanged    = "opacity-changed"
	EventVisibilityChanged = "visibility-changed"
	EventChildAdded        = "child-added"
)

// Toolkit is a small widget hierarchy installed into a Runtime:
// SimObject > SimWidget > {SimContainer, SimButton}. It stands in for the
// native library a generated binding would wrap.
type Toolkit struct {
	rt     *Runtime
	state  map[native.Ptr]*widgetState
	events map[string]native.EventID

	Object    native.ClassID
	Widget    native.ClassID
	Container native.ClassID
	Button    native.ClassID

	mu sync.Mutex
}

type widgetState struct {
	parent   native.Ptr
	children []native.Ptr
	label    native.Ptr
	lastRect [4]int32
	width    int32
	height   int32
	allocW   int32
	allocH   int32
	opacity  float64
	clicks   uint32
	visible  bool
	active   bool
}

// InstallToolkit defines the toolkit classes, functions and events.
func InstallToolkit(r *Runtime) (*Toolkit, error) {
	tk := &Toolkit{
		rt:     r,
		state:  make(map[native.Ptr]*widgetState),
		events: make(map[string]native.EventID),
	}

	var err error
	tk.Object, err = r.DefineClass("SimObject", 0, map[string]native.Func{
		SymFinalize: tk.finalize,
	})
	if err != nil {
		return nil, err
	}

	tk.Widget, err = r.DefineClass("SimWidget", tk.Object, map[string]native.Func{
		"sim_widget_measure":            tk.measure,
		"sim_widget_size_allocate":      tk.sizeAllocate,
		"sim_widget_describe":           tk.describe,
		"sim_widget_get_preferred_size": tk.preferredSize,
		"sim_widget_snapshot":           tk.snapshot,
	})
	if err != nil {
		return nil, err
	}

	tk.Container, err = r.DefineClass("SimContainer", tk.Widget, nil)
	if err != nil {
		return nil, err
	}

	tk.Button, err = r.DefineClass("SimButton", tk.Widget, map[string]native.Func{
		"sim_button_clicked": tk.buttonClicked,
	})
	if err != nil {
		return nil, err
	}

	funcs := map[string]native.Func{
		"sim_widget_set_size":       tk.setSize,
		"sim_widget_get_width":      tk.getWidth,
		"sim_widget_get_height":     tk.getHeight,
		"sim_widget_get_label":      tk.getLabel,
		"sim_widget_set_label":      tk.setLabel,
		"sim_widget_dup_label":      tk.dupLabel,
		"sim_widget_take_label":     tk.takeLabel,
		"sim_widget_get_visible":    tk.getVisible,
		"sim_widget_set_visible":    tk.setVisible,
		"sim_widget_get_opacity":    tk.getOpacity,
		"sim_widget_set_opacity":    tk.setOpacity,
		"sim_widget_get_bounds":     tk.getBounds,
		"sim_widget_set_bounds":     tk.setBounds,
		"sim_widget_queue_resize":   tk.queueResize,
		"sim_widget_get_parent":     tk.getParent,
		"sim_container_add":         tk.containerAdd,
		"sim_container_remove":      tk.containerRemove,
		"sim_container_get_child":   tk.containerGetChild,
		"sim_container_n_children":  tk.containerNChildren,
		"sim_button_new_with_label": tk.buttonNewWithLabel,
		"sim_button_click":          tk.buttonClick,
		"sim_button_get_clicks":     tk.buttonGetClicks,
		"sim_button_set_active":     tk.buttonSetActive,
		"sim_button_get_active":     tk.buttonGetActive,
	}
	for sym, fn := range funcs {
		r.RegisterFunc(sym, fn)
	}

	for _, name := range []string{
		EventSizeChanged, EventClicked, EventToggled,
		EventOpacityChanged, EventVisibilityChanged, EventChildAdded,
	} {
		tk.events[name] = r.DefineEvent(ToolkitLibrary, name)
	}

	return tk, nil
}

// Event returns the descriptor of a toolkit event.
func (tk *Toolkit) Event(name string) native.EventID {
	return tk.events[name]
}

// New creates an instance of a toolkit class with one reference.
func (tk *Toolkit) New(c native.ClassID) (native.Ptr, error) {
	return tk.rt.NewInstance(c)
}

func (tk *Toolkit) st(p native.Ptr) *widgetState {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	s := tk.state[p]
	if s == nil {
		s = &widgetState{visible: true, opacity: 1}
		tk.state[p] = s
	}
	return s
}

// Label returns the stored label of p without crossing the ABI.
func (tk *Toolkit) Label(p native.Ptr) string {
	s := tk.st(p)
	tk.mu.Lock()
	label := s.label
	tk.mu.Unlock()
	str, _ := tk.rt.ReadCString(label)
	return str
}

// Allocation returns the size most recently passed to size_allocate.
func (tk *Toolkit) Allocation(p native.Ptr) (int32, int32) {
	s := tk.st(p)
	tk.mu.Lock()
	defer tk.mu.Unlock()
	return s.allocW, s.allocH
}

// Size returns the current width and height of p.
func (tk *Toolkit) Size(p native.Ptr) (int32, int32) {
	s := tk.st(p)
	tk.mu.Lock()
	defer tk.mu.Unlock()
	return s.width, s.height
}

// LastSnapshot returns the rectangle most recently passed to snapshot.
func (tk *Toolkit) LastSnapshot(p native.Ptr) [4]int32 {
	s := tk.st(p)
	tk.mu.Lock()
	defer tk.mu.Unlock()
	return s.lastRect
}

func (tk *Toolkit) finalize(f *native.Frame) {
	tk.mu.Lock()
	s := tk.state[f.Self]
	delete(tk.state, f.Self)
	tk.mu.Unlock()
	if s == nil {
		return
	}
	if s.label != 0 {
		tk.rt.Free(s.label)
	}
	for _, c := range s.children {
		tk.rt.Unref(c)
	}
}

func s32(v uint64) int32 { return int32(uint32(v)) }
func fromS32(v int32) uint64 { return uint64(int64(v)) }

func (tk *Toolkit) measure(f *native.Frame) {
	w, h := tk.Size(f.Self)
	if uint32(f.Params[0]) == 0 {
		f.Results[0] = fromS32(w)
	} else {
		f.Results[0] = fromS32(h)
	}
}

func (tk *Toolkit) sizeAllocate(f *native.Frame) {
	s := tk.st(f.Self)
	tk.mu.Lock()
	s.allocW = s32(f.Params[0])
	s.allocH = s32(f.Params[1])
	tk.mu.Unlock()
}

func (tk *Toolkit) describe(f *native.Frame) {
	name := tk.rt.ClassName(tk.rt.ClassOf(f.Self))
	p, err := tk.rt.AllocCString(name + "(" + tk.Label(f.Self) + ")")
	if err != nil {
		return
	}
	f.Results[0] = uint64(p)
}

func (tk *Toolkit) preferredSize(f *native.Frame) {
	_ = tk.writeS32(native.Ptr(f.Params[0]), 100)
	_ = tk.writeS32(native.Ptr(f.Params[1]), 40)
}

func (tk *Toolkit) writeS32(p native.Ptr, v int32) error {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return tk.rt.Write(p, b)
}

func (tk *Toolkit) readS32(p native.Ptr) int32 {
	b, err := tk.rt.Read(p, 4)
	if err != nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

func (tk *Toolkit) snapshot(f *native.Frame) {
	rect, err := tk.readRect(native.Ptr(f.Params[0]))
	if err != nil {
		return
	}
	s := tk.st(f.Self)
	tk.mu.Lock()
	s.lastRect = rect
	tk.mu.Unlock()
}

func (tk *Toolkit) readRect(p native.Ptr) ([4]int32, error) {
	var rect [4]int32
	b, err := tk.rt.Read(p, 16)
	if err != nil {
		return rect, err
	}
	for i := range rect {
		rect[i] = int32(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return rect, nil
}

func (tk *Toolkit) setSize(f *native.Frame) {
	w, h := s32(f.Params[0]), s32(f.Params[1])
	s := tk.st(f.Self)
	tk.mu.Lock()
	changed := s.width != w || s.height != h
	s.width, s.height = w, h
	tk.mu.Unlock()

	tk.rt.Invoke(f.Self, "sim_widget_size_allocate", 0, fromS32(w), fromS32(h))
	if changed {
		tk.rt.Emit(f.Self, tk.events[EventSizeChanged], fromS32(w))
	}
}

func (tk *Toolkit) getWidth(f *native.Frame) {
	w, _ := tk.Size(f.Self)
	f.Results[0] = fromS32(w)
}

func (tk *Toolkit) getHeight(f *native.Frame) {
	_, h := tk.Size(f.Self)
	f.Results[0] = fromS32(h)
}

// getLabel returns the internal buffer; the caller must not free it.
func (tk *Toolkit) getLabel(f *native.Frame) {
	s := tk.st(f.Self)
	tk.mu.Lock()
	f.Results[0] = uint64(s.label)
	tk.mu.Unlock()
}

func (tk *Toolkit) replaceLabel(self, label native.Ptr) {
	s := tk.st(self)
	tk.mu.Lock()
	old := s.label
	s.label = label
	tk.mu.Unlock()
	if old != 0 {
		tk.rt.Free(old)
	}
}

// setLabel copies a borrowed string.
func (tk *Toolkit) setLabel(f *native.Frame) {
	str, err := tk.rt.ReadCString(native.Ptr(f.Params[0]))
	if err != nil {
		return
	}
	p, err := tk.rt.AllocCString(str)
	if err != nil {
		return
	}
	tk.replaceLabel(f.Self, p)
}

// takeLabel adopts an owned string.
func (tk *Toolkit) takeLabel(f *native.Frame) {
	tk.replaceLabel(f.Self, native.Ptr(f.Params[0]))
}

// dupLabel returns a copy the caller must free.
func (tk *Toolkit) dupLabel(f *native.Frame) {
	p, err := tk.rt.AllocCString(tk.Label(f.Self))
	if err != nil {
		return
	}
	f.Results[0] = uint64(p)
}

func boolSlot(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (tk *Toolkit) getVisible(f *native.Frame) {
	s := tk.st(f.Self)
	tk.mu.Lock()
	f.Results[0] = boolSlot(s.visible)
	tk.mu.Unlock()
}

func (tk *Toolkit) setVisible(f *native.Frame) {
	v := f.Params[0]&0xff != 0
	s := tk.st(f.Self)
	tk.mu.Lock()
	changed := s.visible != v
	s.visible = v
	tk.mu.Unlock()
	if changed {
		tk.rt.Emit(f.Self, tk.events[EventVisibilityChanged], boolSlot(v))
	}
}

func (tk *Toolkit) getOpacity(f *native.Frame) {
	s := tk.st(f.Self)
	tk.mu.Lock()
	f.Results[0] = math.Float64bits(s.opacity)
	tk.mu.Unlock()
}

func (tk *Toolkit) setOpacity(f *native.Frame) {
	v := math.Float64frombits(f.Params[0])
	s := tk.st(f.Self)
	tk.mu.Lock()
	s.opacity = v
	tk.mu.Unlock()
	tk.rt.Emit(f.Self, tk.events[EventOpacityChanged], f.Params[0])
}

// getBounds fills a caller-allocated rectangle.
func (tk *Toolkit) getBounds(f *native.Frame) {
	w, h := tk.Size(f.Self)
	b := make([]byte, 16)
	binary.LittleEndian.PutUint32(b[8:], uint32(w))
	binary.LittleEndian.PutUint32(b[12:], uint32(h))
	_ = tk.rt.Write(native.Ptr(f.Params[0]), b)
}

func (tk *Toolkit) setBounds(f *native.Frame) {
	rect, err := tk.readRect(native.Ptr(f.Params[0]))
	if err != nil {
		return
	}
	tk.setSize(&native.Frame{Self: f.Self, Params: []uint64{fromS32(rect[2]), fromS32(rect[3])}})
}

// queueResize asks the widget for its preferred size through its vtable,
// then applies it.
func (tk *Toolkit) queueResize(f *native.Frame) {
	wSlot, err := tk.rt.Alloc(4, 4)
	if err != nil {
		return
	}
	defer tk.rt.Free(wSlot)
	hSlot, err := tk.rt.Alloc(4, 4)
	if err != nil {
		return
	}
	defer tk.rt.Free(hSlot)

	if _, ok := tk.rt.Invoke(f.Self, "sim_widget_get_preferred_size", 0, uint64(wSlot), uint64(hSlot)); !ok {
		return
	}
	w, h := tk.readS32(wSlot), tk.readS32(hSlot)
	tk.setSize(&native.Frame{Self: f.Self, Params: []uint64{fromS32(w), fromS32(h)}})
}

func (tk *Toolkit) getParent(f *native.Frame) {
	s := tk.st(f.Self)
	tk.mu.Lock()
	f.Results[0] = uint64(s.parent)
	tk.mu.Unlock()
}

// containerAdd takes its own reference on the borrowed child.
func (tk *Toolkit) containerAdd(f *native.Frame) {
	child := native.Ptr(f.Params[0])
	if !tk.rt.Alive(child) {
		return
	}
	tk.rt.Ref(child)

	s := tk.st(f.Self)
	cs := tk.st(child)
	tk.mu.Lock()
	s.children = append(s.children, child)
	cs.parent = f.Self
	tk.mu.Unlock()

	tk.rt.Emit(f.Self, tk.events[EventChildAdded], uint64(child))
}

func (tk *Toolkit) containerRemove(f *native.Frame) {
	child := native.Ptr(f.Params[0])
	s := tk.st(f.Self)
	found := false

	tk.mu.Lock()
	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i:i], s.children[i+1:]...)
			found = true
			break
		}
	}
	if cs := tk.state[child]; found && cs != nil {
		cs.parent = 0
	}
	tk.mu.Unlock()

	if found {
		tk.rt.Unref(child)
	}
	f.Results[0] = boolSlot(found)
}

func (tk *Toolkit) containerGetChild(f *native.Frame) {
	idx := uint32(f.Params[0])
	s := tk.st(f.Self)
	tk.mu.Lock()
	defer tk.mu.Unlock()
	if int(idx) < len(s.children) {
		f.Results[0] = uint64(s.children[idx])
	}
}

func (tk *Toolkit) containerNChildren(f *native.Frame) {
	s := tk.st(f.Self)
	tk.mu.Lock()
	f.Results[0] = uint64(len(s.children))
	tk.mu.Unlock()
}

// buttonNewWithLabel returns a new button; the caller owns the reference.
func (tk *Toolkit) buttonNewWithLabel(f *native.Frame) {
	p, err := tk.rt.NewInstance(tk.Button)
	if err != nil {
		return
	}
	tk.setLabel(&native.Frame{Self: p, Params: f.Params})
	f.Results[0] = uint64(p)
}

func (tk *Toolkit) buttonClicked(f *native.Frame) {
	s := tk.st(f.Self)
	tk.mu.Lock()
	s.clicks++
	tk.mu.Unlock()
}

func (tk *Toolkit) buttonClick(f *native.Frame) {
	tk.rt.Invoke(f.Self, "sim_button_clicked", 0)
	tk.rt.Emit(f.Self, tk.events[EventClicked])
}

func (tk *Toolkit) buttonGetClicks(f *native.Frame) {
	s := tk.st(f.Self)
	tk.mu.Lock()
	f.Results[0] = uint64(s.clicks)
	tk.mu.Unlock()
}

func (tk *Toolkit) buttonSetActive(f *native.Frame) {
	v := f.Params[0]&0xff != 0
	s := tk.st(f.Self)
	tk.mu.Lock()
	changed := s.active != v
	s.active = v
	tk.mu.Unlock()
	if changed {
		tk.rt.Emit(f.Self, tk.events[EventToggled], boolSlot(v))
	}
}

func (tk *Toolkit) buttonGetActive(f *native.Frame) {
	s := tk.st(f.Self)
	tk.mu.Lock()
	f.Results[0] = boolSlot(s.active)
	tk.mu.Unlock()
}
