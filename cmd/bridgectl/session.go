package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/objbridge/binding"
	"github.com/wippyai/objbridge/bridge"
	"github.com/wippyai/objbridge/class"
	"github.com/wippyai/objbridge/marshal"
	"github.com/wippyai/objbridge/native/simrt"
	"github.com/wippyai/objbridge/sim"
)

// session is a sim runtime with the toolkit installed and bound.
type session struct {
	rt *simrt.Runtime
	b  *bridge.Bridge
}

func newSession(log *zap.Logger) (*session, error) {
	rt, err := simrt.New()
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	if _, err := simrt.InstallToolkit(rt); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("install toolkit: %w", err)
	}
	b := bridge.New(rt, bridge.WithLogger(log))
	if err := sim.Bind(b); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("bind toolkit: %w", err)
	}
	return &session{rt: rt, b: b}, nil
}

func (s *session) Close() error {
	err := s.b.Close()
	if cerr := s.rt.Close(); err == nil {
		err = cerr
	}
	return err
}

func loadDefs(path string) ([]*class.Def, error) {
	if path == "" {
		return sim.Defs()
	}
	return binding.LoadDefs(path)
}

func runList(w io.Writer, path string) error {
	defs, err := loadDefs(path)
	if err != nil {
		return err
	}
	for _, d := range defs {
		fmt.Fprintf(w, "class %s (%s)", d.Name, d.Native)
		if d.Parent != "" {
			fmt.Fprintf(w, " : %s", d.Parent)
		}
		fmt.Fprintf(w, "  [%s]\n", d.Library)
		for i := range d.Ops {
			fmt.Fprintf(w, "  %s\n", formatOp(&d.Ops[i]))
		}
		for _, p := range d.Properties {
			fmt.Fprintf(w, "  property %s get %s", p.Name, p.Getter)
			if p.Setter != "" {
				fmt.Fprintf(w, " set %s", p.Setter)
			}
			fmt.Fprintln(w)
		}
		for _, e := range d.Events {
			fmt.Fprintf(w, "  event %s (%s)\n", e.Name, e.Payload)
		}
	}
	return nil
}

func formatOp(op *class.OpDef) string {
	var kind string
	switch {
	case op.Static:
		kind = "static "
	case op.Virtual:
		kind = "virtual "
	}
	params := make([]string, 0, len(op.Sig.Params))
	for _, p := range op.Sig.Params {
		params = append(params, formatParam(p))
	}
	result := ""
	if op.Sig.Result != nil {
		result = " -> " + formatParam(*op.Sig.Result)
	}
	return fmt.Sprintf("%s%s(%s)%s  %s", kind, op.Method, strings.Join(params, ", "), result, op.Symbol)
}

func formatParam(p marshal.Param) string {
	var b strings.Builder
	if p.Name != "" {
		b.WriteString(p.Name)
		b.WriteByte(' ')
	}
	if p.Dir != marshal.In {
		b.WriteString(p.Dir.String())
		b.WriteByte(' ')
	}
	b.WriteString(typeStr(p.Type))
	if p.Transfer == marshal.Owned {
		b.WriteString(" owned")
	}
	return b.String()
}

func typeStr(t wit.Type) string {
	if td, ok := t.(*wit.TypeDef); ok && td.Name != nil {
		return *td.Name
	}
	return marshal.TypeName(t)
}

// fancyButton is a managed subclass: the clicked and describe virtuals
// land in Go and chain to the native implementation.
type fancyButton struct {
	sim.Button
	clicks int
}

func (f *fancyButton) Clicked() {
	f.clicks++
	if _, err := f.CallSuper("Clicked"); err != nil {
		panic(err)
	}
}

func (f *fancyButton) Describe() string {
	res, err := f.CallSuper("Describe")
	if err != nil {
		panic(err)
	}
	return "*" + res[0].(string) + "*"
}

func runDemo(w io.Writer, log *zap.Logger) error {
	s, err := newSession(log)
	if err != nil {
		return err
	}
	defer s.Close()

	box, err := bridge.Create[sim.Container](s.b)
	if err != nil {
		return err
	}
	defer box.Dispose()

	btn, err := bridge.Create[fancyButton](s.b)
	if err != nil {
		return err
	}
	defer btn.Dispose()
	if err := btn.SetLabel("OK"); err != nil {
		return err
	}

	sim.ChildAdded.Connect(box, func(c *sim.Widget) {
		fmt.Fprintf(w, "event child-added: %v\n", c)
	})
	sim.Clicked.Connect(btn, func(struct{}) {
		fmt.Fprintln(w, "event clicked")
	})
	sim.SizeChanged.Connect(btn, func(v int32) {
		fmt.Fprintf(w, "event size-changed: %d\n", v)
	})

	if err := box.Add(btn); err != nil {
		return err
	}
	for range 2 {
		if err := btn.Click(); err != nil {
			return err
		}
	}
	nativeClicks, err := btn.Clicks()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "clicks: go=%d native=%d\n", btn.clicks, nativeClicks)

	if err := btn.SetSize(120, 32); err != nil {
		return err
	}
	desc, err := btn.Description()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "describe: %s\n", desc)

	if err := s.b.CheckUnhandled(); err != nil {
		return err
	}

	btn.Dispose()
	box.Dispose()
	st := s.rt.Stats()
	fmt.Fprintf(w, "native: %d objects live, %d registrations, %d removals\n",
		st.LiveObjects, st.Connects, st.Disconnects)
	return nil
}

// connector is satisfied by every toolkit wrapper through bridge.Object.
type connector interface {
	bridge.Wrapper
	Connect(event string, fn func(any)) (bridge.ListenerID, bool)
}

type trigger struct {
	create func(b *bridge.Bridge) (connector, error)
	fire   func(c connector) error
}

func newWidget(b *bridge.Bridge) (connector, error)    { return bridge.Create[sim.Widget](b) }
func newButton(b *bridge.Bridge) (connector, error)    { return bridge.Create[sim.Button](b) }
func newContainer(b *bridge.Bridge) (connector, error) { return bridge.Create[sim.Container](b) }

var triggers = map[string]trigger{
	simrt.EventSizeChanged: {newWidget, func(c connector) error {
		return c.(*sim.Widget).SetSize(64, 48)
	}},
	simrt.EventVisibilityChanged: {newWidget, func(c connector) error {
		return c.(*sim.Widget).SetVisible(false)
	}},
	simrt.EventOpacityChanged: {newWidget, func(c connector) error {
		return c.(*sim.Widget).SetOpacity(0.5)
	}},
	simrt.EventClicked: {newButton, func(c connector) error {
		return c.(*sim.Button).Click()
	}},
	simrt.EventToggled: {newButton, func(c connector) error {
		return c.(*sim.Button).SetActive(true)
	}},
	simrt.EventChildAdded: {newContainer, func(c connector) error {
		box := c.(*sim.Container)
		child, err := bridge.Create[sim.Widget](box.Bridge())
		if err != nil {
			return err
		}
		defer child.Dispose()
		return box.Add(child)
	}},
}

func eventNames() []string {
	names := make([]string, 0, len(triggers))
	for name := range triggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func runEmit(w io.Writer, log *zap.Logger, event string) error {
	tr, ok := triggers[event]
	if !ok {
		return fmt.Errorf("unknown event %q (known: %s)", event, strings.Join(eventNames(), ", "))
	}

	s, err := newSession(log)
	if err != nil {
		return err
	}
	defer s.Close()

	obj, err := tr.create(s.b)
	if err != nil {
		return err
	}
	defer obj.Dispose()

	n := 0
	id, ok := obj.Connect(event, func(v any) {
		n++
		fmt.Fprintf(w, "%s on %v: %v\n", event, obj, v)
	})
	if !ok {
		return fmt.Errorf("subscribe %s failed", event)
	}
	if err := tr.fire(obj); err != nil {
		return err
	}
	if err := s.b.CheckUnhandled(); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s was not delivered", event)
	}
	log.Debug("event delivered", zap.String("event", event), zap.Uint64("listener", uint64(id)))
	return nil
}
