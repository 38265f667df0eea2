package main

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/objbridge/bridge"
	"github.com/wippyai/objbridge/class"
	"github.com/wippyai/objbridge/marshal"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1).
			Foreground(lipgloss.Color("#1E1E2E")).
			Background(lipgloss.Color("#89B4FA"))
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89B4FA"))
	methodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	typeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#94E2D5"))
	resultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	eventStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	hintStyle   = lipgloss.NewStyle().Faint(true)
)

const maxEvents = 8

// target is one live toolkit object and the operations it can run.
type target struct {
	obj  connector
	name string
	defs []*class.Def
}

type opInfo struct {
	target *target
	op     *class.OpDef
	params []marshal.Param
}

// eventLog collects deliveries from listeners, which run on the goroutine
// executing the call.
type eventLog struct {
	lines []string
	mu    sync.Mutex
}

func (l *eventLog) add(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
	if len(l.lines) > maxEvents {
		l.lines = l.lines[len(l.lines)-maxEvents:]
	}
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

type interactiveModel struct {
	err      error
	session  *session
	events   *eventLog
	result   string
	targets  []*target
	ops      []opInfo
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type modelState int

const (
	stateSelectOp modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel() *interactiveModel {
	return &interactiveModel{
		events: &eventLog{},
		state:  stateSelectOp,
	}
}

type loadedMsg struct {
	err     error
	session *session
	targets []*target
	ops     []opInfo
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.load
}

// chain returns def and its ancestors, root first.
func chain(defs []*class.Def, name string) []*class.Def {
	byName := make(map[string]*class.Def, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}
	var out []*class.Def
	for d := byName[name]; d != nil; d = byName[d.Parent] {
		out = append([]*class.Def{d}, out...)
	}
	return out
}

func (m *interactiveModel) load() tea.Msg {
	defs, err := loadDefs("")
	if err != nil {
		return loadedMsg{err: err}
	}
	s, err := newSession(zap.NewNop())
	if err != nil {
		return loadedMsg{err: err}
	}

	var (
		targets []*target
		ops     []opInfo
	)
	for _, spec := range []struct {
		class  string
		create func(*bridge.Bridge) (connector, error)
	}{
		{"Widget", newWidget},
		{"Container", newContainer},
		{"Button", newButton},
	} {
		obj, err := spec.create(s.b)
		if err != nil {
			_ = s.Close()
			return loadedMsg{err: err}
		}
		t := &target{obj: obj, name: spec.class, defs: chain(defs, spec.class)}
		targets = append(targets, t)

		for _, d := range t.defs {
			for _, ev := range d.Events {
				name := ev.Name
				obj.Connect(name, func(v any) {
					m.events.add(fmt.Sprintf("%s %s: %v", t.name, name, v))
				})
			}
			for i := range d.Ops {
				op := &d.Ops[i]
				if op.Static {
					continue
				}
				ops = append(ops, opInfo{target: t, op: op, params: op.Sig.Inputs()})
			}
		}
	}
	return loadedMsg{session: s, targets: targets, ops: ops}
}

func (m *interactiveModel) close() {
	for _, t := range m.targets {
		t.obj.Dispose()
	}
	if m.session != nil {
		_ = m.session.Close()
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m.session, m.targets, m.ops, m.err = msg.session, msg.targets, msg.ops, msg.err
		return m, nil
	case callResultMsg:
		m.result, m.err = msg.result, msg.err
		m.state = stateShowResult
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.close()
			return m, tea.Quit
		}
		switch m.state {
		case stateSelectOp:
			return m.onSelectKey(msg)
		case stateInputArgs:
			return m.onInputKey(msg)
		case stateShowResult:
			return m.onResultKey(msg)
		}
	}
	return m, nil
}

func (m *interactiveModel) onSelectKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.close()
		return m, tea.Quit
	case "up", "k":
		m.selected = max(m.selected-1, 0)
	case "down", "j":
		m.selected = max(min(m.selected+1, len(m.ops)-1), 0)
	case "enter":
		if len(m.ops) == 0 {
			return m, nil
		}
		m.prepareInputs()
		if len(m.inputs) == 0 {
			return m, m.callOp
		}
		m.state = stateInputArgs
	}
	return m, nil
}

func (m *interactiveModel) onInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return m, m.callOp
	case "esc":
		m.state = stateSelectOp
		m.inputs = nil
		return m, nil
	case "tab":
		m.inputs[m.focusIdx].Blur()
		m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
		m.inputs[m.focusIdx].Focus()
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focusIdx], cmd = m.inputs[m.focusIdx].Update(msg)
	return m, cmd
}

func (m *interactiveModel) onResultKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		m.close()
		return m, tea.Quit
	case "enter", "esc":
		m.state = stateSelectOp
		m.result, m.err = "", nil
	}
	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	op := m.ops[m.selected]
	m.inputs = make([]textinput.Model, len(op.params))
	for i, p := range op.params {
		ti := textinput.New()
		ti.Placeholder = typeStr(p.Type)
		ti.Prompt = p.Name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callOp() tea.Msg {
	op := m.ops[m.selected]
	args := make([]any, len(m.inputs))
	for i, input := range m.inputs {
		v, err := convertArg(input.Value(), op.params[i].Type)
		if err != nil {
			return callResultMsg{err: fmt.Errorf("%s: %w", op.params[i].Name, err)}
		}
		args[i] = v
	}

	res, err := op.target.obj.(interface {
		Call(name string, args ...any) ([]any, error)
	}).Call(op.op.Method, args...)
	if err == nil {
		err = m.session.b.CheckUnhandled()
	}
	if err != nil {
		return callResultMsg{err: err}
	}
	if len(res) == 0 {
		return callResultMsg{result: "ok"}
	}
	parts := make([]string, len(res))
	for i, r := range res {
		parts[i] = fmt.Sprintf("%v", r)
	}
	return callResultMsg{result: strings.Join(parts, ", ")}
}

func convertArg(value string, t wit.Type) (any, error) {
	switch marshal.KindOf(t) {
	case marshal.KindString:
		return value, nil
	case marshal.KindBool:
		return value == "true" || value == "1", nil
	case marshal.KindSigned:
		return strconv.ParseInt(value, 10, 64)
	case marshal.KindUnsigned, marshal.KindEnum, marshal.KindFlags:
		return strconv.ParseUint(value, 10, 64)
	case marshal.KindFloat:
		return strconv.ParseFloat(value, 64)
	case marshal.KindChar:
		r := []rune(value)
		if len(r) != 1 {
			return nil, fmt.Errorf("want one character")
		}
		return r[0], nil
	case marshal.KindRecord:
		return parseRecord(value, t)
	default:
		return nil, fmt.Errorf("%s arguments are not supported here", typeStr(t))
	}
}

// parseRecord reads "1,2,3,4" as the record fields in order.
func parseRecord(value string, t wit.Type) (any, error) {
	rec := t.(*wit.TypeDef).Kind.(*wit.Record)
	parts := strings.Split(value, ",")
	if len(parts) != len(rec.Fields) {
		return nil, fmt.Errorf("want %d comma separated fields", len(rec.Fields))
	}
	out := make(map[string]any, len(parts))
	for i, f := range rec.Fields {
		v, err := convertArg(strings.TrimSpace(parts[i]), f.Type)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

func (m *interactiveModel) View() string {
	switch {
	case m.err != nil && m.state != stateShowResult:
		return errorStyle.Render("bridgectl: "+m.err.Error()) + "\n\n" + hintStyle.Render("ctrl+c quit")
	case len(m.ops) == 0:
		return "binding sim toolkit..."
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("bridgectl"))
	fmt.Fprintf(&b, " %d objects, %d operations\n\n", len(m.targets), len(m.ops))

	switch m.state {
	case stateSelectOp:
		m.viewOps(&b)
	case stateInputArgs:
		m.viewInputs(&b)
	case stateShowResult:
		m.viewResult(&b)
	}
	m.viewEvents(&b)
	return b.String()
}

func (m *interactiveModel) viewOps(b *strings.Builder) {
	start, end := window(m.selected, len(m.ops), 12)
	for i := start; i < end; i++ {
		cursor := "  "
		if i == m.selected {
			cursor = cursorStyle.Render("▸ ")
		}
		b.WriteString(cursor + m.formatOp(m.ops[i]) + "\n")
	}
	b.WriteString("\n" + hintStyle.Render("j/k move  enter run  q quit"))
}

func (m *interactiveModel) viewInputs(b *strings.Builder) {
	op := m.ops[m.selected]
	fmt.Fprintf(b, "%s.%s\n\n", op.target.name, methodStyle.Render(op.op.Method))
	for i := range m.inputs {
		fmt.Fprintf(b, "%s %s\n", m.inputs[i].View(), typeStyle.Render(typeStr(op.params[i].Type)))
	}
	b.WriteString("\n" + hintStyle.Render("tab next  enter run  esc back"))
}

func (m *interactiveModel) viewResult(b *strings.Builder) {
	op := m.ops[m.selected]
	fmt.Fprintf(b, "%s.%s = ", op.target.name, methodStyle.Render(op.op.Method))
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
	} else {
		b.WriteString(resultStyle.Render(m.result))
	}
	b.WriteString("\n\n" + hintStyle.Render("enter back  q quit"))
}

func (m *interactiveModel) viewEvents(b *strings.Builder) {
	events := m.events.snapshot()
	if len(events) == 0 {
		return
	}
	b.WriteString("\n\n")
	for _, e := range events {
		b.WriteString(eventStyle.Render("◆ "+e) + "\n")
	}
}

// window returns the visible slice bounds of a list scrolled to selected.
func window(selected, n, height int) (int, int) {
	if n <= height {
		return 0, n
	}
	start := selected - height/2
	start = max(start, 0)
	start = min(start, n-height)
	return start, start + height
}

func (m *interactiveModel) formatOp(o opInfo) string {
	params := make([]string, 0, len(o.params))
	for _, p := range o.params {
		params = append(params, p.Name+": "+typeStyle.Render(typeStr(p.Type)))
	}
	result := ""
	if o.op.Sig.Result != nil {
		result = " -> " + typeStyle.Render(typeStr(o.op.Sig.Result.Type))
	}
	return o.target.name + "." + methodStyle.Render(o.op.Method) + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive() error {
	p := tea.NewProgram(newInteractiveModel(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
