package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/objbridge/marshal"
	"github.com/wippyai/objbridge/native/simrt"
)

func TestRunList_Toolkit(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runList(&out, ""))

	s := out.String()
	assert.Contains(t, s, "class Object (SimObject)  [Sim]")
	assert.Contains(t, s, "class Widget (SimWidget) : Object  [Sim]")
	assert.Contains(t, s, "virtual PreferredSize(width out s32, height out s32)  sim_widget_get_preferred_size")
	assert.Contains(t, s, "virtual Snapshot(rect Rect)")
	assert.Contains(t, s, "GetParent() -> Widget  sim_widget_get_parent")
	assert.Contains(t, s, "static NewWithLabel(label string) -> Button owned")
	assert.Contains(t, s, "property label get sim_widget_get_label set sim_widget_set_label")
	assert.Contains(t, s, "property width get sim_widget_get_width\n")
	assert.Contains(t, s, "event size-changed (int)")
	assert.Contains(t, s, "event clicked (none)")
}

func TestRunList_File(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runList(&out, "../../binding/testdata/shapes.yaml"))

	s := out.String()
	assert.True(t, strings.Index(s, "class Shape") < strings.Index(s, "class Circle"), "parents are listed first")
	assert.Contains(t, s, "event moved (object)")

	err := runList(&out, "../../binding/testdata/missing.toml")
	require.Error(t, err)
}

func TestRunDemo(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runDemo(&out, zap.NewNop()))

	s := out.String()
	assert.Contains(t, s, "event child-added: SimWidget@")
	assert.Equal(t, 2, strings.Count(s, "event clicked\n"))
	assert.Contains(t, s, "clicks: go=2 native=2")
	assert.Contains(t, s, "event size-changed: 120")
	assert.Contains(t, s, "describe: *")
	assert.Contains(t, s, "(OK)*")
	assert.Contains(t, s, "native: 0 objects live, 3 registrations, 3 removals")
}

func TestRunEmit(t *testing.T) {
	tests := []struct {
		event string
		want  string
	}{
		{simrt.EventSizeChanged, ": 64"},
		{simrt.EventVisibilityChanged, ": false"},
		{simrt.EventOpacityChanged, ": 0.5"},
		{simrt.EventClicked, ": <nil>"},
		{simrt.EventToggled, ": true"},
		{simrt.EventChildAdded, ": SimWidget@"},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, runEmit(&out, zap.NewNop(), tt.event))
			assert.True(t, strings.HasPrefix(out.String(), tt.event+" on "), out.String())
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestRunEmit_Unknown(t *testing.T) {
	err := runEmit(&bytes.Buffer{}, zap.NewNop(), "melted")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size-changed")
}

func TestConvertArg(t *testing.T) {
	v, err := convertArg("-3", wit.S32{})
	require.NoError(t, err)
	assert.Equal(t, int64(-3), v)

	v, err = convertArg("true", wit.Bool{})
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = convertArg("0.25", wit.F64{})
	require.NoError(t, err)
	assert.Equal(t, 0.25, v)

	rect := marshal.Record(wit.Field{Name: "x", Type: wit.S32{}}, wit.Field{Name: "y", Type: wit.S32{}})
	v, err = convertArg("1, 2", rect)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": int64(1), "y": int64(2)}, v)

	_, err = convertArg("1", rect)
	assert.Error(t, err)

	_, err = convertArg("x", marshal.Object(marshal.Borrowed))
	assert.Error(t, err)

	_, err = convertArg("abc", wit.U32{})
	assert.Error(t, err)
}

func TestWindow(t *testing.T) {
	start, end := window(0, 5, 12)
	assert.Equal(t, [2]int{0, 5}, [2]int{start, end})

	start, end = window(20, 30, 12)
	assert.Equal(t, [2]int{14, 26}, [2]int{start, end})

	start, end = window(29, 30, 12)
	assert.Equal(t, [2]int{18, 30}, [2]int{start, end})
}

func TestChain(t *testing.T) {
	defs, err := loadDefs("")
	require.NoError(t, err)

	names := make([]string, 0, 3)
	for _, d := range chain(defs, "Button") {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"Object", "Widget", "Button"}, names)
	assert.Empty(t, chain(defs, "Nope"))
}
