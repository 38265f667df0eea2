package binding

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/objbridge/errors"
	"github.com/wippyai/objbridge/native/simrt"
)

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"a.toml", FormatTOML},
		{"a.YAML", FormatYAML},
		{"dir/a.yml", FormatYAML},
		{"a.json", FormatJSON},
		{"a.bind", FormatAuto},
		{"noext", FormatAuto},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatOf(tt.path), tt.path)
	}
}

func TestLoad_SameDocumentEveryFormat(t *testing.T) {
	fromYAML, err := Load(filepath.Join("testdata", "shapes.yaml"))
	require.NoError(t, err)
	fromJSON, err := Load(filepath.Join("testdata", "shapes.json"))
	require.NoError(t, err)

	assert.Equal(t, fromYAML, fromJSON)
	assert.Equal(t, "Shapes", fromYAML.Library)
	require.Len(t, fromYAML.Classes, 2)

	shape, ok := fromYAML.Class("Shape")
	require.True(t, ok)
	assert.Equal(t, "ShapeBase", shape.Native)
	require.Len(t, shape.Ops, 5)
	assert.True(t, shape.Ops[0].Virtual)
	require.NotNil(t, shape.Ops[4].Result)
	assert.Equal(t, "full", shape.Ops[4].Result.Transfer)
}

func TestParse_Autodetect(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "noext"))
	require.NoError(t, err)
	assert.Equal(t, "Plain", f.Library)

	f, err = Parse([]byte(`{"library": "J", "class": [{"name": "A", "native": "JA"}]}`), FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, "J", f.Library)

	f, err = Parse([]byte("library: Y\nclass:\n  - name: A\n    native: YA\n"), FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, "Y", f.Library)

	_, err = Parse([]byte("\x00\x01 not a document"), FormatAuto)
	require.Error(t, err)
}

func TestParse_Toolkit(t *testing.T) {
	f, err := Parse(simrt.ToolkitBindings, FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, simrt.ToolkitLibrary, f.Library)

	widget, ok := f.Class("Widget")
	require.True(t, ok)
	assert.Equal(t, "sim_widget_", widget.Prefix)
	assert.NotEmpty(t, widget.Properties)
	assert.NotEmpty(t, widget.Events)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing library", `{"class": []}`},
		{"unknown top-level key", `{"library": "L", "module": 1}`},
		{"class without native", `{"library": "L", "class": [{"name": "A"}]}`},
		{"bad identifier", `{"library": "L", "class": [{"name": "9A", "native": "X"}]}`},
		{"bad direction", `{"library": "L", "class": [{"name": "A", "native": "X",
			"op": [{"symbol": "s", "params": [{"type": "s32", "direction": "both"}]}]}]}`},
		{"bad payload", `{"library": "L", "class": [{"name": "A", "native": "X",
			"event": [{"name": "e", "payload": "string"}]}]}`},
		{"empty enum", `{"library": "L", "enum": [{"name": "E", "cases": []}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatJSON)
			require.Error(t, err)
			var e *errors.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, errors.PhaseValidate, e.Phase)
		})
	}
}

func TestLoad_SchemaErrorNamesFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "broken.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.toml")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "nope.toml"))
	require.Error(t, err)
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.PhaseLoad, e.Phase)
}
