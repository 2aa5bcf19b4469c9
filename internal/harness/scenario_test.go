package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chord/internal/ir"
)

func TestParseScenario(t *testing.T) {
	data := []byte(`
name: parsed
description: all fields
source: "def view v { prompt: { user: hi } }"
signals:
  user: Bob
  retries: 3
env:
  CHORD_MODE: test
steps:
  - view: v
    expect:
      status: ok
      prompt: { user: hi }
  - auto: true
assertions:
  - type: trace_count
    target: "view:v"
    count: 2
`)
	s, err := ParseScenario(data, "/base")
	require.NoError(t, err)

	assert.Equal(t, "parsed", s.Name)
	assert.Equal(t, "/base", s.BaseDir)
	assert.Equal(t, 3, s.Signals["retries"])
	assert.Equal(t, "test", s.Env["CHORD_MODE"])
	require.Len(t, s.Steps, 2)

	kind, target := s.Steps[0].Kind()
	assert.Equal(t, ir.RunView, kind)
	assert.Equal(t, "v", target)

	kind, target = s.Steps[1].Kind()
	assert.Equal(t, ir.RunAuto, kind)
	assert.Empty(t, target)

	require.Len(t, s.Assertions, 1)
	assert.Equal(t, 2, s.Assertions[0].Count)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\ndescription: y\nstep: []\n",
			want: "field step not found",
		},
		{
			name: "missing name",
			yaml: "description: y\nsteps: [{view: v}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: x\nsteps: [{view: v}]\n",
			want: "description is required",
		},
		{
			name: "no steps",
			yaml: "name: x\ndescription: y\n",
			want: "steps list is required",
		},
		{
			name: "source and file",
			yaml: "name: x\ndescription: y\nsource: a\nfile: b\nsteps: [{view: v}]\n",
			want: "mutually exclusive",
		},
		{
			name: "missing program file",
			yaml: "name: x\ndescription: y\nfile: nope.chord\nsteps: [{view: v}]\n",
			want: "program file not found",
		},
		{
			name: "two targets",
			yaml: "name: x\ndescription: y\nsteps: [{view: v, task: t}]\n",
			want: "steps[0]: exactly one of",
		},
		{
			name: "empty step",
			yaml: "name: x\ndescription: y\nsteps: [{}]\n",
			want: "steps[0]: exactly one of",
		},
		{
			name: "unknown status",
			yaml: "name: x\ndescription: y\nsteps: [{view: v, expect: {status: done}}]\n",
			want: `unknown status "done"`,
		},
		{
			name: "error with ok status",
			yaml: "name: x\ndescription: y\nsteps: [{view: v, expect: {status: ok, error: VIEW_NOT_FOUND}}]\n",
			want: "error requires status error",
		},
		{
			name: "tasks on a view step",
			yaml: "name: x\ndescription: y\nsteps: [{view: v, expect: {tasks: [a]}}]\n",
			want: "tasks only applies to flow steps",
		},
		{
			name: "assertion without type",
			yaml: "name: x\ndescription: y\nsteps: [{view: v}]\nassertions: [{target: 'view:v'}]\n",
			want: "assertions[0]: type is required",
		},
		{
			name: "unknown assertion",
			yaml: "name: x\ndescription: y\nsteps: [{view: v}]\nassertions: [{type: vibes}]\n",
			want: `unknown assertion type "vibes"`,
		},
		{
			name: "bad trace target",
			yaml: "name: x\ndescription: y\nsteps: [{view: v}]\nassertions: [{type: trace_contains, target: 'ctx:v'}]\n",
			want: "target kind:name is required",
		},
		{
			name: "bad order target",
			yaml: "name: x\ndescription: y\nsteps: [{view: v}]\nassertions: [{type: trace_order, targets: ['view:v', v]}]\n",
			want: `invalid target "v"`,
		},
		{
			name: "negative count",
			yaml: "name: x\ndescription: y\nsteps: [{view: v}]\nassertions: [{type: trace_count, target: 'view:v', count: -1}]\n",
			want: "count must be non-negative",
		},
		{
			name: "final state without expect",
			yaml: "name: x\ndescription: y\nsteps: [{view: v}]\nassertions: [{type: final_state, table: runs}]\n",
			want: "expect is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml), t.TempDir())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_BaseDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prog.chord"), []byte("def view v { }"), 0o644))
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: s\ndescription: d\nfile: prog.chord\nsteps: [{view: v}]\n"), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, dir, s.BaseDir)
	assert.Equal(t, filepath.Join(dir, "prog.chord"), s.programPath())
}

func TestLoadScenario_ErrorNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: s\n"), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestLoadScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, scenarios, 2)

	// Sorted by file name: flow.yml before greet.yaml.
	assert.Equal(t, "flow_fixture", scenarios[0].Name)
	assert.Equal(t, "greet_signal", scenarios[1].Name)
}

func TestLoadScenarios_SkipsOtherFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# notes"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	assert.Empty(t, scenarios)
}
