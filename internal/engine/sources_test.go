package engine

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chord/internal/ir"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"notes.txt": "hello\nworld\n"})
	path := filepath.Join(dir, "notes.txt")

	for _, uri := range []string{path, FileScheme + path} {
		v, err := FileSource{}.Fetch(context.Background(), uri, nil)
		require.NoError(t, err, uri)
		assert.Equal(t, ir.String("hello\nworld\n"), v)
	}
}

func TestSourceRoot(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"docs/a.md": "A", "docs/b.md": "B"})

	v, err := FileSource{Root: dir}.Fetch(context.Background(), "fs://docs/a.md", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.String("A"), v)

	v, err = DirSource{Root: dir}.Fetch(context.Background(), "docs", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.Object{{"a.md", ir.String("A")}, {"b.md", ir.String("B")}}, v)

	// Absolute URIs ignore Root.
	v, err = FileSource{Root: t.TempDir()}.Fetch(context.Background(), filepath.Join(dir, "docs", "b.md"), nil)
	require.NoError(t, err)
	assert.Equal(t, ir.String("B"), v)
}

func TestFileSourceMissing(t *testing.T) {
	_, err := FileSource{}.Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func dirKeys(t *testing.T, v ir.Value) []string {
	t.Helper()
	obj, ok := v.(ir.Object)
	require.True(t, ok, "dir source returns an object, got %T", v)
	return obj.SortedKeys()
}

func TestDirSource(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"README.md":             "# readme",
		"main.go":               "package main",
		"debug.log":             "log",
		"docs/guide.md":         "# guide",
		"docs/trace.log":        "log",
		"node_modules/x/pkg.md": "# vendored",
	})

	tests := []struct {
		name string
		opts ir.Object
		want []string
	}{
		{
			name: "default includes everything",
			opts: ir.Object{},
			want: []string{"README.md", "debug.log", "docs/guide.md", "docs/trace.log", "main.go", "node_modules/x/pkg.md"},
		},
		{
			name: "include markdown at any depth",
			opts: ir.Object{{"include", ir.Array{ir.String("**/*.md")}}},
			want: []string{"README.md", "docs/guide.md", "node_modules/x/pkg.md"},
		},
		{
			name: "root-level include",
			opts: ir.Object{{"include", ir.String("*.md")}},
			want: []string{"README.md"},
		},
		{
			name: "exclude matches at any depth",
			opts: ir.Object{{"exclude", ir.Array{ir.String("*.log")}}},
			want: []string{"README.md", "docs/guide.md", "main.go", "node_modules/x/pkg.md"},
		},
		{
			name: "excluded directory drops its contents",
			opts: ir.Object{
				{"include", ir.Array{ir.String("**/*.md")}},
				{"exclude", ir.Array{ir.String("node_modules")}},
			},
			want: []string{"README.md", "docs/guide.md"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := DirSource{}.Fetch(context.Background(), FileScheme+root, tt.opts)
			require.NoError(t, err)
			got := dirKeys(t, v)
			slices.Sort(tt.want)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirSourceContents(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a/b.txt": "text"})

	v, err := DirSource{}.Fetch(context.Background(), root, nil)
	require.NoError(t, err)
	assert.Equal(t, ir.Object{{"a/b.txt", ir.String("text")}}, v)
}

func TestDirSourceErrors(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"file.txt": "x"})

	_, err := DirSource{}.Fetch(context.Background(), filepath.Join(root, "file.txt"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")

	_, err = DirSource{}.Fetch(context.Background(), filepath.Join(root, "missing"), nil)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = DirSource{}.Fetch(context.Background(), root, ir.Object{{"include", ir.Int(3)}})
	assert.Equal(t, ErrCodeInvalidSelector, ErrorCode(err))
}

func TestRightAnchored(t *testing.T) {
	assert.Equal(t,
		[]string{"**/*.log", "**/build", "dist", "**/x"},
		rightAnchored([]string{"*.log", "./build", "/dist", "**/x"}))
}
