package cli

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// reviewProgram reads notes.md from its own directory.
const reviewProgram = `
def ctx notes { type: file, uri: "fs://notes.md" }
def task summarize { goal: "Summarize the notes" }
def view summary {
  task: @summarize
  selectors: [{ from: @notes, op: head, lines: 1 }]
  prompt: { user: "Hi {{user}}: {{notes}}" }
}
def flow pipeline { entry: @summarize }
def test greets {
  view: @summary
  signals: { user: Bob }
  expect: { prompt: { user: "Hi Bob: first" } }
}
`

func newTestRootOptions(format string) *RootOptions {
	return &RootOptions{
		Format: format,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// writeProgram writes reviewProgram and its notes file into a temp dir and
// returns the program path.
func writeProgram(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("first\nsecond\n"), 0o644))
	return writeTestFile(t, dir, "review.chord", reviewProgram)
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns what it wrote to stdout and stderr.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
