package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, WriteFiles(root, map[string]string{
		"README.md":       "# Title\n",
		"docs/guide/a.md": "guide",
	}))

	data, err := os.ReadFile(filepath.Join(root, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Title\n", string(data))

	data, err = os.ReadFile(filepath.Join(root, "docs", "guide", "a.md"))
	require.NoError(t, err)
	assert.Equal(t, "guide", string(data))
}

func TestWriteFiles_RejectsEscape(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"../x.txt", "a/../../x.txt"} {
		err := WriteFiles(root, map[string]string{name: "x"})
		assert.Error(t, err, name)
	}
}
