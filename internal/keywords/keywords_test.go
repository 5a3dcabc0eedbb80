package keywords

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadFileSkipsBlanksAndComments(t *testing.T) {
	path := writeFile(t, t.TempDir(), "keywords.txt", `# seed list
best coffee makers

  espresso machines
# commented out keyword
french press
`)

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"best coffee makers", "espresso machines", "french press"}, got)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestReadDirLexicalOrderTxtOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "second\n")
	writeFile(t, dir, "a.txt", "first\n")
	writeFile(t, dir, "notes.md", "ignored\n")

	got, err := ReadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestReadDirMissing(t *testing.T) {
	_, err := ReadDir(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
