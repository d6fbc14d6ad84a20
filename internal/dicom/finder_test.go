package dicom

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func dicmBytes() []byte {
	data := make([]byte, 140)
	copy(data[128:], "DICM")
	return data
}

func TestFindFilesByExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.dcm"), []byte("x"))
	writeFile(t, filepath.Join(root, "sub", "b.DICOM"), []byte("x"))
	writeFile(t, filepath.Join(root, "notes.txt"), []byte("x"))

	files, err := FindFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.dcm"),
		filepath.Join(root, "sub", "b.DICOM"),
	}, files)
}

func TestFindFilesByMagicBytes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "IM000001"), dicmBytes())
	writeFile(t, filepath.Join(root, "IM000002"), []byte("not dicom at all, just bytes"))

	files, err := FindFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "IM000001")}, files)
}

func TestFindFilesSkipsExcludedAndHidden(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.dcm"), []byte("x"))
	writeFile(t, filepath.Join(root, "DICOMDIR"), dicmBytes())
	writeFile(t, filepath.Join(root, ".hidden.dcm"), []byte("x"))
	writeFile(t, filepath.Join(root, ".cache", "b.dcm"), []byte("x"))
	writeFile(t, filepath.Join(root, "links.csv"), []byte("x"))

	files, err := FindFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.dcm")}, files)
}

func TestFindFilesSkipsGivenDirectories(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "dest")
	writeFile(t, filepath.Join(root, "a.dcm"), []byte("x"))
	writeFile(t, filepath.Join(dest, "S001", "S001_0001.dcm"), []byte("x"))

	files, err := FindFiles(root, dest)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.dcm")}, files)
}

func TestFindFilesOutputIsSorted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "c.dcm"), []byte("x"))
	writeFile(t, filepath.Join(root, "a.dcm"), []byte("x"))
	writeFile(t, filepath.Join(root, "b.dcm"), []byte("x"))

	files, err := FindFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.dcm"),
		filepath.Join(root, "b.dcm"),
		filepath.Join(root, "c.dcm"),
	}, files)
}
