package pseudon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestRecordPersistsImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quarantine", "manifest.json")
	m := NewManifest(path)

	require.NoError(t, m.Record("a/scan.dcm", ReasonUnlinked, []Reason{ReasonUnlinked}, ""))
	assert.Equal(t, 1, m.Len())

	// Each Record call leaves a complete manifest on disk.
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var manifest struct {
		Files map[string]ManifestEntry `json:"files"`
	}
	require.NoError(t, json.Unmarshal(data, &manifest))
	require.Len(t, manifest.Files, 1)
	assert.Equal(t, ReasonUnlinked, manifest.Files["a/scan.dcm"].Reason)

	require.NoError(t, m.Record("b/scan.dcm", ReasonBurnedIn,
		[]Reason{ReasonBurnedIn, ReasonInvalidModality}, "burnt-in flag set"))
	assert.Equal(t, 2, m.Len())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &manifest))
	require.Len(t, manifest.Files, 2)
	entry := manifest.Files["b/scan.dcm"]
	assert.Equal(t, ReasonBurnedIn, entry.Reason)
	assert.Equal(t, []Reason{ReasonBurnedIn, ReasonInvalidModality}, entry.AllReasons)
	assert.Equal(t, "burnt-in flag set", entry.Detail)
}

func TestManifestWithoutPathIsInert(t *testing.T) {
	m := NewManifest("")

	require.NoError(t, m.Record("a.dcm", ReasonUnreadable, []Reason{ReasonUnreadable}, "parse error"))
	assert.Equal(t, 1, m.Len())
}
