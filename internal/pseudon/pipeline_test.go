package pseudon

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "dicom-pseudon/internal/dicom"
	"dicom-pseudon/internal/index"
	"dicom-pseudon/internal/policy"
)

func TestParseInvitation(t *testing.T) {
	tests := []struct {
		accession string
		want      int64
	}{
		{"1001", 1001},
		{" 1001 ", 1001},
		{"ACC-1001", 1001},
		{"A12B34567C", 34567},
		{"0042", 42},
	}

	for _, tt := range tests {
		t.Run(tt.accession, func(t *testing.T) {
			got, err := ParseInvitation(tt.accession)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInvitationNoDigits(t *testing.T) {
	for _, accession := range []string{"", "   ", "UNKNOWN", "---"} {
		t.Run(accession, func(t *testing.T) {
			_, err := ParseInvitation(accession)
			assert.Error(t, err)
		})
	}
}

// writeDicomFile writes a minimal but complete DICOM file the parser will
// accept back, with explicit little-endian transfer syntax.
func writeDicomFile(t *testing.T, path string, extra ...*dicom.Element) {
	t.Helper()

	elems := []*dicom.Element{
		strElem(t, tag.MediaStorageSOPClassUID, "UI", "1.2.840.10008.5.1.4.1.1.4"),
		strElem(t, tag.MediaStorageSOPInstanceUID, "UI", "1.2.3.4.5"),
		strElem(t, tag.TransferSyntaxUID, "UI", "1.2.840.10008.1.2.1"),
		strElem(t, tag.SOPClassUID, "UI", "1.2.840.10008.5.1.4.1.1.4"),
		strElem(t, tag.SOPInstanceUID, "UI", "1.2.3.4.5"),
	}
	elems = append(elems, extra...)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	err = dicom.Write(file, dicom.Dataset{Elements: elems},
		dicom.SkipVRVerification(),
		dicom.SkipValueTypeVerification(),
	)
	require.NoError(t, err)
}

type pipelineDirs struct {
	source     string
	dest       string
	quarantine string
	manifest   string
}

func runPipeline(t *testing.T, dirs pipelineDirs, workers int) *Stats {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "index.db")
	linksPath := filepath.Join(t.TempDir(), "links.csv")
	require.NoError(t, os.WriteFile(linksPath, []byte("1001,S001\n2002,S002\n"), 0644))

	ix, err := index.Build(dbPath, linksPath, ',', false)
	require.NoError(t, err)
	t.Cleanup(func() { ix.Discard() })

	p := NewPipeline(Config{
		SourceDir:     dirs.source,
		DestDir:       dirs.dest,
		QuarantineDir: dirs.quarantine,
		ManifestPath:  dirs.manifest,
		Workers:       workers,
	}, policy.NewTable(nil), ix, zerolog.Nop())

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	return stats
}

func newPipelineDirs(t *testing.T) pipelineDirs {
	t.Helper()
	root := t.TempDir()
	quarantine := filepath.Join(root, "quarantine")
	return pipelineDirs{
		source:     filepath.Join(root, "source"),
		dest:       filepath.Join(root, "dest"),
		quarantine: quarantine,
		manifest:   filepath.Join(quarantine, "manifest.json"),
	}
}

func TestPipelineLinkedFileIsPseudonymized(t *testing.T) {
	dirs := newPipelineDirs(t)
	writeDicomFile(t, filepath.Join(dirs.source, "scan.dcm"),
		strElem(t, tag.AccessionNumber, "SH", "1001"),
		strElem(t, tag.Modality, "CS", "MR"),
		strElem(t, tag.PatientName, "PN", "SMITH^JOHN"),
	)

	stats := runPipeline(t, dirs, 1)

	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Pseudonymized)
	assert.Zero(t, stats.QuarantinedTotal())
	assert.Zero(t, stats.WriteErrors)

	outPath := filepath.Join(dirs.dest, "S001", "S001_0001.dcm")
	out, err := dcm.ReadFile(outPath)
	require.NoError(t, err)

	assert.Equal(t, "S001", out.AccessionNumber())
	assert.Equal(t, "YES", out.GetString(tag.PatientIdentityRemoved))
	assert.NotEmpty(t, out.GetString(tag.DeidentificationMethod))
	assert.Equal(t, "", out.GetString(tag.PatientName))
}

func TestPipelineUnlinkedFileIsQuarantined(t *testing.T) {
	dirs := newPipelineDirs(t)
	writeDicomFile(t, filepath.Join(dirs.source, "scan.dcm"),
		strElem(t, tag.AccessionNumber, "SH", "9999"),
		strElem(t, tag.Modality, "CS", "MR"),
	)

	stats := runPipeline(t, dirs, 1)

	assert.Equal(t, 1, stats.QuarantinedTotal())
	assert.Equal(t, 1, stats.Quarantined[ReasonUnlinked])
	assert.Zero(t, stats.Pseudonymized)

	// The original bytes land under the reason directory, untouched.
	qpath := filepath.Join(dirs.quarantine, "unlinked", "scan.dcm")
	original, err := os.ReadFile(filepath.Join(dirs.source, "scan.dcm"))
	require.NoError(t, err)
	copied, err := os.ReadFile(qpath)
	require.NoError(t, err)
	assert.Equal(t, original, copied)
}

func TestPipelineInvalidModalityIsQuarantined(t *testing.T) {
	dirs := newPipelineDirs(t)
	writeDicomFile(t, filepath.Join(dirs.source, "scan.dcm"),
		strElem(t, tag.AccessionNumber, "SH", "1001"),
		strElem(t, tag.Modality, "CS", "US"),
	)

	stats := runPipeline(t, dirs, 1)

	assert.Equal(t, 1, stats.Quarantined[ReasonInvalidModality])
	assert.FileExists(t, filepath.Join(dirs.quarantine, "invalid-modality", "scan.dcm"))
}

func TestPipelineManifestRecordsQuarantines(t *testing.T) {
	dirs := newPipelineDirs(t)
	writeDicomFile(t, filepath.Join(dirs.source, "a", "scan.dcm"),
		strElem(t, tag.AccessionNumber, "SH", "9999"),
		strElem(t, tag.Modality, "CS", "MR"),
	)

	runPipeline(t, dirs, 1)

	data, err := os.ReadFile(dirs.manifest)
	require.NoError(t, err)

	var manifest struct {
		Files map[string]ManifestEntry `json:"files"`
	}
	require.NoError(t, json.Unmarshal(data, &manifest))
	entry, ok := manifest.Files[filepath.Join("a", "scan.dcm")]
	require.True(t, ok)
	assert.Equal(t, ReasonUnlinked, entry.Reason)
}

func TestPipelineMixedRunWithWorkers(t *testing.T) {
	dirs := newPipelineDirs(t)
	writeDicomFile(t, filepath.Join(dirs.source, "a.dcm"),
		strElem(t, tag.AccessionNumber, "SH", "1001"),
		strElem(t, tag.Modality, "CS", "MR"),
	)
	writeDicomFile(t, filepath.Join(dirs.source, "b.dcm"),
		strElem(t, tag.AccessionNumber, "SH", "2002"),
		strElem(t, tag.Modality, "CS", "CT"),
	)
	writeDicomFile(t, filepath.Join(dirs.source, "c.dcm"),
		strElem(t, tag.AccessionNumber, "SH", "9999"),
		strElem(t, tag.Modality, "CS", "MR"),
	)
	require.NoError(t, os.WriteFile(filepath.Join(dirs.source, "notes.txt"), []byte("not dicom"), 0644))

	stats := runPipeline(t, dirs, 4)

	assert.Equal(t, 3, stats.Total, "non-DICOM files are not processed")
	assert.Equal(t, 2, stats.Pseudonymized)
	assert.Equal(t, 1, stats.Quarantined[ReasonUnlinked])
	assert.FileExists(t, filepath.Join(dirs.dest, "S001", "S001_0001.dcm"))
	assert.FileExists(t, filepath.Join(dirs.dest, "S002", "S002_0001.dcm"))
}

func TestPipelineUnreadableFileIsQuarantined(t *testing.T) {
	dirs := newPipelineDirs(t)
	require.NoError(t, os.MkdirAll(dirs.source, 0755))
	// Valid magic bytes, garbage body.
	data := make([]byte, 140)
	copy(data[128:], "DICM")
	require.NoError(t, os.WriteFile(filepath.Join(dirs.source, "broken.dcm"), data, 0644))

	stats := runPipeline(t, dirs, 1)

	assert.Equal(t, 1, stats.Quarantined[ReasonUnreadable])
	assert.FileExists(t, filepath.Join(dirs.quarantine, "unreadable", "broken.dcm"))
}
