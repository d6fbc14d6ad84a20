package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		spec string
		want tag.Tag
	}{
		{"(0020,0062)", tag.Tag{Group: 0x0020, Element: 0x0062}},
		{"0008, 0050", tag.Tag{Group: 0x0008, Element: 0x0050}},
		{" ( 0008 , 103E ) ", tag.Tag{Group: 0x0008, Element: 0x103E}},
		{"0x20,0x62", tag.Tag{Group: 0x0020, Element: 0x0062}},
		{"7FE0,0010", tag.Tag{Group: 0x7FE0, Element: 0x0010}},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParseTag(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTagMalformed(t *testing.T) {
	for _, spec := range []string{
		"",
		"0020",
		"0020,0062,0001",
		"zz,10",
		"0008,",
		"10000,0010", // exceeds 16 bits
	} {
		t.Run(spec, func(t *testing.T) {
			_, err := ParseTag(spec)
			assert.Error(t, err)
		})
	}
}

func TestLoadAllowList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allow.csv")
	content := "(0020,0062)\n\n0008, 0018\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	allow, err := LoadAllowList(path, false)
	require.NoError(t, err)

	assert.Len(t, allow, 2)
	assert.True(t, allow[tag.Tag{Group: 0x0020, Element: 0x0062}])
	assert.True(t, allow[tag.Tag{Group: 0x0008, Element: 0x0018}])
}

func TestLoadAllowListSkipsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allow.csv")
	content := "tag\n(0020,0062)\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	allow, err := LoadAllowList(path, true)
	require.NoError(t, err)
	assert.Len(t, allow, 1)
}

func TestLoadAllowListMalformedEntryIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allow.csv")
	content := "(0020,0062)\nnot-a-tag\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := LoadAllowList(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoadAllowListMissingFile(t *testing.T) {
	_, err := LoadAllowList(filepath.Join(t.TempDir(), "missing.csv"), false)
	assert.Error(t, err)
}
