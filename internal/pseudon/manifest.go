package pseudon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ManifestEntry records why one file was quarantined.
type ManifestEntry struct {
	Reason     Reason   `json:"reason"`
	AllReasons []Reason `json:"all_reasons,omitempty"`
	Detail     string   `json:"detail,omitempty"`
	Timestamp  string   `json:"timestamp"`
}

type manifestData struct {
	Files   map[string]*ManifestEntry `json:"files"`
	Updated string                    `json:"updated"`
}

// Manifest maps quarantined source paths to their reasons. It is written as
// JSON next to the quarantine root and is required audit output regardless
// of the folder layout.
type Manifest struct {
	mu      sync.Mutex
	path    string
	entries map[string]*ManifestEntry
}

// NewManifest creates a manifest that persists to the given path.
func NewManifest(path string) *Manifest {
	return &Manifest{
		path:    path,
		entries: map[string]*ManifestEntry{},
	}
}

// Record adds one quarantined file. The entry is persisted immediately so a
// crashed run still leaves an accurate manifest for the files it handled.
func (m *Manifest) Record(sourcePath string, reason Reason, all []Reason, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[sourcePath] = &ManifestEntry{
		Reason:     reason,
		AllReasons: all,
		Detail:     detail,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	return m.save()
}

// Len returns the number of recorded files.
func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Manifest) save() error {
	if m.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("could not create manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(manifestData{
		Files:   m.entries,
		Updated: time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal manifest: %w", err)
	}

	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("could not save manifest: %w", err)
	}
	return nil
}
