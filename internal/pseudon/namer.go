package pseudon

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Namer computes non-identifying destination paths. Pseudonymized names are
// derived from the serial number plus a per-serial counter, never from the
// original filename. Safe for concurrent use.
type Namer struct {
	mu             sync.Mutex
	destRoot       string
	quarantineRoot string
	counters       map[string]int
	used           map[string]bool
}

// NewNamer creates a namer rooted at the destination and quarantine dirs.
func NewNamer(destRoot, quarantineRoot string) *Namer {
	return &Namer{
		destRoot:       destRoot,
		quarantineRoot: quarantineRoot,
		counters:       map[string]int{},
		used:           map[string]bool{},
	}
}

// PseudonymizedPath returns the next output path for a serial number:
// <dest>/<serial>/<serial>_NNNN.dcm. A path that already exists on disk or
// was already handed out is a collision, which indicates duplicate serial
// mappings or index corruption and is fatal.
func (n *Namer) PseudonymizedPath(serial string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.counters[serial]++
	path := filepath.Join(n.destRoot, serial, fmt.Sprintf("%s_%04d.dcm", serial, n.counters[serial]))

	if n.used[path] {
		return "", fmt.Errorf("output path collision: %s", path)
	}
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("output path collision: %s already exists", path)
	}

	n.used[path] = true
	return path, nil
}

// QuarantinePath returns the quarantine destination for a source file,
// organized by reason and preserving the source-relative directory layout.
// Quarantined files keep their original name; they are flagged as retaining
// identifying risk and are not distributed further.
func (n *Namer) QuarantinePath(reason Reason, relPath string) string {
	return filepath.Join(n.quarantineRoot, string(reason), relPath)
}
