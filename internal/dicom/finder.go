package dicom

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extensions are common DICOM file extensions.
var Extensions = map[string]bool{
	".dcm":   true,
	".dicom": true,
}

// excludedExtensions are extensions that are never DICOM containers; files
// carrying them are skipped without opening.
var excludedExtensions = map[string]bool{
	".csv": true, ".db": true, ".json": true, ".log": true,
	".md": true, ".png": true, ".jpg": true, ".jpeg": true,
	".pdf": true, ".txt": true, ".xml": true, ".yaml": true,
	".yml": true, ".zip": true, ".gz": true, ".tmp": true,
}

// excludedNames are filenames to skip regardless of extension.
var excludedNames = map[string]bool{
	"DICOMDIR":  true,
	".DS_Store": true,
	"Thumbs.db": true,
}

// FindFiles recursively scans root for DICOM container files. Non-container
// files are skipped, not errored. Paths under any of the skipDirs roots are
// excluded so the scan never re-reads its own output.
func FindFiles(root string, skipDirs ...string) ([]string, error) {
	var files []string

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}

		if info.IsDir() {
			for _, skip := range skipDirs {
				if skip != "" && samePath(path, skip) {
					return filepath.SkipDir
				}
			}
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		if excludedNames[info.Name()] || strings.HasPrefix(info.Name(), ".") {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if excludedExtensions[ext] {
			return nil
		}

		if Extensions[ext] || hasMagicBytes(path) {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.Walk(root, walkFn); err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// hasMagicBytes checks for the "DICM" marker at byte offset 128.
func hasMagicBytes(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	header := make([]byte, 132)
	if _, err := io.ReadFull(file, header); err != nil {
		return false
	}
	return string(header[128:132]) == "DICM"
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
