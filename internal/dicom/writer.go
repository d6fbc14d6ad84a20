package dicom

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/suyashkumar/dicom"
)

// Save writes the dataset to outputPath atomically: the bytes go to an
// opaque temporary file in the destination directory first and are renamed
// into place, so a crash never leaves a partial file behind.
func (d *Dataset) Save(outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}

	tmpPath := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}

	// Relaxed verification: many real-world DICOM files don't strictly
	// follow VR specifications.
	err = dicom.Write(file, d.Data,
		dicom.SkipVRVerification(),
		dicom.SkipValueTypeVerification(),
		dicom.DefaultMissingTransferSyntax(),
	)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("could not write DICOM: %w", err)
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("could not move output into place: %w", err)
	}
	return nil
}

// CopyFile copies a source file verbatim to destPath, atomically. Used for
// quarantined files, which must reach quarantine unmodified.
func CopyFile(srcPath, destPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("could not read %s: %w", srcPath, err)
	}

	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create quarantine directory: %w", err)
	}

	tmpPath := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("could not write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("could not move %s into place: %w", destPath, err)
	}
	return nil
}
