// Package dicom wraps the suyashkumar/dicom dataset with the accessors the
// pseudonymization pipeline needs.
package dicom

import (
	"fmt"
	"os"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Dataset wraps a parsed DICOM dataset.
type Dataset struct {
	Data     dicom.Dataset
	FilePath string
}

// ReadFile reads and parses a DICOM file.
func ReadFile(path string) (*Dataset, error) {
	return read(path)
}

// ReadFileMetadataOnly parses a DICOM file skipping pixel data. Used where
// only classification attributes are needed.
func ReadFileMetadataOnly(path string) (*Dataset, error) {
	return read(path, dicom.SkipPixelData())
}

func read(path string, opts ...dicom.ParseOption) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat file: %w", err)
	}

	ds, err := dicom.Parse(file, info.Size(), nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not parse DICOM: %w", err)
	}

	return &Dataset{Data: ds, FilePath: path}, nil
}

// GetString returns the first string value for a tag, or "" if absent.
func (d *Dataset) GetString(t tag.Tag) string {
	values := d.GetStrings(t)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// GetStrings returns all string values for a multi-valued tag.
func (d *Dataset) GetStrings(t tag.Tag) []string {
	elem, err := d.Data.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return nil
	}

	switch v := elem.Value.GetValue().(type) {
	case []string:
		return v
	case string:
		return []string{v}
	case nil:
		return nil
	default:
		return []string{fmt.Sprintf("%v", v)}
	}
}

// AccessionNumber returns the Accession Number attribute.
func (d *Dataset) AccessionNumber() string {
	return d.GetString(tag.AccessionNumber)
}

// Modalities returns the Modality attribute values.
func (d *Dataset) Modalities() []string {
	return d.GetStrings(tag.Modality)
}

// SeriesDescription returns the Series Description attribute.
func (d *Dataset) SeriesDescription() string {
	return d.GetString(tag.SeriesDescription)
}

// Manufacturer returns the Manufacturer attribute.
func (d *Dataset) Manufacturer() string {
	return d.GetString(tag.Manufacturer)
}

// ManufacturerModelName returns the Manufacturer's Model Name attribute.
func (d *Dataset) ManufacturerModelName() string {
	return d.GetString(tag.ManufacturerModelName)
}

// BurnedInAnnotation returns the Burned In Annotation attribute.
func (d *Dataset) BurnedInAnnotation() string {
	return d.GetString(tag.BurnedInAnnotation)
}

// ImageType returns the Image Type attribute values.
func (d *Dataset) ImageType() []string {
	return d.GetStrings(tag.ImageType)
}

// SOPInstanceUID returns the SOP Instance UID attribute.
func (d *Dataset) SOPInstanceUID() string {
	return d.GetString(tag.SOPInstanceUID)
}
