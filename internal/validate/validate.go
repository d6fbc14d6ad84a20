// Package validate checks pseudonymized output against the allow-list: no
// attribute outside the allow-list, the mandatory markers, the Accession
// Number and the structurally required sets may survive in any output file.
package validate

import (
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "dicom-pseudon/internal/dicom"
	"dicom-pseudon/internal/policy"
)

// Violation is one attribute that must not be present in an output file.
type Violation struct {
	File string
	Tag  tag.Tag
	Why  string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: tag %s: %s", v.File, v.Tag, v.Why)
}

// Report is the outcome of validating one output tree.
type Report struct {
	Files      int
	Violations []Violation
}

// OK reports whether every checked file passed.
func (r *Report) OK() bool {
	return len(r.Violations) == 0
}

// Checker validates output datasets against a policy table built from the
// same allow-list the pseudonymization run used.
type Checker struct {
	table *policy.Table
}

// NewChecker creates a checker for the given allow-list.
func NewChecker(allow policy.AllowList) *Checker {
	return &Checker{table: policy.NewTable(allow)}
}

// Run validates every DICOM file under cleanDir.
func (c *Checker) Run(cleanDir string) (*Report, error) {
	files, err := dcm.FindFiles(cleanDir)
	if err != nil {
		return nil, fmt.Errorf("could not scan output directory: %w", err)
	}

	report := &Report{}
	for _, path := range files {
		ds, err := dcm.ReadFileMetadataOnly(path)
		if err != nil {
			report.Violations = append(report.Violations, Violation{
				File: path,
				Why:  fmt.Sprintf("unreadable output file: %v", err),
			})
			continue
		}
		report.Files++
		c.checkElements(path, ds.Data.Elements, report)
		c.checkMarkers(path, ds, report)
	}
	return report, nil
}

// CheckDataset validates a single parsed dataset. Exposed for tests and for
// callers that already hold the record.
func (c *Checker) CheckDataset(name string, ds *dcm.Dataset) *Report {
	report := &Report{Files: 1}
	c.checkElements(name, ds.Data.Elements, report)
	c.checkMarkers(name, ds, report)
	return report
}

func (c *Checker) checkElements(path string, elems []*dicom.Element, report *Report) {
	for _, elem := range elems {
		if isMarker(elem.Tag) {
			continue
		}

		action := c.table.Resolve(elem.Tag)

		// Same rule as the transformer: an allow-listed sequence is still
		// inspected item by item, so nested identifying attributes cannot
		// hide behind it.
		if action == policy.Keep && elem.Value != nil && elem.Value.ValueType() == dicom.Sequences {
			action = policy.CleanSequence
		}

		switch action {
		case policy.Remove:
			report.Violations = append(report.Violations, Violation{
				File: path,
				Tag:  elem.Tag,
				Why:  "attribute outside allow-list survived",
			})

		case policy.ReplaceDummy:
			if !c.table.Allowed(elem.Tag) && !isDummy(elem) {
				report.Violations = append(report.Violations, Violation{
					File: path,
					Tag:  elem.Tag,
					Why:  "required attribute holds a non-dummy value",
				})
			}

		case policy.CleanSequence:
			if elem.Value == nil {
				continue
			}
			items, ok := elem.Value.GetValue().([]*dicom.SequenceItemValue)
			if !ok {
				continue
			}
			for _, item := range items {
				if nested, ok := item.GetValue().([]*dicom.Element); ok {
					c.checkElements(path, nested, report)
				}
			}
		}
	}
}

func (c *Checker) checkMarkers(path string, ds *dcm.Dataset, report *Report) {
	if ds.GetString(tag.PatientIdentityRemoved) != "YES" {
		report.Violations = append(report.Violations, Violation{
			File: path,
			Tag:  tag.PatientIdentityRemoved,
			Why:  "Patient Identity Removed marker missing or not YES",
		})
	}
	if ds.GetString(tag.DeidentificationMethod) == "" {
		report.Violations = append(report.Violations, Violation{
			File: path,
			Tag:  tag.DeidentificationMethod,
			Why:  "Deidentification Method marker missing",
		})
	}
}

func isMarker(t tag.Tag) bool {
	for _, m := range policy.MarkerTags {
		if t == m {
			return true
		}
	}
	return false
}

// isDummy accepts the placeholder values the transformer writes: empty
// strings, zero dates/times and numeric zero.
func isDummy(elem *dicom.Element) bool {
	if elem.Value == nil {
		return true
	}
	switch v := elem.Value.GetValue().(type) {
	case []string:
		for _, s := range v {
			switch s {
			case "", "00010101", "000000", "00010101000000":
			default:
				return false
			}
		}
		return true
	case string:
		return v == ""
	case []int:
		for _, n := range v {
			if n != 0 {
				return false
			}
		}
		return true
	case []float64:
		for _, f := range v {
			if f != 0 {
				return false
			}
		}
		return true
	case []byte:
		return len(v) == 0
	default:
		return false
	}
}
