// Package pseudon implements the per-file pseudonymization decision engine:
// quarantine classification, attribute transformation, output naming and the
// pipeline that sequences them.
package pseudon

import (
	"strings"

	dcm "dicom-pseudon/internal/dicom"
)

// Reason is the quarantine reason attached to a file that cannot be safely
// pseudonymized.
type Reason string

const (
	// ReasonUnreadable marks files the container parser rejected.
	ReasonUnreadable Reason = "unreadable"
	// ReasonMalformed marks files missing attributes the engine requires,
	// or with a structure it refuses to process (e.g. pathological nesting).
	ReasonMalformed Reason = "malformed"
	// ReasonUnlinked marks files whose invitation number has no entry in
	// the identity index.
	ReasonUnlinked Reason = "unlinked"
	// ReasonBurnedIn marks files that declare burnt-in annotations.
	ReasonBurnedIn Reason = "burned-in-annotation"
	// ReasonPatientProtocol marks patient protocol series.
	ReasonPatientProtocol Reason = "patient-protocol"
	// ReasonScreenCapture marks likely screen saves/captures.
	ReasonScreenCapture Reason = "screen-capture"
	// ReasonSuspectManufacturer marks vendors known to embed identifying
	// burnt-in data.
	ReasonSuspectManufacturer Reason = "suspect-manufacturer"
	// ReasonInvalidModality marks files outside the allowed modality set.
	ReasonInvalidModality Reason = "invalid-modality"
)

// DefaultModalities is the allowed modality set when the caller gives none.
var DefaultModalities = []string{"MR", "CT"}

// suspectManufacturers embed identifying data into pixel content.
var suspectManufacturers = []string{
	"north american imaging",
	"pacsgear",
}

const suspectModelName = "the dicom box"

// Context carries the per-file facts the classifier needs beyond the record
// itself. The pipeline resolves the index lookup before classifying; the
// classifier itself stays pure.
type Context struct {
	// AccessionPresent is false when the record has no Accession Number at
	// all, which makes the file malformed rather than unlinked.
	AccessionPresent bool
	// LinkFound is true when the identity index resolved a serial number.
	LinkFound bool
	// Modalities is the allowed modality set, upper-cased.
	Modalities map[string]bool
}

// ModalitySet normalizes a list of modality codes into a lookup set.
func ModalitySet(modalities []string) map[string]bool {
	set := make(map[string]bool, len(modalities))
	for _, m := range modalities {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m != "" {
			set[m] = true
		}
	}
	return set
}

type predicate struct {
	reason Reason
	fires  func(ds *dcm.Dataset, ctx Context) bool
}

// Evaluated in priority order; the first match routes the file.
var predicates = []predicate{
	{ReasonMalformed, func(_ *dcm.Dataset, ctx Context) bool {
		return !ctx.AccessionPresent
	}},
	{ReasonUnlinked, func(_ *dcm.Dataset, ctx Context) bool {
		return !ctx.LinkFound
	}},
	{ReasonBurnedIn, func(ds *dcm.Dataset, _ Context) bool {
		return isAffirmative(ds.BurnedInAnnotation())
	}},
	{ReasonPatientProtocol, func(ds *dcm.Dataset, _ Context) bool {
		desc := strings.TrimSpace(ds.SeriesDescription())
		return strings.EqualFold(desc, "Patient Protocol")
	}},
	{ReasonScreenCapture, func(ds *dcm.Dataset, _ Context) bool {
		if containsFold(ds.SeriesDescription(), "save") {
			return true
		}
		for _, it := range ds.ImageType() {
			if containsFold(it, "save") {
				return true
			}
		}
		return false
	}},
	{ReasonSuspectManufacturer, func(ds *dcm.Dataset, _ Context) bool {
		manufacturer := strings.ToLower(strings.TrimSpace(ds.Manufacturer()))
		for _, suspect := range suspectManufacturers {
			if manufacturer != "" && strings.Contains(manufacturer, suspect) {
				return true
			}
		}
		return containsFold(ds.ManufacturerModelName(), suspectModelName)
	}},
	{ReasonInvalidModality, func(ds *dcm.Dataset, ctx Context) bool {
		modalities := ds.Modalities()
		if len(modalities) == 0 {
			return true
		}
		for _, m := range modalities {
			if !ctx.Modalities[strings.ToUpper(strings.TrimSpace(m))] {
				return true
			}
		}
		return false
	}},
}

// Classify evaluates every predicate against the record. It returns the
// first reason in priority order, or "" when the file may proceed, plus the
// full list of fired reasons for audit logging.
func Classify(ds *dcm.Dataset, ctx Context) (Reason, []Reason) {
	var fired []Reason
	for _, p := range predicates {
		if p.fires(ds, ctx) {
			fired = append(fired, p.reason)
		}
	}
	if len(fired) == 0 {
		return "", nil
	}
	return fired[0], fired
}

func isAffirmative(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "y":
		return true
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}
