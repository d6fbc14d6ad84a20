package pseudon

import (
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "dicom-pseudon/internal/dicom"
	"dicom-pseudon/internal/policy"
)

// DeidentificationMethodText is written into the Deidentification Method
// marker of every output file. It names the policy, not the run.
const DeidentificationMethodText = "Pseudonymized by dicom-pseudon, allow-list policy v1"

// maxSequenceDepth bounds recursion into nested sequences. Deeper files are
// failed to quarantine instead of risking the stack.
const maxSequenceDepth = 32

// defaultRedactRows is the number of top pixel rows blanked when a file with
// an affirmative burnt-in flag reaches the transformer anyway.
const defaultRedactRows = 75

// Transformer applies the merged policy to every attribute of a record.
type Transformer struct {
	policy     *policy.Table
	redactRows int
}

// NewTransformer creates a transformer for the given policy table.
func NewTransformer(p *policy.Table) *Transformer {
	return &Transformer{policy: p, redactRows: defaultRedactRows}
}

// Apply rewrites the dataset in place: every attribute gets its resolved
// policy action, sequences are cleaned recursively, the Media Storage SOP
// Instance UID is synchronized, and the two mandatory markers are set.
// The same input with the same policy and serial always yields identical
// output elements.
func (t *Transformer) Apply(ds *dcm.Dataset, serial string) error {
	// Read before cleaning: these attributes may not survive the policy.
	sopUID := ds.SOPInstanceUID()
	burntIn := isAffirmative(ds.BurnedInAnnotation())
	dims := readImageDims(ds)

	cleaned, err := t.cleanElements(ds.Data.Elements, serial, burntIn, dims, 0)
	if err != nil {
		return err
	}

	// The stored file meta UID must track the (kept) SOP Instance UID.
	if sopUID != "" {
		for i, elem := range cleaned {
			if elem.Tag == tag.MediaStorageSOPInstanceUID {
				replaced, err := stringElement(elem.Tag, elem.RawValueRepresentation, sopUID)
				if err != nil {
					return err
				}
				cleaned[i] = replaced
			}
		}
	}

	identityRemoved, err := newElement(tag.PatientIdentityRemoved, "CS", "YES")
	if err != nil {
		return err
	}
	method, err := newElement(tag.DeidentificationMethod, "LO", DeidentificationMethodText)
	if err != nil {
		return err
	}
	cleaned = append(cleaned, identityRemoved, method)

	ds.Data.Elements = cleaned
	return nil
}

func (t *Transformer) cleanElements(elems []*dicom.Element, serial string, burntIn bool, dims imageDims, depth int) ([]*dicom.Element, error) {
	if depth > maxSequenceDepth {
		return nil, fmt.Errorf("sequence nesting exceeds %d levels", maxSequenceDepth)
	}

	out := make([]*dicom.Element, 0, len(elems))
	for _, elem := range elems {
		action := t.policy.Resolve(elem.Tag)

		// A sequence value under any keep-like rule is still recursed, so
		// nested identifying attributes cannot ride along.
		if action == policy.Keep && elem.Value != nil && elem.Value.ValueType() == dicom.Sequences {
			action = policy.CleanSequence
		}

		switch action {
		case policy.Remove:
			// dropped

		case policy.Keep:
			out = append(out, elem)

		case policy.ReplaceDummy:
			dummy, err := dummyElement(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, dummy)

		case policy.ReplaceLookup:
			replaced, err := stringElement(elem.Tag, elem.RawValueRepresentation, serial)
			if err != nil {
				return nil, err
			}
			out = append(out, replaced)

		case policy.CleanSequence:
			cleaned, err := t.cleanSequence(elem, serial, burntIn, dims, depth)
			if err != nil {
				return nil, err
			}
			out = append(out, cleaned)

		case policy.CleanPixelData:
			if burntIn {
				if err := scrubPixelElement(elem, dims, t.redactRows); err != nil {
					return nil, err
				}
			}
			out = append(out, elem)
		}
	}
	return out, nil
}

func (t *Transformer) cleanSequence(elem *dicom.Element, serial string, burntIn bool, dims imageDims, depth int) (*dicom.Element, error) {
	items, ok := elem.Value.GetValue().([]*dicom.SequenceItemValue)
	if !ok {
		return nil, fmt.Errorf("tag %s: expected sequence value, got %T", elem.Tag, elem.Value.GetValue())
	}

	cleanedItems := make([][]*dicom.Element, 0, len(items))
	for _, item := range items {
		nested, ok := item.GetValue().([]*dicom.Element)
		if !ok {
			return nil, fmt.Errorf("tag %s: malformed sequence item %T", elem.Tag, item.GetValue())
		}
		cleaned, err := t.cleanElements(nested, serial, burntIn, dims, depth+1)
		if err != nil {
			return nil, err
		}
		cleanedItems = append(cleanedItems, cleaned)
	}

	value, err := dicom.NewValue(cleanedItems)
	if err != nil {
		return nil, fmt.Errorf("tag %s: could not rebuild sequence: %w", elem.Tag, err)
	}

	return &dicom.Element{
		Tag:                    elem.Tag,
		ValueRepresentation:    elem.ValueRepresentation,
		RawValueRepresentation: elem.RawValueRepresentation,
		Value:                  value,
	}, nil
}

// dummyElement replaces an attribute's value with a non-identifying
// placeholder matching its value type: empty string, zero date, numeric zero.
func dummyElement(elem *dicom.Element) (*dicom.Element, error) {
	var data interface{}
	switch {
	case elem.Value != nil && elem.Value.ValueType() == dicom.Ints:
		data = []int{0}
	case elem.Value != nil && elem.Value.ValueType() == dicom.Floats:
		data = []float64{0}
	case elem.Value != nil && elem.Value.ValueType() == dicom.Bytes:
		data = []byte{}
	default:
		data = []string{dummyString(elem.RawValueRepresentation)}
	}

	value, err := dicom.NewValue(data)
	if err != nil {
		return nil, fmt.Errorf("tag %s: could not build dummy value: %w", elem.Tag, err)
	}

	return &dicom.Element{
		Tag:                    elem.Tag,
		ValueRepresentation:    elem.ValueRepresentation,
		RawValueRepresentation: elem.RawValueRepresentation,
		Value:                  value,
	}, nil
}

func dummyString(vr string) string {
	switch vr {
	case "DA":
		return "00010101"
	case "TM":
		return "000000"
	case "DT":
		return "00010101000000"
	default:
		return ""
	}
}

// stringElement builds a single-valued string element preserving the VR of
// the attribute it replaces.
func stringElement(t tag.Tag, vr string, value string) (*dicom.Element, error) {
	v, err := dicom.NewValue([]string{value})
	if err != nil {
		return nil, fmt.Errorf("tag %s: could not build value: %w", t, err)
	}
	return &dicom.Element{
		Tag:                    t,
		ValueRepresentation:    tag.GetVRKind(t, vr),
		RawValueRepresentation: vr,
		ValueLength:            uint32(len(value)),
		Value:                  v,
	}, nil
}

// newElement builds an element for a tag absent from the input record.
func newElement(t tag.Tag, vr string, value string) (*dicom.Element, error) {
	return stringElement(t, vr, value)
}

type imageDims struct {
	rows, cols, samples, bytesPerSample int
}

func readImageDims(ds *dcm.Dataset) imageDims {
	dims := imageDims{
		rows:    intAttribute(ds, tag.Rows),
		cols:    intAttribute(ds, tag.Columns),
		samples: intAttribute(ds, tag.SamplesPerPixel),
	}
	if dims.samples == 0 {
		dims.samples = 1
	}
	bitsAllocated := intAttribute(ds, tag.BitsAllocated)
	if bitsAllocated == 0 {
		bitsAllocated = 8
	}
	dims.bytesPerSample = (bitsAllocated + 7) / 8
	return dims
}

func intAttribute(ds *dcm.Dataset, t tag.Tag) int {
	elem, err := ds.Data.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return 0
	}
	switch v := elem.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0]
		}
	case int:
		return v
	case []uint16:
		if len(v) > 0 {
			return int(v[0])
		}
	case uint16:
		return int(v)
	}
	return 0
}

// scrubPixelElement blanks the top rows of the pixel data, where burnt-in
// text lives. Files with the burnt-in flag are normally quarantined before
// reaching this point.
func scrubPixelElement(elem *dicom.Element, dims imageDims, redactRows int) error {
	if elem.Value == nil {
		return nil
	}

	switch v := elem.Value.GetValue().(type) {
	case dicom.PixelDataInfo:
		for _, fr := range v.Frames {
			scrubFrame(fr, dims.cols, redactRows)
		}
	case []byte:
		bytesPerRow := dims.cols * dims.samples * dims.bytesPerSample
		n := redactRows * bytesPerRow
		if n > len(v) {
			n = len(v)
		}
		for i := 0; i < n; i++ {
			v[i] = 0
		}
	}
	return nil
}

func scrubFrame(f *frame.Frame, cols, redactRows int) {
	if f == nil || f.NativeData.Data == nil {
		return
	}
	n := redactRows * cols
	if n > len(f.NativeData.Data) {
		n = len(f.NativeData.Data)
	}
	for i := 0; i < n; i++ {
		for j := range f.NativeData.Data[i] {
			f.NativeData.Data[i][j] = 0
		}
	}
}
