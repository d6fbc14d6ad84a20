// Package policy decides, per attribute tag, how the transformer must treat
// the attribute. The default for any tag without an explicit rule is Remove.
package policy

import "github.com/suyashkumar/dicom/pkg/tag"

// Action is the redaction action applied to one attribute.
type Action int

const (
	// Remove deletes the attribute from the record.
	Remove Action = iota
	// Keep leaves the attribute untouched.
	Keep
	// ReplaceDummy overwrites the value with a non-identifying placeholder.
	ReplaceDummy
	// ReplaceLookup substitutes the Accession Number with the serial number
	// resolved from the identity index.
	ReplaceLookup
	// CleanSequence recurses the policy into every nested item.
	CleanSequence
	// CleanPixelData scrubs burnt-in regions; plain pixel data passes through.
	CleanPixelData
)

func (a Action) String() string {
	switch a {
	case Remove:
		return "remove"
	case Keep:
		return "keep"
	case ReplaceDummy:
		return "replace-dummy"
	case ReplaceLookup:
		return "replace-lookup"
	case CleanSequence:
		return "clean-sequence"
	case CleanPixelData:
		return "clean-pixel-data"
	}
	return "unknown"
}

// AllowList is the caller-supplied set of tags exempted from default removal.
type AllowList map[tag.Tag]bool

// Table combines the built-in rules with an allow-list. Built once at
// startup and shared read-only across all files.
type Table struct {
	allow AllowList
}

// NewTable builds a policy table for the given allow-list.
func NewTable(allow AllowList) *Table {
	if allow == nil {
		allow = AllowList{}
	}
	return &Table{allow: allow}
}

// Resolve returns the action for a tag. Security-critical tags are always
// actively handled and cannot be promoted to Keep by the allow-list.
func (t *Table) Resolve(tg tag.Tag) Action {
	if a, ok := criticalTags[tg]; ok {
		return a
	}

	// File meta attributes carry no patient data but are structurally
	// required; only a fixed set survives.
	if tg.Group == 0x0002 {
		if fileMetaKeep[tg] || t.allow[tg] {
			return Keep
		}
		return Remove
	}

	if t.allow[tg] {
		return Keep
	}

	if a, ok := builtinTags[tg]; ok {
		return a
	}

	return Remove
}

// Allowed reports whether a tag is on the allow-list.
func (t *Table) Allowed(tg tag.Tag) bool {
	return t.allow[tg]
}
