package policy

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// LoadAllowList reads an allow-list file: one tag per row, written as a
// group/element pair in flexible hex notation, e.g. "(0020,0062)",
// "0008, 0050" or "0x20,0x62". A malformed entry is a configuration error
// and fails the whole run before any file is processed.
func LoadAllowList(path string, skipHeader bool) (AllowList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open allow list: %w", err)
	}
	defer f.Close()

	allow := AllowList{}
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		if line == 1 && skipHeader {
			continue
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		t, err := ParseTag(text)
		if err != nil {
			return nil, fmt.Errorf("allow list line %d: %w", line, err)
		}
		allow[t] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read allow list: %w", err)
	}
	return allow, nil
}

// ParseTag parses a single "group,element" tag specifier. Whitespace and
// enclosing parentheses are ignored; both parts are hexadecimal.
func ParseTag(spec string) (tag.Tag, error) {
	cleaned := strings.NewReplacer("(", "", ")", "", " ", "", "\t", "").Replace(spec)
	parts := strings.Split(cleaned, ",")
	if len(parts) != 2 {
		return tag.Tag{}, fmt.Errorf("malformed tag %q: want group,element", spec)
	}

	group, err := parseHex16(parts[0])
	if err != nil {
		return tag.Tag{}, fmt.Errorf("malformed tag %q: %w", spec, err)
	}
	element, err := parseHex16(parts[1])
	if err != nil {
		return tag.Tag{}, fmt.Errorf("malformed tag %q: %w", spec, err)
	}

	return tag.Tag{Group: group, Element: element}, nil
}

func parseHex16(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, fmt.Errorf("empty hex value")
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid hex value %q", s)
	}
	return uint16(v), nil
}
