package acquisition

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tne-lab/LSL-inlet/errors"
)

// Reasons a marker is dropped, used as the metric label
const (
	DropUnmapped   = "unmapped"
	DropNotNumeric = "not_numeric"
	DropOutOfRange = "out_of_range"
	DropFuture     = "future"
)

// MappingTable translates marker labels to event codes. With no entries it
// falls back to parsing the label as a TTL line number.
type MappingTable struct {
	codes map[string]uint64
}

// NewMappingTable copies codes into a new table. A nil or empty map yields
// an empty table.
func NewMappingTable(codes map[string]uint64) *MappingTable {
	t := &MappingTable{codes: make(map[string]uint64, len(codes))}
	for label, code := range codes {
		t.codes[label] = code
	}
	return t
}

// Len is the number of entries
func (t *MappingTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.codes)
}

// Empty reports whether the numeric fallback is in effect
func (t *MappingTable) Empty() bool { return t.Len() == 0 }

// Labels returns the mapped labels in sorted order
func (t *MappingTable) Labels() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.codes))
	for label := range t.codes {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the event code for label. Unresolvable labels return an
// invalid ErrMarkerDropped.
func (t *MappingTable) Resolve(label string) (uint64, error) {
	code, reason := t.resolve(label)
	if reason != "" {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: label %q (%s)", errors.ErrMarkerDropped, label, reason),
			"MappingTable", "Resolve", "label lookup")
	}
	return code, nil
}

func (t *MappingTable) resolve(label string) (uint64, string) {
	if !t.Empty() {
		code, ok := t.codes[label]
		if !ok {
			return 0, DropUnmapped
		}
		return code, ""
	}

	n, err := strconv.Atoi(strings.TrimSpace(label))
	if err != nil {
		return 0, DropNotNumeric
	}
	if n < MinFallbackCode || n > MaxFallbackCode {
		return 0, DropOutOfRange
	}
	return uint64(n), ""
}
