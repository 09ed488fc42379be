// Package mapping loads marker label to event code tables.
//
// A mapping file is a single YAML mapping (JSON objects are accepted too)
// whose keys are marker labels and whose values are positive integer event
// codes. Codes written as quoted decimal strings are accepted:
//
//	Stim_A: 3
//	Reward: "12"
//	"trial start": 1
//
// An empty file yields an empty table, which switches the engine to its
// numeric label fallback.
package mapping

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tne-lab/LSL-inlet/acquisition"
	"github.com/tne-lab/LSL-inlet/config"
	"github.com/tne-lab/LSL-inlet/errors"
)

// Extensions are the file suffixes LoadFile accepts
var Extensions = []string{".yaml", ".yml", ".json"}

// LoadFile reads and parses the mapping file at path
func LoadFile(path string) (*acquisition.MappingTable, error) {
	data, err := config.ReadFileSafely(path, Extensions...)
	if err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrConfigNotFound, err),
			"mapping", "LoadFile", "read "+path)
	}
	table, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, "mapping", "LoadFile", "parse "+path)
	}
	return table, nil
}

// Parse decodes a mapping document. Labels must be unique and codes must be
// positive integers; code 0 means no event.
func Parse(data []byte) (*acquisition.MappingTable, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return acquisition.NewMappingTable(nil), nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrParsingFailed, err),
			"mapping", "Parse", "yaml decode")
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return acquisition.NewMappingTable(nil), nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return acquisition.NewMappingTable(nil), nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, invalid("line %d: expected a mapping of label to code", root.Line)
	}

	codes := make(map[string]uint64, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode {
			return nil, invalid("line %d: label must be a scalar", key.Line)
		}
		label := key.Value
		if label == "" {
			return nil, invalid("line %d: empty label", key.Line)
		}
		if _, dup := codes[label]; dup {
			return nil, invalid("line %d: duplicate label %q", key.Line, label)
		}
		code, err := parseCode(value)
		if err != nil || code == 0 {
			return nil, invalid("line %d: code for %q must be a positive integer, got %s",
				value.Line, label, value.Value)
		}
		codes[label] = code
	}
	return acquisition.NewMappingTable(codes), nil
}

// parseCode accepts integer scalars and quoted decimal strings such as "3".
func parseCode(value *yaml.Node) (uint64, error) {
	if value.Kind != yaml.ScalarNode {
		return 0, fmt.Errorf("not a scalar")
	}
	switch value.Tag {
	case "!!int":
		return strconv.ParseUint(value.Value, 0, 64)
	case "!!str":
		return strconv.ParseUint(strings.TrimSpace(value.Value), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported tag %s", value.Tag)
	}
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidConfig}, args...)...),
		"mapping", "Parse", "entry check")
}
