package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	errs "github.com/tne-lab/LSL-inlet/errors"
)

//go:embed schema.json
var schemaJSON []byte

var (
	compiledSchema *gojsonschema.Schema
	compileErr     error
	compileOnce    sync.Once
)

func documentSchema() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return compiledSchema, compileErr
}

// Schema returns the embedded JSON schema for configuration documents
func Schema() []byte {
	out := make([]byte, len(schemaJSON))
	copy(out, schemaJSON)
	return out
}

// ValidateDocument checks a raw configuration document (or a partial layer)
// against the embedded schema. Every violation is reported.
func ValidateDocument(data []byte) error {
	schema, err := documentSchema()
	if err != nil {
		return errs.WrapFatal(err, "Config", "ValidateDocument", "schema compilation")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return errs.WrapInvalid(fmt.Errorf("%w: %w", errs.ErrParsingFailed, err),
			"Config", "ValidateDocument", "document loading")
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return errs.WrapInvalid(
		fmt.Errorf("%w: %s", errs.ErrInvalidConfig, strings.Join(violations, "; ")),
		"Config", "ValidateDocument", "schema validation")
}
