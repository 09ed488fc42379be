package component

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/tne-lab/LSL-inlet/errors"
)

// Config validation limits
const (
	MaxStringLength = 1024        // Maximum length for string values
	MaxJSONSize     = 1024 * 1024 // Maximum JSON size (1MB)
	MinPort         = 1           // Minimum valid port number
	MaxPort         = 65535       // Maximum valid port number
)

// ConfigValidator checks raw component configuration before it reaches a factory
type ConfigValidator struct {
	maxDepth     int
	maxArraySize int
	maxStringLen int
	maxJSONSize  int
}

// NewConfigValidator creates a validator with the default limits
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		maxDepth:     10,
		maxArraySize: 1000,
		maxStringLen: MaxStringLength,
		maxJSONSize:  MaxJSONSize,
	}
}

// ValidateConfig validates size, nesting depth, array sizes and string content
func (v *ConfigValidator) ValidateConfig(rawConfig json.RawMessage) error {
	if len(rawConfig) > v.maxJSONSize {
		return errors.WrapInvalid(
			fmt.Errorf("config size %d exceeds maximum %d", len(rawConfig), v.maxJSONSize),
			"ConfigValidator", "ValidateConfig", "size check")
	}

	if len(rawConfig) == 0 {
		return nil
	}

	var config any
	decoder := json.NewDecoder(bytes.NewReader(rawConfig))
	decoder.UseNumber()

	if err := decoder.Decode(&config); err != nil {
		return errors.WrapInvalid(err, "ConfigValidator", "ValidateConfig", "JSON parsing")
	}

	if err := v.validateValue(config, 0); err != nil {
		return errors.Wrap(err, "ConfigValidator", "ValidateConfig", "deep validation")
	}

	return nil
}

func (v *ConfigValidator) validateValue(value any, depth int) error {
	if depth > v.maxDepth {
		return errors.WrapInvalid(
			fmt.Errorf("JSON depth %d exceeds maximum %d", depth, v.maxDepth),
			"ConfigValidator", "validateValue", "depth check")
	}

	switch val := value.(type) {
	case string:
		if len(val) > v.maxStringLen {
			return errors.WrapInvalid(
				fmt.Errorf("string length %d exceeds maximum %d", len(val), v.maxStringLen),
				"ConfigValidator", "validateValue", "string length check")
		}
		return validateStringContent(val)

	case json.Number:
		if _, err := val.Float64(); err != nil {
			return errors.WrapInvalid(err, "ConfigValidator", "validateValue", "number validation")
		}

	case []any:
		if len(val) > v.maxArraySize {
			return errors.WrapInvalid(
				fmt.Errorf("array size %d exceeds maximum %d", len(val), v.maxArraySize),
				"ConfigValidator", "validateValue", "array size check")
		}
		for i, elem := range val {
			if err := v.validateValue(elem, depth+1); err != nil {
				return errors.Wrap(err, "ConfigValidator", "validateValue", fmt.Sprintf("array element %d", i))
			}
		}

	case map[string]any:
		for key, elem := range val {
			if len(key) > v.maxStringLen {
				return errors.WrapInvalid(
					fmt.Errorf("key length %d exceeds maximum", len(key)),
					"ConfigValidator", "validateValue", "key length check")
			}
			if err := validateStringContent(key); err != nil {
				return errors.Wrap(err, "ConfigValidator", "validateValue", "key validation")
			}
			if err := v.validateValue(elem, depth+1); err != nil {
				return errors.Wrap(err, "ConfigValidator", "validateValue", fmt.Sprintf("object field '%s'", key))
			}
		}

	case bool, nil:

	default:
		return errors.WrapInvalid(
			fmt.Errorf("unexpected type %T in config", value),
			"ConfigValidator", "validateValue", "type check")
	}

	return nil
}

// validateStringContent rejects null bytes and control characters other than
// tab, newline and carriage return
func validateStringContent(s string) error {
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return errors.WrapInvalid(
				fmt.Errorf("string contains control character: 0x%02x", r),
				"ConfigValidator", "validateStringContent", "control character check")
		}
	}
	return nil
}

// ValidateFactoryConfig runs the default validator over a factory's raw config
func ValidateFactoryConfig(rawConfig json.RawMessage) error {
	return NewConfigValidator().ValidateConfig(rawConfig)
}

// Validatable is implemented by configs that can check their own semantics
type Validatable interface {
	Validate() error
}

// SafeUnmarshal validates raw JSON, decodes it into target and, when target
// implements Validatable, runs its Validate method.
func SafeUnmarshal(rawConfig json.RawMessage, target any) error {
	if err := ValidateFactoryConfig(rawConfig); err != nil {
		return errors.Wrap(err, "ConfigValidator", "SafeUnmarshal", "config validation")
	}

	if reflect.TypeOf(target).Kind() != reflect.Ptr {
		return errors.WrapInvalid(
			fmt.Errorf("target must be a pointer, got %T", target),
			"ConfigValidator", "SafeUnmarshal", "target type check")
	}

	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, target); err != nil {
			return errors.WrapInvalid(err, "ConfigValidator", "SafeUnmarshal", "JSON unmarshaling")
		}
	}

	if validatable, ok := target.(Validatable); ok {
		if err := validatable.Validate(); err != nil {
			return errors.Wrap(err, "ConfigValidator", "SafeUnmarshal", "struct validation")
		}
	}

	return nil
}

// ValidateComponentName accepts alphanumerics, dash, underscore and dot
func ValidateComponentName(name string) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "ConfigValidator", "ValidateComponentName", "empty name")
	}
	if len(name) > MaxStringLength {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "ConfigValidator", "ValidateComponentName", "name too long")
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.') {
			return errors.WrapInvalid(
				errors.ErrInvalidConfig, "ConfigValidator", "ValidateComponentName", "invalid name characters")
		}
	}
	return nil
}

// ValidatePortNumber validates port numbers are within valid range
func ValidatePortNumber(port int) error {
	if port < MinPort || port > MaxPort {
		msg := fmt.Errorf("port %d outside valid range %d-%d", port, MinPort, MaxPort)
		return errors.WrapInvalid(msg, "ConfigValidator", "ValidatePortNumber", "port range validation")
	}
	return nil
}
