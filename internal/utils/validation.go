package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
)

// Payload limits (in bytes)
const (
	MaxPayloadSize  = 1 * 1024 * 1024 // 1MB - maximum command payload
	MaxPayloadDepth = 20
	MaxCommandName  = 64
)

var commandNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateCommandName checks that name can be a bridge command.
func ValidateCommandName(name string) error {
	if name == "" {
		return fmt.Errorf("command name is required")
	}
	if len(name) > MaxCommandName {
		return fmt.Errorf("command name exceeds %d characters", MaxCommandName)
	}
	if !commandNamePattern.MatchString(name) {
		return fmt.Errorf("command name %q must be letters, digits or underscores", name)
	}
	return nil
}

// ValidatePayload checks a command payload's size. A payload that looks like
// JSON must also parse and stay within MaxPayloadDepth.
func ValidatePayload(payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("payload size %d bytes exceeds maximum %d bytes", len(payload), MaxPayloadSize)
	}

	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return nil
	}

	var v interface{}
	if err := sonic.UnmarshalString(trimmed, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return ValidateJSONDepth(v, MaxPayloadDepth)
}

// ValidateJSONDepth checks if JSON nesting depth is within limits
func ValidateJSONDepth(data interface{}, maxDepth int) error {
	return checkDepth(data, 0, maxDepth)
}

func checkDepth(data interface{}, currentDepth int, maxDepth int) error {
	if currentDepth > maxDepth {
		return fmt.Errorf("JSON nesting depth %d exceeds maximum %d", currentDepth, maxDepth)
	}

	switch v := data.(type) {
	case map[string]interface{}:
		for _, value := range v {
			if err := checkDepth(value, currentDepth+1, maxDepth); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, value := range v {
			if err := checkDepth(value, currentDepth+1, maxDepth); err != nil {
				return err
			}
		}
	}

	return nil
}
