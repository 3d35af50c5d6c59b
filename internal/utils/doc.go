// Package utils validates input arriving over the HTTP surface before it is
// forwarded to the widget content.
//
// Validation:
//   - Command names: identifier characters, bounded length
//   - Payloads: size limit; JSON payloads must parse with bounded depth
//
// Example Usage:
//
//	if err := utils.ValidateCommandName(name); err != nil {
//		return err
//	}
//	err := utils.ValidatePayload(body)
package utils
