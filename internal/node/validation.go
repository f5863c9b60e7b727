package node

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Identifier limits, matching the Homie convention for embedded devices.
const (
	MaxIDLength       = 24
	MaxTypeLength     = 24
	MaxPropertyLength = 24

	idPattern = `^[a-z0-9]+(?:-[a-z0-9]+)*$`
)

var idRegex = regexp.MustCompile(idPattern)

// ValidateID checks that a node id is a non-empty Homie identifier.
// Ids appear verbatim as MQTT topic levels, so only lowercase
// alphanumerics and inner hyphens are allowed.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidID)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%w: id %q exceeds %d characters", ErrInvalidID, id, MaxIDLength)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: id %q must be lowercase alphanumeric with hyphens", ErrInvalidID, id)
	}
	return nil
}

// ValidateType checks that a node type is non-empty printable text.
func ValidateType(typ string) error {
	if strings.TrimSpace(typ) == "" {
		return fmt.Errorf("%w: type cannot be empty", ErrInvalidType)
	}
	if len(typ) > MaxTypeLength {
		return fmt.Errorf("%w: type %q exceeds %d characters", ErrInvalidType, typ, MaxTypeLength)
	}
	for _, r := range typ {
		if !unicode.IsPrint(r) {
			return fmt.Errorf("%w: type %q contains non-printable characters", ErrInvalidType, typ)
		}
	}
	return nil
}

// ValidateProperty checks that a property name is a valid Homie identifier.
func ValidateProperty(property string) error {
	if property == "" {
		return fmt.Errorf("%w: property cannot be empty", ErrInvalidProperty)
	}
	if len(property) > MaxPropertyLength {
		return fmt.Errorf("%w: property %q exceeds %d characters", ErrInvalidProperty, property, MaxPropertyLength)
	}
	if !idRegex.MatchString(property) {
		return fmt.Errorf("%w: property %q must be lowercase alphanumeric with hyphens", ErrInvalidProperty, property)
	}
	return nil
}
