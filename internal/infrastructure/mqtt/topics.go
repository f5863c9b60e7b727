package mqtt

import (
	"fmt"
	"strings"
)

// maxTopicLength is the MQTT limit on topic names in bytes.
const maxTopicLength = 65535

// ValidateTopic checks that topic is a usable topic name or filter.
func ValidateTopic(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidTopic, maxTopicLength)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: contains NUL", ErrInvalidTopic)
	}
	return nil
}

// ValidateFilter checks that filter is a well-formed subscription filter.
// "+" must occupy a whole level and "#" must be the whole last level.
func ValidateFilter(filter string) error {
	if err := ValidateTopic(filter); err != nil {
		return err
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("%w: %q mixes + with text", ErrInvalidTopic, filter)
		}
		if strings.Contains(level, "#") && (level != "#" || i != len(levels)-1) {
			return fmt.Errorf("%w: %q has # outside the last level", ErrInvalidTopic, filter)
		}
	}
	return nil
}

// MatchTopic reports whether topic matches the subscription filter.
//
// Topics beginning with "$" are not matched by a leading wildcard,
// so "#" does not match "$SYS/..." while "homie/$broadcast/#" does
// match "homie/$broadcast/alert".
func MatchTopic(filter, topic string) bool {
	if strings.HasPrefix(topic, "$") && (strings.HasPrefix(filter, "+") || strings.HasPrefix(filter, "#")) {
		return false
	}

	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")

	for i, level := range f {
		if level == "#" {
			return true
		}
		if i >= len(t) {
			return false
		}
		if level != "+" && level != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}

// isFilter reports whether topic contains wildcard characters.
func isFilter(topic string) bool {
	return strings.ContainsAny(topic, "+#")
}
