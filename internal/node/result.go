package node

import "fmt"

// Result is the outcome of dispatching a property update.
type Result int

const (
	// Unhandled means no subscription or fallback consumed the update.
	Unhandled Result = iota

	// Accepted means a handler consumed the update and accepted the value.
	Accepted

	// Rejected means a handler consumed the update but refused the value.
	Rejected
)

// String returns the lowercase name used in logs, the journal and the API.
func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "unhandled"
	}
}

// ParseResult converts a name produced by String back to a Result.
func ParseResult(s string) (Result, bool) {
	switch s {
	case "accepted":
		return Accepted, true
	case "rejected":
		return Rejected, true
	case "unhandled":
		return Unhandled, true
	default:
		return Unhandled, false
	}
}

// Handled reports whether a handler consumed the update.
func (r Result) Handled() bool {
	return r != Unhandled
}

func resultOf(ok bool) Result {
	if ok {
		return Accepted
	}
	return Rejected
}

// MarshalText encodes the result as its name.
func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a name produced by MarshalText.
func (r *Result) UnmarshalText(text []byte) error {
	parsed, ok := ParseResult(string(text))
	if !ok {
		return fmt.Errorf("node: unknown result %q", text)
	}
	*r = parsed
	return nil
}
