package node

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "simple", input: "light", wantErr: nil},
		{name: "digits", input: "relay2", wantErr: nil},
		{name: "hyphenated", input: "living-room-1", wantErr: nil},
		{name: "at max length", input: strings.Repeat("a", MaxIDLength), wantErr: nil},
		{name: "empty", input: "", wantErr: ErrInvalidID},
		{name: "exceeds max length", input: strings.Repeat("a", MaxIDLength+1), wantErr: ErrInvalidID},
		{name: "uppercase", input: "Light", wantErr: ErrInvalidID},
		{name: "leading hyphen", input: "-light", wantErr: ErrInvalidID},
		{name: "trailing hyphen", input: "light-", wantErr: ErrInvalidID},
		{name: "double hyphen", input: "a--b", wantErr: ErrInvalidID},
		{name: "underscore", input: "a_b", wantErr: ErrInvalidID},
		{name: "mqtt wildcard", input: "a+", wantErr: ErrInvalidID},
		{name: "dollar prefix", input: "$stats", wantErr: ErrInvalidID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateID(%q) = %v, want nil", tt.input, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateID(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "simple", input: "switch", wantErr: nil},
		{name: "free form", input: "RGB Light (v2)", wantErr: nil},
		{name: "at max length", input: strings.Repeat("t", MaxTypeLength), wantErr: nil},
		{name: "empty", input: "", wantErr: ErrInvalidType},
		{name: "whitespace", input: " \t", wantErr: ErrInvalidType},
		{name: "exceeds max length", input: strings.Repeat("t", MaxTypeLength+1), wantErr: ErrInvalidType},
		{name: "control character", input: "sw\x00itch", wantErr: ErrInvalidType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateType(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateType(%q) = %v, want nil", tt.input, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateType(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateProperty(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "simple", input: "power", wantErr: nil},
		{name: "hyphenated", input: "target-temperature", wantErr: nil},
		{name: "empty", input: "", wantErr: ErrInvalidProperty},
		{name: "exceeds max length", input: strings.Repeat("p", MaxPropertyLength+1), wantErr: ErrInvalidProperty},
		{name: "topic separator", input: "power/set", wantErr: ErrInvalidProperty},
		{name: "multi-level wildcard", input: "#", wantErr: ErrInvalidProperty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProperty(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateProperty(%q) = %v, want nil", tt.input, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateProperty(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
