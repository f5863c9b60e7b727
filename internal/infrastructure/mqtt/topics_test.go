package mqtt

import (
	"errors"
	"strings"
	"testing"
)

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"homie/porch/light1/on/set", "homie/porch/light1/on/set", true},
		{"homie/porch/light1/+/set", "homie/porch/light1/on/set", true},
		{"homie/porch/light1/+/set", "homie/porch/light1/on", false},
		{"homie/porch/light1/+/set", "homie/porch/light2/on/set", false},
		{"homie/$broadcast/#", "homie/$broadcast/alert", true},
		{"homie/$broadcast/#", "homie/$broadcast/a/b/c", true},
		{"homie/#", "homie", true},
		{"#", "homie/porch", true},
		{"#", "$SYS/broker/uptime", false},
		{"+/broker/uptime", "$SYS/broker/uptime", false},
		{"homie/+", "homie/porch/light1", false},
		{"homie/porch", "homie/porch/light1", false},
	}

	for _, tt := range tests {
		t.Run(tt.filter+" "+tt.topic, func(t *testing.T) {
			if got := MatchTopic(tt.filter, tt.topic); got != tt.want {
				t.Errorf("MatchTopic(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
			}
		})
	}
}

func TestValidateFilter(t *testing.T) {
	tests := []struct {
		filter  string
		wantErr bool
	}{
		{"homie/porch/+/on/set", false},
		{"homie/$broadcast/#", false},
		{"#", false},
		{"", true},
		{"homie/#/set", true},
		{"homie/a+/set", true},
		{"homie/a#", true},
		{"homie/\x00", true},
		{strings.Repeat("a", maxTopicLength+1), true},
	}

	for _, tt := range tests {
		name := tt.filter
		if len(name) > 32 {
			name = name[:32]
		}
		t.Run(name, func(t *testing.T) {
			err := ValidateFilter(tt.filter)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFilter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTopic) {
				t.Errorf("ValidateFilter() error = %v, want ErrInvalidTopic", err)
			}
		})
	}
}
