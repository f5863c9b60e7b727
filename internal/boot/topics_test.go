package boot

import (
	"errors"
	"testing"
)

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("homie", "porch")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Device", topics.Device(), "homie/porch"},
		{"DeviceAttr", topics.DeviceAttr("$online"), "homie/porch/$online"},
		{"NodeAttr", topics.NodeAttr("light1", "$type"), "homie/porch/light1/$type"},
		{"Property", topics.Property("light1", "on"), "homie/porch/light1/on"},
		{"PropertySet", topics.PropertySet("light1", "on"), "homie/porch/light1/on/set"},
		{"NodeSetAll", topics.NodeSetAll("light1"), "homie/porch/light1/+/set"},
		{"Broadcast", topics.Broadcast(), "homie/$broadcast/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestNewTopics_KeepsTrailingSlash(t *testing.T) {
	if got := NewTopics("devices/homie/", "porch").Base; got != "devices/homie/" {
		t.Errorf("Base = %q, want devices/homie/", got)
	}
}

func TestParseSetTopic(t *testing.T) {
	topics := NewTopics("homie/", "porch")

	tests := []struct {
		name         string
		topic        string
		wantNode     string
		wantProperty string
		wantErr      error
	}{
		{name: "valid", topic: "homie/porch/light1/on/set", wantNode: "light1", wantProperty: "on"},
		{name: "other device", topic: "homie/garage/light1/on/set", wantErr: ErrWrongDevice},
		{name: "other base", topic: "devices/porch/light1/on/set", wantErr: ErrInvalidTopic},
		{name: "state topic", topic: "homie/porch/light1/on", wantErr: ErrInvalidTopic},
		{name: "too deep", topic: "homie/porch/light1/on/x/set", wantErr: ErrInvalidTopic},
		{name: "attribute node", topic: "homie/porch/$stats/uptime/set", wantErr: ErrInvalidTopic},
		{name: "attribute property", topic: "homie/porch/light1/$type/set", wantErr: ErrInvalidTopic},
		{name: "empty node", topic: "homie/porch//on/set", wantErr: ErrInvalidTopic},
		{name: "broadcast", topic: "homie/$broadcast/alert", wantErr: ErrInvalidTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodeID, property, err := topics.ParseSetTopic(tt.topic)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseSetTopic(%q) error = %v, want %v", tt.topic, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSetTopic(%q) error = %v", tt.topic, err)
			}
			if nodeID != tt.wantNode || property != tt.wantProperty {
				t.Errorf("ParseSetTopic(%q) = %s/%s, want %s/%s", tt.topic, nodeID, property, tt.wantNode, tt.wantProperty)
			}
		})
	}
}

func TestParseBroadcast(t *testing.T) {
	topics := NewTopics("homie/", "porch")

	tests := []struct {
		topic     string
		wantLevel string
		wantOK    bool
	}{
		{"homie/$broadcast/alert", "alert", true},
		{"homie/$broadcast/alarm/fire", "alarm/fire", true},
		{"homie/$broadcast/", "", false},
		{"homie/porch/$online", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			level, ok := topics.ParseBroadcast(tt.topic)
			if ok != tt.wantOK || level != tt.wantLevel {
				t.Errorf("ParseBroadcast(%q) = %q, %v, want %q, %v", tt.topic, level, ok, tt.wantLevel, tt.wantOK)
			}
		})
	}
}
