package boot

import (
	"fmt"
	"strings"
)

// Homie attribute names.
const (
	homieVersion = "2.0.0"

	attrHomie          = "$homie"
	attrOnline         = "$online"
	attrName           = "$name"
	attrNodes          = "$nodes"
	attrImplementation = "$implementation"
	attrFwName         = "$fw/name"
	attrFwVersion      = "$fw/version"
	attrStatsInterval  = "$stats/interval"
	attrStatsUptime    = "$stats/uptime"
	attrType           = "$type"
	attrProperties     = "$properties"

	broadcastLevel = "$broadcast"
	setSuffix      = "set"
	settableSuffix = ":settable"
)

// Topics builds the Homie topic layout for one device.
//
//	<base><device>/$online
//	<base><device>/<node>/$type
//	<base><device>/<node>/<property>
//	<base><device>/<node>/<property>/set
//	<base>$broadcast/<level>
//
// Base always ends with "/".
type Topics struct {
	Base     string
	DeviceID string
}

// NewTopics returns Topics for deviceID under base, adding the trailing
// slash to base when it is missing.
func NewTopics(base, deviceID string) Topics {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return Topics{Base: base, DeviceID: deviceID}
}

// Device returns the device root topic.
func (t Topics) Device() string {
	return t.Base + t.DeviceID
}

// DeviceAttr returns a device attribute topic such as "$online".
func (t Topics) DeviceAttr(attr string) string {
	return t.Device() + "/" + attr
}

// NodeAttr returns a node attribute topic such as "$type".
func (t Topics) NodeAttr(nodeID, attr string) string {
	return t.Device() + "/" + nodeID + "/" + attr
}

// Property returns the state topic of a property.
func (t Topics) Property(nodeID, property string) string {
	return t.Device() + "/" + nodeID + "/" + property
}

// PropertySet returns the topic controllers publish to when setting a property.
func (t Topics) PropertySet(nodeID, property string) string {
	return t.Property(nodeID, property) + "/" + setSuffix
}

// NodeSetAll returns the filter matching every set topic of a node.
func (t Topics) NodeSetAll(nodeID string) string {
	return t.PropertySet(nodeID, "+")
}

// Broadcast returns the filter matching every broadcast.
func (t Topics) Broadcast() string {
	return t.Base + broadcastLevel + "/#"
}

// ParseSetTopic splits a set topic into node id and property.
//
// It returns ErrWrongDevice when the topic is a well-formed set topic for
// another device, and ErrInvalidTopic for anything else that is not
// <base><device>/<node>/<property>/set.
func (t Topics) ParseSetTopic(topic string) (nodeID, property string, err error) {
	rest, ok := strings.CutPrefix(topic, t.Base)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}

	levels := strings.Split(rest, "/")
	if len(levels) != 4 || levels[3] != setSuffix {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	for _, level := range levels[:3] {
		if level == "" || strings.HasPrefix(level, "$") {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
		}
	}
	if levels[0] != t.DeviceID {
		return "", "", fmt.Errorf("%w: %q", ErrWrongDevice, levels[0])
	}

	return levels[1], levels[2], nil
}

// ParseBroadcast returns the broadcast level of a broadcast topic.
func (t Topics) ParseBroadcast(topic string) (level string, ok bool) {
	rest, ok := strings.CutPrefix(topic, t.Base+broadcastLevel+"/")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}
