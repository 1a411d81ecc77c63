package mqtt

import "strings"

// Topic roots.
const (
	TopicRoot       = "graylogic"
	TopicPrefixCore = TopicRoot + "/core"
)

// Bridge topic categories: graylogic/{category}/{protocol}/{address}.
const (
	categoryCommand  = "command"
	categoryAck      = "ack"
	categoryRequest  = "request"
	categoryResponse = "response"
)

// Topics builds Gray Logic topic names.
//
//	mqtt.Topics{}.BridgeCommand("plug", "8006A1B2C3D4")
//	// graylogic/command/plug/8006A1B2C3D4
type Topics struct{}

func join(parts ...string) string {
	return strings.Join(parts, "/")
}

// BridgeCommand is where commands for a bridge device are sent.
func (Topics) BridgeCommand(protocol, deviceID string) string {
	return join(TopicRoot, categoryCommand, protocol, deviceID)
}

// BridgeAck is where a bridge acknowledges commands for a device.
func (Topics) BridgeAck(protocol, deviceID string) string {
	return join(TopicRoot, categoryAck, protocol, deviceID)
}

// BridgeRequest is where a request with the given id is sent.
func (Topics) BridgeRequest(protocol, requestID string) string {
	return join(TopicRoot, categoryRequest, protocol, requestID)
}

// BridgeResponse is where the bridge answers the request with the given id.
func (Topics) BridgeResponse(protocol, requestID string) string {
	return join(TopicRoot, categoryResponse, protocol, requestID)
}

// CoreEntityStore carries entity store change events.
func (Topics) CoreEntityStore() string {
	return join(TopicPrefixCore, "entity_store", "changed")
}

// CoreNumberState carries the retained state of one number entity.
func (Topics) CoreNumberState(uniqueID string) string {
	return join(TopicPrefixCore, "number", uniqueID, "state")
}

// AllNumberStates matches every CoreNumberState topic.
func (Topics) AllNumberStates() string {
	return join(TopicPrefixCore, "number", "+", "state")
}

// SystemStatus carries the retained service status.
func (Topics) SystemStatus() string {
	return join(TopicRoot, "system", "status")
}
