// Package bridge republishes MRP messages received on a verified
// connection to an MQTT broker, one topic per message type.
package bridge
