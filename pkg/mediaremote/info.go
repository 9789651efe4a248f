package mediaremote

import "github.com/backkem/mediaremote/pkg/message"

// Defaults announced in DeviceInfo when a field is left empty.
const (
	DefaultModelName                = "iPhone"
	DefaultSystemBuildVersion       = "18G82"
	DefaultBundleIdentifier         = "com.apple.TVRemote"
	DefaultBundleVersion            = "344.28"
	DefaultSystemMediaApplication   = "com.apple.TVMusic"
	DefaultProtocolVersion          = 1
	DefaultLastSupportedMessageType = 108
)

// DefaultDeviceInfo returns the DeviceInfo a controller introduces itself
// with.
func DefaultDeviceInfo(name, uniqueIdentifier string) *message.DeviceInfo {
	return &message.DeviceInfo{
		UniqueIdentifier:            uniqueIdentifier,
		Name:                        name,
		LocalizedModelName:          DefaultModelName,
		SystemBuildVersion:          DefaultSystemBuildVersion,
		ApplicationBundleIdentifier: DefaultBundleIdentifier,
		ApplicationBundleVersion:    DefaultBundleVersion,
		ProtocolVersion:             DefaultProtocolVersion,
		LastSupportedMessageType:    DefaultLastSupportedMessageType,
		SupportsSystemPairing:       true,
		AllowsPairing:               true,
		SystemMediaApplication:      DefaultSystemMediaApplication,
		SupportsACL:                 true,
	}
}

func cloneInfo(info *message.DeviceInfo) *message.DeviceInfo {
	c := *info
	return &c
}
