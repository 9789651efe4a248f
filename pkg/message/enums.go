package message

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Type is the envelope message type.
type Type int32

const (
	TypeUnknown             Type = 0
	TypeSendCommand         Type = 1
	TypeSendCommandResult   Type = 2
	TypeGetState            Type = 3
	TypeSetState            Type = 4
	TypeDeviceInfo          Type = 15
	TypeClientUpdatesConfig Type = 16
	TypeCryptoPairing       Type = 34
)

var typeNames = map[Type]string{
	TypeUnknown:             "Unknown",
	TypeSendCommand:         "SendCommand",
	TypeSendCommandResult:   "SendCommandResult",
	TypeGetState:            "GetState",
	TypeSetState:            "SetState",
	TypeDeviceInfo:          "DeviceInfo",
	TypeClientUpdatesConfig: "ClientUpdatesConfig",
	TypeCryptoPairing:       "CryptoPairing",
}

// String returns the type name.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int32(t))
}

// IsResponse reports whether t only ever answers a request. Responses are
// matched to their request by Identifier.
func (t Type) IsResponse() bool {
	return t == TypeSendCommandResult
}

// payloadFields maps a type to the envelope field holding its payload.
// Payload extensions start above the envelope fields.
var payloadFields = map[Type]protowire.Number{
	TypeSendCommand:         6,
	TypeSendCommandResult:   7,
	TypeSetState:            9,
	TypeDeviceInfo:          20,
	TypeClientUpdatesConfig: 21,
	TypeCryptoPairing:       39,
}

// PayloadField returns the envelope field number carrying the payload of
// type t, and false if the type has no registered field.
func (t Type) PayloadField() (protowire.Number, bool) {
	n, ok := payloadFields[t]
	return n, ok
}

// Command is a remote control command sent with SendCommand.
type Command int32

const (
	CommandUnknown          Command = 0
	CommandPlay             Command = 1
	CommandPause            Command = 2
	CommandTogglePlayPause  Command = 3
	CommandStop             Command = 4
	CommandNextTrack        Command = 5
	CommandPreviousTrack    Command = 6
	CommandAdvanceShuffle   Command = 7
	CommandAdvanceRepeat    Command = 8
	CommandBeginFastForward Command = 9
	CommandEndFastForward   Command = 10
	CommandBeginRewind      Command = 11
	CommandEndRewind        Command = 12
)

var commandNames = map[Command]string{
	CommandUnknown:          "Unknown",
	CommandPlay:             "Play",
	CommandPause:            "Pause",
	CommandTogglePlayPause:  "TogglePlayPause",
	CommandStop:             "Stop",
	CommandNextTrack:        "NextTrack",
	CommandPreviousTrack:    "PreviousTrack",
	CommandAdvanceShuffle:   "AdvanceShuffleMode",
	CommandAdvanceRepeat:    "AdvanceRepeatMode",
	CommandBeginFastForward: "BeginFastForward",
	CommandEndFastForward:   "EndFastForward",
	CommandBeginRewind:      "BeginRewind",
	CommandEndRewind:        "EndRewind",
}

// String returns the command name.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", int32(c))
}

// ParseCommand returns the command with the given name.
func ParseCommand(name string) (Command, bool) {
	for c, n := range commandNames {
		if n == name {
			return c, true
		}
	}
	return CommandUnknown, false
}

// PairingState values carried in CryptoPairing.State.
const (
	PairingStateNone  int32 = 0
	PairingStateSetup int32 = 2
)
