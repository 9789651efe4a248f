package setup

// Role represents the pair setup participant role.
type Role int

const (
	// RoleController sends odd-numbered messages and knows the PIN.
	RoleController Role = iota
	// RoleAccessory sends even-numbered messages and displays the PIN.
	RoleAccessory
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleController:
		return "Controller"
	case RoleAccessory:
		return "Accessory"
	default:
		return "Unknown"
	}
}

// State represents the pair setup state machine.
type State int

const (
	StateInit      State = iota
	StateWaitingM2       // Controller: sent M1
	StateWaitingM3       // Accessory: sent M2
	StateWaitingM4       // Controller: sent M3
	StateWaitingM5       // Accessory: sent M4
	StateWaitingM6       // Controller: sent M5
	StateComplete        // Long-term keys exchanged
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateWaitingM2:
		return "WaitingM2"
	case StateWaitingM3:
		return "WaitingM3"
	case StateWaitingM4:
		return "WaitingM4"
	case StateWaitingM5:
		return "WaitingM5"
	case StateWaitingM6:
		return "WaitingM6"
	case StateComplete:
		return "Complete"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
