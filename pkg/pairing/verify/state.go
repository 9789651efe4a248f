package verify

// State represents the pair verify state machine.
type State int

const (
	StateInit      State = iota
	StateWaitingM2       // Controller: sent M1
	StateWaitingM3       // Accessory: sent M2
	StateWaitingM4       // Controller: sent M3
	StateComplete        // Session keys derived
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
	case StateComplete:
		return "Complete"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
