package mac

import "fmt"

// State is the contention state of a MAC.
type State int

// The states of a MAC.
const (
	StateIdle State = iota
	StateAggregating
	StateBackoff
	StateRTSWait
	StateCTSWait
	StateTransmitting
	StateAckWait
)

var stateNames = map[State]string{
	StateIdle:         "IDLE",
	StateAggregating:  "AGGREGATING",
	StateBackoff:      "BACKOFF",
	StateRTSWait:      "RTS_WAIT",
	StateCTSWait:      "CTS_WAIT",
	StateTransmitting: "TRANSMITTING",
	StateAckWait:      "ACK_WAIT",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("State(%d)", int(s))
}
