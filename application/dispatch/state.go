package dispatch

import (
	"fmt"
	"time"

	"github.com/reglet-dev/capkit/domain/entities"
)

// State is the lifecycle stage of one dispatch call.
type State int

const (
	StateReceived State = iota
	StateResolving
	StateSignatureLookup
	StateValidating
	StateExecuting
	StateSucceeded
	StateFailed
)

var stateNames = [...]string{
	StateReceived:        "Received",
	StateResolving:       "Resolving",
	StateSignatureLookup: "SignatureLookup",
	StateValidating:      "Validating",
	StateExecuting:       "Executing",
	StateSucceeded:       "Succeeded",
	StateFailed:          "Failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether s ends a call.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// next reports whether a call in s may move to to. Every non-terminal stage
// advances one step or fails; only Executing may succeed.
func (s State) next(to State) bool {
	if s.Terminal() {
		return false
	}
	if to == StateFailed {
		return s != StateReceived
	}
	return to == s+1
}

// Transition records one state change of a call.
type Transition struct {
	At           time.Time
	CallID       string
	CapabilityID entities.CapabilityID
	Function     string
	From         State
	To           State
}

// Observer receives every transition of every call. It is invoked
// synchronously on the calling goroutine and must not block.
type Observer func(Transition)

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
