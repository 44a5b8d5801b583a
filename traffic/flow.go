// Package traffic generates the application frames of a scenario and
// delivers received frames to the servers that count them.
package traffic

import (
	"errors"
	"fmt"

	"github.com/sarchlab/hiddenstations/sim"
)

// ErrInvalidFlow is wrapped by every flow and server validation error.
var ErrInvalidFlow = errors.New("invalid flow")

// Mode selects how the destination answers a flow.
type Mode int

// The traffic modes.
const (
	// OneWay is a fire-and-forget UDP stream.
	OneWay Mode = iota

	// Echo makes the server reply with a frame of the same size.
	Echo
)

func (m Mode) String() string {
	switch m {
	case OneWay:
		return "one-way"
	case Echo:
		return "echo"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts the textual name of a mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "one-way", "oneway", "udp":
		return OneWay, nil
	case "echo":
		return Echo, nil
	}

	return OneWay, fmt.Errorf("%w: unknown mode %q", ErrInvalidFlow, s)
}

// A Flow describes the frames one client sends to one server port.
type Flow struct {
	ID          string
	Label       string
	Source      int
	Destination int
	Port        int
	PayloadSize int
	Interval    sim.VTimeInSec

	// ReplyPort is the client port echo replies are sent to.
	ReplyPort int

	// MaxPackets limits the number of frames. 0 sends until Stop.
	MaxPackets int

	Start sim.VTimeInSec
	Stop  sim.VTimeInSec
	Mode  Mode
}

// ReplyCounterID names the counter that records the echo replies of the
// flow.
func (f Flow) ReplyCounterID() string {
	return f.ID + ".reply"
}

// Validate checks the flow on its own.
func (f Flow) Validate() error {
	switch {
	case f.ID == "":
		return fmt.Errorf("%w: flow without an ID", ErrInvalidFlow)
	case f.PayloadSize <= 0:
		return fmt.Errorf("%w: flow %s: payload size %d is not positive",
			ErrInvalidFlow, f.ID, f.PayloadSize)
	case f.Interval <= 0:
		return fmt.Errorf("%w: flow %s: interval %g is not positive",
			ErrInvalidFlow, f.ID, f.Interval)
	case f.MaxPackets < 0:
		return fmt.Errorf("%w: flow %s: negative packet limit",
			ErrInvalidFlow, f.ID)
	case f.Start < 0:
		return fmt.Errorf("%w: flow %s: negative start time",
			ErrInvalidFlow, f.ID)
	case f.Stop <= f.Start:
		return fmt.Errorf("%w: flow %s: stop %g is not after start %g",
			ErrInvalidFlow, f.ID, f.Stop, f.Start)
	case f.Source == f.Destination:
		return fmt.Errorf("%w: flow %s: source and destination are the same",
			ErrInvalidFlow, f.ID)
	case f.ReplyPort < 0:
		return fmt.Errorf("%w: flow %s: negative reply port",
			ErrInvalidFlow, f.ID)
	}

	return nil
}

// A ServerConfig describes an application listening on a station port.
type ServerConfig struct {
	// ID names the counter the server records under.
	ID      string
	Label   string
	Station int
	Port    int
	Start   sim.VTimeInSec
	Stop    sim.VTimeInSec
	Echo    bool
}

// Validate checks the server on its own.
func (c ServerConfig) Validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("%w: server without an ID", ErrInvalidFlow)
	case c.Port <= 0:
		return fmt.Errorf("%w: server %s: port %d is not positive",
			ErrInvalidFlow, c.ID, c.Port)
	case c.Start < 0:
		return fmt.Errorf("%w: server %s: negative start time",
			ErrInvalidFlow, c.ID)
	case c.Stop <= c.Start:
		return fmt.Errorf("%w: server %s: stop %g is not after start %g",
			ErrInvalidFlow, c.ID, c.Stop, c.Start)
	}

	return nil
}
