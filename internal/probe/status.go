package probe

import (
	"fmt"

	"github.com/vbp1/schemaclone/internal/config"
)

// Channel is one of the three ways of reaching a backend.
type Channel string

const (
	Public     Channel = "public"
	Privileged Channel = "privileged"
	Direct     Channel = "direct"
)

// Channels lists every channel in display order.
var Channels = []Channel{Public, Privileged, Direct}

// ParseChannel converts user input into a Channel.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case Public, Privileged, Direct:
		return Channel(s), nil
	}
	return "", fmt.Errorf("unknown channel %q (want public|privileged|direct)", s)
}

// State of a single channel check.
type State string

const (
	Idle      State = "idle"
	Testing   State = "testing"
	Connected State = "connected"
	Failed    State = "error"
)

// ChannelStatus is the state of one (side, channel) pair.
type ChannelStatus struct {
	State State
	Error string
}

// transition moves s to the given state. A check may restart from any
// state; a result is only accepted while testing.
func (s ChannelStatus) transition(to State, msg string) (ChannelStatus, error) {
	switch to {
	case Testing:
		return ChannelStatus{State: Testing}, nil
	case Connected, Failed:
		if s.State != Testing {
			return s, fmt.Errorf("channel: cannot move %s -> %s", s.State, to)
		}
		if to == Connected {
			msg = ""
		}
		return ChannelStatus{State: to, Error: msg}, nil
	case Idle:
		return ChannelStatus{State: Idle}, nil
	}
	return s, fmt.Errorf("channel: unknown state %q", to)
}

type key struct {
	side    config.Side
	channel Channel
}
