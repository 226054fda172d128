package raft_commands

import (
	"fmt"
	"strings"

	"github.com/mblichar/raft-sim/src/raft_state"
)

type ControlKind int

const (
	Speed ControlKind = iota
	Crash
	Recovery
	Status
	// Start releases clients waiting for the operator, nodes ignore it
	Start
)

func (kind ControlKind) String() string {
	switch kind {
	case Speed:
		return "SPEED"
	case Crash:
		return "CRASH"
	case Recovery:
		return "RECOVERY"
	case Status:
		return "STATUS"
	case Start:
		return "START"
	default:
		return "UNKNOWN"
	}
}

// ParseControlKind is the inverse of ControlKind.String, case insensitive
func ParseControlKind(name string) (ControlKind, bool) {
	for kind := Speed; kind <= Start; kind++ {
		if strings.EqualFold(kind.String(), name) {
			return kind, true
		}
	}
	return 0, false
}

// Speed levels used by the operator console
const (
	SpeedHigh   = 1
	SpeedMedium = 3
	SpeedLow    = 10
)

// ControlCommand is an administrative order injected by the operator
type ControlCommand struct {
	Kind ControlKind
	// Target process, 0 for every node (every client for Start)
	Target raft_state.NodeId
	// Speed level for Speed orders
	Parameter int
}

func (*ControlCommand) MessageType() MessageType {
	return Control
}

func (command *ControlCommand) String() string {
	if command.Kind == Speed {
		return fmt.Sprintf("%s %d (target: %d)", command.Kind, command.Parameter, command.Target)
	}
	return fmt.Sprintf("%s (target: %d)", command.Kind, command.Target)
}
