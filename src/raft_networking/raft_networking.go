package raft_networking

import (
	"errors"

	"github.com/mblichar/raft-sim/src/raft_commands"
	"github.com/mblichar/raft-sim/src/raft_state"
)

var (
	// ErrNoMessage is returned by Receive when no matching message is available
	ErrNoMessage = errors.New("raft_networking: no message available")

	// ErrUnknownNode is returned when using an endpoint which is not registered
	ErrUnknownNode = errors.New("raft_networking: unknown node")

	// ErrDuplicateNode is returned when registering an endpoint twice
	ErrDuplicateNode = errors.New("raft_networking: node already registered")
)

// AnySource matches messages of every sender
const AnySource raft_state.NodeId = -1

// AnyTag matches messages of every type
const AnyTag raft_commands.MessageType = -1

// Envelope describes an available message without consuming it
type Envelope struct {
	Source raft_state.NodeId
	Tag    raft_commands.MessageType
}

// Transport is the point-to-point messaging layer used by nodes and clients. Messages sent by one
// process to another are delivered in send order, nothing is guaranteed across different senders.
type Transport interface {
	// Send delivers message on a best-effort basis, unreachable destinations silently drop it
	Send(destination raft_state.NodeId, message raft_commands.Message)
	// Probe reports first available message matching source and tag without blocking
	Probe(source raft_state.NodeId, tag raft_commands.MessageType) (Envelope, bool)
	// Receive consumes first available message matching source and tag
	Receive(source raft_state.NodeId, tag raft_commands.MessageType) (raft_commands.Message, error)
}
