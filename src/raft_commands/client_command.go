package raft_commands

import (
	"fmt"

	"github.com/mblichar/raft-sim/src/raft_state"
)

// MaxCommandLength is the maximum length of a client command in bytes
const MaxCommandLength = 63

// ClientCommand is sent by a client to submit a command, (ClientId, RequestId) identifies it
type ClientCommand struct {
	ClientId  raft_state.NodeId
	RequestId uint32
	Command   string
}

func (*ClientCommand) MessageType() MessageType {
	return ClientRequest
}

func (command *ClientCommand) String() string {
	return fmt.Sprintf("ClientRequest(ClientId: %d RequestId: %d Command: '%s')", command.ClientId, command.RequestId, command.Command)
}

type ClientCommandResult struct {
	// Id of responding node
	ServerId raft_state.NodeId
	// Request the result refers to
	RequestId uint32
	// true once the command is committed, false when the node is not a leader
	Accepted bool
	// Leader known by the responding node
	LeaderHint raft_state.NodeId
}

func (*ClientCommandResult) MessageType() MessageType {
	return ClientRequestResponse
}

func (result *ClientCommandResult) String() string {
	return fmt.Sprintf("ClientRequestResult(ServerId: %d RequestId: %d Accepted: %t LeaderHint: %d)",
		result.ServerId, result.RequestId, result.Accepted, result.LeaderHint)
}
