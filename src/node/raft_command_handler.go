package node

import (
	"github.com/mblichar/raft-sim/src/raft_commands"
	"github.com/mblichar/raft-sim/src/raft_state"
)

// commandHandler dispatches a message according to the role of the node, terms were already reconciled
type commandHandler interface {
	handleCommand(node *Node, source raft_state.NodeId, message raft_commands.Message)
}

type followerCommandHandler struct{}

func (*followerCommandHandler) handleCommand(node *Node, source raft_state.NodeId, message raft_commands.Message) {
	switch command := message.(type) {
	case *raft_commands.AppendEntriesCommand:
		node.handleAppendEntries(command)
	case *raft_commands.RequestVoteCommand:
		node.handleRequestVote(command)
	case *raft_commands.ClientCommand:
		node.rejectClientCommand(command)
	default:
		node.dropMessage(source, message)
	}
}

type candidateCommandHandler struct{}

func (*candidateCommandHandler) handleCommand(node *Node, source raft_state.NodeId, message raft_commands.Message) {
	switch command := message.(type) {
	case *raft_commands.RequestVoteResult:
		node.handleVote(command)
	case *raft_commands.AppendEntriesCommand:
		node.handleAppendEntries(command)
	case *raft_commands.RequestVoteCommand:
		node.handleRequestVote(command)
	case *raft_commands.ClientCommand:
		node.rejectClientCommand(command)
	default:
		node.dropMessage(source, message)
	}
}

type leaderCommandHandler struct{}

func (*leaderCommandHandler) handleCommand(node *Node, source raft_state.NodeId, message raft_commands.Message) {
	switch command := message.(type) {
	case *raft_commands.ClientCommand:
		node.acceptClientCommand(command)
	case *raft_commands.AppendEntriesResult:
		node.handleAppendEntriesResult(command)
	case *raft_commands.AppendEntriesCommand:
		node.handleAppendEntries(command)
	case *raft_commands.RequestVoteCommand:
		node.handleRequestVote(command)
	default:
		node.dropMessage(source, message)
	}
}

func (node *Node) dropMessage(source raft_state.NodeId, message raft_commands.Message) {
	node.logger.Debugf("%s dropped unexpected %s from %d", node.role, message.MessageType(), source)
}
