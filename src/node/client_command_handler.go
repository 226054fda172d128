package node

import (
	"github.com/mblichar/raft-sim/src/raft_commands"
)

// acceptClientCommand appends a client command to the leader log, the client is answered once the
// entry is committed
func (node *Node) acceptClientCommand(command *raft_commands.ClientCommand) {
	if index, found := node.log.Find(command.ClientId, command.RequestId); found {
		if index <= node.log.CommitIndex() {
			node.send(command.ClientId, &raft_commands.ClientCommandResult{
				ServerId:   node.nodeId,
				RequestId:  command.RequestId,
				Accepted:   true,
				LeaderHint: node.nodeId,
			})
		}
		node.logger.Debugf("request %d of client %d already at %d", command.RequestId, command.ClientId, index)
		return
	}

	index, _ := node.log.Append(node.currentTerm, command.ClientId, command.RequestId, command.Command)
	node.logger.Infof("appended request %d of client %d at %d", command.RequestId, command.ClientId, index)

	node.pendingCommits.Track(index)
	node.advanceCommitIndex()
}

func (node *Node) rejectClientCommand(command *raft_commands.ClientCommand) {
	node.logger.Debugf("%s redirecting client %d to %d", node.role, command.ClientId, node.leaderId)
	node.send(command.ClientId, &raft_commands.ClientCommandResult{
		ServerId:   node.nodeId,
		RequestId:  command.RequestId,
		Accepted:   false,
		LeaderHint: node.leaderId,
	})
}
