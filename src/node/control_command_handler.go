package node

import (
	"github.com/mblichar/raft-sim/src/raft_commands"
)

func (node *Node) handleControlCommand(command *raft_commands.ControlCommand) {
	node.logger.Debugf("operator order %s", command)

	switch command.Kind {
	case raft_commands.Speed:
		node.speed = command.Parameter
		if node.speed < raft_commands.SpeedHigh {
			node.speed = raft_commands.SpeedHigh
		}
		node.electionTimeout.SetSpeed(node.speed)
		node.heartbeatTimeout.SetSpeed(node.speed)
		node.logger.Infof("speed set to %d", node.speed)
	case raft_commands.Crash:
		if !node.crashed {
			node.crashed = true
			node.logger.Infof("crashed")
		}
	case raft_commands.Recovery:
		if !node.crashed {
			return
		}
		node.crashed = false
		node.becomeFollower()
		if node.truncateOnRecovery {
			node.truncateLog(node.log.CommitIndex() + 1)
		}
		node.logger.Infof("recovered in term %d with %d committed entries", node.currentTerm, node.log.CommitIndex()+1)
	case raft_commands.Status:
		node.logger.LogMultiple(node.statusLines())
		if node.statusSink != nil {
			node.statusSink(node.Status())
		}
	case raft_commands.Start:
	default:
		node.logger.Warnf("unknown operator order %d", command.Kind)
	}
}
