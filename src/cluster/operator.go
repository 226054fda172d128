package cluster

import (
	"github.com/mblichar/raft-sim/src/logging"
	"github.com/mblichar/raft-sim/src/raft_commands"
	"github.com/mblichar/raft-sim/src/raft_networking"
	"github.com/mblichar/raft-sim/src/raft_state"
)

// operator is the process behind the console. It sends control orders and acts as a client for
// commands typed by hand.
type operator struct {
	transport raft_networking.Transport
	logger    *logging.Logger
	requestId uint32
	results   []raft_commands.ClientCommandResult
}

func (op *operator) Id() raft_state.NodeId {
	return raft_state.OperatorId
}

func (op *operator) send(destination raft_state.NodeId, message raft_commands.Message) {
	op.transport.Send(destination, message)
}

func (op *operator) submit(nodeId raft_state.NodeId, command string) uint32 {
	requestId := op.requestId
	op.requestId++

	op.logger.Infof("request %d '%s' sent to %d", requestId, command, nodeId)
	op.send(nodeId, &raft_commands.ClientCommand{
		ClientId:  raft_state.OperatorId,
		RequestId: requestId,
		Command:   command,
	})
	return requestId
}

// Tick collects answers to submitted commands
func (op *operator) Tick() {
	for {
		envelope, ok := op.transport.Probe(raft_networking.AnySource, raft_commands.ClientRequestResponse)
		if !ok {
			return
		}

		message, err := op.transport.Receive(envelope.Source, envelope.Tag)
		if err != nil {
			op.logger.Warnf("receive from %d failed: %v", envelope.Source, err)
			return
		}

		result := message.(*raft_commands.ClientCommandResult)
		op.results = append(op.results, *result)
		if result.Accepted {
			op.logger.Infof("request %d committed by %d", result.RequestId, result.ServerId)
		} else {
			op.logger.Infof("request %d rejected by %d, leader is %d", result.RequestId, result.ServerId, result.LeaderHint)
		}
	}
}
