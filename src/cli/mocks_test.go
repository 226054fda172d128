package cli

import (
	"time"

	"github.com/mblichar/raft-sim/src/cluster"
	"github.com/mblichar/raft-sim/src/config"
	"github.com/mblichar/raft-sim/src/raft_commands"
	"github.com/mblichar/raft-sim/src/raft_state"
)

type submission struct {
	nodeId  raft_state.NodeId
	command string
}

type simulationMock struct {
	orders      []raft_commands.ControlCommand
	submissions []submission
	splits      [][]raft_state.NodeId
	latency     time.Duration
	statuses    []raft_state.NodeStatus
	clients     []cluster.ClientProgress
	orderErr    error
}

func (mock *simulationMock) Order(command raft_commands.ControlCommand) error {
	if mock.orderErr != nil {
		return mock.orderErr
	}
	mock.orders = append(mock.orders, command)
	return nil
}

func (mock *simulationMock) Submit(nodeId raft_state.NodeId, command string) (uint32, error) {
	mock.submissions = append(mock.submissions, submission{nodeId: nodeId, command: command})
	return uint32(len(mock.submissions) - 1), nil
}

func (mock *simulationMock) SetNetworkSplits(splits [][]raft_state.NodeId) {
	mock.splits = splits
}

func (mock *simulationMock) SetNetworkLatency(latency time.Duration) {
	mock.latency = latency
}

func (mock *simulationMock) NetworkSplits() [][]raft_state.NodeId {
	return mock.splits
}

func (mock *simulationMock) NetworkLatency() time.Duration {
	return mock.latency
}

func (mock *simulationMock) Statuses() []raft_state.NodeStatus {
	return mock.statuses
}

func (mock *simulationMock) Clients() []cluster.ClientProgress {
	return mock.clients
}

func (mock *simulationMock) Config() config.Config {
	return config.Default()
}
