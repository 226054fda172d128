package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/mblichar/raft-sim/src/cluster"
	"github.com/mblichar/raft-sim/src/config"
	"github.com/mblichar/raft-sim/src/logging"
	"github.com/mblichar/raft-sim/src/raft_commands"
	"github.com/mblichar/raft-sim/src/raft_state"
)

// Simulation is the part of cluster.Cluster driven by the console
type Simulation interface {
	Order(command raft_commands.ControlCommand) error
	Submit(nodeId raft_state.NodeId, command string) (uint32, error)
	SetNetworkSplits(splits [][]raft_state.NodeId)
	SetNetworkLatency(latency time.Duration)
	NetworkSplits() [][]raft_state.NodeId
	NetworkLatency() time.Duration
	Statuses() []raft_state.NodeStatus
	Clients() []cluster.ClientProgress
	Config() config.Config
}

// handleLine parses and executes a line of operator input, failures are logged with help
func handleLine(line string, simulation Simulation, logger *logging.Logger) {
	command, err := ParseCommand(line)
	if err == nil {
		err = handleCommand(command, simulation, logger)
	}

	if err != nil {
		logger.Warnf("'%s' - %v", line, err)
		if errors.Is(err, ErrInvalidCommand) {
			logHelp(logger)
		}
		return
	}
	logger.Log(line)
}

func handleCommand(command Command, simulation Simulation, logger *logging.Logger) error {
	switch command.Kind {
	case OrderCommand:
		return simulation.Order(command.Order)
	case ClientCommand:
		requestId, err := simulation.Submit(command.NodeId, command.Text)
		if err != nil {
			return err
		}
		logger.Infof("request %d '%s' sent to node %d", requestId, command.Text, command.NodeId)
	case NetworkSplitsCommand:
		simulation.SetNetworkSplits(command.Splits)
	case NetworkLatencyCommand:
		simulation.SetNetworkLatency(config.Milliseconds(command.Latency))
	case HelpCommand:
		logHelp(logger)
	default:
		return fmt.Errorf("command kind %d: %w", command.Kind, ErrInvalidCommand)
	}
	return nil
}

func logHelp(logger *logging.Logger) {
	logger.LogMultiple([]string{
		"Available commands:",
		"SPEED low|medium|high [NODE_ID] (e.g. SPEED low 2) - slows down given node, every node when omitted",
		"CRASH [NODE_ID] (e.g. CRASH 1) - crashes given node, every node when omitted",
		"RECOVERY [NODE_ID] (e.g. RECOVERY 1) - recovers given crashed node, every node when omitted",
		"STATUS [NODE_ID] (e.g. STATUS 3) - logs state of given node, every node when omitted",
		"START [CLIENT_ID] (e.g. START) - starts given client, every client when omitted",
		"client NODE_ID COMMAND (e.g. client 2 set x 3) - sends client command to given node",
		"network-latency LATENCY (e.g. network-latency 200) - sets network latency (in milliseconds)",
		"network-splits SPLITS (e.g network-splits 1,2,3 4,5) - splits nodes into sets that can communicate only",
		"                        with other nodes in the same set. Use 'network-splits 1,2,3,4,5' to reconnect all nodes",
		"help - displays this information",
	})
}
