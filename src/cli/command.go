package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mblichar/raft-sim/src/raft_commands"
	"github.com/mblichar/raft-sim/src/raft_state"
)

// ErrInvalidCommand is returned for operator input which does not follow the console grammar
var ErrInvalidCommand = errors.New("cli: invalid command")

type CommandKind int

const (
	OrderCommand CommandKind = iota
	ClientCommand
	NetworkSplitsCommand
	NetworkLatencyCommand
	HelpCommand
)

// Command is a parsed line of operator input
type Command struct {
	Kind CommandKind
	// Control order for OrderCommand
	Order raft_commands.ControlCommand
	// Node receiving a ClientCommand
	NodeId raft_state.NodeId
	// Client command text for ClientCommand
	Text string
	// Splits for NetworkSplitsCommand
	Splits [][]raft_state.NodeId
	// Latency in milliseconds for NetworkLatencyCommand
	Latency int
}

var speedLevels = map[string]int{
	"low":    raft_commands.SpeedLow,
	"medium": raft_commands.SpeedMedium,
	"high":   raft_commands.SpeedHigh,
}

// ParseCommand parses a line typed by the operator. Order keywords are case insensitive, a missing
// target means every node (every client for START).
func ParseCommand(line string) (Command, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return Command{}, fmt.Errorf("empty command: %w", ErrInvalidCommand)
	}

	if kind, ok := raft_commands.ParseControlKind(tokens[0]); ok {
		return parseOrder(kind, tokens[1:], line)
	}

	switch tokens[0] {
	case "client":
		if len(tokens) < 3 {
			return Command{}, fmt.Errorf("'%s': %w", line, ErrInvalidCommand)
		}
		nodeId, err := parseNodeId(tokens[1])
		if err != nil || nodeId < 1 {
			return Command{}, fmt.Errorf("'%s' node id: %w", line, ErrInvalidCommand)
		}
		text := strings.Join(tokens[2:], " ")
		if len(text) > raft_commands.MaxCommandLength {
			return Command{}, fmt.Errorf("'%s' longer than %d bytes: %w", text, raft_commands.MaxCommandLength,
				ErrInvalidCommand)
		}
		return Command{Kind: ClientCommand, NodeId: nodeId, Text: text}, nil
	case "network-splits":
		if len(tokens) < 2 {
			return Command{}, fmt.Errorf("'%s': %w", line, ErrInvalidCommand)
		}
		splits := make([][]raft_state.NodeId, len(tokens[1:]))
		for i, token := range tokens[1:] {
			for _, nodeIdStr := range strings.Split(token, ",") {
				nodeId, err := parseNodeId(nodeIdStr)
				if err != nil {
					return Command{}, fmt.Errorf("'%s' split %d: %w", line, i, ErrInvalidCommand)
				}
				splits[i] = append(splits[i], nodeId)
			}
		}
		return Command{Kind: NetworkSplitsCommand, Splits: splits}, nil
	case "network-latency":
		if len(tokens) != 2 {
			return Command{}, fmt.Errorf("'%s': %w", line, ErrInvalidCommand)
		}
		latency, err := strconv.Atoi(tokens[1])
		if err != nil || latency < 0 {
			return Command{}, fmt.Errorf("'%s' latency: %w", line, ErrInvalidCommand)
		}
		return Command{Kind: NetworkLatencyCommand, Latency: latency}, nil
	case "help":
		return Command{Kind: HelpCommand}, nil
	default:
		return Command{}, fmt.Errorf("'%s': %w", line, ErrInvalidCommand)
	}
}

func parseOrder(kind raft_commands.ControlKind, args []string, line string) (Command, error) {
	order := raft_commands.ControlCommand{Kind: kind}

	if kind == raft_commands.Speed {
		if len(args) == 0 {
			return Command{}, fmt.Errorf("'%s' missing speed: %w", line, ErrInvalidCommand)
		}
		speed, ok := speedLevels[strings.ToLower(args[0])]
		if !ok {
			return Command{}, fmt.Errorf("'%s' speed: %w", line, ErrInvalidCommand)
		}
		order.Parameter = speed
		args = args[1:]
	}

	switch len(args) {
	case 0:
	case 1:
		target, err := parseNodeId(args[0])
		if err != nil {
			return Command{}, fmt.Errorf("'%s' target: %w", line, ErrInvalidCommand)
		}
		order.Target = target
	default:
		return Command{}, fmt.Errorf("'%s': %w", line, ErrInvalidCommand)
	}

	return Command{Kind: OrderCommand, Order: order}, nil
}

func parseNodeId(token string) (raft_state.NodeId, error) {
	nodeId, err := strconv.Atoi(token)
	if err != nil || nodeId < 0 {
		return 0, fmt.Errorf("node id %q: %w", token, ErrInvalidCommand)
	}
	return raft_state.NodeId(nodeId), nil
}
