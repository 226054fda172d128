package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/mblichar/raft-sim/src/cluster"
	"github.com/mblichar/raft-sim/src/logging"
	"github.com/mblichar/raft-sim/src/raft_commands"
	"github.com/mblichar/raft-sim/src/raft_state"
)

func TestCommandHandling(t *testing.T) {
	createLogger := func() (*logging.Logger, chan logging.LoggerEntry) {
		logs := make(chan logging.LoggerEntry, 100)
		return logging.CreateLogger("[COMMAND]", logs), logs
	}

	t.Run("sends orders", func(t *testing.T) {
		simulation := &simulationMock{}
		logger, _ := createLogger()

		handleLine("CRASH 2", simulation, logger)
		handleLine("SPEED high", simulation, logger)

		expected := []raft_commands.ControlCommand{
			{Kind: raft_commands.Crash, Target: 2},
			{Kind: raft_commands.Speed, Parameter: raft_commands.SpeedHigh},
		}
		if diff := deep.Equal(simulation.orders, expected); diff != nil {
			t.Errorf("expected orders to match, got the following differences %s", diff)
		}
	})

	t.Run("submits client commands", func(t *testing.T) {
		simulation := &simulationMock{}
		logger, _ := createLogger()

		handleLine("client 3 set x 1", simulation, logger)

		if diff := deep.Equal(simulation.submissions, []submission{{nodeId: 3, command: "set x 1"}}); diff != nil {
			t.Errorf("expected submissions to match, got the following differences %s", diff)
		}
	})

	t.Run("changes network", func(t *testing.T) {
		simulation := &simulationMock{}
		logger, _ := createLogger()

		handleLine("network-splits 1,2 3", simulation, logger)
		handleLine("network-latency 20", simulation, logger)

		if diff := deep.Equal(simulation.splits, [][]raft_state.NodeId{{1, 2}, {3}}); diff != nil {
			t.Errorf("expected splits to match, got the following differences %s", diff)
		}
		if simulation.latency != 20*time.Millisecond {
			t.Errorf("expected latency to be 20ms, got %s", simulation.latency)
		}
	})

	t.Run("logs help for invalid commands", func(t *testing.T) {
		simulation := &simulationMock{}
		logger, logs := createLogger()

		handleLine("reboot 1", simulation, logger)

		warning := <-logs
		if warning.Level != logging.Warn || !strings.Contains(warning.Messages[0], "reboot 1") {
			t.Errorf("expected warning about the command, got %+v", warning)
		}
		help := <-logs
		if help.Messages[0] != "[COMMAND] Available commands:" {
			t.Errorf("expected help, got %v", help.Messages)
		}
		if len(simulation.orders) != 0 {
			t.Errorf("expected no order, got %v", simulation.orders)
		}
	})

	t.Run("logs rejected orders without help", func(t *testing.T) {
		simulation := &simulationMock{orderErr: cluster.ErrUnknownTarget}
		logger, logs := createLogger()

		handleLine("CRASH 9", simulation, logger)

		warning := <-logs
		if warning.Level != logging.Warn || !strings.Contains(warning.Messages[0], cluster.ErrUnknownTarget.Error()) {
			t.Errorf("expected warning about unknown target, got %+v", warning)
		}
		select {
		case entry := <-logs:
			t.Errorf("expected nothing else logged, got %+v", entry)
		default:
		}
	})
}

func TestRunHeadless(t *testing.T) {
	t.Run("executes every line of input", func(t *testing.T) {
		simulation := &simulationMock{}
		input := strings.NewReader("START\n\nclient 1 set x 1\nnetwork-latency 5\n")
		var output bytes.Buffer

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		err := RunHeadless(ctx, simulation, input, &output, make(chan logging.LoggerEntry, 100))

		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if diff := deep.Equal(simulation.orders, []raft_commands.ControlCommand{{Kind: raft_commands.Start}}); diff != nil {
			t.Errorf("expected orders to match, got the following differences %s", diff)
		}
		if len(simulation.submissions) != 1 || simulation.latency != 5*time.Millisecond {
			t.Errorf("expected submission and latency change, got %v and %s", simulation.submissions, simulation.latency)
		}
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		reader, writer := io.Pipe()
		defer writer.Close()

		err := RunHeadless(ctx, &simulationMock{}, reader, &bytes.Buffer{}, make(chan logging.LoggerEntry, 100))

		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	})
}

func TestRendering(t *testing.T) {
	t.Run("renders node states", func(t *testing.T) {
		var output bytes.Buffer
		renderNodesState([]raft_state.NodeStatus{{
			NodeId:      1,
			Role:        raft_state.Leader,
			Term:        2,
			VotedFor:    1,
			LeaderId:    1,
			CommitIndex: 0,
			LastIndex:   1,
			Log:         []raft_state.LogEntry{{Term: 1, Command: "a"}, {Term: 2, Command: "b"}},
		}}, &output)

		expected := "NODE: 1  ROLE:     LEADER  TERM:  2  VOTED:  1  LEADER:  1  LOG:   1/2  RUNNING\n" +
			"LOG: [I:0 T:1 C:'a']*[I:1 T:2 C:'b']\n\n"
		if output.String() != expected {
			t.Errorf("expected %q, got %q", expected, output.String())
		}
	})

	t.Run("renders network splits", func(t *testing.T) {
		if splits := splitsToString([][]raft_state.NodeId{{1, 2}, {3}}); splits != "1,2 3" {
			t.Errorf("expected '1,2 3', got '%s'", splits)
		}
	})
}
