package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mblichar/raft-sim/src/logging"
	"github.com/mblichar/raft-sim/src/raft_state"
	"github.com/rivo/tview"
)

func renderNodesState(statuses []raft_state.NodeStatus, writer io.Writer) {
	for _, status := range statuses {
		state := "RUNNING"
		if status.Crashed {
			state = "CRASHED"
		}
		fmt.Fprintf(writer, "NODE: %d  ROLE: %10s  TERM: %2d  VOTED: %2d  LEADER: %2d  LOG: %5s  %s\n",
			status.NodeId,
			status.Role,
			status.Term,
			status.VotedFor,
			status.LeaderId,
			status.LogDepth(),
			state,
		)
		fmt.Fprintf(writer, "LOG: %s\n", logEntriesToString(status.Log, status.CommitIndex))
		fmt.Fprintf(writer, "\n")
	}
}

func renderClients(simulation Simulation, writer io.Writer) {
	for _, progress := range simulation.Clients() {
		state := "WAITING"
		switch {
		case progress.Done:
			state = "DONE"
		case progress.Started:
			state = "RUNNING"
		}
		fmt.Fprintf(writer, "CLIENT: %d  %7s  ACKNOWLEDGED: %v  FAILED: %v\n",
			progress.ClientId, state, progress.Acknowledged, progress.Failed)
	}
}

func renderLogs(logs chan logging.LoggerEntry, textView *tview.TextView, quit chan struct{}) {
	start := time.Now()
	for {
		select {
		case entry := <-logs:
			writer := textView.BatchWriter()
			prefix := logging.FormatTimestamp(start, entry.Timestamp)
			for _, message := range entry.Messages {
				fmt.Fprintf(writer, "[white]%s %s\n", prefix, tview.Escape(message))
				prefix = strings.Repeat(" ", len(prefix))
			}
			writer.Close()
		case <-quit:
			return
		}
	}
}

func renderConfig(simulation Simulation, writer io.Writer) {
	cfg := simulation.Config()
	fmt.Fprintf(writer,
		"ELECTION TIMEOUT: %d-%dms  HEARTBEAT TIMEOUT: %d-%dms  RETRY TIMEOUT: %dms  NETWORK LATENCY: %s  NETWORK SPLITS: %s",
		cfg.ElectionTimeoutMin, cfg.ElectionTimeoutMax, cfg.HeartbeatTimeoutMin, cfg.HeartbeatTimeoutMax,
		cfg.RetryTimeout, simulation.NetworkLatency(), splitsToString(simulation.NetworkSplits()))
}

func splitsToString(splits [][]raft_state.NodeId) string {
	tokens := make([]string, 0, len(splits))
	for _, split := range splits {
		ids := make([]string, len(split))
		for i, nodeId := range split {
			ids[i] = fmt.Sprintf("%d", nodeId)
		}
		tokens = append(tokens, strings.Join(ids, ","))
	}
	return strings.Join(tokens, " ")
}

// logEntriesToString marks the last committed entry with '*'
func logEntriesToString(entries []raft_state.LogEntry, commitIndex raft_state.LogIndex) string {
	var builder strings.Builder
	for idx, entry := range entries {
		fmt.Fprintf(&builder, "[I:%d T:%d C:'%s']", idx, entry.Term, entry.Command)
		if raft_state.LogIndex(idx) == commitIndex {
			builder.WriteString("*")
		}
	}
	return builder.String()
}
