package cluster

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mblichar/raft-sim/src/logging"
	"github.com/mblichar/raft-sim/src/raft_state"
)

func entriesFileName(nodeId raft_state.NodeId) string {
	return fmt.Sprintf("entries_server%d.log", nodeId)
}

func createEntriesFile(dir string, nodeId raft_state.NodeId) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("entries dir %s: %w", dir, err)
	}
	file, err := os.Create(filepath.Join(dir, entriesFileName(nodeId)))
	if err != nil {
		return nil, fmt.Errorf("entries file of node %d: %w", nodeId, err)
	}
	return file, nil
}

// entriesWriter writes one line per committed entry
func entriesWriter(output io.Writer, logger *logging.Logger) func(raft_state.LogIndex, raft_state.LogEntry) {
	return func(index raft_state.LogIndex, entry raft_state.LogEntry) {
		_, err := fmt.Fprintf(output, "index: %d term: %d client_id: %d request_id: %d command: '%s'\n",
			index, entry.Term, entry.ClientId, entry.RequestId, entry.Command)
		if err != nil {
			logger.Warnf("cannot record committed entry %d: %v", index, err)
		}
	}
}

// Close releases the committed entries files of the nodes
func (cluster *Cluster) Close() error {
	var errs []error
	for _, file := range cluster.entriesFiles {
		if err := file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	cluster.entriesFiles = nil
	return errors.Join(errs...)
}
