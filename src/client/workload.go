package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mblichar/raft-sim/src/raft_commands"
	"github.com/mblichar/raft-sim/src/raft_state"
)

// DefaultWorkloadSize is the number of commands of a generated workload
const DefaultWorkloadSize = 5

// ErrInvalidWorkload is returned for workloads containing commands that cannot be sent
var ErrInvalidWorkload = errors.New("client: invalid workload")

// DefaultWorkload generates a workload distinct for every client
func DefaultWorkload(clientId raft_state.NodeId, size int) []string {
	commands := make([]string, size)
	for i := range commands {
		commands[i] = fmt.Sprintf("set c%d-%d %d", clientId, i, i)
	}
	return commands
}

// ReadWorkload reads one command per non-empty line
func ReadWorkload(reader io.Reader) ([]string, error) {
	var commands []string
	scanner := bufio.NewScanner(reader)
	for lineNumber := 1; scanner.Scan(); lineNumber++ {
		command := strings.TrimSpace(scanner.Text())
		if command == "" {
			continue
		}
		if len(command) > raft_commands.MaxCommandLength {
			return nil, fmt.Errorf("line %d longer than %d bytes: %w", lineNumber, raft_commands.MaxCommandLength,
				ErrInvalidWorkload)
		}
		commands = append(commands, command)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return commands, nil
}

func LoadWorkload(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	commands, err := ReadWorkload(file)
	if err != nil {
		return nil, fmt.Errorf("workload %s: %w", path, err)
	}
	return commands, nil
}
