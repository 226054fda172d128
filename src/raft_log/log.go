// Package raft_log implements the append-only replicated log kept by every node.
//
// Entries are tagged with the term of the leader which created them. The log tracks the index of the
// highest entry known to be stored on a majority of nodes (commit index); entries up to and including
// the commit index are never removed nor modified.
package raft_log

import (
	"errors"
	"fmt"

	"github.com/mblichar/raft-sim/src/raft_state"
)

var (
	// ErrOutOfRange is returned when accessing an index outside of [0, LastIndex()]
	ErrOutOfRange = errors.New("raft_log: index out of range")

	// ErrTruncateCommitted is returned when truncation would remove committed entries
	ErrTruncateCommitted = errors.New("raft_log: truncating committed entries")
)

type Log struct {
	entries     []raft_state.LogEntry
	commitIndex raft_state.LogIndex
}

func New() *Log {
	return &Log{commitIndex: raft_state.NoIndex}
}

// Append adds an entry at the end of the log and returns its index. Re-delivered entries (same term,
// client, request and command) are not appended again, the index of the existing copy is returned
// together with false.
func (log *Log) Append(
	term raft_state.Term,
	clientId raft_state.NodeId,
	requestId uint32,
	command string,
) (raft_state.LogIndex, bool) {
	entry := raft_state.LogEntry{Term: term, ClientId: clientId, RequestId: requestId, Command: command}

	for i := len(log.entries) - 1; i >= 0; i-- {
		if log.entries[i] == entry {
			return raft_state.LogIndex(i), false
		}

		// entries are naturally sorted by term, nothing older can match
		if log.entries[i].Term < term {
			break
		}
	}

	log.entries = append(log.entries, entry)
	return log.LastIndex(), true
}

// Find returns index of the entry created for given client request
func (log *Log) Find(clientId raft_state.NodeId, requestId uint32) (raft_state.LogIndex, bool) {
	for i := len(log.entries) - 1; i >= 0; i-- {
		if log.entries[i].ClientId == clientId && log.entries[i].RequestId == requestId {
			return raft_state.LogIndex(i), true
		}
	}

	return raft_state.NoIndex, false
}

func (log *Log) LastIndex() raft_state.LogIndex {
	return raft_state.LogIndex(len(log.entries) - 1)
}

func (log *Log) LastTerm() raft_state.Term {
	if len(log.entries) == 0 {
		return raft_state.NoTerm
	}

	return log.entries[len(log.entries)-1].Term
}

func (log *Log) CommitIndex() raft_state.LogIndex {
	return log.commitIndex
}

func (log *Log) Len() int {
	return len(log.entries)
}

// TruncateFrom removes all entries at or after index
func (log *Log) TruncateFrom(index raft_state.LogIndex) error {
	if index <= log.commitIndex {
		return fmt.Errorf("truncate from %d with commit index %d: %w", index, log.commitIndex, ErrTruncateCommitted)
	}

	if int(index) >= len(log.entries) {
		return nil
	}

	log.entries = log.entries[:index]
	return nil
}

// CommitNext advances commit index by one, returns false when there is nothing left to commit
func (log *Log) CommitNext() bool {
	if log.commitIndex >= log.LastIndex() {
		return false
	}

	log.commitIndex++
	return true
}

func (log *Log) EntryAt(index raft_state.LogIndex) (raft_state.LogEntry, error) {
	if index < 0 || int(index) >= len(log.entries) {
		return raft_state.LogEntry{}, fmt.Errorf("entry %d of %d: %w", index, len(log.entries), ErrOutOfRange)
	}

	return log.entries[index], nil
}

// TermAt returns term of the entry at index, NoTerm for NoIndex. Any other index outside of the log is
// a programming error.
func (log *Log) TermAt(index raft_state.LogIndex) raft_state.Term {
	if index == raft_state.NoIndex {
		return raft_state.NoTerm
	}

	entry, err := log.EntryAt(index)
	if err != nil {
		panic(any(err))
	}

	return entry.Term
}

// Entries returns a copy of all entries
func (log *Log) Entries() []raft_state.LogEntry {
	entries := make([]raft_state.LogEntry, len(log.entries))
	copy(entries, log.entries)
	return entries
}
