package raft_commands

import (
	"fmt"

	"github.com/mblichar/raft-sim/src/raft_state"
)

// AppendEntriesCommand is sent by leader to replicate a log entry, also used as heartbeat
type AppendEntriesCommand struct {
	// Leader's term
	Term raft_state.Term
	// Leader's id
	LeaderId raft_state.NodeId
	// Index of log entry immediately preceding the new one
	PrevLogIndex raft_state.LogIndex
	// Term of PrevLogIndex entry
	PrevLogTerm raft_state.Term
	// Log entry to store (nil for heartbeat)
	Entry *raft_state.LogEntry
	// Leader's commit index
	LeaderCommitIndex raft_state.LogIndex
}

func (*AppendEntriesCommand) MessageType() MessageType {
	return AppendEntries
}

func (command *AppendEntriesCommand) String() string {
	entry := "heartbeat"
	if command.Entry != nil {
		entry = command.Entry.String()
	}

	return fmt.Sprintf("AppendEntries(Term: %d LeaderId: %d PrevLogIndex: %d PrevLogTerm: %d Entry: %s Commit: %d)",
		command.Term, command.LeaderId, command.PrevLogIndex, command.PrevLogTerm, entry, command.LeaderCommitIndex)
}

type AppendEntriesResult struct {
	// Id of responding follower
	FollowerId raft_state.NodeId
	// currentTerm of given follower, for leader to update itself
	Term raft_state.Term
	// boolean indicating whether entry matched follower's log
	Success bool
	// Last index of follower's log matching the leader
	LastLogIndex raft_state.LogIndex
	// Follower's commit index
	CommitIndex raft_state.LogIndex
}

func (*AppendEntriesResult) MessageType() MessageType {
	return AppendEntriesResponse
}

func (result *AppendEntriesResult) String() string {
	return fmt.Sprintf("AppendEntriesResult(FollowerId: %d Term: %d Success: %t LastLogIndex: %d Commit: %d)",
		result.FollowerId, result.Term, result.Success, result.LastLogIndex, result.CommitIndex)
}
