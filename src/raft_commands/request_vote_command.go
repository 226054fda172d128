package raft_commands

import (
	"fmt"

	"github.com/mblichar/raft-sim/src/raft_state"
)

type RequestVoteCommand struct {
	// Candidate's term
	Term raft_state.Term
	// Id of candidate requesting vote
	CandidateId raft_state.NodeId
	// Index of candidate's last log entry
	LastLogIndex raft_state.LogIndex
	// Term of candidate's last log entry
	LastLogTerm raft_state.Term
}

func (*RequestVoteCommand) MessageType() MessageType {
	return RequestVote
}

func (command *RequestVoteCommand) String() string {
	return fmt.Sprintf("RequestVote(Term: %d CandidateId: %d LastLogIndex: %d LastLogTerm: %d)",
		command.Term, command.CandidateId, command.LastLogIndex, command.LastLogTerm)
}

type RequestVoteResult struct {
	// Id of voting node
	VoterId raft_state.NodeId
	// currentTerm of the voter, for candidate to update itself
	Term raft_state.Term
	// boolean indicating whether vote was granted
	Granted bool
}

func (*RequestVoteResult) MessageType() MessageType {
	return RequestVoteResponse
}

func (result *RequestVoteResult) String() string {
	return fmt.Sprintf("RequestVoteResult(VoterId: %d Term: %d Granted: %t)", result.VoterId, result.Term, result.Granted)
}
