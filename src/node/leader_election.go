package node

import (
	"github.com/mblichar/raft-sim/src/raft_commands"
	"github.com/mblichar/raft-sim/src/raft_state"
)

func (node *Node) startElection() {
	node.role = raft_state.Candidate
	node.currentTerm++
	node.votedFor = node.nodeId
	node.votes = map[raft_state.NodeId]bool{node.nodeId: true}
	node.cursors = nil
	node.pendingCommits.Reset()
	node.electionTimeout.Reset()

	node.logger.Infof("starting election for term %d", node.currentTerm)

	command := &raft_commands.RequestVoteCommand{
		Term:         node.currentTerm,
		CandidateId:  node.nodeId,
		LastLogIndex: node.log.LastIndex(),
		LastLogTerm:  node.log.LastTerm(),
	}
	for _, peer := range node.peers() {
		node.send(peer, command)
	}

	// single node cluster
	if len(node.votes) >= node.pendingCommits.Majority() {
		node.becomeLeader()
	}
}

func (node *Node) handleRequestVote(command *raft_commands.RequestVoteCommand) {
	result := &raft_commands.RequestVoteResult{VoterId: node.nodeId, Term: node.currentTerm}

	if command.Term < node.currentTerm {
		node.logger.Debugf("rejecting vote for %d, stale term %d", command.CandidateId, command.Term)
		node.send(command.CandidateId, result)
		return
	}

	candidateUpToDate := node.isUpToDate(command.LastLogTerm, command.LastLogIndex)
	canVote := node.votedFor == raft_state.NilVotedFor || node.votedFor == command.CandidateId

	if candidateUpToDate && canVote {
		node.votedFor = command.CandidateId
		node.electionTimeout.Reset()
		result.Granted = true
		node.logger.Infof("voted for %d in term %d", command.CandidateId, node.currentTerm)
		node.send(command.CandidateId, result)
		return
	}

	node.logger.Debugf("rejecting vote for %d (up to date: %t, voted for: %d)",
		command.CandidateId, candidateUpToDate, node.votedFor)
	node.send(command.CandidateId, result)

	// a more complete log takes over the election without waiting for own timeout
	if !candidateUpToDate && node.role != raft_state.Leader {
		node.startElection()
	}
}

// isUpToDate tells whether a log ending with (lastTerm, lastIndex) is at least as complete as local one
func (node *Node) isUpToDate(lastTerm raft_state.Term, lastIndex raft_state.LogIndex) bool {
	if lastTerm != node.log.LastTerm() {
		return lastTerm > node.log.LastTerm()
	}
	return lastIndex >= node.log.LastIndex()
}

func (node *Node) handleVote(result *raft_commands.RequestVoteResult) {
	if result.Term < node.currentTerm {
		node.logger.Debugf("ignoring vote of %d from term %d", result.VoterId, result.Term)
		return
	}

	if !result.Granted {
		node.logger.Infof("vote rejected by %d, back to follower", result.VoterId)
		node.becomeFollower()
		return
	}

	node.votes[result.VoterId] = true
	node.logger.Debugf("vote granted by %d (%d/%d)", result.VoterId, len(node.votes), node.nbServer)

	if len(node.votes) >= node.pendingCommits.Majority() {
		node.becomeLeader()
	}
}

func (node *Node) becomeLeader() {
	node.role = raft_state.Leader
	node.leaderId = node.nodeId
	node.votes = nil
	node.logger.Infof("became leader of term %d", node.currentTerm)

	node.cursors = make(map[raft_state.NodeId]*raft_state.ReplicationCursor, node.nbServer-1)
	for _, peer := range node.peers() {
		node.cursors[peer] = &raft_state.ReplicationCursor{
			NextIndex:   node.log.LastIndex() + 1,
			CommitIndex: raft_state.NoIndex,
		}
	}

	// entries inherited from previous terms only commit together with an entry of the current term,
	// a barrier entry is appended so that they do not wait for the next client command
	node.pendingCommits.Reset()
	for index := node.log.CommitIndex() + 1; index <= node.log.LastIndex(); index++ {
		node.pendingCommits.Track(index)
	}
	if node.log.CommitIndex() < node.log.LastIndex() {
		index, _ := node.log.Append(node.currentTerm, node.nodeId, 0, "")
		node.pendingCommits.Track(index)
		node.logger.Debugf("appended barrier entry at %d", index)
	}
	node.advanceCommitIndex()

	node.sendAppendEntries()
}
