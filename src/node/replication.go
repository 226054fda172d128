package node

import (
	"github.com/mblichar/raft-sim/src/raft_commands"
	"github.com/mblichar/raft-sim/src/raft_state"
)

// sendAppendEntries sends every peer the entry at its next index, or an empty heartbeat when the peer
// is up to date
func (node *Node) sendAppendEntries() {
	node.heartbeatTimeout.Reset()

	for _, peer := range node.peers() {
		cursor := node.cursors[peer]
		if cursor.NextIndex > node.log.LastIndex()+1 {
			cursor.NextIndex = node.log.LastIndex() + 1
		}

		prevLogIndex := cursor.NextIndex - 1
		command := &raft_commands.AppendEntriesCommand{
			Term:              node.currentTerm,
			LeaderId:          node.nodeId,
			PrevLogIndex:      prevLogIndex,
			PrevLogTerm:       node.log.TermAt(prevLogIndex),
			LeaderCommitIndex: node.log.CommitIndex(),
		}
		if entry, err := node.log.EntryAt(cursor.NextIndex); err == nil {
			command.Entry = &entry
		}

		node.send(peer, command)
	}
}

func (node *Node) handleAppendEntries(command *raft_commands.AppendEntriesCommand) {
	result := &raft_commands.AppendEntriesResult{
		FollowerId:   node.nodeId,
		Term:         node.currentTerm,
		LastLogIndex: node.log.LastIndex(),
		CommitIndex:  node.log.CommitIndex(),
	}

	if command.Term < node.currentTerm {
		node.logger.Debugf("rejecting append entries of %d, stale term %d", command.LeaderId, command.Term)
		node.send(command.LeaderId, result)
		return
	}

	// a leader which committed less than this node catches up from the rejection
	if node.log.CommitIndex() > command.LeaderCommitIndex {
		node.logger.Debugf("rejecting append entries of %d, leader commit %d below own %d",
			command.LeaderId, command.LeaderCommitIndex, node.log.CommitIndex())
		node.send(command.LeaderId, result)
		return
	}

	if node.leaderId != command.LeaderId {
		node.logger.Infof("following %d in term %d", command.LeaderId, command.Term)
	}
	node.leaderId = command.LeaderId
	if node.role != raft_state.Follower {
		node.becomeFollower()
	}
	node.electionTimeout.Reset()

	if command.PrevLogIndex > node.log.LastIndex() {
		node.send(command.LeaderId, result)
		return
	}

	if command.PrevLogIndex != raft_state.NoIndex && node.log.TermAt(command.PrevLogIndex) != command.PrevLogTerm {
		node.truncateLog(command.PrevLogIndex)
		result.LastLogIndex = node.log.LastIndex()
		node.send(command.LeaderId, result)
		return
	}

	matchIndex := command.PrevLogIndex
	if next := command.PrevLogIndex + 1; next <= node.log.LastIndex() {
		if command.Entry == nil || node.log.TermAt(next) != command.Entry.Term {
			node.truncateLog(next)
		}
	}
	if command.Entry != nil {
		entry := command.Entry
		if index, appended := node.log.Append(entry.Term, entry.ClientId, entry.RequestId, entry.Command); appended {
			node.logger.Debugf("appended %s at %d", entry, index)
		}
		matchIndex++
	}

	commitLimit := command.LeaderCommitIndex
	if matchIndex < commitLimit {
		commitLimit = matchIndex
	}
	for node.log.CommitIndex() < commitLimit {
		if _, ok := node.commitNext(); !ok {
			break
		}
		node.logger.Debugf("committed entry %d", node.log.CommitIndex())
	}

	result.Success = true
	result.LastLogIndex = matchIndex
	result.CommitIndex = node.log.CommitIndex()
	node.send(command.LeaderId, result)
}

func (node *Node) handleAppendEntriesResult(result *raft_commands.AppendEntriesResult) {
	cursor, ok := node.cursors[result.FollowerId]
	if !ok || result.Term < node.currentTerm {
		node.logger.Debugf("ignoring stale append entries result of %d", result.FollowerId)
		return
	}

	cursor.CommitIndex = result.CommitIndex

	// entries committed by a follower were committed under a previous leader and are in this log
	if result.CommitIndex > node.log.CommitIndex() {
		node.logger.Infof("catching up commit index %d of %d", result.CommitIndex, result.FollowerId)
		node.commitUpTo(result.CommitIndex)
	}

	if !result.Success {
		nextIndex := cursor.NextIndex - 1
		if result.LastLogIndex+1 < nextIndex {
			nextIndex = result.LastLogIndex + 1
		}
		if nextIndex < 0 {
			nextIndex = 0
		}
		cursor.NextIndex = nextIndex
		return
	}

	cursor.NextIndex = result.LastLogIndex + 1

	// follower stores every entry up to its last index, so it acknowledges all of them
	for index := node.log.CommitIndex() + 1; index <= result.LastLogIndex; index++ {
		node.pendingCommits.Ack(index, result.FollowerId)
	}
	node.advanceCommitIndex()
}

// advanceCommitIndex commits entries up to the last entry of the current term stored on a quorum and
// notifies their clients. Entries of previous terms are never committed by counting their replicas.
func (node *Node) advanceCommitIndex() {
	target := raft_state.NoIndex
	for _, index := range node.pendingCommits.Pending() {
		if index > target && node.pendingCommits.Reached(index) && node.log.TermAt(index) == node.currentTerm {
			target = index
		}
	}

	node.commitUpTo(target)
}

func (node *Node) commitUpTo(target raft_state.LogIndex) {
	for node.log.CommitIndex() < target {
		entry, ok := node.commitNext()
		if !ok {
			break
		}
		index := node.log.CommitIndex()
		node.pendingCommits.Forget(index)
		node.logger.Infof("committed %s at %d", entry, index)

		if node.isBarrier(entry) {
			continue
		}
		node.send(entry.ClientId, &raft_commands.ClientCommandResult{
			ServerId:   node.nodeId,
			RequestId:  entry.RequestId,
			Accepted:   true,
			LeaderHint: node.nodeId,
		})
	}
}

// isBarrier tells whether entry was appended by a leader on promotion rather than by a client
func (node *Node) isBarrier(entry raft_state.LogEntry) bool {
	return entry.ClientId >= 1 && int(entry.ClientId) <= node.nbServer
}
