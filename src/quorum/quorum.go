// Package quorum counts acknowledgments of log entries replicated by a leader.
package quorum

import (
	"sort"

	"github.com/mblichar/raft-sim/src/raft_state"
)

type Tracker struct {
	nbServer int
	// acknowledging peers per pending log index, leader itself is not stored
	pending map[raft_state.LogIndex]map[raft_state.NodeId]struct{}
}

func New(nbServer int) *Tracker {
	return &Tracker{
		nbServer: nbServer,
		pending:  make(map[raft_state.LogIndex]map[raft_state.NodeId]struct{}),
	}
}

// Majority is the number of nodes (leader included) which have to store an entry
func (tracker *Tracker) Majority() int {
	return tracker.nbServer/2 + 1
}

// Track starts counting acknowledgments for index, leader counts as the first one
func (tracker *Tracker) Track(index raft_state.LogIndex) {
	if _, ok := tracker.pending[index]; !ok {
		tracker.pending[index] = make(map[raft_state.NodeId]struct{})
	}
}

func (tracker *Tracker) Tracked(index raft_state.LogIndex) bool {
	_, ok := tracker.pending[index]
	return ok
}

// Ack records that peer stores entry at index and returns number of nodes storing it. Repeated
// acknowledgments of the same peer are counted once.
func (tracker *Tracker) Ack(index raft_state.LogIndex, peer raft_state.NodeId) (int, bool) {
	peers, ok := tracker.pending[index]
	if !ok {
		return 0, false
	}

	peers[peer] = struct{}{}
	return len(peers) + 1, true
}

func (tracker *Tracker) Count(index raft_state.LogIndex) int {
	peers, ok := tracker.pending[index]
	if !ok {
		return 0
	}

	return len(peers) + 1
}

// Reached reports whether entry at index is stored on a strict majority of nodes
func (tracker *Tracker) Reached(index raft_state.LogIndex) bool {
	return tracker.Count(index) > tracker.nbServer/2
}

func (tracker *Tracker) Forget(index raft_state.LogIndex) {
	delete(tracker.pending, index)
}

func (tracker *Tracker) Reset() {
	tracker.pending = make(map[raft_state.LogIndex]map[raft_state.NodeId]struct{})
}

// Pending returns tracked indexes in increasing order
func (tracker *Tracker) Pending() []raft_state.LogIndex {
	indexes := make([]raft_state.LogIndex, 0, len(tracker.pending))
	for index := range tracker.pending {
		indexes = append(indexes, index)
	}

	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })
	return indexes
}
