package node

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/mblichar/raft-sim/src/logging"
	"github.com/mblichar/raft-sim/src/quorum"
	"github.com/mblichar/raft-sim/src/raft_commands"
	"github.com/mblichar/raft-sim/src/raft_log"
	"github.com/mblichar/raft-sim/src/raft_networking"
	"github.com/mblichar/raft-sim/src/raft_state"
	"github.com/mblichar/raft-sim/src/timer"
)

type Options struct {
	NodeId   raft_state.NodeId
	NbServer int

	ElectionTimeoutMin  time.Duration
	ElectionTimeoutMax  time.Duration
	HeartbeatTimeoutMin time.Duration
	HeartbeatTimeoutMax time.Duration

	Transport raft_networking.Transport
	Clock     timer.Clock
	Random    *rand.Rand
	Logger    *logging.Logger
	// StatusSink receives a snapshot on every STATUS order, optional
	StatusSink func(raft_state.NodeStatus)
	// CommitSink receives every entry committed by the node in log order, optional
	CommitSink func(raft_state.LogIndex, raft_state.LogEntry)
	// Drop uncommitted entries on RECOVERY. Entries acknowledged to a leader may already be committed by
	// it, so this can lose committed entries and is only meant to replay such scenarios.
	TruncateOnRecovery bool
}

// Node is a single raft server. It is driven by Tick and is not safe for concurrent use.
type Node struct {
	nodeId   raft_state.NodeId
	nbServer int

	role        raft_state.NodeRole
	currentTerm raft_state.Term
	votedFor    raft_state.NodeId
	leaderId    raft_state.NodeId
	crashed     bool
	speed       int

	log *raft_log.Log
	// voters who granted their vote in current election, candidate included
	votes map[raft_state.NodeId]bool
	// leader only
	cursors        map[raft_state.NodeId]*raft_state.ReplicationCursor
	pendingCommits *quorum.Tracker

	electionTimeout  *timer.Timeout
	heartbeatTimeout *timer.Timeout

	truncateOnRecovery bool

	transport  raft_networking.Transport
	logger     *logging.Logger
	statusSink func(raft_state.NodeStatus)
	commitSink func(raft_state.LogIndex, raft_state.LogEntry)
}

func CreateNode(options Options) *Node {
	clock := options.Clock
	if clock == nil {
		clock = timer.RealClock{}
	}
	random := options.Random
	if random == nil {
		random = rand.New(rand.NewSource(int64(options.NodeId)))
	}

	return &Node{
		nodeId:         options.NodeId,
		nbServer:       options.NbServer,
		role:           raft_state.Follower,
		votedFor:       raft_state.NilVotedFor,
		leaderId:       options.NodeId,
		speed:          raft_commands.SpeedHigh,
		log:            raft_log.New(),
		pendingCommits: quorum.New(options.NbServer),
		electionTimeout: timer.NewTimeout("election", options.ElectionTimeoutMin, options.ElectionTimeoutMax,
			clock, random),
		heartbeatTimeout: timer.NewTimeout("heartbeat", options.HeartbeatTimeoutMin, options.HeartbeatTimeoutMax,
			clock, random),
		truncateOnRecovery: options.TruncateOnRecovery,
		transport:          options.Transport,
		logger:             options.Logger,
		statusSink:         options.StatusSink,
		commitSink:         options.CommitSink,
	}
}

func (node *Node) Id() raft_state.NodeId {
	return node.nodeId
}

// Tick performs one step of the node: at most one incoming message or one timeout is handled
func (node *Node) Tick() {
	// operator orders are served first, even by crashed nodes
	if envelope, ok := node.transport.Probe(raft_networking.AnySource, raft_commands.Control); ok {
		if message, err := node.transport.Receive(envelope.Source, envelope.Tag); err == nil {
			node.handleControlCommand(message.(*raft_commands.ControlCommand))
		}
		return
	}

	if node.crashed {
		node.discardMessages()
		return
	}

	if node.role == raft_state.Leader {
		if node.heartbeatTimeout.Expired() {
			node.sendAppendEntries()
			return
		}
	} else if node.electionTimeout.Expired() {
		node.logger.Infof("election timeout expired")
		node.startElection()
		return
	}

	envelope, ok := node.transport.Probe(raft_networking.AnySource, raft_networking.AnyTag)
	if !ok {
		return
	}

	message, err := node.transport.Receive(envelope.Source, envelope.Tag)
	if err != nil {
		node.logger.Warnf("receive from %d failed: %v", envelope.Source, err)
		return
	}

	node.handleMessage(envelope.Source, message)
}

// PollDelay is the extra delay the driver waits between two ticks at the current speed level
func (node *Node) PollDelay() time.Duration {
	if node.speed <= raft_commands.SpeedHigh {
		return 0
	}
	return time.Duration(20*(node.speed/3)) * time.Millisecond
}

func (node *Node) Status() raft_state.NodeStatus {
	status := raft_state.NodeStatus{
		NodeId:      node.nodeId,
		NbServer:    node.nbServer,
		Role:        node.role,
		Term:        node.currentTerm,
		VotedFor:    node.votedFor,
		LeaderId:    node.leaderId,
		Crashed:     node.crashed,
		Speed:       node.speed,
		CommitIndex: node.log.CommitIndex(),
		LastIndex:   node.log.LastIndex(),
		Log:         node.log.Entries(),
	}

	if node.role == raft_state.Leader {
		status.Cursors = make(map[raft_state.NodeId]raft_state.ReplicationCursor, len(node.cursors))
		for peer, cursor := range node.cursors {
			status.Cursors[peer] = *cursor
		}
		status.PendingCommits = node.pendingCommits.Pending()
	}

	return status
}

func (node *Node) handleMessage(source raft_state.NodeId, message raft_commands.Message) {
	if term, ok := messageTerm(message); ok && term > node.currentTerm {
		node.logger.Infof("discovered term %d in %s from %d", term, message.MessageType(), source)
		node.stepDown(term)
	}

	node.commandHandler().handleCommand(node, source, message)
}

func (node *Node) commandHandler() commandHandler {
	switch node.role {
	case raft_state.Leader:
		return &leaderCommandHandler{}
	case raft_state.Candidate:
		return &candidateCommandHandler{}
	default:
		return &followerCommandHandler{}
	}
}

// stepDown adopts a newer term, node votes again in it
func (node *Node) stepDown(term raft_state.Term) {
	node.currentTerm = term
	node.votedFor = raft_state.NilVotedFor
	if node.role != raft_state.Follower {
		node.becomeFollower()
	}
}

func (node *Node) becomeFollower() {
	if node.role != raft_state.Follower {
		node.logger.Infof("%s -> %s in term %d", node.role, raft_state.Follower, node.currentTerm)
	}

	node.role = raft_state.Follower
	node.votes = nil
	node.cursors = nil
	node.pendingCommits.Reset()
	node.electionTimeout.Reset()
}

func (node *Node) discardMessages() {
	for {
		envelope, ok := node.transport.Probe(raft_networking.AnySource, raft_networking.AnyTag)
		if !ok || envelope.Tag == raft_commands.Control {
			return
		}

		if _, err := node.transport.Receive(envelope.Source, envelope.Tag); err != nil {
			return
		}
	}
}

// truncateLog drops uncommitted entries starting at index
func (node *Node) truncateLog(index raft_state.LogIndex) {
	if index > node.log.LastIndex() {
		return
	}

	if err := node.log.TruncateFrom(index); err != nil {
		node.logger.Warnf("cannot truncate log from %d: %v", index, err)
		return
	}
	node.logger.Debugf("log truncated from %d, last index is %d", index, node.log.LastIndex())
}

// commitNext commits the entry following the commit index and hands it to the commit sink
func (node *Node) commitNext() (raft_state.LogEntry, bool) {
	if !node.log.CommitNext() {
		return raft_state.LogEntry{}, false
	}

	index := node.log.CommitIndex()
	entry, err := node.log.EntryAt(index)
	if err != nil {
		node.logger.Warnf("committed entry %d is missing: %v", index, err)
		return raft_state.LogEntry{}, false
	}
	if node.commitSink != nil {
		node.commitSink(index, entry)
	}
	return entry, true
}

func (node *Node) peers() []raft_state.NodeId {
	peers := make([]raft_state.NodeId, 0, node.nbServer-1)
	for id := raft_state.NodeId(1); int(id) <= node.nbServer; id++ {
		if id != node.nodeId {
			peers = append(peers, id)
		}
	}
	return peers
}

func (node *Node) send(destination raft_state.NodeId, message raft_commands.Message) {
	node.logger.Debugf("-> %d %s", destination, message)
	node.transport.Send(destination, message)
}

func (node *Node) statusLines() []string {
	status := node.Status()
	lines := []string{
		fmt.Sprintf("role: %s, term: %d, voted for: %d, leader: %d, crashed: %t, speed: %d",
			status.Role, status.Term, status.VotedFor, status.LeaderId, status.Crashed, status.Speed),
		fmt.Sprintf("log depth: %s", status.LogDepth()),
	}
	for idx, entry := range status.Log {
		lines = append(lines, fmt.Sprintf("  %d %s", idx, entry))
	}
	for _, peer := range node.peers() {
		if cursor, ok := status.Cursors[peer]; ok {
			lines = append(lines, fmt.Sprintf("  node %d next: %d commit: %d", peer, cursor.NextIndex, cursor.CommitIndex))
		}
	}
	if len(status.PendingCommits) > 0 {
		lines = append(lines, fmt.Sprintf("  pending commits: %v", status.PendingCommits))
	}
	return lines
}

func messageTerm(message raft_commands.Message) (raft_state.Term, bool) {
	switch m := message.(type) {
	case *raft_commands.AppendEntriesCommand:
		return m.Term, true
	case *raft_commands.AppendEntriesResult:
		return m.Term, true
	case *raft_commands.RequestVoteCommand:
		return m.Term, true
	case *raft_commands.RequestVoteResult:
		return m.Term, true
	default:
		return 0, false
	}
}
