package raft_state

import "fmt"

// NodeId identifies a process of the simulation: 0 is the operator console, 1..NbServer are raft
// nodes and every id above NbServer is a client
type NodeId int

// OperatorId is the id used by the operator console when sending control orders
const OperatorId NodeId = 0

// NilVotedFor indicates that given node has not voted in its current term
const NilVotedFor NodeId = -1

// Term is a logical election epoch
type Term int

// LogIndex is a zero-based position in a node's log
type LogIndex int

// NoIndex is the last index of an empty log
const NoIndex LogIndex = -1

// NoTerm is the last term of an empty log
const NoTerm Term = -1

type NodeRole int

const (
	Follower NodeRole = iota
	Candidate
	Leader
)

func (role NodeRole) String() string {
	switch role {
	case Leader:
		return "LEADER"
	case Follower:
		return "FOLLOWER"
	case Candidate:
		return "CANDIDATE"
	default:
		return "UNKNOWN"
	}
}

type LogEntry struct {
	// Term in which entry was received by leader
	Term Term
	// Id of the client which issued the command
	ClientId NodeId
	// Client side sequence number of the command
	RequestId uint32
	// Command for a state machine
	Command string
}

func (entry LogEntry) String() string {
	return fmt.Sprintf("[T:%d C:%d R:%d '%s']", entry.Term, entry.ClientId, entry.RequestId, entry.Command)
}

// ReplicationCursor is the leader's view of a single follower (reinitialized after election)
type ReplicationCursor struct {
	// Index of the next log entry to send to the follower
	NextIndex LogIndex
	// Commit index last reported by the follower
	CommitIndex LogIndex
}

// NodeStatus is a point in time snapshot of a node used by status dumps
type NodeStatus struct {
	NodeId      NodeId
	NbServer    int
	Role        NodeRole
	Term        Term
	VotedFor    NodeId
	LeaderId    NodeId
	Crashed     bool
	Speed       int
	CommitIndex LogIndex
	LastIndex   LogIndex
	Log         []LogEntry
	// Per peer replication cursors, only filled on leader
	Cursors map[NodeId]ReplicationCursor
	// Log indexes waiting for a quorum, only filled on leader
	PendingCommits []LogIndex
}

// LogDepth returns committed and total entries count the way status dumps print it
func (status NodeStatus) LogDepth() string {
	return fmt.Sprintf("%d/%d", int(status.CommitIndex)+1, int(status.LastIndex)+1)
}
