package node

import (
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/mblichar/raft-sim/src/raft_commands"
	"github.com/mblichar/raft-sim/src/raft_state"
)

func TestAppendEntriesHandling(t *testing.T) {
	createFollower := func(term raft_state.Term, entries ...raft_state.LogEntry) *testNode {
		node := createTestNode(2, 3)
		node.currentTerm = term
		appendEntries(node, entries...)
		return node
	}

	handle := func(node *testNode, command *raft_commands.AppendEntriesCommand) *raft_commands.AppendEntriesResult {
		node.transport.deliver(command.LeaderId, command)
		node.Tick()

		sent := node.transport.takeSent(command.LeaderId)
		if len(sent) != 1 {
			panic(any("expected a single append entries result"))
		}
		return sent[0].(*raft_commands.AppendEntriesResult)
	}

	assertResult := func(t *testing.T, result *raft_commands.AppendEntriesResult, expectedSuccess bool, expectedTerm raft_state.Term, expectedLastIndex raft_state.LogIndex) {
		t.Helper()
		if result.Success != expectedSuccess {
			t.Errorf("expected success to be %t, got %t", expectedSuccess, result.Success)
		}
		if result.Term != expectedTerm {
			t.Errorf("expected result term to be %d, got %d", expectedTerm, result.Term)
		}
		if result.LastLogIndex != expectedLastIndex {
			t.Errorf("expected last log index to be %d, got %d", expectedLastIndex, result.LastLogIndex)
		}
	}

	entryA := raft_state.LogEntry{Term: 1, ClientId: 4, RequestId: 1, Command: "set a 1"}
	entryB := raft_state.LogEntry{Term: 1, ClientId: 4, RequestId: 2, Command: "set b 2"}
	entryC := raft_state.LogEntry{Term: 1, ClientId: 4, RequestId: 3, Command: "set c 3"}

	t.Run("returns success: false when command term < current term", func(t *testing.T) {
		node := createFollower(2)

		result := handle(node, &raft_commands.AppendEntriesCommand{Term: 1, LeaderId: 1, PrevLogIndex: -1, PrevLogTerm: -1, LeaderCommitIndex: -1})

		assertResult(t, result, false, 2, -1)
		if node.leaderId != 2 {
			t.Errorf("expected stale leader to be ignored, got leader %d", node.leaderId)
		}
	})

	t.Run("returns success: false when leader committed less than the node", func(t *testing.T) {
		node := createFollower(1, entryA)
		commitUpTo(node, 0)

		result := handle(node, &raft_commands.AppendEntriesCommand{Term: 1, LeaderId: 1, PrevLogIndex: 0, PrevLogTerm: 1, LeaderCommitIndex: -1})

		assertResult(t, result, false, 1, 0)
		if result.CommitIndex != 0 {
			t.Errorf("expected commit index 0 to be reported, got %d", result.CommitIndex)
		}
		if node.leaderId != 2 {
			t.Errorf("expected lagging leader not to be followed, got leader %d", node.leaderId)
		}
	})

	t.Run("returns success: false when no log entry at prev log index", func(t *testing.T) {
		node := createFollower(1, entryA)

		result := handle(node, &raft_commands.AppendEntriesCommand{Term: 1, LeaderId: 1, PrevLogIndex: 2, PrevLogTerm: 1, LeaderCommitIndex: -1})

		assertResult(t, result, false, 1, 0)
	})

	t.Run("returns success: false and drops conflicting suffix when prev log term differs", func(t *testing.T) {
		node := createFollower(1, entryA, entryB, entryC)

		result := handle(node, &raft_commands.AppendEntriesCommand{Term: 3, LeaderId: 1, PrevLogIndex: 1, PrevLogTerm: 2, LeaderCommitIndex: -1})

		assertResult(t, result, false, 3, 0)
		assertLogEntries(t, node, []raft_state.LogEntry{entryA})
	})

	t.Run("appends entry when prev entry matches", func(t *testing.T) {
		node := createFollower(1, entryA)
		entry := raft_state.LogEntry{Term: 2, ClientId: 4, RequestId: 2, Command: "set b 2"}

		result := handle(node, &raft_commands.AppendEntriesCommand{
			Term: 2, LeaderId: 1, PrevLogIndex: 0, PrevLogTerm: 1, Entry: &entry, LeaderCommitIndex: 0,
		})

		assertResult(t, result, true, 2, 1)
		assertLogEntries(t, node, []raft_state.LogEntry{entryA, entry})
		if node.leaderId != 1 || node.currentTerm != 2 {
			t.Errorf("expected to follow 1 in term 2, got %d in term %d", node.leaderId, node.currentTerm)
		}
	})

	t.Run("appends first entry to empty log", func(t *testing.T) {
		node := createFollower(0)

		result := handle(node, &raft_commands.AppendEntriesCommand{
			Term: 1, LeaderId: 1, PrevLogIndex: -1, PrevLogTerm: -1, Entry: &entryA, LeaderCommitIndex: -1,
		})

		assertResult(t, result, true, 1, 0)
		assertLogEntries(t, node, []raft_state.LogEntry{entryA})
	})

	t.Run("does not duplicate re-delivered entries", func(t *testing.T) {
		node := createFollower(1, entryA, entryB)

		result := handle(node, &raft_commands.AppendEntriesCommand{
			Term: 1, LeaderId: 1, PrevLogIndex: 0, PrevLogTerm: 1, Entry: &entryB, LeaderCommitIndex: -1,
		})

		assertResult(t, result, true, 1, 1)
		assertLogEntries(t, node, []raft_state.LogEntry{entryA, entryB})
	})

	t.Run("replaces conflicting entries", func(t *testing.T) {
		node := createFollower(1, entryA, entryB, entryC)
		entry := raft_state.LogEntry{Term: 2, ClientId: 5, RequestId: 1, Command: "set x 9"}

		result := handle(node, &raft_commands.AppendEntriesCommand{
			Term: 2, LeaderId: 1, PrevLogIndex: 0, PrevLogTerm: 1, Entry: &entry, LeaderCommitIndex: -1,
		})

		assertResult(t, result, true, 2, 1)
		assertLogEntries(t, node, []raft_state.LogEntry{entryA, entry})
	})

	t.Run("heartbeat drops entries the leader does not have", func(t *testing.T) {
		node := createFollower(1, entryA, entryB)

		result := handle(node, &raft_commands.AppendEntriesCommand{Term: 2, LeaderId: 1, PrevLogIndex: 0, PrevLogTerm: 1, LeaderCommitIndex: 0})

		assertResult(t, result, true, 2, 0)
		assertLogEntries(t, node, []raft_state.LogEntry{entryA})
	})

	t.Run("commits up to leader commit index bounded by matched entries", func(t *testing.T) {
		node := createFollower(1, entryA, entryB, entryC)

		result := handle(node, &raft_commands.AppendEntriesCommand{
			Term: 1, LeaderId: 1, PrevLogIndex: 0, PrevLogTerm: 1, Entry: &entryB, LeaderCommitIndex: 5,
		})

		assertResult(t, result, true, 1, 1)
		if node.log.CommitIndex() != 1 || result.CommitIndex != 1 {
			t.Errorf("expected commit index 1, got %d (reported %d)", node.log.CommitIndex(), result.CommitIndex)
		}
	})

	t.Run("hands committed entries to the commit sink once", func(t *testing.T) {
		node := createFollower(1, entryA, entryB, entryC)

		handle(node, &raft_commands.AppendEntriesCommand{
			Term: 1, LeaderId: 1, PrevLogIndex: 0, PrevLogTerm: 1, Entry: &entryB, LeaderCommitIndex: 1,
		})
		handle(node, &raft_commands.AppendEntriesCommand{
			Term: 1, LeaderId: 1, PrevLogIndex: 1, PrevLogTerm: 1, LeaderCommitIndex: 1,
		})

		if diff := deep.Equal(node.commits, []raft_state.LogIndex{0, 1}); diff != nil {
			t.Errorf("expected commits to match, got the following differences %s", diff)
		}
	})

	t.Run("never removes committed entries", func(t *testing.T) {
		node := createFollower(1, entryA, entryB)
		commitUpTo(node, 1)

		handle(node, &raft_commands.AppendEntriesCommand{Term: 2, LeaderId: 1, PrevLogIndex: 0, PrevLogTerm: 1, LeaderCommitIndex: 1})

		assertLogEntries(t, node, []raft_state.LogEntry{entryA, entryB})
	})

	t.Run("candidate returns to follower on append entries of current term", func(t *testing.T) {
		node := createTestNode(2, 3)
		node.clock.Advance(time.Second)
		node.Tick()
		node.transport.clearSent()

		result := handle(node, &raft_commands.AppendEntriesCommand{Term: 1, LeaderId: 3, PrevLogIndex: -1, PrevLogTerm: -1, LeaderCommitIndex: -1})

		assertResult(t, result, true, 1, -1)
		if node.role != raft_state.Follower || node.leaderId != 3 {
			t.Errorf("expected to follow 3, got %s following %d", node.role, node.leaderId)
		}
	})

	t.Run("heartbeat postpones election", func(t *testing.T) {
		node := createFollower(0)

		node.clock.Advance(400 * time.Millisecond)
		handle(node, &raft_commands.AppendEntriesCommand{Term: 1, LeaderId: 1, PrevLogIndex: -1, PrevLogTerm: -1, LeaderCommitIndex: -1})
		node.clock.Advance(400 * time.Millisecond)
		node.Tick()

		if node.role != raft_state.Follower {
			t.Errorf("expected to stay follower, got %s", node.role)
		}
	})
}

func TestReplication(t *testing.T) {
	command := &raft_commands.ClientCommand{ClientId: 4, RequestId: 1, Command: "set a 1"}
	entry := raft_state.LogEntry{Term: 1, ClientId: 4, RequestId: 1, Command: "set a 1"}
	accepted := &raft_commands.ClientCommandResult{ServerId: 1, RequestId: 1, Accepted: true, LeaderHint: 1}

	t.Run("appends client command and waits for a quorum", func(t *testing.T) {
		node := createLeader(t, 3)

		node.transport.deliver(4, command)
		node.Tick()

		assertLogEntries(t, node, []raft_state.LogEntry{entry})
		assertSent(t, node, 4)
		if node.log.CommitIndex() != -1 {
			t.Errorf("expected nothing to be committed, got %d", node.log.CommitIndex())
		}
	})

	t.Run("sends next entry on heartbeat timeout", func(t *testing.T) {
		node := createLeader(t, 3)
		node.transport.deliver(4, command)
		node.Tick()

		node.clock.Advance(200 * time.Millisecond)
		node.Tick()

		expected := &raft_commands.AppendEntriesCommand{
			Term: 1, LeaderId: 1, PrevLogIndex: -1, PrevLogTerm: -1, Entry: &entry, LeaderCommitIndex: -1,
		}
		assertSent(t, node, 2, expected)
		assertSent(t, node, 3, expected)
	})

	t.Run("commits on majority and answers the client", func(t *testing.T) {
		node := createLeader(t, 3)
		node.transport.deliver(4, command)
		node.Tick()

		node.transport.deliver(2, &raft_commands.AppendEntriesResult{FollowerId: 2, Term: 1, Success: true, LastLogIndex: 0, CommitIndex: -1})
		node.Tick()

		if node.log.CommitIndex() != 0 {
			t.Fatalf("expected entry to be committed, got commit index %d", node.log.CommitIndex())
		}
		assertSent(t, node, 4, accepted)
		if cursor := node.cursors[2]; cursor.NextIndex != 1 {
			t.Errorf("expected next index of 2 to be 1, got %d", cursor.NextIndex)
		}
		if len(node.pendingCommits.Pending()) != 0 {
			t.Errorf("expected no pending commits, got %v", node.pendingCommits.Pending())
		}
	})

	t.Run("commits entries in log order", func(t *testing.T) {
		node := createLeader(t, 5)
		node.transport.deliver(4, command)
		node.transport.deliver(4, &raft_commands.ClientCommand{ClientId: 4, RequestId: 2, Command: "set b 2"})
		node.Tick()
		node.Tick()

		node.transport.deliver(2, &raft_commands.AppendEntriesResult{FollowerId: 2, Term: 1, Success: true, LastLogIndex: 1, CommitIndex: -1})
		node.transport.deliver(3, &raft_commands.AppendEntriesResult{FollowerId: 3, Term: 1, Success: true, LastLogIndex: 1, CommitIndex: -1})
		node.Tick()
		node.Tick()

		if node.log.CommitIndex() != 1 {
			t.Fatalf("expected both entries to be committed, got commit index %d", node.log.CommitIndex())
		}
		assertSent(t, node, 4, accepted, &raft_commands.ClientCommandResult{ServerId: 1, RequestId: 2, Accepted: true, LeaderHint: 1})
	})

	t.Run("answers committed duplicate requests right away", func(t *testing.T) {
		node := createLeader(t, 3)
		node.transport.deliver(4, command)
		node.Tick()
		node.transport.deliver(2, &raft_commands.AppendEntriesResult{FollowerId: 2, Term: 1, Success: true, LastLogIndex: 0, CommitIndex: -1})
		node.Tick()
		node.transport.takeSent(4)

		node.transport.deliver(4, command)
		node.Tick()

		assertLogEntries(t, node, []raft_state.LogEntry{entry})
		assertSent(t, node, 4, accepted)
	})

	t.Run("ignores duplicate requests waiting for a quorum", func(t *testing.T) {
		node := createLeader(t, 3)
		node.transport.deliver(4, command)
		node.transport.deliver(4, command)
		node.Tick()
		node.Tick()

		assertLogEntries(t, node, []raft_state.LogEntry{entry})
		assertSent(t, node, 4)
	})

	t.Run("single node cluster commits alone", func(t *testing.T) {
		node := createLeader(t, 1)

		node.transport.deliver(2, &raft_commands.ClientCommand{ClientId: 2, RequestId: 7, Command: "set a 1"})
		node.Tick()

		if node.log.CommitIndex() != 0 {
			t.Fatalf("expected entry to be committed, got commit index %d", node.log.CommitIndex())
		}
		assertSent(t, node, 2, &raft_commands.ClientCommandResult{ServerId: 1, RequestId: 7, Accepted: true, LeaderHint: 1})
		if diff := deep.Equal(node.commits, []raft_state.LogIndex{0}); diff != nil {
			t.Errorf("expected commits to match, got the following differences %s", diff)
		}
	})

	t.Run("moves next index back on rejection", func(t *testing.T) {
		node := createLeader(t, 3)
		node.transport.deliver(4, command)
		node.transport.deliver(4, &raft_commands.ClientCommand{ClientId: 4, RequestId: 2, Command: "set b 2"})
		node.Tick()
		node.Tick()
		node.cursors[2].NextIndex = 2

		node.transport.deliver(2, &raft_commands.AppendEntriesResult{FollowerId: 2, Term: 1, Success: false, LastLogIndex: 1, CommitIndex: -1})
		node.Tick()
		if next := node.cursors[2].NextIndex; next != 1 {
			t.Fatalf("expected next index 1, got %d", next)
		}

		node.transport.deliver(2, &raft_commands.AppendEntriesResult{FollowerId: 2, Term: 1, Success: false, LastLogIndex: -1, CommitIndex: -1})
		node.Tick()
		if next := node.cursors[2].NextIndex; next != 0 {
			t.Fatalf("expected next index 0, got %d", next)
		}

		node.transport.deliver(2, &raft_commands.AppendEntriesResult{FollowerId: 2, Term: 1, Success: false, LastLogIndex: -1, CommitIndex: -1})
		node.Tick()
		if next := node.cursors[2].NextIndex; next != 0 {
			t.Fatalf("expected next index to stay 0, got %d", next)
		}
	})

	createSuccessor := func(t *testing.T) *testNode {
		node := createTestNode(1, 3)
		node.currentTerm = 1
		appendEntries(node, entry)

		node.clock.Advance(time.Second)
		node.Tick()
		node.transport.deliver(2, &raft_commands.RequestVoteResult{VoterId: 2, Term: 2, Granted: true})
		node.Tick()
		node.transport.clearSent()
		return node
	}

	t.Run("does not commit entries of previous terms by counting replicas", func(t *testing.T) {
		node := createSuccessor(t)

		node.transport.deliver(2, &raft_commands.AppendEntriesResult{FollowerId: 2, Term: 2, Success: true, LastLogIndex: 0, CommitIndex: -1})
		node.Tick()
		if node.log.CommitIndex() != -1 {
			t.Fatalf("expected inherited entry to wait, got commit index %d", node.log.CommitIndex())
		}

		node.transport.deliver(2, &raft_commands.AppendEntriesResult{FollowerId: 2, Term: 2, Success: true, LastLogIndex: 1, CommitIndex: -1})
		node.Tick()
		if node.log.CommitIndex() != 1 {
			t.Fatalf("expected inherited and barrier entries to be committed, got commit index %d", node.log.CommitIndex())
		}
		assertSent(t, node, 4, accepted)
		assertSent(t, node, 1)
	})

	t.Run("catches up commit index reported by a follower", func(t *testing.T) {
		node := createSuccessor(t)

		node.transport.deliver(3, &raft_commands.AppendEntriesResult{FollowerId: 3, Term: 2, Success: false, LastLogIndex: 0, CommitIndex: 0})
		node.Tick()

		if node.log.CommitIndex() != 0 {
			t.Fatalf("expected commit index 0, got %d", node.log.CommitIndex())
		}
		assertSent(t, node, 4, accepted)
		if cursor := node.cursors[3]; cursor.CommitIndex != 0 || cursor.NextIndex != 0 {
			t.Errorf("expected cursor of 3 to be {0 0}, got %+v", *cursor)
		}
	})

	t.Run("redirects clients to the known leader", func(t *testing.T) {
		node := createTestNode(2, 3)
		heartbeat := &raft_commands.AppendEntriesCommand{Term: 1, LeaderId: 3, PrevLogIndex: -1, PrevLogTerm: -1, LeaderCommitIndex: -1}
		node.transport.deliver(3, heartbeat)
		node.Tick()

		node.transport.deliver(4, command)
		node.Tick()

		assertSent(t, node, 4, &raft_commands.ClientCommandResult{ServerId: 2, RequestId: 1, Accepted: false, LeaderHint: 3})
		assertLogEntries(t, node, []raft_state.LogEntry{})
	})
}
