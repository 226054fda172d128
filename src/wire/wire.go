// Package wire encodes messages exchanged between processes to bytes and back.
//
// Every frame starts with the message type on one byte followed by the message fields in declaration
// order. Integers are fixed-width little-endian (int64 for ids, terms and indexes, uint32 for request
// ids), booleans take one byte and strings are prefixed by their uint16 length and bounded by
// raft_commands.MaxCommandLength.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/mblichar/raft-sim/src/raft_commands"
	"github.com/mblichar/raft-sim/src/raft_state"
)

var (
	// ErrCorrupted is returned when a frame is truncated or malformed
	ErrCorrupted = errors.New("wire: corrupted frame")

	// ErrCommandTooLong is returned when a command exceeds raft_commands.MaxCommandLength
	ErrCommandTooLong = errors.New("wire: command too long")

	// ErrUnknownType is returned for frames or messages of unknown type
	ErrUnknownType = errors.New("wire: unknown message type")
)

// Encode serializes message into a frame
func Encode(message raft_commands.Message) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(message.MessageType()))

	switch m := message.(type) {
	case *raft_commands.AppendEntriesCommand:
		writeInts(&buf, int64(m.Term), int64(m.LeaderId), int64(m.PrevLogIndex), int64(m.PrevLogTerm),
			int64(m.LeaderCommitIndex))
		writeBool(&buf, m.Entry != nil)
		if m.Entry != nil {
			if err := writeEntry(&buf, m.Entry); err != nil {
				return nil, err
			}
		}
	case *raft_commands.AppendEntriesResult:
		writeInts(&buf, int64(m.FollowerId), int64(m.Term))
		writeBool(&buf, m.Success)
		writeInts(&buf, int64(m.LastLogIndex), int64(m.CommitIndex))
	case *raft_commands.RequestVoteCommand:
		writeInts(&buf, int64(m.Term), int64(m.CandidateId), int64(m.LastLogIndex), int64(m.LastLogTerm))
	case *raft_commands.RequestVoteResult:
		writeInts(&buf, int64(m.VoterId), int64(m.Term))
		writeBool(&buf, m.Granted)
	case *raft_commands.ClientCommand:
		writeInts(&buf, int64(m.ClientId))
		binary.Write(&buf, binary.LittleEndian, m.RequestId)
		if err := writeString(&buf, m.Command); err != nil {
			return nil, err
		}
	case *raft_commands.ClientCommandResult:
		writeInts(&buf, int64(m.ServerId))
		binary.Write(&buf, binary.LittleEndian, m.RequestId)
		writeBool(&buf, m.Accepted)
		writeInts(&buf, int64(m.LeaderHint))
	case *raft_commands.ControlCommand:
		writeInts(&buf, int64(m.Kind), int64(m.Target), int64(m.Parameter))
	default:
		return nil, fmt.Errorf("encode %T: %w", message, ErrUnknownType)
	}

	return buf.Bytes(), nil
}

// Decode deserializes a frame produced by Encode
func Decode(data []byte) (raft_commands.Message, error) {
	if len(data) < 1 {
		return nil, ErrCorrupted
	}

	r := &reader{data: bytes.NewReader(data[1:])}
	var message raft_commands.Message

	switch messageType := raft_commands.MessageType(data[0]); messageType {
	case raft_commands.AppendEntries:
		m := &raft_commands.AppendEntriesCommand{
			Term:              raft_state.Term(r.int()),
			LeaderId:          raft_state.NodeId(r.int()),
			PrevLogIndex:      raft_state.LogIndex(r.int()),
			PrevLogTerm:       raft_state.Term(r.int()),
			LeaderCommitIndex: raft_state.LogIndex(r.int()),
		}
		if r.bool() {
			m.Entry = r.entry()
		}
		message = m
	case raft_commands.AppendEntriesResponse:
		message = &raft_commands.AppendEntriesResult{
			FollowerId:   raft_state.NodeId(r.int()),
			Term:         raft_state.Term(r.int()),
			Success:      r.bool(),
			LastLogIndex: raft_state.LogIndex(r.int()),
			CommitIndex:  raft_state.LogIndex(r.int()),
		}
	case raft_commands.RequestVote:
		message = &raft_commands.RequestVoteCommand{
			Term:         raft_state.Term(r.int()),
			CandidateId:  raft_state.NodeId(r.int()),
			LastLogIndex: raft_state.LogIndex(r.int()),
			LastLogTerm:  raft_state.Term(r.int()),
		}
	case raft_commands.RequestVoteResponse:
		message = &raft_commands.RequestVoteResult{
			VoterId: raft_state.NodeId(r.int()),
			Term:    raft_state.Term(r.int()),
			Granted: r.bool(),
		}
	case raft_commands.ClientRequest:
		message = &raft_commands.ClientCommand{
			ClientId:  raft_state.NodeId(r.int()),
			RequestId: r.uint32(),
			Command:   r.string(),
		}
	case raft_commands.ClientRequestResponse:
		message = &raft_commands.ClientCommandResult{
			ServerId:   raft_state.NodeId(r.int()),
			RequestId:  r.uint32(),
			Accepted:   r.bool(),
			LeaderHint: raft_state.NodeId(r.int()),
		}
	case raft_commands.Control:
		message = &raft_commands.ControlCommand{
			Kind:      raft_commands.ControlKind(r.int()),
			Target:    raft_state.NodeId(r.int()),
			Parameter: int(r.int()),
		}
	default:
		return nil, fmt.Errorf("decode type %d: %w", data[0], ErrUnknownType)
	}

	if r.err != nil {
		return nil, r.err
	}
	if r.data.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes: %w", r.data.Len(), ErrCorrupted)
	}

	return message, nil
}

func writeInts(buf *bytes.Buffer, values ...int64) {
	for _, value := range values {
		binary.Write(buf, binary.LittleEndian, value)
	}
}

func writeBool(buf *bytes.Buffer, value bool) {
	if value {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func writeString(buf *bytes.Buffer, value string) error {
	if len(value) > raft_commands.MaxCommandLength {
		return fmt.Errorf("%d bytes: %w", len(value), ErrCommandTooLong)
	}

	binary.Write(buf, binary.LittleEndian, uint16(len(value)))
	buf.WriteString(value)
	return nil
}

func writeEntry(buf *bytes.Buffer, entry *raft_state.LogEntry) error {
	writeInts(buf, int64(entry.Term), int64(entry.ClientId))
	binary.Write(buf, binary.LittleEndian, entry.RequestId)
	return writeString(buf, entry.Command)
}

// reader keeps the first error so that decoding code reads fields sequentially without checks
type reader struct {
	data *bytes.Reader
	err  error
}

func (r *reader) read(value any) {
	if r.err != nil {
		return
	}
	if err := binary.Read(r.data, binary.LittleEndian, value); err != nil {
		r.err = fmt.Errorf("%v: %w", err, ErrCorrupted)
	}
}

func (r *reader) int() int64 {
	var value int64
	r.read(&value)
	return value
}

func (r *reader) uint32() uint32 {
	var value uint32
	r.read(&value)
	return value
}

func (r *reader) bool() bool {
	var value uint8
	r.read(&value)
	if r.err == nil && value > 1 {
		r.err = fmt.Errorf("bool value %d: %w", value, ErrCorrupted)
	}
	return value == 1
}

func (r *reader) string() string {
	var length uint16
	r.read(&length)
	if r.err != nil {
		return ""
	}
	if length > raft_commands.MaxCommandLength {
		r.err = fmt.Errorf("%d bytes: %w", length, ErrCommandTooLong)
		return ""
	}

	value := make([]byte, length)
	if _, err := io.ReadFull(r.data, value); err != nil {
		r.err = fmt.Errorf("%v: %w", err, ErrCorrupted)
		return ""
	}
	return string(value)
}

func (r *reader) entry() *raft_state.LogEntry {
	return &raft_state.LogEntry{
		Term:      raft_state.Term(r.int()),
		ClientId:  raft_state.NodeId(r.int()),
		RequestId: r.uint32(),
		Command:   r.string(),
	}
}
