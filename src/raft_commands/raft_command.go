package raft_commands

// MessageType is the discriminant of every message exchanged between processes, it is also used as
// the transport tag
type MessageType int

const (
	AppendEntries MessageType = iota
	AppendEntriesResponse
	RequestVote
	RequestVoteResponse
	ClientRequest
	ClientRequestResponse
	Control
)

func (messageType MessageType) String() string {
	switch messageType {
	case AppendEntries:
		return "AppendEntries"
	case AppendEntriesResponse:
		return "AppendEntriesResponse"
	case RequestVote:
		return "RequestVote"
	case RequestVoteResponse:
		return "RequestVoteResponse"
	case ClientRequest:
		return "ClientRequest"
	case ClientRequestResponse:
		return "ClientRequestResponse"
	case Control:
		return "Control"
	default:
		return "Unknown"
	}
}

type Message interface {
	// MessageType returns type of given message
	MessageType() MessageType
}
