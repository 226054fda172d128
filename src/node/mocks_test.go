package node

import (
	"github.com/mblichar/raft-sim/src/raft_commands"
	"github.com/mblichar/raft-sim/src/raft_networking"
	"github.com/mblichar/raft-sim/src/raft_state"
)

type inboundMessage struct {
	source  raft_state.NodeId
	message raft_commands.Message
}

// transportMock delivers messages in the order they were queued and records sent ones per destination
type transportMock struct {
	inbox []inboundMessage
	sent  map[raft_state.NodeId][]raft_commands.Message
}

func (mock *transportMock) deliver(source raft_state.NodeId, message raft_commands.Message) {
	mock.inbox = append(mock.inbox, inboundMessage{source: source, message: message})
}

// takeSent returns messages sent to destination since last call
func (mock *transportMock) takeSent(destination raft_state.NodeId) []raft_commands.Message {
	messages := mock.sent[destination]
	delete(mock.sent, destination)
	return messages
}

func (mock *transportMock) clearSent() {
	mock.sent = nil
}

func (mock *transportMock) Send(destination raft_state.NodeId, message raft_commands.Message) {
	if mock.sent == nil {
		mock.sent = make(map[raft_state.NodeId][]raft_commands.Message)
	}

	mock.sent[destination] = append(mock.sent[destination], message)
}

func (mock *transportMock) Probe(source raft_state.NodeId, tag raft_commands.MessageType) (raft_networking.Envelope, bool) {
	if idx := mock.find(source, tag); idx >= 0 {
		inbound := mock.inbox[idx]
		return raft_networking.Envelope{Source: inbound.source, Tag: inbound.message.MessageType()}, true
	}

	return raft_networking.Envelope{}, false
}

func (mock *transportMock) Receive(source raft_state.NodeId, tag raft_commands.MessageType) (raft_commands.Message, error) {
	idx := mock.find(source, tag)
	if idx < 0 {
		return nil, raft_networking.ErrNoMessage
	}

	message := mock.inbox[idx].message
	mock.inbox = append(mock.inbox[:idx], mock.inbox[idx+1:]...)
	return message, nil
}

func (mock *transportMock) find(source raft_state.NodeId, tag raft_commands.MessageType) int {
	for idx, inbound := range mock.inbox {
		if source != raft_networking.AnySource && inbound.source != source {
			continue
		}
		if tag != raft_networking.AnyTag && inbound.message.MessageType() != tag {
			continue
		}
		return idx
	}

	return -1
}
