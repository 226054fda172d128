package raft_networking

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/mblichar/raft-sim/src/logging"
	"github.com/mblichar/raft-sim/src/raft_commands"
	"github.com/mblichar/raft-sim/src/raft_state"
	"github.com/mblichar/raft-sim/src/timer"
	"github.com/mblichar/raft-sim/src/wire"
)

type frame struct {
	source    raft_state.NodeId
	tag       raft_commands.MessageType
	data      []byte
	deliverAt time.Time
}

type mailbox struct {
	// pending frames per sender, in send order
	queues map[raft_state.NodeId][]frame
	// delivery time of the last frame per sender, later frames are never delivered before it
	lastDelivery map[raft_state.NodeId]time.Time
}

// Hub is an in-memory network connecting every process of a simulation. Messages are wire-encoded on
// send and decoded on receive. Operator can change latency and split the network into sets of
// processes that can communicate only with other processes in the same set.
type Hub struct {
	mutex         sync.Mutex
	clock         timer.Clock
	random        *rand.Rand
	latency       time.Duration
	networkSplits [][]raft_state.NodeId
	mailboxes     map[raft_state.NodeId]*mailbox
	logger        *logging.Logger
}

// Endpoint is the Transport of a single process attached to a Hub
type Endpoint struct {
	hub *Hub
	id  raft_state.NodeId
}

func NewHub(clock timer.Clock, random *rand.Rand, logger *logging.Logger) *Hub {
	return &Hub{
		clock:     clock,
		random:    random,
		mailboxes: make(map[raft_state.NodeId]*mailbox),
		logger:    logger,
	}
}

func (hub *Hub) Register(id raft_state.NodeId) (*Endpoint, error) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	if _, exists := hub.mailboxes[id]; exists {
		return nil, fmt.Errorf("register %d: %w", id, ErrDuplicateNode)
	}

	hub.mailboxes[id] = &mailbox{
		queues:       make(map[raft_state.NodeId][]frame),
		lastDelivery: make(map[raft_state.NodeId]time.Time),
	}
	return &Endpoint{hub: hub, id: id}, nil
}

func (hub *Hub) SetLatency(latency time.Duration) {
	hub.mutex.Lock()
	hub.latency = latency
	hub.mutex.Unlock()
}

func (hub *Hub) Latency() time.Duration {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	return hub.latency
}

// SetNetworkSplits partitions the network, processes absent from every split reach everybody. Nil
// splits reconnect the whole network. Frames already in flight are not affected.
func (hub *Hub) SetNetworkSplits(splits [][]raft_state.NodeId) {
	hub.mutex.Lock()
	hub.networkSplits = splits
	hub.mutex.Unlock()
}

func (hub *Hub) NetworkSplits() [][]raft_state.NodeId {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	splits := make([][]raft_state.NodeId, len(hub.networkSplits))
	for i, split := range hub.networkSplits {
		splits[i] = append([]raft_state.NodeId(nil), split...)
	}
	return splits
}

// Pending returns number of frames waiting in the mailbox of id, delivered or not
func (hub *Hub) Pending(id raft_state.NodeId) int {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	box, ok := hub.mailboxes[id]
	if !ok {
		return 0
	}

	count := 0
	for _, queue := range box.queues {
		count += len(queue)
	}
	return count
}

func (hub *Hub) send(source raft_state.NodeId, destination raft_state.NodeId, message raft_commands.Message) {
	prefix := logPrefix(source, destination)

	data, err := wire.Encode(message)
	if err != nil {
		hub.logger.Warnf("%s failed to encode %s - %v", prefix, message.MessageType(), err)
		return
	}

	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	box, ok := hub.mailboxes[destination]
	if !ok {
		hub.logger.Debugf("%s failed to send %s - unknown node", prefix, message.MessageType())
		return
	}

	if !hub.canConnect(source, destination) {
		hub.logger.Debugf("%s failed to send %s - node unreachable", prefix, message.MessageType())
		return
	}

	deliverAt := hub.clock.Now().Add(hub.latency)
	if hub.latency > 0 {
		if jitter := int64(hub.latency) / 4; jitter > 0 {
			deliverAt = deliverAt.Add(time.Duration(hub.random.Int63n(jitter)))
		}
	}
	if last, ok := box.lastDelivery[source]; ok && deliverAt.Before(last) {
		deliverAt = last
	}
	box.lastDelivery[source] = deliverAt

	box.queues[source] = append(box.queues[source], frame{
		source:    source,
		tag:       message.MessageType(),
		data:      data,
		deliverAt: deliverAt,
	})
	hub.logger.Debugf("%s %v", prefix, message)
}

// find returns sender and position of the first deliverable frame matching filters. Among several
// senders one is picked at random: there is no ordering between different senders.
func (hub *Hub) find(box *mailbox, source raft_state.NodeId, tag raft_commands.MessageType) (raft_state.NodeId, int, bool) {
	now := hub.clock.Now()

	firstMatch := func(queue []frame) int {
		for i, f := range queue {
			if f.deliverAt.After(now) {
				// later frames of the sender are not delivered before this one
				return -1
			}
			if tag == AnyTag || f.tag == tag {
				return i
			}
		}
		return -1
	}

	if source != AnySource {
		position := firstMatch(box.queues[source])
		return source, position, position >= 0
	}

	var candidates []raft_state.NodeId
	for sender, queue := range box.queues {
		if firstMatch(queue) >= 0 {
			candidates = append(candidates, sender)
		}
	}
	if len(candidates) == 0 {
		return AnySource, -1, false
	}

	// map iteration order is random, sort to keep simulations reproducible for a given seed
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	sender := candidates[hub.random.Intn(len(candidates))]
	return sender, firstMatch(box.queues[sender]), true
}

func (hub *Hub) probe(id raft_state.NodeId, source raft_state.NodeId, tag raft_commands.MessageType) (Envelope, bool) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	box, ok := hub.mailboxes[id]
	if !ok {
		return Envelope{}, false
	}

	sender, position, found := hub.find(box, source, tag)
	if !found {
		return Envelope{}, false
	}

	return Envelope{Source: sender, Tag: box.queues[sender][position].tag}, true
}

func (hub *Hub) receive(id raft_state.NodeId, source raft_state.NodeId, tag raft_commands.MessageType) (raft_commands.Message, error) {
	hub.mutex.Lock()
	box, ok := hub.mailboxes[id]
	if !ok {
		hub.mutex.Unlock()
		return nil, fmt.Errorf("receive on %d: %w", id, ErrUnknownNode)
	}

	sender, position, found := hub.find(box, source, tag)
	if !found {
		hub.mutex.Unlock()
		return nil, ErrNoMessage
	}

	queue := box.queues[sender]
	f := queue[position]
	box.queues[sender] = append(queue[:position:position], queue[position+1:]...)
	if len(box.queues[sender]) == 0 {
		delete(box.queues, sender)
	}
	hub.mutex.Unlock()

	message, err := wire.Decode(f.data)
	if err != nil {
		return nil, fmt.Errorf("frame from %d: %w", f.source, err)
	}
	return message, nil
}

func (hub *Hub) canConnect(a raft_state.NodeId, b raft_state.NodeId) bool {
	if a == b || a == raft_state.OperatorId || b == raft_state.OperatorId || len(hub.networkSplits) == 0 {
		return true
	}

	splitA, splitB := -1, -1
	for i, split := range hub.networkSplits {
		if sliceContains(split, a) {
			splitA = i
		}
		if sliceContains(split, b) {
			splitB = i
		}
	}

	return splitA == -1 || splitB == -1 || splitA == splitB
}

func (endpoint *Endpoint) Send(destination raft_state.NodeId, message raft_commands.Message) {
	endpoint.hub.send(endpoint.id, destination, message)
}

func (endpoint *Endpoint) Probe(source raft_state.NodeId, tag raft_commands.MessageType) (Envelope, bool) {
	return endpoint.hub.probe(endpoint.id, source, tag)
}

func (endpoint *Endpoint) Receive(source raft_state.NodeId, tag raft_commands.MessageType) (raft_commands.Message, error) {
	return endpoint.hub.receive(endpoint.id, source, tag)
}

func (endpoint *Endpoint) Id() raft_state.NodeId {
	return endpoint.id
}

func logPrefix(senderId raft_state.NodeId, receiverId raft_state.NodeId) string {
	return fmt.Sprintf("%d->%d", senderId, receiverId)
}

func sliceContains(s []raft_state.NodeId, x raft_state.NodeId) bool {
	for _, val := range s {
		if val == x {
			return true
		}
	}

	return false
}
