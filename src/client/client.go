package client

import (
	"math/rand"
	"time"

	"github.com/mblichar/raft-sim/src/logging"
	"github.com/mblichar/raft-sim/src/raft_commands"
	"github.com/mblichar/raft-sim/src/raft_networking"
	"github.com/mblichar/raft-sim/src/raft_state"
	"github.com/mblichar/raft-sim/src/timer"
)

type Options struct {
	ClientId raft_state.NodeId
	NbServer int
	// Commands submitted in order, one at a time
	Commands []string
	// Submit without waiting for the START order
	AutoStart bool

	RetryTimeout  time.Duration
	RedirectDelay time.Duration

	Transport raft_networking.Transport
	Clock     timer.Clock
	Random    *rand.Rand
	Logger    *logging.Logger
}

// Client submits its commands to the cluster and follows leader redirections. It is driven by Tick
// and is not safe for concurrent use.
type Client struct {
	clientId raft_state.NodeId
	nbServer int
	commands []string

	// node the current request is sent to
	server    raft_state.NodeId
	requestId uint32
	started   bool
	inFlight  bool
	retries   int
	// zero unless waiting before re-sending a redirected request
	redirectAt time.Time

	acknowledged []uint32
	failed       []uint32

	retryTimeout  *timer.Timeout
	redirectDelay time.Duration
	clock         timer.Clock
	transport     raft_networking.Transport
	logger        *logging.Logger
}

func CreateClient(options Options) *Client {
	clock := options.Clock
	if clock == nil {
		clock = timer.RealClock{}
	}
	random := options.Random
	if random == nil {
		random = rand.New(rand.NewSource(int64(options.ClientId)))
	}

	// deadlines are drawn from [RetryTimeout, 1.3*RetryTimeout)
	retryTimeout := timer.NewTimeout("retry", options.RetryTimeout, options.RetryTimeout*13/10, clock, random)

	return &Client{
		clientId:      options.ClientId,
		nbServer:      options.NbServer,
		commands:      options.Commands,
		server:        raft_state.NodeId(int(options.ClientId)%options.NbServer + 1),
		started:       options.AutoStart,
		retryTimeout:  retryTimeout,
		redirectDelay: options.RedirectDelay,
		clock:         clock,
		transport:     options.Transport,
		logger:        options.Logger,
	}
}

func (client *Client) Id() raft_state.NodeId {
	return client.clientId
}

// Done tells whether every command was either acknowledged or abandoned
func (client *Client) Done() bool {
	return int(client.requestId) >= len(client.commands)
}

// Acknowledged returns ids of the requests committed by the cluster
func (client *Client) Acknowledged() []uint32 {
	return append([]uint32(nil), client.acknowledged...)
}

// Failed returns ids of the requests abandoned after too many retries
func (client *Client) Failed() []uint32 {
	return append([]uint32(nil), client.failed...)
}

func (client *Client) Started() bool {
	return client.started
}

func (client *Client) Tick() {
	if envelope, ok := client.transport.Probe(raft_networking.AnySource, raft_commands.Control); ok {
		if message, err := client.transport.Receive(envelope.Source, envelope.Tag); err == nil {
			client.handleControlCommand(message.(*raft_commands.ControlCommand))
		}
		return
	}

	if !client.started || client.Done() {
		client.discardResponses()
		return
	}

	if !client.inFlight {
		client.retries = 0
		client.inFlight = true
		client.sendRequest()
		return
	}

	if !client.redirectAt.IsZero() {
		if client.clock.Now().Before(client.redirectAt) {
			return
		}
		client.redirectAt = time.Time{}
		client.sendRequest()
		return
	}

	if client.retryTimeout.Expired() {
		client.logger.Debugf("no answer from %d for request %d", client.server, client.requestId)
		client.server = client.server%raft_state.NodeId(client.nbServer) + 1
		if client.countRetry() {
			client.sendRequest()
		}
		return
	}

	envelope, ok := client.transport.Probe(raft_networking.AnySource, raft_commands.ClientRequestResponse)
	if !ok {
		return
	}
	message, err := client.transport.Receive(envelope.Source, envelope.Tag)
	if err != nil {
		client.logger.Warnf("receive from %d failed: %v", envelope.Source, err)
		return
	}

	client.handleResult(message.(*raft_commands.ClientCommandResult))
}

func (client *Client) handleResult(result *raft_commands.ClientCommandResult) {
	if result.RequestId != client.requestId {
		client.logger.Debugf("ignoring result of request %d from %d", result.RequestId, result.ServerId)
		return
	}

	if result.Accepted {
		client.logger.Infof("request %d '%s' committed by %d", client.requestId, client.commands[client.requestId], result.ServerId)
		client.acknowledged = append(client.acknowledged, client.requestId)
		client.next()
		return
	}

	if result.LeaderHint >= 1 && int(result.LeaderHint) <= client.nbServer && result.LeaderHint != result.ServerId {
		client.server = result.LeaderHint
	} else {
		client.server = client.server%raft_state.NodeId(client.nbServer) + 1
	}
	client.logger.Debugf("request %d rejected by %d, redirecting to %d", client.requestId, result.ServerId, client.server)

	if client.countRetry() {
		client.redirectAt = client.clock.Now().Add(client.redirectDelay)
	}
}

// countRetry returns false when the current request exceeded its retries and was abandoned
func (client *Client) countRetry() bool {
	client.retries++
	if client.retries > 3*client.nbServer {
		client.logger.Warnf("giving up request %d after %d retries", client.requestId, client.retries-1)
		client.failed = append(client.failed, client.requestId)
		client.next()
		return false
	}
	return true
}

func (client *Client) sendRequest() {
	command := &raft_commands.ClientCommand{
		ClientId:  client.clientId,
		RequestId: client.requestId,
		Command:   client.commands[client.requestId],
	}

	client.logger.Debugf("-> %d %s", client.server, command)
	client.transport.Send(client.server, command)
	client.retryTimeout.Reset()
}

func (client *Client) next() {
	client.requestId++
	client.inFlight = false
	client.redirectAt = time.Time{}
	if client.Done() {
		client.logger.Infof("workload done: %d acknowledged, %d failed", len(client.acknowledged), len(client.failed))
	}
}

func (client *Client) handleControlCommand(command *raft_commands.ControlCommand) {
	switch command.Kind {
	case raft_commands.Start:
		if !client.started {
			client.started = true
			client.logger.Infof("started with %d commands", len(client.commands))
		}
	case raft_commands.Speed:
		client.retryTimeout.SetSpeed(command.Parameter)
	default:
		client.logger.Debugf("ignoring operator order %s", command)
	}
}

func (client *Client) discardResponses() {
	for {
		envelope, ok := client.transport.Probe(raft_networking.AnySource, raft_commands.ClientRequestResponse)
		if !ok {
			return
		}
		if _, err := client.transport.Receive(envelope.Source, envelope.Tag); err != nil {
			return
		}
	}
}
