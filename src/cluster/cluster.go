// Package cluster wires raft nodes, clients and the operator of a simulation onto a single in-memory
// network and drives their ticks.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mblichar/raft-sim/src/client"
	"github.com/mblichar/raft-sim/src/config"
	"github.com/mblichar/raft-sim/src/logging"
	"github.com/mblichar/raft-sim/src/node"
	"github.com/mblichar/raft-sim/src/raft_commands"
	"github.com/mblichar/raft-sim/src/raft_networking"
	"github.com/mblichar/raft-sim/src/raft_state"
	"github.com/mblichar/raft-sim/src/timer"
)

var (
	// ErrUnknownTarget is returned for orders or requests addressed to a process which does not exist
	ErrUnknownTarget = errors.New("cluster: unknown target")

	// ErrInvalidOrder is returned for malformed operator orders
	ErrInvalidOrder = errors.New("cluster: invalid order")
)

type Options struct {
	Config config.Config
	// Defaults to the real clock
	Clock timer.Clock
	// Log sink shared by every process, logging is disabled when nil
	Logs chan logging.LoggerEntry
	// Workload of a client, defaults to client.DefaultWorkload
	Workload func(clientId raft_state.NodeId) []string
	// Clients submit without waiting for START
	AutoStart bool
	// Called with node snapshots published by STATUS orders
	OnStatus func(raft_state.NodeStatus)
}

type ClientProgress struct {
	ClientId     raft_state.NodeId
	Started      bool
	Done         bool
	Acknowledged []uint32
	Failed       []uint32
}

// ticker is a process of the simulation
type ticker interface {
	Tick()
	Id() raft_state.NodeId
}

type member struct {
	mutex     sync.Mutex
	ticker    ticker
	pollDelay func() time.Duration
}

func (m *member) tick() time.Duration {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.ticker.Tick()
	if m.pollDelay == nil {
		return 0
	}
	return m.pollDelay()
}

type Cluster struct {
	// RunID identifies the simulation in logs and API responses
	RunID string

	config   config.Config
	hub      *raft_networking.Hub
	operator *operator
	nodes    []*node.Node
	clients  []*client.Client
	members  []*member
	byId     map[raft_state.NodeId]*member
	logger   *logging.Logger

	entriesFiles []*os.File
}

func New(options Options) (*Cluster, error) {
	cfg := options.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := options.Clock
	if clock == nil {
		clock = timer.RealClock{}
	}
	workload := options.Workload
	if workload == nil {
		workload = func(clientId raft_state.NodeId) []string {
			return client.DefaultWorkload(clientId, client.DefaultWorkloadSize)
		}
	}

	var logger *logging.Logger
	if options.Logs != nil {
		logger = logging.CreateLogger("[CLUSTER]", options.Logs)
	}

	hub := raft_networking.NewHub(clock, rand.New(rand.NewSource(cfg.Seed)), logger.WithPrefix("[NETWORK]"))
	hub.SetLatency(config.Milliseconds(cfg.NetworkLatency))

	cluster := &Cluster{
		RunID:  uuid.NewString(),
		config: cfg,
		hub:    hub,
		byId:   make(map[raft_state.NodeId]*member),
		logger: logger,
	}

	operatorEndpoint, err := hub.Register(raft_state.OperatorId)
	if err != nil {
		return nil, err
	}
	cluster.operator = &operator{transport: operatorEndpoint, logger: logger.WithPrefix("[OPERATOR]")}
	cluster.addMember(&member{ticker: cluster.operator})

	for id := raft_state.NodeId(1); int(id) <= cfg.NbServer; id++ {
		endpoint, err := hub.Register(id)
		if err != nil {
			cluster.Close()
			return nil, err
		}

		var commitSink func(raft_state.LogIndex, raft_state.LogEntry)
		if cfg.EntriesDir != "" {
			file, err := createEntriesFile(cfg.EntriesDir, id)
			if err != nil {
				cluster.Close()
				return nil, err
			}
			cluster.entriesFiles = append(cluster.entriesFiles, file)
			commitSink = entriesWriter(file, logger.WithPrefix(fmt.Sprintf("[NODE %d]", id)))
		}

		n := node.CreateNode(node.Options{
			NodeId:              id,
			NbServer:            cfg.NbServer,
			ElectionTimeoutMin:  config.Milliseconds(cfg.ElectionTimeoutMin),
			ElectionTimeoutMax:  config.Milliseconds(cfg.ElectionTimeoutMax),
			HeartbeatTimeoutMin: config.Milliseconds(cfg.HeartbeatTimeoutMin),
			HeartbeatTimeoutMax: config.Milliseconds(cfg.HeartbeatTimeoutMax),
			Transport:           endpoint,
			Clock:               clock,
			Random:              rand.New(rand.NewSource(processSeed(cfg.Seed, id))),
			Logger:              logger.WithPrefix(fmt.Sprintf("[NODE %d]", id)),
			StatusSink:          options.OnStatus,
			CommitSink:          commitSink,
			TruncateOnRecovery:  cfg.TruncateOnRecovery,
		})
		cluster.nodes = append(cluster.nodes, n)
		cluster.addMember(&member{ticker: n, pollDelay: n.PollDelay})
	}

	for i := 1; i <= cfg.NbClient; i++ {
		id := raft_state.NodeId(cfg.NbServer + i)
		endpoint, err := hub.Register(id)
		if err != nil {
			cluster.Close()
			return nil, err
		}

		c := client.CreateClient(client.Options{
			ClientId:      id,
			NbServer:      cfg.NbServer,
			Commands:      workload(id),
			AutoStart:     options.AutoStart,
			RetryTimeout:  config.Milliseconds(cfg.RetryTimeout),
			RedirectDelay: config.Milliseconds(cfg.RedirectDelay),
			Transport:     endpoint,
			Clock:         clock,
			Random:        rand.New(rand.NewSource(processSeed(cfg.Seed, id))),
			Logger:        logger.WithPrefix(fmt.Sprintf("[CLIENT %d]", id)),
		})
		cluster.clients = append(cluster.clients, c)
		cluster.addMember(&member{ticker: c})
	}

	logger.Infof("run %s: %d nodes, %d clients, seed %d", cluster.RunID, cfg.NbServer, cfg.NbClient, cfg.Seed)
	return cluster, nil
}

func (cluster *Cluster) addMember(m *member) {
	cluster.members = append(cluster.members, m)
	cluster.byId[m.ticker.Id()] = m
}

// Step ticks every process once: operator, nodes and clients in id order
func (cluster *Cluster) Step() {
	for _, m := range cluster.members {
		m.tick()
	}
}

// Run ticks every process from its own goroutine until ctx is cancelled
func (cluster *Cluster) Run(ctx context.Context) {
	pollInterval := config.Milliseconds(cluster.config.PollInterval)

	var wg sync.WaitGroup
	for _, m := range cluster.members {
		wg.Add(1)
		go func(m *member) {
			defer wg.Done()

			for {
				delay := m.tick()

				select {
				case <-ctx.Done():
					return
				case <-time.After(pollInterval + delay):
				}
			}
		}(m)
	}

	wg.Wait()
}

// Order sends a control order from the operator. Orders targeting 0 are sent to every node, or to
// every client for START.
func (cluster *Cluster) Order(command raft_commands.ControlCommand) error {
	switch command.Kind {
	case raft_commands.Speed:
		if command.Parameter < raft_commands.SpeedHigh {
			return fmt.Errorf("speed %d: %w", command.Parameter, ErrInvalidOrder)
		}
	case raft_commands.Crash, raft_commands.Recovery, raft_commands.Status, raft_commands.Start:
	default:
		return fmt.Errorf("kind %d: %w", command.Kind, ErrInvalidOrder)
	}

	var targets []raft_state.NodeId
	switch {
	case command.Target != 0:
		if _, ok := cluster.byId[command.Target]; !ok || command.Target == raft_state.OperatorId {
			return fmt.Errorf("order %s to %d: %w", command.Kind, command.Target, ErrUnknownTarget)
		}
		targets = []raft_state.NodeId{command.Target}
	case command.Kind == raft_commands.Start:
		for _, c := range cluster.clients {
			targets = append(targets, c.Id())
		}
	default:
		for _, n := range cluster.nodes {
			targets = append(targets, n.Id())
		}
	}

	for _, target := range targets {
		order := command
		order.Target = target
		cluster.logger.Infof("order %s", &order)
		cluster.operator.send(target, &order)
	}
	return nil
}

// Submit sends a client command to a node on behalf of the operator, the answer is logged
func (cluster *Cluster) Submit(nodeId raft_state.NodeId, command string) (uint32, error) {
	if nodeId < 1 || int(nodeId) > cluster.config.NbServer {
		return 0, fmt.Errorf("submit to %d: %w", nodeId, ErrUnknownTarget)
	}
	if len(command) > raft_commands.MaxCommandLength {
		return 0, fmt.Errorf("command of %d bytes longer than %d: %w", len(command), raft_commands.MaxCommandLength,
			ErrInvalidOrder)
	}

	m := cluster.byId[raft_state.OperatorId]
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return cluster.operator.submit(nodeId, command), nil
}

// Statuses returns a snapshot of every node
func (cluster *Cluster) Statuses() []raft_state.NodeStatus {
	statuses := make([]raft_state.NodeStatus, 0, len(cluster.nodes))
	for _, n := range cluster.nodes {
		statuses = append(statuses, cluster.nodeStatus(n))
	}
	return statuses
}

func (cluster *Cluster) Status(nodeId raft_state.NodeId) (raft_state.NodeStatus, error) {
	if nodeId < 1 || int(nodeId) > len(cluster.nodes) {
		return raft_state.NodeStatus{}, fmt.Errorf("status of %d: %w", nodeId, ErrUnknownTarget)
	}
	return cluster.nodeStatus(cluster.nodes[nodeId-1]), nil
}

func (cluster *Cluster) nodeStatus(n *node.Node) raft_state.NodeStatus {
	m := cluster.byId[n.Id()]
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return n.Status()
}

// Leader returns the running leader of the highest term
func (cluster *Cluster) Leader() (raft_state.NodeId, bool) {
	var leader raft_state.NodeStatus
	found := false
	for _, status := range cluster.Statuses() {
		if status.Role == raft_state.Leader && !status.Crashed && (!found || status.Term > leader.Term) {
			leader = status
			found = true
		}
	}
	return leader.NodeId, found
}

func (cluster *Cluster) Clients() []ClientProgress {
	progress := make([]ClientProgress, 0, len(cluster.clients))
	for _, c := range cluster.clients {
		m := cluster.byId[c.Id()]
		m.mutex.Lock()
		progress = append(progress, ClientProgress{
			ClientId:     c.Id(),
			Started:      c.Started(),
			Done:         c.Done(),
			Acknowledged: c.Acknowledged(),
			Failed:       c.Failed(),
		})
		m.mutex.Unlock()
	}
	return progress
}

// Done tells whether every client went through its workload
func (cluster *Cluster) Done() bool {
	for _, progress := range cluster.Clients() {
		if !progress.Done {
			return false
		}
	}
	return true
}

// OperatorResults returns answers received for commands submitted by the operator
func (cluster *Cluster) OperatorResults() []raft_commands.ClientCommandResult {
	m := cluster.byId[raft_state.OperatorId]
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]raft_commands.ClientCommandResult(nil), cluster.operator.results...)
}

func (cluster *Cluster) Config() config.Config {
	return cluster.config
}

func (cluster *Cluster) SetNetworkLatency(latency time.Duration) {
	cluster.logger.Infof("network latency set to %s", latency)
	cluster.hub.SetLatency(latency)
}

func (cluster *Cluster) NetworkLatency() time.Duration {
	return cluster.hub.Latency()
}

// SetNetworkSplits partitions the network, processes of different splits cannot reach each other.
// The operator and processes missing from every split reach everybody.
func (cluster *Cluster) SetNetworkSplits(splits [][]raft_state.NodeId) {
	cluster.logger.Infof("network splits set to %v", splits)
	cluster.hub.SetNetworkSplits(splits)
}

func (cluster *Cluster) NetworkSplits() [][]raft_state.NodeId {
	return cluster.hub.NetworkSplits()
}

// processSeed derives a distinct random source seed for every process of a run
func processSeed(seed int64, id raft_state.NodeId) int64 {
	return seed*1_000_003 + int64(id)
}
