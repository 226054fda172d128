package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ErrInvalidConfig is returned when configuration values are inconsistent
var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	// Number of raft nodes, nodes have ids 1..NbServer
	NbServer int
	// Number of clients, clients have ids NbServer+1..NbServer+NbClient
	NbClient int
	// Lower bound of election timeout in milliseconds
	ElectionTimeoutMin int
	// Upper bound of election timeout in milliseconds
	ElectionTimeoutMax int
	// Lower bound of leader heartbeat timeout in milliseconds
	HeartbeatTimeoutMin int
	// Upper bound of leader heartbeat timeout in milliseconds
	HeartbeatTimeoutMax int
	// Client retry timeout in milliseconds
	RetryTimeout int
	// Delay before client re-sends a redirected request in milliseconds
	RedirectDelay int
	// Network latency in milliseconds
	NetworkLatency int
	// Delay between two ticks of a process in milliseconds
	PollInterval int
	// Seed of every random source, nodes derive their own seed from it
	Seed int64
	// File with client commands, one per line
	WorkloadFile string
	// Address of the HTTP operator API, empty to disable
	HTTPAddr string
	// Read operator commands from stdin instead of the interactive console
	Headless bool
	// Directory receiving entries_server<id>.log files with the entries committed by each node, empty to disable
	EntriesDir string
	// Drop uncommitted entries of a node on RECOVERY, may lose entries a leader already committed
	TruncateOnRecovery bool
}

func Default() Config {
	return Config{
		NbServer:            3,
		NbClient:            1,
		ElectionTimeoutMin:  500,
		ElectionTimeoutMax:  1000,
		HeartbeatTimeoutMin: 100,
		HeartbeatTimeoutMax: 150,
		RetryTimeout:        2000,
		RedirectDelay:       500,
		NetworkLatency:      0,
		PollInterval:        1,
		Seed:                1,
	}
}

func (config *Config) Validate() error {
	if config.NbServer < 1 {
		return fmt.Errorf("nb_server must be positive, got %d: %w", config.NbServer, ErrInvalidConfig)
	}
	if config.NbClient < 0 {
		return fmt.Errorf("nb_client must not be negative, got %d: %w", config.NbClient, ErrInvalidConfig)
	}
	if config.ElectionTimeoutMin <= 0 || config.ElectionTimeoutMax < config.ElectionTimeoutMin {
		return fmt.Errorf("election timeout bounds [%d, %d]: %w",
			config.ElectionTimeoutMin, config.ElectionTimeoutMax, ErrInvalidConfig)
	}
	if config.HeartbeatTimeoutMin <= 0 || config.HeartbeatTimeoutMax < config.HeartbeatTimeoutMin {
		return fmt.Errorf("heartbeat timeout bounds [%d, %d]: %w",
			config.HeartbeatTimeoutMin, config.HeartbeatTimeoutMax, ErrInvalidConfig)
	}
	if config.HeartbeatTimeoutMax >= config.ElectionTimeoutMin {
		return fmt.Errorf("heartbeat timeout %d must be below election timeout %d: %w",
			config.HeartbeatTimeoutMax, config.ElectionTimeoutMin, ErrInvalidConfig)
	}
	if config.RetryTimeout <= 0 || config.NetworkLatency < 0 || config.PollInterval < 0 || config.RedirectDelay < 0 {
		return fmt.Errorf("negative delay: %w", ErrInvalidConfig)
	}
	return nil
}

// ParseArgs parses "[flags] nb_server nb_client" on top of Default()
func ParseArgs(name string, args []string, output io.Writer) (Config, error) {
	config := Default()

	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(output)
	flags.Usage = func() {
		fmt.Fprintf(output, "usage: %s [flags] nb_server nb_client\n", name)
		flags.PrintDefaults()
	}
	flags.Int64Var(&config.Seed, "seed", config.Seed, "seed of random sources")
	flags.IntVar(&config.NetworkLatency, "latency", config.NetworkLatency, "network latency in milliseconds")
	flags.IntVar(&config.ElectionTimeoutMin, "election-min", config.ElectionTimeoutMin, "election timeout lower bound in milliseconds")
	flags.IntVar(&config.ElectionTimeoutMax, "election-max", config.ElectionTimeoutMax, "election timeout upper bound in milliseconds")
	flags.IntVar(&config.HeartbeatTimeoutMin, "heartbeat-min", config.HeartbeatTimeoutMin, "heartbeat timeout lower bound in milliseconds")
	flags.IntVar(&config.HeartbeatTimeoutMax, "heartbeat-max", config.HeartbeatTimeoutMax, "heartbeat timeout upper bound in milliseconds")
	flags.IntVar(&config.RetryTimeout, "retry", config.RetryTimeout, "client retry timeout in milliseconds")
	flags.StringVar(&config.WorkloadFile, "workload", "", "file with client commands, one per line")
	flags.StringVar(&config.HTTPAddr, "http", "", "address of the HTTP operator API (disabled when empty)")
	flags.BoolVar(&config.Headless, "headless", false, "read operator commands from stdin")
	flags.StringVar(&config.EntriesDir, "entries-dir", "", "directory of per node committed entries files (disabled when empty)")
	flags.BoolVar(&config.TruncateOnRecovery, "truncate-on-recovery", false, "drop uncommitted entries of recovering nodes")

	if err := flags.Parse(args); err != nil {
		return config, err
	}

	if flags.NArg() != 2 {
		flags.Usage()
		return config, fmt.Errorf("expected 2 positional arguments, got %d: %w", flags.NArg(), ErrInvalidConfig)
	}

	var err error
	if config.NbServer, err = strconv.Atoi(flags.Arg(0)); err != nil {
		flags.Usage()
		return config, fmt.Errorf("nb_server %q: %w", flags.Arg(0), ErrInvalidConfig)
	}
	if config.NbClient, err = strconv.Atoi(flags.Arg(1)); err != nil {
		flags.Usage()
		return config, fmt.Errorf("nb_client %q: %w", flags.Arg(1), ErrInvalidConfig)
	}

	if err := config.Validate(); err != nil {
		flags.Usage()
		return config, err
	}
	return config, nil
}

func Milliseconds(value int) time.Duration {
	return time.Duration(value) * time.Millisecond
}
