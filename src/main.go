package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mblichar/raft-sim/src/cli"
	"github.com/mblichar/raft-sim/src/client"
	"github.com/mblichar/raft-sim/src/cluster"
	"github.com/mblichar/raft-sim/src/config"
	"github.com/mblichar/raft-sim/src/http_api"
	"github.com/mblichar/raft-sim/src/logging"
	"github.com/mblichar/raft-sim/src/raft_state"
)

func main() {
	cfg, err := config.ParseArgs(os.Args[0], os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	options := cluster.Options{
		Config: cfg,
		Logs:   make(chan logging.LoggerEntry, 1000),
	}

	if cfg.WorkloadFile != "" {
		commands, err := client.LoadWorkload(cfg.WorkloadFile)
		if err != nil {
			return err
		}
		options.Workload = func(raft_state.NodeId) []string {
			return commands
		}
	}

	simulation, err := cluster.New(options)
	if err != nil {
		return err
	}
	defer func() {
		if err := simulation.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "closing entries files: %v\n", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go simulation.Run(ctx)

	if cfg.HTTPAddr != "" {
		server := &http.Server{Addr: cfg.HTTPAddr, Handler: http_api.New(simulation).Handler()}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "http api: %v\n", err)
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	if cfg.Headless {
		return cli.RunHeadless(ctx, simulation, os.Stdin, os.Stdout, options.Logs)
	}
	return cli.StartConsole(ctx, simulation, options.Logs)
}
