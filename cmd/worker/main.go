// Command worker consumes audit requests from Kafka.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/RigorAudit/internal/config"
	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RigorAudit/internal/interfaces/cli"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: RIGOR_* environment only)")
	healthPort := flag.Int("health-port", cli.DefaultHealthPort, "port for /healthz, /readyz and /metrics")
	replication := flag.Int("replication", 1, "replication factor for topics created at startup")
	flag.Parse()

	if err := run(*configPath, cli.WorkerOptions{
		HealthPort:  *healthPort,
		Replication: *replication,
		Version:     version,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, opts cli.WorkerOptions) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(logging.LogConfig{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
	})
	if err != nil {
		return err
	}
	logging.SetDefault(logger)
	logger.Info("Starting RigorAudit worker",
		logging.String("version", version),
		logging.Strings("brokers", cfg.Kafka.Brokers))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := cli.Bootstrap(ctx, cfg, logger, cli.BootstrapOptions{Backends: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	return cli.RunWorker(ctx, rt, opts)
}
