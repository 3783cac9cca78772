// Command apiserver runs the RigorAudit HTTP API.
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
	port := flag.Int("port", 0, "HTTP port (overrides server.port)")
	rate := flag.Float64("rate", 10, "requests per second per client, 0 disables rate limiting")
	burst := flag.Int("burst", 20, "rate limiter burst size")
	flag.Parse()

	if err := run(*configPath, cli.ServeOptions{
		Port:       *port,
		Rate:       *rate,
		Burst:      *burst,
		Version:    version,
		ConfigPath: *configPath,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, opts cli.ServeOptions) error {
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
	logger.Info("Starting RigorAudit API server", logging.String("version", version))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := cli.Bootstrap(ctx, cfg, logger, cli.BootstrapOptions{Backends: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	return cli.RunServer(ctx, rt, opts)
}
