package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/RigorAudit/internal/config"
	"github.com/turtacn/RigorAudit/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	httpapi "github.com/turtacn/RigorAudit/internal/interfaces/http"
	"github.com/turtacn/RigorAudit/internal/interfaces/http/handlers"
	"github.com/turtacn/RigorAudit/internal/interfaces/worker"
	"github.com/turtacn/RigorAudit/pkg/errors"
)

// DefaultHealthPort serves the worker's probes and metrics.
const DefaultHealthPort = 8081

// WorkerOptions tunes the queue worker.
type WorkerOptions struct {
	HealthPort int
	// Replication is the replication factor for topics created at startup.
	Replication int
	Version     string
}

func newWorkerCmd() *cobra.Command {
	opts := WorkerOptions{}

	cmd := &cobra.Command{
		Use:         "worker",
		Short:       "Consume audit requests from Kafka",
		Annotations: map[string]string{annotationDaemon: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := Bootstrap(ctx, cliCtx.Config, cliCtx.Logger, BootstrapOptions{Backends: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			opts.Version = Version
			return RunWorker(ctx, rt, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.HealthPort, "health-port", DefaultHealthPort, "port for /healthz, /readyz and /metrics")
	f.IntVar(&opts.Replication, "replication", 1, "replication factor for topics created at startup")
	return cmd
}

// RunWorker consumes audit requests until ctx is done.
func RunWorker(ctx context.Context, rt *Runtime, opts WorkerOptions) error {
	cfg := rt.Config.Kafka
	log := rt.Logger.Named("worker")
	if !cfg.Enabled {
		return errors.New(errors.ErrCodeValidation, "kafka is disabled; set kafka.enabled to run the worker")
	}
	if opts.HealthPort <= 0 {
		opts.HealthPort = DefaultHealthPort
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Brokers, Acks: "all"}, log)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	defer producer.Close()

	if tm, err := kafka.NewTopicManager(cfg.Brokers, log); err != nil {
		log.Warn("Topic manager unavailable, assuming topics exist", logging.Err(err))
	} else {
		specs := kafka.AuditTopics(cfg.RequestTopic, cfg.CompletedTopic, cfg.DLQTopic, opts.Replication)
		if err := tm.EnsureTopics(ctx, specs); err != nil {
			log.Warn("Topic creation failed", logging.Err(err))
		}
		tm.Close()
	}

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         cfg.Brokers,
		GroupID:         cfg.GroupID,
		Topics:          []string{cfg.RequestTopic},
		AutoOffsetReset: cfg.AutoOffsetReset,
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      cfg.MaxRetries,
			RetryBackoff:    cfg.RetryBackoff,
			DeadLetterTopic: cfg.DLQTopic,
		},
	}, producer, log)
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}

	hcfg := worker.Config{
		Service:        rt.Service,
		Publisher:      producer,
		CompletedTopic: cfg.CompletedTopic,
		ClaimTTL:       rt.Config.Audit.CacheTTL,
		Metrics:        rt.Metrics,
		Logger:         rt.Logger,
	}
	if rt.Archive != nil {
		hcfg.Documents = rt.Archive
	}
	if rt.Cache != nil {
		hcfg.Claims = rt.Cache
	}
	consumer.Subscribe(cfg.RequestTopic, worker.NewHandler(hcfg).Handle)

	probes := httpapi.NewRouter(httpapi.RouterConfig{
		Mode:             rt.Config.Server.Mode,
		HealthHandler:    handlers.NewHealthHandler(opts.Version, rt.Metrics, rt.Checkers...),
		Logger:           rt.Logger,
		MetricsCollector: rt.Collector,
		Metrics:          rt.Metrics,
	})
	srv := httpapi.NewServer(config.ServerConfig{Port: opts.HealthPort, ShutdownTimeout: 5 * time.Second}, probes, log)
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	if err := consumer.Start(ctx); err != nil {
		_ = srv.Stop(context.Background())
		return fmt.Errorf("kafka consumer start: %w", err)
	}
	log.Info("Worker started",
		logging.String("topic", cfg.RequestTopic),
		logging.String("group", cfg.GroupID),
		logging.Int("health_port", opts.HealthPort))

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-srvErr:
		log.Error("Health server failed", logging.Err(runErr))
	}

	log.Info("Worker stopping")
	if err := consumer.Close(); err != nil {
		log.Warn("Consumer close failed", logging.Err(err))
	}
	if runErr == nil {
		if err := srv.Stop(context.Background()); err != nil {
			log.Warn("Health server stop failed", logging.Err(err))
		}
	}
	return runErr
}
