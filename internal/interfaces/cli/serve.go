package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/RigorAudit/internal/config"
	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	httpapi "github.com/turtacn/RigorAudit/internal/interfaces/http"
	"github.com/turtacn/RigorAudit/internal/interfaces/http/handlers"
	"github.com/turtacn/RigorAudit/internal/interfaces/http/middleware"
)

// ServeOptions tunes the API server on top of the loaded config.
type ServeOptions struct {
	// Port overrides server.port when positive.
	Port int
	// Rate and Burst configure per-client rate limiting; Rate <= 0 disables it.
	Rate        float64
	Burst       int
	CORSOrigins []string
	Version     string
	// ConfigPath, when set, is watched for changes.
	ConfigPath string
}

func newServeCmd() *cobra.Command {
	opts := ServeOptions{}

	cmd := &cobra.Command{
		Use:         "serve",
		Short:       "Run the HTTP API server",
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
			opts.ConfigPath = cliCtx.ConfigPath
			return RunServer(ctx, rt, opts)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.Port, "port", "p", 0, "listen port (default: server.port from config)")
	f.Float64Var(&opts.Rate, "rate", 10, "requests per second allowed per client, 0 disables limiting")
	f.IntVar(&opts.Burst, "burst", 20, "rate limiter burst size")
	f.StringSliceVar(&opts.CORSOrigins, "cors-origin", nil, "allowed CORS origin (repeatable)")
	return cmd
}

// routerConfig wires rt into the route tree. The returned func stops the
// rate limiter.
func routerConfig(rt *Runtime, opts ServeOptions) (httpapi.RouterConfig, func()) {
	rc := httpapi.RouterConfig{
		Mode:             rt.Config.Server.Mode,
		AuditHandler:     handlers.NewAuditHandler(rt.Service, rt.Logger),
		HealthHandler:    handlers.NewHealthHandler(opts.Version, rt.Metrics, rt.Checkers...),
		Logger:           rt.Logger,
		MetricsCollector: rt.Collector,
		Metrics:          rt.Metrics,
	}
	if len(opts.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = opts.CORSOrigins
		rc.CORS = &cors
	}
	release := func() {}
	if opts.Rate > 0 {
		limiter := middleware.NewTokenBucketLimiter(opts.Rate, opts.Burst, 5*time.Minute)
		rc.RateLimit = limiter
		release = limiter.Stop
	}
	return rc, release
}

// RunServer serves the API until ctx is done, then drains in-flight
// requests.
func RunServer(ctx context.Context, rt *Runtime, opts ServeOptions) error {
	log := rt.Logger
	serverCfg := rt.Config.Server
	if opts.Port > 0 {
		serverCfg.Port = opts.Port
	}

	rc, release := routerConfig(rt, opts)
	defer release()
	srv := httpapi.NewServer(serverCfg, httpapi.NewRouter(rc), log)

	if opts.ConfigPath != "" {
		err := config.Watch(opts.ConfigPath, func(c *config.Config) {
			log.Info("Configuration file changed, restart to apply",
				logging.String("path", opts.ConfigPath),
				logging.Bool("enhancer_enabled", c.Enhancer.Enabled),
				logging.Int("port", c.Server.Port))
		}, func(err error) {
			log.Warn("Ignoring invalid configuration revision", logging.Err(err))
		})
		if err != nil {
			log.Warn("Config watch disabled", logging.Err(err))
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout+time.Second)
	defer cancel()
	if err := srv.Stop(stopCtx); err != nil {
		return err
	}
	return <-errCh
}
