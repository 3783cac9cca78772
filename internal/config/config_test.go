package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/RigorAudit/internal/config"
)

// validConfig returns a Config with every backing service enabled that passes
// Validate().
func validConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.Enabled = true
	cfg.Redis.Enabled = true
	cfg.Kafka.Enabled = true
	cfg.OpenSearch.Enabled = true
	cfg.MinIO.Enabled = true
	return cfg
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
	assert.NoError(t, config.Default().Validate())
}

func TestConfig_Validate_Failures(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"server port low", func(c *config.Config) { c.Server.Port = 0 }, "server.port"},
		{"server port high", func(c *config.Config) { c.Server.Port = 65536 }, "server.port"},
		{"server mode", func(c *config.Config) { c.Server.Mode = "production" }, "server.mode"},
		{"database host", func(c *config.Config) { c.Database.Host = "" }, "database.host"},
		{"database port", func(c *config.Config) { c.Database.Port = 0 }, "database.port"},
		{"database user", func(c *config.Config) { c.Database.User = "" }, "database.user"},
		{"database name", func(c *config.Config) { c.Database.DBName = "" }, "database.db_name"},
		{"database max conns", func(c *config.Config) { c.Database.MaxConns = 0 }, "database.max_conns"},
		{"redis addr", func(c *config.Config) { c.Redis.Addr = "" }, "redis.addr"},
		{"redis db", func(c *config.Config) { c.Redis.DB = -1 }, "redis.db"},
		{"kafka brokers", func(c *config.Config) { c.Kafka.Brokers = nil }, "kafka.brokers"},
		{"kafka group", func(c *config.Config) { c.Kafka.GroupID = "" }, "kafka.group_id"},
		{"opensearch addresses", func(c *config.Config) { c.OpenSearch.Addresses = nil }, "opensearch.addresses"},
		{"minio bucket", func(c *config.Config) { c.MinIO.Bucket = "" }, "minio.bucket"},
		{"audit workers", func(c *config.Config) { c.Audit.Workers = 0 }, "audit.workers"},
		{"audit context", func(c *config.Config) { c.Audit.ContextWindow = -1 }, "audit.context_window"},
		{"enhancer model", func(c *config.Config) { c.Enhancer.Enabled = true; c.Enhancer.Model = "" }, "enhancer.model"},
		{"enhancer temperature", func(c *config.Config) { c.Enhancer.Temperature = 2.5 }, "enhancer.temperature"},
		{"log level", func(c *config.Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestConfig_Validate_DisabledServicesSkipped(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Database.Host = ""
	cfg.Redis.Addr = ""
	cfg.Kafka.Brokers = nil
	cfg.OpenSearch.Addresses = nil
	assert.NoError(t, cfg.Validate())
}
