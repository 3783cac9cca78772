package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  port: 8080
  mode: release
database:
  enabled: true
  host: db.internal
  port: 5432
  user: rigor
  password: secret
  db_name: audits
kafka:
  enabled: true
  brokers: ["kafka-1:9092", "kafka-2:9092"]
  group_id: auditors
audit:
  workers: 8
  cache_ttl: 2h
log:
  level: debug
  format: console
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "audits", cfg.Database.DBName)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 8, cfg.Audit.Workers)
	assert.Equal(t, 2*time.Hour, cfg.Audit.CacheTTL)
	assert.Equal(t, "console", cfg.Log.Format)
	// defaults fill the rest
	assert.Equal(t, DefaultKafkaRequestTopic, cfg.Kafka.RequestTopic)
	assert.Equal(t, DefaultAuditContextWindow, cfg.Audit.ContextWindow)
}

func TestLoad_FromFile_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_FromFile_InvalidYAML(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "invalid_yaml: ["))
	assert.Error(t, err)
}

func TestLoad_FromFile_ValidationFailure(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "server:\n  port: 70000\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestLoad_EnvOverride(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	t.Setenv("RIGOR_DATABASE_HOST", "db-from-env")
	t.Setenv("RIGOR_AUDIT_WORKERS", "2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "db-from-env", cfg.Database.Host)
	assert.Equal(t, 2, cfg.Audit.Workers)
}

func TestLoadFromEnv_NoFile(t *testing.T) {
	t.Setenv("RIGOR_SERVER_PORT", "9090")
	t.Setenv("RIGOR_OPENSEARCH_INDEX", "audits-test")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "audits-test", cfg.OpenSearch.Index)
	assert.Equal(t, "sk-test", cfg.Enhancer.APIKey)
}

func TestMustLoad(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	assert.NotPanics(t, func() { MustLoad(path) })
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "missing.yaml")) })
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)

	var workers atomic.Int64
	require.NoError(t, Watch(path, func(c *Config) { workers.Store(int64(c.Audit.Workers)) }, nil))

	updated := []byte("audit:\n  workers: 12\n")
	require.NoError(t, os.WriteFile(path, updated, 0o644))

	assert.Eventually(t, func() bool { return workers.Load() == 12 }, 5*time.Second, 50*time.Millisecond)
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(filepath.Join(t.TempDir(), "missing.yaml"), func(*Config) {}, nil)
	assert.Error(t, err)
}
