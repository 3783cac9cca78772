package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort        = 8080
	DefaultServerMode        = "release"
	DefaultServerMaxBodySize = 8 << 20

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "rigoraudit"
	DefaultDBUser     = "rigor"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "rigor:"

	DefaultKafkaBroker         = "localhost:9092"
	DefaultKafkaGroupID        = "rigoraudit-worker"
	DefaultKafkaRequestTopic   = "rigor.audit.requests"
	DefaultKafkaCompletedTopic = "rigor.audit.completed"
	DefaultKafkaDLQTopic       = "rigor.audit.requests.dlq"
	DefaultKafkaMaxRetries     = 3

	DefaultOpenSearchAddress = "http://localhost:9200"
	DefaultOpenSearchIndex   = "rigor-audits"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "manuscripts"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultAuditContextWindow = 30
	DefaultAuditMaxExamples   = 3
	DefaultAuditMaxTextBytes  = 2 << 20
	DefaultAuditWorkers       = 4

	DefaultEnhancerModel = "gpt-4o"
)

// ApplyDefaults fills every zero-value field in cfg with the default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultServerMaxBodySize
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.User == "" {
		cfg.Database.User = DefaultDBUser
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.RequestTopic == "" {
		cfg.Kafka.RequestTopic = DefaultKafkaRequestTopic
	}
	if cfg.Kafka.CompletedTopic == "" {
		cfg.Kafka.CompletedTopic = DefaultKafkaCompletedTopic
	}
	if cfg.Kafka.DLQTopic == "" {
		cfg.Kafka.DLQTopic = DefaultKafkaDLQTopic
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = DefaultKafkaMaxRetries
	}
	if cfg.Kafka.RetryBackoff == 0 {
		cfg.Kafka.RetryBackoff = time.Second
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}

	// ── OpenSearch ────────────────────────────────────────────────────────────
	if len(cfg.OpenSearch.Addresses) == 0 {
		cfg.OpenSearch.Addresses = []string{DefaultOpenSearchAddress}
	}
	if cfg.OpenSearch.Index == "" {
		cfg.OpenSearch.Index = DefaultOpenSearchIndex
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Audit ─────────────────────────────────────────────────────────────────
	if cfg.Audit.ContextWindow == 0 {
		cfg.Audit.ContextWindow = DefaultAuditContextWindow
	}
	if cfg.Audit.MaxExamples == 0 {
		cfg.Audit.MaxExamples = DefaultAuditMaxExamples
	}
	if cfg.Audit.MaxTextBytes == 0 {
		cfg.Audit.MaxTextBytes = DefaultAuditMaxTextBytes
	}
	if cfg.Audit.Workers == 0 {
		cfg.Audit.Workers = DefaultAuditWorkers
	}
	if cfg.Audit.CacheTTL == 0 {
		cfg.Audit.CacheTTL = 24 * time.Hour
	}

	// ── Enhancer ──────────────────────────────────────────────────────────────
	if cfg.Enhancer.Model == "" {
		cfg.Enhancer.Model = DefaultEnhancerModel
	}
	if cfg.Enhancer.Temperature == 0 {
		cfg.Enhancer.Temperature = 0.2
	}
	if cfg.Enhancer.MaxOutputTokens == 0 {
		cfg.Enhancer.MaxOutputTokens = 2048
	}
	if cfg.Enhancer.Timeout == 0 {
		cfg.Enhancer.Timeout = 60 * time.Second
	}
	if cfg.Enhancer.MaxTextRunes == 0 {
		cfg.Enhancer.MaxTextRunes = 8000
	}
}

// envKeys lists every leaf key so viper binds its environment variable even
// when no config file mentions it.
var envKeys = []string{
	"server.port", "server.mode", "server.read_timeout", "server.write_timeout",
	"server.max_body_size", "server.shutdown_timeout",
	"database.enabled", "database.host", "database.port", "database.user",
	"database.password", "database.db_name", "database.ssl_mode", "database.max_conns",
	"database.max_idle_conns", "database.conn_max_lifetime", "database.conn_max_idle_time",
	"database.auto_migrate",
	"redis.enabled", "redis.addr", "redis.password", "redis.db", "redis.pool_size",
	"redis.min_idle_conns", "redis.dial_timeout", "redis.read_timeout", "redis.write_timeout",
	"redis.key_prefix",
	"kafka.enabled", "kafka.brokers", "kafka.group_id", "kafka.request_topic",
	"kafka.completed_topic", "kafka.dlq_topic", "kafka.max_retries", "kafka.retry_backoff",
	"kafka.auto_offset_reset",
	"opensearch.enabled", "opensearch.addresses", "opensearch.user", "opensearch.password",
	"opensearch.insecure_skip_verify", "opensearch.index",
	"minio.enabled", "minio.endpoint", "minio.access_key", "minio.secret_key",
	"minio.bucket", "minio.use_ssl",
	"log.level", "log.format", "log.output_paths", "log.enable_caller", "log.enable_stacktrace",
	"audit.context_window", "audit.max_examples", "audit.max_text_bytes", "audit.workers",
	"audit.cache_ttl",
	"enhancer.enabled", "enhancer.base_url", "enhancer.model", "enhancer.api_key",
	"enhancer.temperature", "enhancer.max_output_tokens", "enhancer.timeout",
	"enhancer.max_text_runes",
}
