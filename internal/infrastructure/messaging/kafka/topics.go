package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RigorAudit/pkg/errors"
	"github.com/turtacn/RigorAudit/pkg/types/audit"
)

// Topic names used when the configuration leaves them empty.
const (
	TopicAuditRequests   = "rigor.audit.requests"
	TopicAuditCompleted  = "rigor.audit.completed"
	TopicAuditDeadLetter = "rigor.audit.requests.dlq"
)

// AuditRequestMessage asks the worker to audit either inline Text or the
// document stored under ObjectKey.
type AuditRequestMessage struct {
	RequestID string    `json:"request_id"`
	Title     string    `json:"title,omitempty"`
	Text      string    `json:"text,omitempty"`
	ObjectKey string    `json:"object_key,omitempty"`
	Source    string    `json:"source,omitempty"`
	Enhance   bool      `json:"enhance,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fields the worker depends on.
func (m *AuditRequestMessage) Validate() error {
	if m.RequestID == "" {
		return errors.New(errors.ErrCodeValidation, "request_id required")
	}
	if strings.TrimSpace(m.Text) == "" && m.ObjectKey == "" {
		return errors.New(errors.ErrCodeValidation, "either text or object_key required")
	}
	return nil
}

// AuditCompletedMessage reports the outcome of one request.
type AuditCompletedMessage struct {
	RequestID   string       `json:"request_id"`
	AuditID     string       `json:"audit_id,omitempty"`
	Score       float64      `json:"score"`
	Rating      audit.Rating `json:"rating,omitempty"`
	GapCount    int          `json:"gap_count"`
	Notes       []string     `json:"notes,omitempty"`
	Cached      bool         `json:"cached,omitempty"`
	CompletedAt time.Time    `json:"completed_at"`
}

// DecodeAuditRequest parses and validates a request payload. Decoding
// failures carry a validation code so the consumer dead-letters them
// without retrying.
func DecodeAuditRequest(msg *Message) (*AuditRequestMessage, error) {
	if msg == nil || len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var req AuditRequestMessage
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "malformed audit request")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Topic management
// ─────────────────────────────────────────────────────────────────────────────

// TopicSpec describes a topic to create.
type TopicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates the audit topics on startup.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessageQueue, "failed to dial kafka")
	}
	return NewTopicManagerWithConn(conn, logger), nil
}

func NewTopicManagerWithConn(conn ConnInterface, logger logging.Logger) *TopicManager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TopicManager{conn: conn, logger: logger}
}

// CreateTopic creates spec's topic; an existing topic is not an error.
func (m *TopicManager) CreateTopic(ctx context.Context, spec TopicSpec) error {
	if spec.Name == "" {
		return errors.New(errors.ErrCodeValidation, "topic name required")
	}
	if spec.NumPartitions <= 0 || spec.ReplicationFactor <= 0 {
		return errors.New(errors.ErrCodeValidation, "partitions and replication factor must be > 0")
	}

	cfg := kafka.TopicConfig{
		Topic:             spec.Name,
		NumPartitions:     spec.NumPartitions,
		ReplicationFactor: spec.ReplicationFactor,
	}
	if spec.RetentionMs > 0 {
		cfg.ConfigEntries = append(cfg.ConfigEntries, kafka.ConfigEntry{
			ConfigName:  "retention.ms",
			ConfigValue: strconv.FormatInt(spec.RetentionMs, 10),
		})
	}

	if err := m.conn.CreateTopics(cfg); err != nil {
		if stderrors.Is(err, kafka.TopicAlreadyExists) {
			return nil
		}
		if exists, _ := m.TopicExists(ctx, spec.Name); exists {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeMessageQueue, "failed to create topic "+spec.Name)
	}
	m.logger.Info("Topic created", logging.String("topic", spec.Name))
	return nil
}

func (m *TopicManager) TopicExists(_ context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, err
	}
	return len(partitions) > 0, nil
}

// EnsureTopics creates every spec in order and stops at the first failure.
func (m *TopicManager) EnsureTopics(ctx context.Context, specs []TopicSpec) error {
	for _, s := range specs {
		if err := m.CreateTopic(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (m *TopicManager) Close() error {
	return m.conn.Close()
}

// AuditTopics returns the request, completion and dead-letter topics.
func AuditTopics(requests, completed, deadLetter string, replication int) []TopicSpec {
	if replication <= 0 {
		replication = 1
	}
	const day = int64(24 * time.Hour / time.Millisecond)
	return []TopicSpec{
		{Name: requests, NumPartitions: 6, ReplicationFactor: replication, RetentionMs: 7 * day},
		{Name: completed, NumPartitions: 6, ReplicationFactor: replication, RetentionMs: 7 * day},
		{Name: deadLetter, NumPartitions: 1, ReplicationFactor: replication, RetentionMs: 30 * day},
	}
}
