// Package worker turns audit requests read from Kafka into audits and
// publishes their outcome.
package worker

import (
	"bytes"
	"context"
	"path"
	"time"

	"github.com/turtacn/RigorAudit/internal/application/audit"
	"github.com/turtacn/RigorAudit/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/RigorAudit/internal/ingestion"
)

// DefaultClaimTTL is how long a processed request id stays claimed.
const DefaultClaimTTL = 24 * time.Hour

// DocumentSource fetches archived manuscripts.
type DocumentSource interface {
	GetDocument(ctx context.Context, key string) ([]byte, error)
}

// Claims deduplicates redelivered requests.
type Claims interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Publisher sends the completion event.
type Publisher interface {
	PublishJSON(ctx context.Context, topic, key string, v interface{}) error
}

// Config wires a Handler.
type Config struct {
	Service        audit.Service
	Documents      DocumentSource
	Claims         Claims
	Publisher      Publisher
	CompletedTopic string
	ClaimTTL       time.Duration
	Metrics        *prometheus.AuditMetrics
	Logger         logging.Logger
}

// Handler processes one AuditRequestMessage per Kafka message.
type Handler struct {
	cfg    Config
	logger logging.Logger
	now    func() time.Time
}

func NewHandler(cfg Config) *Handler {
	if cfg.CompletedTopic == "" {
		cfg.CompletedTopic = kafka.TopicAuditCompleted
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = DefaultClaimTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	return &Handler{cfg: cfg, logger: cfg.Logger.Named("worker"), now: func() time.Time { return time.Now().UTC() }}
}

// Handle is a kafka.MessageHandler. Returned errors make the consumer retry
// and eventually dead-letter the message; validation errors skip the retries.
func (h *Handler) Handle(ctx context.Context, msg *kafka.Message) (err error) {
	start := time.Now()
	defer func() {
		h.cfg.Metrics.RecordQueueMessage(msg.Topic, err == nil, time.Since(start))
	}()

	req, err := kafka.DecodeAuditRequest(msg)
	if err != nil {
		return err
	}
	log := h.logger.With(logging.String("request_id", req.RequestID))

	if h.cfg.Claims != nil {
		won, cerr := h.cfg.Claims.Claim(ctx, req.RequestID, h.cfg.ClaimTTL)
		switch {
		case cerr != nil:
			log.Warn("Claim failed, processing anyway", logging.Err(cerr))
		case !won:
			log.Info("Duplicate request skipped")
			return nil
		default:
			defer func() {
				if err != nil {
					if rerr := h.cfg.Claims.Release(context.WithoutCancel(ctx), req.RequestID); rerr != nil {
						log.Warn("Claim release failed", logging.Err(rerr))
					}
				}
			}()
		}
	}

	auditReq, err := h.buildRequest(ctx, req)
	if err != nil {
		return err
	}
	res, err := h.cfg.Service.Audit(ctx, auditReq)
	if err != nil {
		return err
	}

	done := kafka.AuditCompletedMessage{
		RequestID:   req.RequestID,
		AuditID:     res.ID,
		Score:       res.Report.OverallScore,
		Rating:      res.Report.RigorRating,
		GapCount:    len(res.Report.CriticalGaps),
		Notes:       res.Notes,
		Cached:      res.Cached,
		CompletedAt: h.now(),
	}
	if h.cfg.Publisher != nil {
		if err = h.cfg.Publisher.PublishJSON(ctx, h.cfg.CompletedTopic, req.RequestID, done); err != nil {
			return err
		}
	}

	log.Info("Audit request processed",
		logging.String("audit_id", res.ID),
		logging.Float64("score", res.Report.OverallScore),
		logging.Bool("cached", res.Cached),
		logging.Duration("elapsed", time.Since(start)))
	return nil
}

// buildRequest turns the message into an audit request, ingesting the
// archived document when the message points at one.
func (h *Handler) buildRequest(ctx context.Context, req *kafka.AuditRequestMessage) (*audit.Request, error) {
	if req.ObjectKey == "" || h.cfg.Documents == nil {
		return &audit.Request{Title: req.Title, Text: req.Text, Source: req.Source, Enhance: req.Enhance}, nil
	}

	data, err := h.cfg.Documents.GetDocument(ctx, req.ObjectKey)
	if err != nil {
		return nil, err
	}
	doc, err := ingestion.LoadReader(path.Base(req.ObjectKey), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	out := audit.RequestFromDocument(doc, req.Enhance)
	if req.Title != "" {
		out.Title = req.Title
	}
	out.Source = req.Source
	if out.Source == "" {
		out.Source = req.ObjectKey
	}
	return out, nil
}
