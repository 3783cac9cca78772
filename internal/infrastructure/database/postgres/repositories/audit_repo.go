package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/turtacn/RigorAudit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RigorAudit/pkg/errors"
	"github.com/turtacn/RigorAudit/pkg/types/audit"
)

// DefaultListLimit applies when List is called with a non-positive limit.
const DefaultListLimit = 20

// MaxListLimit caps a single List page.
const MaxListLimit = 200

const auditColumns = `id, title, source, text_hash, features, report, enhancement, notes, created_at`

// AuditRepository stores completed audits in the audits table.
type AuditRepository struct {
	db     queryExecutor
	logger logging.Logger
}

// NewAuditRepository constructs a ready-to-use AuditRepository.
func NewAuditRepository(db *sql.DB, logger logging.Logger) *AuditRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AuditRepository{db: db, logger: logger}
}

// Save inserts rec. Saving an id twice keeps the first row.
func (r *AuditRepository) Save(ctx context.Context, rec *audit.Record) error {
	features, err := json.Marshal(rec.Features)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode features")
	}
	report, err := json.Marshal(rec.Report)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode report")
	}
	var enhancement []byte
	if rec.Enhancement != nil {
		if enhancement, err = json.Marshal(rec.Enhancement); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode enhancement")
		}
	}
	notes := rec.Notes
	if notes == nil {
		notes = []string{}
	}
	notesJSON, _ := json.Marshal(notes)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audits (
			id, title, source, text_hash, score, rating, gap_count,
			features, report, enhancement, notes, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Title, rec.Source, rec.TextHash,
		rec.Report.OverallScore, string(rec.Report.RigorRating), len(rec.Report.CriticalGaps),
		features, report, enhancement, notesJSON, rec.CreatedAt,
	)
	if err != nil {
		r.logger.Error("AuditRepository.Save", logging.String("id", rec.ID), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save audit")
	}
	return nil
}

// GetByID loads one audit.
func (r *AuditRepository) GetByID(ctx context.Context, id string) (*audit.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audits WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeAuditNotFound, "audit not found").WithDetail("id=" + id)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load audit")
	}
	return rec, nil
}

// FindLatestByTextHash returns the newest audit of identical text.
func (r *AuditRepository) FindLatestByTextHash(ctx context.Context, hash string) (*audit.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+auditColumns+` FROM audits WHERE text_hash = $1 ORDER BY created_at DESC LIMIT 1`, hash)
	rec, err := scanRecord(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeAuditNotFound, "audit not found").WithDetail("text_hash=" + hash)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load audit")
	}
	return rec, nil
}

// List returns a page of audits, newest first, with the total row count.
func (r *AuditRepository) List(ctx context.Context, limit, offset int) ([]*audit.Record, int64, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audits`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count audits")
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audits ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list audits")
	}
	defer rows.Close()

	out := make([]*audit.Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan audit")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate audits")
	}
	return out, total, nil
}

// Delete removes an audit.
func (r *AuditRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM audits WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete audit")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeAuditNotFound, "audit not found").WithDetail("id=" + id)
	}
	return nil
}

func scanRecord(s scanner) (*audit.Record, error) {
	var rec audit.Record
	var features, report, enhancement, notes []byte
	var created time.Time
	if err := s.Scan(&rec.ID, &rec.Title, &rec.Source, &rec.TextHash,
		&features, &report, &enhancement, &notes, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(features, &rec.Features); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(report, &rec.Report); err != nil {
		return nil, err
	}
	if len(enhancement) > 0 && string(enhancement) != "null" {
		rec.Enhancement = &audit.Narrative{}
		if err := json.Unmarshal(enhancement, rec.Enhancement); err != nil {
			return nil, err
		}
	}
	if len(notes) > 0 {
		if err := json.Unmarshal(notes, &rec.Notes); err != nil {
			return nil, err
		}
	}
	rec.CreatedAt = created.UTC()
	return &rec, nil
}
