package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/herald/internal/dispatch"
	"github.com/edgard/herald/internal/store"
)

// Store is the delivery journal.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RecordAttempt journals one dispatch attempt. It satisfies dispatch.Recorder.
	RecordAttempt(ctx context.Context, a dispatch.Attempt) error

	// RecentDeliveries returns up to limit attempts, newest first.
	RecentDeliveries(ctx context.Context, limit int) ([]Delivery, error)

	// PruneDeliveries deletes attempts older than before and returns how many were removed.
	PruneDeliveries(ctx context.Context, before time.Time) (int64, error)

	// RunSQLMaintenance compacts the database file.
	RunSQLMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a journal backed by db.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "journal"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) RecordAttempt(ctx context.Context, a dispatch.Attempt) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	at := a.At
	if at.IsZero() {
		at = time.Now()
	}
	d := Delivery{
		ItemID:           a.ItemID,
		Kind:             a.Kind,
		Platform:         string(a.Platform),
		RecipientName:    a.Recipient.Name,
		RecipientAddress: recipientAddress(a.Platform, a.Recipient),
		Body:             a.Body,
		Success:          a.Result.Success,
		Detail:           a.Result.Message,
		AttemptedAt:      at.UTC(),
	}

	const query = `
        INSERT INTO deliveries (item_id, kind, platform, recipient_name, recipient_address, body, success, detail, attempted_at)
        VALUES (:item_id, :kind, :platform, :recipient_name, :recipient_address, :body, :success, :detail, :attempted_at);
    `
	if _, err := s.db.NamedExecContext(ctx, query, d); err != nil {
		s.logger.ErrorContext(ctx, "Failed to insert delivery", "item_id", a.ItemID, "platform", a.Platform, "error", err)
		return fmt.Errorf("failed to record delivery: %w", err)
	}

	s.logger.DebugContext(ctx, "Delivery recorded", "item_id", a.ItemID, "success", d.Success)
	return nil
}

func (s *sqlxStore) RecentDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 20
	} else if limit > 100 {
		limit = 100
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var out []Delivery
	const query = `
        SELECT id, item_id, kind, platform, recipient_name, recipient_address, body, success, detail, attempted_at
        FROM deliveries
        ORDER BY attempted_at DESC, id DESC
        LIMIT ?;
    `
	err := s.db.SelectContext(ctx, &out, query, limit)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching deliveries", "error", err)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting recent deliveries", "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to get recent deliveries: %w", err)
	}
	return out, nil
}

func (s *sqlxStore) PruneDeliveries(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM deliveries WHERE attempted_at < ?;`, before.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to prune deliveries", "before", before, "error", err)
		return 0, fmt.Errorf("failed to prune deliveries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned deliveries: %w", err)
	}
	s.logger.InfoContext(ctx, "Pruned old deliveries", "count", n, "before", before)
	return n, nil
}

func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)")

	// VACUUM cannot run inside a transaction.
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}

func recipientAddress(p store.Platform, r store.Recipient) string {
	switch p {
	case store.PlatformTelegram:
		return r.TelegramID
	case store.PlatformWhatsApp:
		return r.Phone
	case store.PlatformEmail:
		return r.Email
	default:
		return ""
	}
}
