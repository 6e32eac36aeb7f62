package database

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the transcript data access operations. Methods accept
// context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveEntry inserts a new transcript entry.
	SaveEntry(ctx context.Context, entry *Entry) error

	// RecentEntries retrieves the most recent 'limit' entries for a user,
	// newest first.
	RecentEntries(ctx context.Context, userID string, limit int) ([]Entry, error)

	// PruneEntriesBefore deletes entries older than cutoff and returns the
	// number of rows removed.
	PruneEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// RunMaintenance performs database maintenance tasks like VACUUM.
	RunMaintenance(ctx context.Context) error
}

// sqlxStore implements Store using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store implementation backed by sqlx. It requires a
// connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) SaveEntry(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cannot save nil entry")
	}
	if entry.UserID == "" {
		return fmt.Errorf("entry must have a non-empty user_id")
	}
	if entry.Direction != DirectionInbound && entry.Direction != DirectionOutbound {
		return fmt.Errorf("entry has invalid direction %q", entry.Direction)
	}
	if entry.Kind == "" {
		return fmt.Errorf("entry must have a non-empty kind")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.CreatedAt = time.Now().UTC()

	query := `INSERT INTO transcript_entries (created_at, user_id, direction, kind, content, timestamp)
	          VALUES (:created_at, :user_id, :direction, :kind, :content, :timestamp)`

	result, err := s.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to save transcript entry",
			"user_id", entry.UserID, "kind", entry.Kind, "error", err)
		return fmt.Errorf("failed to save transcript entry: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		entry.ID = uint(id)
	}
	return nil
}

func (s *sqlxStore) RecentEntries(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id must not be empty")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `SELECT id, created_at, user_id, direction, kind, content, timestamp
	          FROM transcript_entries
	          WHERE user_id = ?
	          ORDER BY timestamp DESC, id DESC
	          LIMIT ?`

	var entries []Entry
	if err := s.db.SelectContext(ctx, &entries, query, userID, limit); err != nil {
		s.logger.ErrorContext(ctx, "Failed to query transcript entries", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to query transcript entries: %w", err)
	}
	return entries, nil
}

func (s *sqlxStore) PruneEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM transcript_entries WHERE timestamp < ?`, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to prune transcript entries", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("failed to prune transcript entries: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned rows: %w", err)
	}
	s.logger.InfoContext(ctx, "Pruned transcript entries", "cutoff", cutoff, "removed", removed)
	return removed, nil
}

func (s *sqlxStore) RunMaintenance(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Running database maintenance (VACUUM)")
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to run VACUUM: %w", err)
	}
	return nil
}
