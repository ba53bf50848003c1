package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cryptoshop/shopbot/internal/model"
)

// EntryResult is the outcome of a giveaway entry attempt
type EntryResult int

const (
	// EntryOK means the entry was recorded
	EntryOK EntryResult = iota
	// EntryAlreadyEntered means this user already has an entry
	EntryAlreadyEntered
	// EntryNotFound means the giveaway does not exist or is inactive
	EntryNotFound
	// EntryEnded means the giveaway's end date has passed
	EntryEnded
	// EntryCapacityReached means the giveaway is full
	EntryCapacityReached
)

// GiveawayRepository handles giveaway campaigns and their entries
type GiveawayRepository struct {
	db *sqlx.DB

	now func() time.Time
}

// NewGiveawayRepository creates a new giveaway repository
func NewGiveawayRepository(db *sqlx.DB) *GiveawayRepository {
	return &GiveawayRepository{db: db, now: time.Now}
}

// Create inserts a new giveaway and sets its id
func (r *GiveawayRepository) Create(ctx context.Context, g *model.Giveaway) error {
	query := `
		INSERT INTO giveaways (title, description, prize, start_date, end_date, max_entries, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id
	`

	err := r.db.GetContext(ctx, &g.ID, query,
		g.Title, g.Description, g.Prize, g.StartDate, g.EndDate, g.MaxEntries)
	if err != nil {
		return fmt.Errorf("failed to create giveaway: %w", err)
	}
	g.IsActive = true

	return nil
}

// Active returns active giveaways that have not ended as of the given day,
// ordered by end date ascending. A giveaway ending today is still listed.
func (r *GiveawayRepository) Active(ctx context.Context, asOf time.Time) ([]model.Giveaway, error) {
	query := `
		SELECT id, title, description, prize, start_date, end_date, max_entries, is_active
		FROM giveaways
		WHERE is_active AND end_date >= $1
		ORDER BY end_date ASC
	`

	var giveaways []model.Giveaway
	if err := r.db.SelectContext(ctx, &giveaways, query, asOf.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("failed to list active giveaways: %w", err)
	}

	return giveaways, nil
}

// Entries returns all entries for a giveaway, oldest first
func (r *GiveawayRepository) Entries(ctx context.Context, giveawayID int64) ([]model.GiveawayEntry, error) {
	query := `
		SELECT id, giveaway_id, user_id, username, entered_at
		FROM giveaway_entries
		WHERE giveaway_id = $1
		ORDER BY entered_at ASC
	`

	var entries []model.GiveawayEntry
	if err := r.db.SelectContext(ctx, &entries, query, giveawayID); err != nil {
		return nil, fmt.Errorf("failed to list giveaway entries: %w", err)
	}

	return entries, nil
}

// EntryCount returns the number of entries for a giveaway
func (r *GiveawayRepository) EntryCount(ctx context.Context, giveawayID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM giveaway_entries WHERE giveaway_id = $1`
	if err := r.db.GetContext(ctx, &count, query, giveawayID); err != nil {
		return 0, fmt.Errorf("failed to count giveaway entries: %w", err)
	}

	return count, nil
}

// Enter records one user's entry. The uniqueness and capacity checks run in
// a single transaction holding a row lock on the giveaway, so concurrent
// entrants cannot push the count past max_entries. Rejection checks are
// evaluated in order: already entered, not found or inactive, ended,
// capacity reached; the first match wins.
func (r *GiveawayRepository) Enter(ctx context.Context, giveawayID, userID int64, username string) (EntryResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.GetContext(ctx, &existing,
		`SELECT id FROM giveaway_entries WHERE giveaway_id = $1 AND user_id = $2`,
		giveawayID, userID)
	if err == nil {
		return EntryAlreadyEntered, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to check existing entry: %w", err)
	}

	// Lock the giveaway row; later entrants for the same giveaway queue
	// behind this transaction until commit.
	var g model.Giveaway
	err = tx.GetContext(ctx, &g,
		`SELECT id, title, description, prize, start_date, end_date, max_entries, is_active
		 FROM giveaways
		 WHERE id = $1 AND is_active
		 FOR UPDATE`,
		giveawayID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EntryNotFound, nil
		}
		return 0, fmt.Errorf("failed to get giveaway: %w", err)
	}

	now := r.now()
	if beforeDay(g.EndDate, now) {
		return EntryEnded, nil
	}

	var count int
	err = tx.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM giveaway_entries WHERE giveaway_id = $1`, giveawayID)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	if count >= g.MaxEntries {
		return EntryCapacityReached, nil
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO giveaway_entries (giveaway_id, user_id, username, entered_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (giveaway_id, user_id) DO NOTHING`,
		giveawayID, userID, username, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// A concurrent entry for this user slipped in before our lock.
		return EntryAlreadyEntered, nil
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return EntryOK, nil
}
