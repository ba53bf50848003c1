package repository

import (
	"context"
	"fmt"
	"time"
)

// BroadcastRepository logs admin broadcasts
type BroadcastRepository struct {
	db DBExecutor
}

// NewBroadcastRepository creates a new broadcast log repository
func NewBroadcastRepository(db DBExecutor) *BroadcastRepository {
	return &BroadcastRepository{db: db}
}

// Log records one broadcast and how many recipients it was delivered to
func (r *BroadcastRepository) Log(ctx context.Context, text string, sentBy int64, recipients int) error {
	query := `
		INSERT INTO broadcast_messages (message_text, sent_by, sent_at, recipients)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, text, sentBy, time.Now(), recipients)
	if err != nil {
		return fmt.Errorf("failed to log broadcast: %w", err)
	}

	return nil
}
