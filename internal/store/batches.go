package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/novatra/novabot/internal/tasks"
)

// BatchInput describes the scanned window of a new extraction run.
type BatchInput struct {
	UserID          int64
	SourceChannelID int64
	TargetChannelID int64
	MessageStartID  int64
	MessageEndID    int64
	MessageCount    int
}

// CreateBatch persists a new open batch and returns its id.
func (s *Store) CreateBatch(ctx context.Context, in BatchInput) (int64, error) {
	now := s.now().Unix()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO task_batches (user_id, source_channel_id, target_channel_id,
			message_start_id, message_end_id, message_count, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 'open', ?, ?)
	`, in.UserID, in.SourceChannelID, in.TargetChannelID,
		nullInt64(in.MessageStartID), nullInt64(in.MessageEndID), in.MessageCount, now, now)
	if err != nil {
		return 0, fmt.Errorf("create batch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read batch id: %w", err)
	}
	return id, nil
}

// GetBatch retrieves a batch by id.
func (s *Store) GetBatch(ctx context.Context, batchID int64) (*tasks.Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, source_channel_id, target_channel_id,
			COALESCE(message_start_id, 0), COALESCE(message_end_id, 0), message_count, status,
			created_at, updated_at
		FROM task_batches WHERE id = ?
	`, batchID)

	var b tasks.Batch
	var createdAt, updatedAt int64
	err := row.Scan(&b.ID, &b.UserID, &b.SourceChannelID, &b.TargetChannelID,
		&b.MessageStartID, &b.MessageEndID, &b.MessageCount, &b.Status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %d: %w", batchID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	b.CreatedAt = time.Unix(createdAt, 0)
	b.UpdatedAt = time.Unix(updatedAt, 0)
	return &b, nil
}

// UpdateBatchStatus sets the informational status of a batch.
func (s *Store) UpdateBatchStatus(ctx context.Context, batchID int64, status string) error {
	return s.exec(ctx, "update batch status",
		`UPDATE task_batches SET status = ?, updated_at = ? WHERE id = ?`,
		status, s.now().Unix(), batchID)
}

// GetLastMessageID returns the ingestion watermark of a channel, 0 if none.
func (s *Store) GetLastMessageID(ctx context.Context, channelID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_message_id FROM channel_progress WHERE channel_id = ?`, channelID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get last message id: %w", err)
	}
	return id, nil
}

// SetLastMessageID upserts the watermark of a channel. The stored value never
// moves backwards.
func (s *Store) SetLastMessageID(ctx context.Context, channelID, messageID int64) error {
	return s.exec(ctx, "set last message id", `
		INSERT INTO channel_progress (channel_id, last_message_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET
			last_message_id = MAX(last_message_id, excluded.last_message_id),
			updated_at = excluded.updated_at
	`, channelID, messageID, s.now().Unix())
}
