package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository"
)

type queueRepository struct {
	BaseRepository
}

func NewNotificationQueueRepository(base BaseRepository) repository.NotificationQueueRepository {
	return &queueRepository{base}
}

// queuedRow flattens the recipient descriptor into its three columns.
type queuedRow struct {
	ID           uuid.UUID       `db:"id"`
	CaseID       *uuid.UUID      `db:"case_id"`
	TemplateCode string          `db:"template_code"`
	UserID       *uuid.UUID      `db:"recipient_user_id"`
	Role         *string         `db:"recipient_role"`
	Location     *string         `db:"recipient_location"`
	TriggerEvent string          `db:"trigger_event"`
	Context      json.RawMessage `db:"context"`
	Status       string          `db:"status"`
	RetryCount   int             `db:"retry_count"`
	LastError    *string         `db:"last_error"`
	SentAt       *time.Time      `db:"sent_at"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (row *queuedRow) toModel() (*model.QueuedNotification, error) {
	n := &model.QueuedNotification{
		ID:           row.ID,
		CaseID:       row.CaseID,
		TemplateCode: row.TemplateCode,
		TriggerEvent: row.TriggerEvent,
		Status:       model.NotificationStatus(row.Status),
		RetryCount:   row.RetryCount,
		SentAt:       row.SentAt,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.UserID != nil {
		n.Recipient.UserID = row.UserID
	}
	if row.Role != nil {
		n.Recipient.Role = *row.Role
	}
	if row.Location != nil {
		n.Recipient.Location = *row.Location
	}
	if row.LastError != nil {
		n.LastError = *row.LastError
	}
	if len(row.Context) > 0 {
		if err := json.Unmarshal(row.Context, &n.Context); err != nil {
			return nil, fmt.Errorf("failed to decode notification context: %w", err)
		}
	}
	return n, nil
}

const queueColumns = `id, case_id, template_code, recipient_user_id,
	recipient_role, recipient_location, trigger_event, context, status,
	retry_count, last_error, sent_at, created_at, updated_at`

func (r *queueRepository) Create(ctx context.Context, n *model.QueuedNotification) error {
	payload, err := n.ContextJSON()
	if err != nil {
		return fmt.Errorf("failed to encode notification context: %w", err)
	}

	query := `
		INSERT INTO queued_notifications (
			id, case_id, template_code, recipient_user_id, recipient_role,
			recipient_location, trigger_event, context, status, retry_count,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.ExecContext(ctx, query,
		n.ID, n.CaseID, n.TemplateCode, n.Recipient.UserID,
		n.Recipient.Role, n.Recipient.Location, n.TriggerEvent,
		payload, n.Status, n.RetryCount, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create queued notification: %w", err)
	}
	return nil
}

func (r *queueRepository) ExistsSince(ctx context.Context, key model.DedupKey, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM queued_notifications
			WHERE template_code = $1
			AND trigger_event = $2
			AND case_id IS NOT DISTINCT FROM $3
			AND recipient_user_id IS NOT DISTINCT FROM $4
			AND recipient_role IS NOT DISTINCT FROM NULLIF($5, '')
			AND recipient_location IS NOT DISTINCT FROM NULLIF($6, '')
			AND status IN ($7, $8)
			AND created_at >= $9
		)
	`
	var exists bool
	err := r.db.GetContext(ctx, &exists, query,
		key.TemplateCode, key.TriggerEvent, key.CaseID,
		key.Recipient.UserID, key.Recipient.Role, key.Recipient.Location,
		model.NotificationStatusPending, model.NotificationStatusSent,
		since,
	)
	if err != nil {
		return false, fmt.Errorf("failed dedup check: %w", err)
	}
	return exists, nil
}

func (r *queueRepository) ListPending(ctx context.Context, limit int) ([]*model.QueuedNotification, error) {
	query := `
		SELECT ` + queueColumns + `
		FROM queued_notifications
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	var rows []*queuedRow
	if err := r.db.SelectContext(ctx, &rows, query, model.NotificationStatusPending, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}

	out := make([]*model.QueuedNotification, 0, len(rows))
	for _, row := range rows {
		n, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *queueRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE queued_notifications
		SET status = $1, sent_at = $2, updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, model.NotificationStatusSent, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

func (r *queueRepository) RecordAttempt(ctx context.Context, id uuid.UUID, errMsg string, at time.Time) error {
	query := `
		UPDATE queued_notifications
		SET retry_count = retry_count + 1, last_error = $1, updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, errMsg, at, id)
	if err != nil {
		return fmt.Errorf("failed to record delivery attempt: %w", err)
	}
	return nil
}

func (r *queueRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, at time.Time) error {
	query := `
		UPDATE queued_notifications
		SET status = $1, retry_count = retry_count + 1, last_error = $2, updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, model.NotificationStatusFailed, errMsg, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

func (r *queueRepository) DeleteTerminalBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM queued_notifications
		WHERE status IN ($1, $2)
		AND created_at < $3
	`
	res, err := r.db.ExecContext(ctx, query,
		model.NotificationStatusSent, model.NotificationStatusFailed, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", err)
	}
	return res.RowsAffected()
}
