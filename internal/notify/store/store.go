package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onlyif-au/onlyif/internal/notify"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectNotificationColumns = `
	id, recipient_id, kind, payload, status, attempts,
	next_attempt_at, last_error, created_at, delivered_at
`

func scanNotification(s scanner) (*notify.Notification, error) {
	var n notify.Notification

	var kindStr, statusStr string

	var lastError sql.NullString

	if err := s.Scan(
		&n.ID, &n.RecipientID, &kindStr, &n.Payload, &statusStr, &n.Attempts,
		&n.NextAttemptAt, &lastError, &n.CreatedAt, &n.DeliveredAt,
	); err != nil {
		return nil, err
	}

	n.Kind = notify.Kind(kindStr)
	n.Status = notify.Status(statusStr)
	n.LastError = lastError.String

	return &n, nil
}

func (s *Store) Enqueue(ctx context.Context, notifications []*notify.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	query := `
		INSERT INTO notifications (recipient_id, kind, payload, status, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`

	for _, n := range notifications {
		err := s.db.QueryRowContext(ctx, query,
			n.RecipientID,
			n.Kind,
			n.Payload,
			n.Status,
			n.NextAttemptAt,
		).Scan(&n.ID, &n.CreatedAt)
		if err != nil {
			return fmt.Errorf("enqueueing notification: %w", err)
		}
	}

	return nil
}

func (s *Store) ListDue(ctx context.Context, now time.Time, limit int) ([]*notify.Notification, error) {
	query := `SELECT ` + selectNotificationColumns + `
		FROM notifications
		WHERE status = 'pending' AND next_attempt_at <= $1
		ORDER BY next_attempt_at ASC
		LIMIT $2`

	return s.queryNotifications(ctx, query, now, limit)
}

func (s *Store) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE notifications
		SET status = 'delivered', delivered_at = $1, last_error = NULL
		WHERE id = $2
	`

	if _, err := s.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("marking notification delivered: %w", err)
	}

	return nil
}

func (s *Store) Reschedule(ctx context.Context, id uuid.UUID, attempts int, nextAttemptAt time.Time, lastError string) error {
	query := `
		UPDATE notifications
		SET attempts = $1, next_attempt_at = $2, last_error = $3
		WHERE id = $4
	`

	if _, err := s.db.ExecContext(ctx, query, attempts, nextAttemptAt, lastError, id); err != nil {
		return fmt.Errorf("rescheduling notification: %w", err)
	}

	return nil
}

func (s *Store) MarkDead(ctx context.Context, id uuid.UUID, lastError string) error {
	query := `
		UPDATE notifications
		SET status = 'dead', attempts = attempts + 1, last_error = $1
		WHERE id = $2
	`

	if _, err := s.db.ExecContext(ctx, query, lastError, id); err != nil {
		return fmt.Errorf("marking notification dead: %w", err)
	}

	return nil
}

func (s *Store) ListDead(ctx context.Context, limit int) ([]*notify.Notification, error) {
	query := `SELECT ` + selectNotificationColumns + `
		FROM notifications
		WHERE status = 'dead'
		ORDER BY created_at DESC
		LIMIT $1`

	return s.queryNotifications(ctx, query, limit)
}

func (s *Store) queryNotifications(ctx context.Context, query string, args ...any) ([]*notify.Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*notify.Notification

	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}

		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}
