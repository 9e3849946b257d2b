package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solcred/prestago-backend/internal/domain"
)

// NotificationRepository implements domain.NotificationRepository using PostgreSQL
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Insert stores a notification.
func (r *NotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	var metadata []byte
	if n.Metadata != nil {
		var err error
		metadata, err = json.Marshal(n.Metadata)
		if err != nil {
			return err
		}
	}

	return r.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, kind, loan_id, client_id, message, metadata, read, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7, COALESCE($8, now()))
		RETURNING created_at`,
		n.ID, string(n.Kind), n.LoanID, n.ClientID, n.Message, metadata, n.Read, nullableTime(n),
	).Scan(&n.CreatedAt)
}

// List returns a page of notifications newest first plus the total count.
func (r *NotificationRepository) List(ctx context.Context, params domain.ListNotificationsParams) ([]*domain.Notification, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = 20
	}
	offset := (params.Page - 1) * params.Limit

	where := ``
	if params.UnreadOnly {
		where = `WHERE read = false`
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM notifications `+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, loan_id, client_id, message, metadata, read, created_at
		FROM notifications `+where+`
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, params.Limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	return items, total, rows.Err()
}

// MarkRead marks one notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE notifications SET read = true
		WHERE id = $1
		RETURNING id, kind, loan_id, client_id, message, metadata, read, created_at`, id)

	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, err
	}
	return n, nil
}

// MarkAllRead marks every unread notification as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `UPDATE notifications SET read = true WHERE read = false`)
	return err
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	var kind string
	var metadata []byte

	err := row.Scan(&n.ID, &kind, &n.LoanID, &n.ClientID, &n.Message, &metadata, &n.Read, &n.CreatedAt)
	if err != nil {
		return nil, err
	}

	n.Kind = domain.NotificationKind(kind)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
			return nil, err
		}
	}
	return &n, nil
}

func nullableTime(n *domain.Notification) interface{} {
	if n.CreatedAt.IsZero() {
		return nil
	}
	return n.CreatedAt
}
