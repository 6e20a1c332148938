package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kairosvoice/kairos-agent/services/agent/domain"
)

type ConversationLogRepository interface {
	Create(ctx context.Context, userID *int64, summary string) (*domain.ConversationLog, error)
	ListRecent(ctx context.Context, limit int) ([]domain.ConversationLog, error)
}

type conversationLogRepository struct {
	pool *pgxpool.Pool
}

func NewConversationLogRepository(pool *pgxpool.Pool) ConversationLogRepository {
	return &conversationLogRepository{pool: pool}
}

const logCols = `id, user_id, summary, created_at`

func (r *conversationLogRepository) Create(ctx context.Context, userID *int64, summary string) (*domain.ConversationLog, error) {
	const q = `INSERT INTO conversation_logs (user_id, summary) VALUES ($1, $2)
		RETURNING ` + logCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var l domain.ConversationLog
	err := r.pool.QueryRow(ctx, q, userID, summary).Scan(
		&l.ID, &l.UserID, &l.Summary, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *conversationLogRepository) ListRecent(ctx context.Context, limit int) ([]domain.ConversationLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	const q = `SELECT ` + logCols + ` FROM conversation_logs
		ORDER BY created_at DESC LIMIT $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.ConversationLog
	for rows.Next() {
		var l domain.ConversationLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Summary, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
