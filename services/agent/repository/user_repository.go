package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kairosvoice/kairos-agent/services/agent/domain"
)

type UserRepository interface {
	FindByPhone(ctx context.Context, phone string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	Create(ctx context.Context, phone, fullName string) (*domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userCols = `id, phone_number, full_name, created_at, updated_at`

func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE phone_number=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var u domain.User
	err := r.pool.QueryRow(ctx, q, phone).Scan(
		&u.ID, &u.PhoneNumber, &u.FullName, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return &u, err
}

func (r *userRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var u domain.User
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&u.ID, &u.PhoneNumber, &u.FullName, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return &u, err
}

func (r *userRepository) Create(ctx context.Context, phone, fullName string) (*domain.User, error) {
	// A caller racing another call to create the same phone lands on the
	// existing row instead of a duplicate.
	const q = `INSERT INTO users (phone_number, full_name) VALUES ($1, $2)
		ON CONFLICT (phone_number) DO UPDATE SET updated_at = now()
		RETURNING ` + userCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var u domain.User
	err := r.pool.QueryRow(ctx, q, phone, fullName).Scan(
		&u.ID, &u.PhoneNumber, &u.FullName, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
