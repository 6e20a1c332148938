package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kairosvoice/kairos-agent/services/agent/domain"
)

type AppointmentRepository interface {
	Create(ctx context.Context, userID int64, start, end time.Time, description string) (*domain.Appointment, error)
	FindBookedBetween(ctx context.Context, start, end time.Time) (*domain.Appointment, error)
	ListUpcoming(ctx context.Context, userID int64, after time.Time, limit int) ([]domain.Appointment, error)
	FirstBookedOnDay(ctx context.Context, userID int64, day time.Time) (*domain.Appointment, error)
	Reschedule(ctx context.Context, id int64, start, end time.Time) (*domain.Appointment, error)
	CancelOnDay(ctx context.Context, userID int64, day time.Time) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Appointment, error)
}

type appointmentRepository struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepository(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepository{pool: pool}
}

const appointmentCols = `id, user_id, start_time, end_time, status, description, created_at, updated_at`

func (r *appointmentRepository) Create(ctx context.Context, userID int64, start, end time.Time, description string) (*domain.Appointment, error) {
	const q = `INSERT INTO appointments (user_id, start_time, end_time, status, description)
		VALUES ($1, $2, $3, 'booked', $4)
		RETURNING ` + appointmentCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var a domain.Appointment
	err := r.pool.QueryRow(ctx, q, userID, start, end, description).Scan(
		&a.ID, &a.UserID, &a.StartTime, &a.EndTime, &a.Status, &a.Description, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindBookedBetween returns any booked appointment starting in [start, end),
// regardless of owner. The calendar is a single shared resource.
func (r *appointmentRepository) FindBookedBetween(ctx context.Context, start, end time.Time) (*domain.Appointment, error) {
	const q = `SELECT ` + appointmentCols + ` FROM appointments
		WHERE status='booked' AND start_time >= $1 AND start_time < $2
		LIMIT 1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var a domain.Appointment
	err := r.pool.QueryRow(ctx, q, start, end).Scan(
		&a.ID, &a.UserID, &a.StartTime, &a.EndTime, &a.Status, &a.Description, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return &a, err
}

func (r *appointmentRepository) ListUpcoming(ctx context.Context, userID int64, after time.Time, limit int) ([]domain.Appointment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	const q = `SELECT ` + appointmentCols + ` FROM appointments
		WHERE user_id=$1 AND status='booked' AND start_time > $2
		ORDER BY start_time ASC LIMIT $3`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, userID, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAppointments(rows)
}

// FirstBookedOnDay returns the user's first booked appointment starting
// within the given calendar day, or nil when none exists. Multiple bookings
// the same day resolve to the earliest one.
func (r *appointmentRepository) FirstBookedOnDay(ctx context.Context, userID int64, day time.Time) (*domain.Appointment, error) {
	dayStart, dayEnd := domain.DayWindow(day)

	const q = `SELECT ` + appointmentCols + ` FROM appointments
		WHERE user_id=$1 AND status='booked' AND start_time >= $2 AND start_time <= $3
		ORDER BY start_time ASC LIMIT 1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var a domain.Appointment
	err := r.pool.QueryRow(ctx, q, userID, dayStart, dayEnd).Scan(
		&a.ID, &a.UserID, &a.StartTime, &a.EndTime, &a.Status, &a.Description, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return &a, err
}

func (r *appointmentRepository) Reschedule(ctx context.Context, id int64, start, end time.Time) (*domain.Appointment, error) {
	const q = `UPDATE appointments SET start_time=$2, end_time=$3, updated_at=now()
		WHERE id=$1
		RETURNING ` + appointmentCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var a domain.Appointment
	err := r.pool.QueryRow(ctx, q, id, start, end).Scan(
		&a.ID, &a.UserID, &a.StartTime, &a.EndTime, &a.Status, &a.Description, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return &a, err
}

// CancelOnDay marks every booked appointment of the user starting within
// the calendar day as cancelled and returns how many rows changed.
func (r *appointmentRepository) CancelOnDay(ctx context.Context, userID int64, day time.Time) (int64, error) {
	dayStart, dayEnd := domain.DayWindow(day)

	const q = `UPDATE appointments SET status='cancelled', updated_at=now()
		WHERE user_id=$1 AND status='booked' AND start_time >= $2 AND start_time <= $3`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, userID, dayStart, dayEnd)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *appointmentRepository) ListRecent(ctx context.Context, limit int) ([]domain.Appointment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	const q = `SELECT ` + appointmentCols + ` FROM appointments
		ORDER BY start_time DESC LIMIT $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAppointments(rows)
}

func scanAppointments(rows pgx.Rows) ([]domain.Appointment, error) {
	var appointments []domain.Appointment
	for rows.Next() {
		var a domain.Appointment
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.StartTime, &a.EndTime, &a.Status, &a.Description, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
	}
	return appointments, rows.Err()
}
