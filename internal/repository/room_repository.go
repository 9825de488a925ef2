package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/defense-jury-api/internal/models"
)

const roomColumns = `id, name, building, floor, capacity, available, created_at, updated_at`

// BookingLockKey names the transaction-scoped advisory lock that serialises every write to
// the shared room and evaluator calendars.
const BookingLockKey int64 = 0x6a757279

// RoomRepository is the room directory and its reservation book.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs the repository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListAvailable returns bookable rooms, smallest first.
func (r *RoomRepository) ListAvailable(ctx context.Context) ([]models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE available = TRUE ORDER BY capacity ASC, id ASC`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list available rooms: %w", err)
	}
	return rooms, nil
}

// FindByIDs returns the requested rooms regardless of availability.
func (r *RoomRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Room, error) {
	if len(ids) == 0 {
		return []models.Room{}, nil
	}
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = ANY($1) ORDER BY id ASC`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find rooms: %w", err)
	}
	return rooms, nil
}

// Reserve books a room for a time range.
func (r *RoomRepository) Reserve(ctx context.Context, exec sqlx.ExtContext, reservation *models.RoomReservation) error {
	if reservation.ID == "" {
		reservation.ID = uuid.NewString()
	}
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO room_reservations (id, room_id, sitting_id, starts_at, ends_at, purpose, created_at)
VALUES (:id, :room_id, :sitting_id, :starts_at, :ends_at, :purpose, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, reservation); err != nil {
		return fmt.Errorf("reserve room: %w", err)
	}
	return nil
}

// LockBookings blocks until no other transaction holds the booking lock. The lock is
// released when exec's transaction ends, so exec must be a transaction.
func (r *RoomRepository) LockBookings(ctx context.Context, exec sqlx.ExtContext) error {
	if _, err := r.exec(exec).ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, BookingLockKey); err != nil {
		return fmt.Errorf("acquire booking lock: %w", err)
	}
	return nil
}

// BusyIntervals returns every reservation intersecting [from, to), keyed by room id.
func (r *RoomRepository) BusyIntervals(ctx context.Context, exec sqlx.ExtContext, from, to time.Time) ([]models.BusyInterval, error) {
	const query = `SELECT room_id AS resource_id, sitting_id, starts_at, ends_at
FROM room_reservations WHERE starts_at < $2 AND ends_at > $1 ORDER BY starts_at ASC`
	var intervals []models.BusyInterval
	if err := sqlx.SelectContext(ctx, r.exec(exec), &intervals, query, from, to); err != nil {
		return nil, fmt.Errorf("list room reservations: %w", err)
	}
	return intervals, nil
}

// RescheduleSitting moves the reservation held by a sitting.
func (r *RoomRepository) RescheduleSitting(ctx context.Context, exec sqlx.ExtContext, sittingID string, start, end time.Time) error {
	const query = `UPDATE room_reservations SET starts_at = $1, ends_at = $2 WHERE sitting_id = $3`
	if _, err := r.exec(exec).ExecContext(ctx, query, start, end, sittingID); err != nil {
		return fmt.Errorf("reschedule room reservation: %w", err)
	}
	return nil
}
