package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classbook/classbook-api/internal/models"
)

// BookingRepository handles persistence of bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Insert creates a booking unless one already exists for the same
// (user_id, class_id, start_at) key. The uniqueness constraint on that triple
// is the serialization point for concurrent admissions: the insert either wins
// and reports true, or loses the race and reports false. No row is touched in
// the losing case.
func (r *BookingRepository) Insert(ctx context.Context, booking *models.Booking) (bool, error) {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO bookings (id, user_id, class_id, start_at, end_at, created_at)
        VALUES (:id, :user_id, :class_id, :start_at, :end_at, :created_at)
        ON CONFLICT (user_id, class_id, start_at) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, booking)
	if err != nil {
		return false, fmt.Errorf("insert booking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert booking rows affected: %w", err)
	}
	return affected == 1, nil
}

// FindByKey returns the booking for the unique (user, class, start) triple.
func (r *BookingRepository) FindByKey(ctx context.Context, userID, classID string, startAt time.Time) (*models.Booking, error) {
	const query = `SELECT id, user_id, class_id, start_at, end_at, created_at
        FROM bookings WHERE user_id = $1 AND class_id = $2 AND start_at = $3`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, userID, classID, startAt); err != nil {
		return nil, err
	}
	return &booking, nil
}

// Exists checks whether a booking exists for the unique triple.
func (r *BookingRepository) Exists(ctx context.Context, userID, classID string, startAt time.Time) (bool, error) {
	const query = `SELECT 1 FROM bookings WHERE user_id = $1 AND class_id = $2 AND start_at = $3 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, userID, classID, startAt); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check booking: %w", err)
	}
	return true, nil
}

// List returns bookings for a user, newest session first unless UpcomingOnly
// is set, in which case the soonest session comes first.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.BookingDetail, int, error) {
	base := `FROM bookings b
JOIN classes c ON c.id = b.class_id
JOIN locations l ON l.id = c.location_id
WHERE b.user_id = $1`
	args := []interface{}{filter.UserID}

	if filter.ClassID != "" {
		base += fmt.Sprintf(" AND b.class_id = $%d", len(args)+1)
		args = append(args, filter.ClassID)
	}
	order := "b.start_at DESC"
	if filter.UpcomingOnly {
		base += fmt.Sprintf(" AND b.start_at >= $%d", len(args)+1)
		args = append(args, time.Now().UTC())
		order = "b.start_at ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT b.id, b.user_id, b.class_id, b.start_at, b.end_at, b.created_at,
        c.title AS class_title, c.slug AS class_slug, l.city AS location_city
        %s ORDER BY %s LIMIT %d OFFSET %d`, base, order, size, offset)

	var bookings []models.BookingDetail
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}
