package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/salon-events/salonbridge/internal/platform/database"
)

// ListFilter narrows List results. Zero fields are not applied.
type ListFilter struct {
	From   time.Time
	To     time.Time
	Status string
	Limit  int
	Offset int
}

// Repository persists bookings per site instance.
type Repository interface {
	Upsert(ctx context.Context, instanceID string, b Booking) error
	Get(ctx context.Context, instanceID, bookingID string) (*Booking, error)
	List(ctx context.Context, instanceID string, f ListFilter) ([]Booking, error)
	UpdateStatus(ctx context.Context, instanceID, bookingID, status string) error
	Reschedule(ctx context.Context, instanceID, bookingID string, start, end time.Time) error
}

// Store is the Postgres-backed Repository. Every call runs on a connection
// scoped to the instance, so row-level security applies to non-owner roles;
// queries also filter on instance_id.
type Store struct {
	pool *database.Pool
}

func NewStore(pool *database.Pool) *Store {
	return &Store{pool: pool}
}

const bookingColumns = `booking_id, instance_id, contact_id, customer_name, customer_email, customer_phone,
	service_id, service_name, staff_member_id, staff_name, start_time, end_time, duration_minutes,
	status, notes, total_price, location_id, location_name, number_of_participants`

func (s *Store) Upsert(ctx context.Context, instanceID string, b Booking) error {
	return database.WithTenantConnection(ctx, s.pool, instanceID, func(ctx context.Context, q database.Querier) error {
		return upsertBooking(ctx, q, instanceID, b)
	})
}

func (s *Store) Get(ctx context.Context, instanceID, bookingID string) (*Booking, error) {
	var b *Booking
	err := database.WithTenantConnection(ctx, s.pool, instanceID, func(ctx context.Context, q database.Querier) error {
		var getErr error
		b, getErr = getBooking(ctx, q, instanceID, bookingID)
		return getErr
	})
	return b, err
}

func (s *Store) List(ctx context.Context, instanceID string, f ListFilter) ([]Booking, error) {
	var out []Booking
	err := database.WithTenantConnection(ctx, s.pool, instanceID, func(ctx context.Context, q database.Querier) error {
		var listErr error
		out, listErr = listBookings(ctx, q, instanceID, f)
		return listErr
	})
	return out, err
}

func (s *Store) UpdateStatus(ctx context.Context, instanceID, bookingID, status string) error {
	return database.WithTenantConnection(ctx, s.pool, instanceID, func(ctx context.Context, q database.Querier) error {
		tag, err := q.Exec(ctx,
			`UPDATE salon_appointments SET status = $3, updated_at = now()
			 WHERE instance_id = $1 AND booking_id = $2`,
			instanceID, bookingID, status)
		if err != nil {
			return fmt.Errorf("updating booking status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *Store) Reschedule(ctx context.Context, instanceID, bookingID string, start, end time.Time) error {
	return database.WithTenantConnection(ctx, s.pool, instanceID, func(ctx context.Context, q database.Querier) error {
		tag, err := q.Exec(ctx,
			`UPDATE salon_appointments
			 SET start_time = $3, end_time = $4, updated_at = now()
			 WHERE instance_id = $1 AND booking_id = $2`,
			instanceID, bookingID, nullTime(start), nullTime(end))
		if err != nil {
			return fmt.Errorf("rescheduling booking: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func upsertBooking(ctx context.Context, q database.Querier, instanceID string, b Booking) error {
	if b.ID == "" {
		return fmt.Errorf("booking id is required")
	}
	_, err := q.Exec(ctx, `
		INSERT INTO salon_appointments (id, `+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (instance_id, booking_id) DO UPDATE SET
			contact_id = EXCLUDED.contact_id,
			customer_name = EXCLUDED.customer_name,
			customer_email = EXCLUDED.customer_email,
			customer_phone = EXCLUDED.customer_phone,
			service_id = EXCLUDED.service_id,
			service_name = EXCLUDED.service_name,
			staff_member_id = EXCLUDED.staff_member_id,
			staff_name = EXCLUDED.staff_name,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			duration_minutes = EXCLUDED.duration_minutes,
			status = EXCLUDED.status,
			notes = EXCLUDED.notes,
			total_price = EXCLUDED.total_price,
			location_id = EXCLUDED.location_id,
			location_name = EXCLUDED.location_name,
			number_of_participants = EXCLUDED.number_of_participants,
			updated_at = now()`,
		uuid.NewString(), b.ID, instanceID, b.ContactID, b.CustomerName, b.CustomerEmail, b.CustomerPhone,
		b.ServiceID, b.ServiceName, b.StaffMemberID, b.StaffName, nullTime(b.StartTime), nullTime(b.EndTime),
		b.DurationMinutes, b.Status, b.Notes, b.TotalPrice, b.LocationID, b.LocationName, b.NumberOfParticipants,
	)
	if err != nil {
		return fmt.Errorf("upserting booking: %w", err)
	}
	return nil
}

func getBooking(ctx context.Context, q database.Querier, instanceID, bookingID string) (*Booking, error) {
	rows, err := q.Query(ctx,
		`SELECT `+bookingColumns+` FROM salon_appointments WHERE instance_id = $1 AND booking_id = $2`,
		instanceID, bookingID)
	if err != nil {
		return nil, fmt.Errorf("querying booking: %w", err)
	}
	b, err := pgx.CollectExactlyOneRow(rows, scanBooking)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning booking: %w", err)
	}
	return &b, nil
}

func listBookings(ctx context.Context, q database.Querier, instanceID string, f ListFilter) ([]Booking, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := q.Query(ctx, `
		SELECT `+bookingColumns+` FROM salon_appointments
		WHERE instance_id = $1
		  AND ($2::timestamptz IS NULL OR start_time >= $2)
		  AND ($3::timestamptz IS NULL OR end_time <= $3)
		  AND ($4::text = '' OR status = $4)
		ORDER BY start_time ASC NULLS LAST, booking_id ASC
		LIMIT $5 OFFSET $6`,
		instanceID, nullTime(f.From), nullTime(f.To), f.Status, limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("listing bookings: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanBooking)
	if err != nil {
		return nil, fmt.Errorf("scanning bookings: %w", err)
	}
	return out, nil
}

func scanBooking(row pgx.CollectableRow) (Booking, error) {
	var (
		b          Booking
		start, end *time.Time
	)
	err := row.Scan(
		&b.ID, &b.InstanceID, &b.ContactID, &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone,
		&b.ServiceID, &b.ServiceName, &b.StaffMemberID, &b.StaffName, &start, &end, &b.DurationMinutes,
		&b.Status, &b.Notes, &b.TotalPrice, &b.LocationID, &b.LocationName, &b.NumberOfParticipants,
	)
	if start != nil {
		b.StartTime = start.UTC()
	}
	if end != nil {
		b.EndTime = end.UTC()
	}
	return b, err
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
