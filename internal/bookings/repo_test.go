package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/studiohubhq/studiohub-backend/pkg/db/models"
	"github.com/studiohubhq/studiohub-backend/pkg/enums"
)

func setupBookingsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	rentals := `
CREATE TABLE IF NOT EXISTS rentals (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  device_name TEXT NOT NULL,
  description TEXT,
  hourly_rate_kobo INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);`
	bookings := `
CREATE TABLE IF NOT EXISTS bookings (
  id TEXT PRIMARY KEY,
  rental_id TEXT NOT NULL,
  renter_id TEXT NOT NULL,
  start_time DATETIME NOT NULL,
  end_time DATETIME NOT NULL,
  total_kobo INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  escrow_released INTEGER NOT NULL DEFAULT 0,
  complaint_reason TEXT,
  complaint_at DATETIME,
  dispute_reason TEXT,
  dispute_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	outboxEvents := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, db.Exec(rentals).Error)
	require.NoError(t, db.Exec(bookings).Error)
	require.NoError(t, db.Exec(outboxEvents).Error)
	return db
}

func newApprovedRental(t *testing.T, db *gorm.DB, hourlyRateKobo int64) *models.Rental {
	t.Helper()

	rental := &models.Rental{
		ID:             uuid.New(),
		OwnerID:        uuid.New(),
		DeviceName:     "Neumann U87",
		HourlyRateKobo: hourlyRateKobo,
		Status:         enums.RentalStatusApproved,
	}
	require.NoError(t, db.Create(rental).Error)
	return rental
}

func newBooking(t *testing.T, db *gorm.DB, rentalID uuid.UUID, status enums.BookingStatus, start, end time.Time) *models.Booking {
	t.Helper()

	booking := &models.Booking{
		ID:        uuid.New(),
		RentalID:  rentalID,
		RenterID:  uuid.New(),
		StartTime: start,
		EndTime:   end,
		TotalKobo: 50_000,
		Status:    status,
	}
	require.NoError(t, db.Create(booking).Error)
	return booking
}

func TestHasConflictClosedInterval(t *testing.T) {
	db := setupBookingsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	rental := newApprovedRental(t, db, 10_000)
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	newBooking(t, db, rental.ID, enums.BookingStatusAccepted,
		day.Add(10*time.Hour), day.Add(12*time.Hour))

	cases := []struct {
		name   string
		window Window
		want   bool
	}{
		{
			name:   "overlapping window",
			window: Window{Start: day.Add(11 * time.Hour), End: day.Add(13 * time.Hour)},
			want:   true,
		},
		{
			name:   "window fully inside existing booking",
			window: Window{Start: day.Add(10*time.Hour + 30*time.Minute), End: day.Add(11 * time.Hour)},
			want:   true,
		},
		{
			name:   "start touches existing end",
			window: Window{Start: day.Add(12 * time.Hour), End: day.Add(14 * time.Hour)},
			want:   true,
		},
		{
			name:   "end touches existing start",
			window: Window{Start: day.Add(8 * time.Hour), End: day.Add(10 * time.Hour)},
			want:   true,
		},
		{
			name:   "disjoint after",
			window: Window{Start: day.Add(13 * time.Hour), End: day.Add(15 * time.Hour)},
			want:   false,
		},
		{
			name:   "disjoint before",
			window: Window{Start: day.Add(7 * time.Hour), End: day.Add(9 * time.Hour)},
			want:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conflict, err := repo.HasConflict(ctx, rental.ID, tc.window)
			require.NoError(t, err)
			assert.Equal(t, tc.want, conflict)
		})
	}
}

func TestHasConflictIgnoresReleasedSlots(t *testing.T) {
	db := setupBookingsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	rental := newApprovedRental(t, db, 10_000)
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	newBooking(t, db, rental.ID, enums.BookingStatusCancelled,
		day.Add(10*time.Hour), day.Add(12*time.Hour))
	newBooking(t, db, rental.ID, enums.BookingStatusRejected,
		day.Add(11*time.Hour), day.Add(13*time.Hour))

	conflict, err := repo.HasConflict(ctx, rental.ID, Window{
		Start: day.Add(10 * time.Hour),
		End:   day.Add(13 * time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, conflict, "cancelled and rejected bookings must not block the slot")

	newBooking(t, db, rental.ID, enums.BookingStatusPending,
		day.Add(11*time.Hour), day.Add(13*time.Hour))
	conflict, err = repo.HasConflict(ctx, rental.ID, Window{
		Start: day.Add(10 * time.Hour),
		End:   day.Add(13 * time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, conflict, "pending bookings block the slot")
}

func TestHasConflictScopedToRental(t *testing.T) {
	db := setupBookingsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	rentalA := newApprovedRental(t, db, 10_000)
	rentalB := newApprovedRental(t, db, 10_000)
	day := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	newBooking(t, db, rentalA.ID, enums.BookingStatusAccepted,
		day.Add(10*time.Hour), day.Add(12*time.Hour))

	conflict, err := repo.HasConflict(ctx, rentalB.ID, Window{
		Start: day.Add(10 * time.Hour),
		End:   day.Add(12 * time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestListByRenterPaginates(t *testing.T) {
	db := setupBookingsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	rental := newApprovedRental(t, db, 10_000)
	renterID := uuid.New()
	base := time.Date(2026, 9, 4, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		booking := &models.Booking{
			ID:        uuid.New(),
			RentalID:  rental.ID,
			RenterID:  renterID,
			StartTime: base.Add(time.Duration(i) * 2 * time.Hour),
			EndTime:   base.Add(time.Duration(i)*2*time.Hour + time.Hour),
			TotalKobo: 10_000,
			Status:    enums.BookingStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(booking).Error)
	}

	page, next, err := repo.ListByRenter(ctx, renterID, 2, nil)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	// Newest first.
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	rest, last, err := repo.ListByRenter(ctx, renterID, 2, next)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Nil(t, last)
	for _, b := range page {
		assert.NotEqual(t, rest[0].ID, b.ID)
	}
}
