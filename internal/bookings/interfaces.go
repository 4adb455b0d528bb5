package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fundi-app/fundi-backend/pkg/db/models"
	"github.com/fundi-app/fundi-backend/pkg/enums"
	"github.com/fundi-app/fundi-backend/pkg/pagination"
)

// Repository defines persistence operations for bookings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, booking *models.Booking) (*models.Booking, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.BookingStatus) error
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkDisputed(ctx context.Context, id uuid.UUID, at time.Time) error
	List(ctx context.Context, params ListFilter) ([]models.Booking, *pagination.Cursor, error)
}

// ListFilter scopes a booking listing to one side of the marketplace.
type ListFilter struct {
	ClientID   *uuid.UUID
	ProviderID *uuid.UUID
	Status     *enums.BookingStatus
	Limit      int
	Cursor     *pagination.Cursor
}
