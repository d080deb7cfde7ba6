package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/foodshare/internal/model"
)

// ErrNotFound is the root of every lookup miss. Match it with eris.Is.
var ErrNotFound = eris.New("store: not found")

// NotAvailableError is returned when claiming a listing that is not available.
type NotAvailableError struct {
	ListingID string
	Status    model.ListingStatus
}

func (e *NotAvailableError) Error() string {
	return fmt.Sprintf("donation is already %s", e.Status)
}

// Store defines the persistence interface for the donation marketplace.
type Store interface {
	// Listings
	CreateListing(ctx context.Context, l *model.Listing) error
	GetListing(ctx context.Context, id string) (*model.Listing, error)
	ListListings(ctx context.Context, filter model.ListingFilter) ([]model.Listing, error)
	UpdateClassification(ctx context.Context, id string, c model.Classification) error
	SetListingImage(ctx context.Context, id, imageURL string) error
	ExpireListings(ctx context.Context, today time.Time) (int, error)

	// Organizations
	CreateOrganization(ctx context.Context, o *model.Organization) error
	ListOrganizations(ctx context.Context, activeOnly bool) ([]model.Organization, error)

	// Claims
	ClaimListing(ctx context.Context, listingID, orgID, notes string) (*model.Transaction, error)

	Stats(ctx context.Context) (*model.Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// listingColumns is the column order used by every listing query.
const listingColumns = `id, donor_name, donor_contact, food_name, description, quantity, unit,
	expiry_date, food_type, location_lat, location_lng, address, storage_condition, packaging,
	image_url, ai_status, ai_confidence, ai_reason, ai_tier, ai_model, status, created_at, updated_at`

const organizationColumns = `id, name, description, address, phone, email, website, latitude,
	longitude, org_type, capacity, operating_hours, requirements, is_active, created_at`

// statsQuery is portable between SQLite and Postgres.
const statsQuery = `SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN status = 'available' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'claimed' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'delivered' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'expired' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN image_url <> '' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN ai_status = 'safe_to_donate' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN ai_status = 'consume_soon' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN ai_status = 'reject' THEN 1 ELSE 0 END), 0)
FROM food_listings`

// prepareListing fills defaults before insert.
func prepareListing(l *model.Listing, id string, now time.Time) {
	l.ID = id
	if l.Quantity <= 0 {
		l.Quantity = 1
	}
	if l.Unit == "" {
		l.Unit = "items"
	}
	if l.Status == "" {
		l.Status = model.ListingAvailable
	}
	l.CreatedAt = now
	l.UpdatedAt = now
}

func notFound(entity, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
}
