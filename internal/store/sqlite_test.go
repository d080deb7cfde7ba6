package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/foodshare/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleListing(name, expiry string) *model.Listing {
	lat, lng := 40.7128, -74.0060
	return &model.Listing{
		DonorName:    "John's Restaurant",
		DonorContact: "john@example.com",
		FoodName:     name,
		Description:  "Freshly picked",
		Quantity:     50,
		Unit:         "kg",
		ExpiryDate:   expiry,
		FoodType:     "fruits",
		Location:     model.Location{Lat: &lat, Lng: &lng, Address: "123 Restaurant St"},
		AI: model.Classification{
			Status:     model.StatusSafeToDonate,
			Confidence: 0.85,
			Reason:     "GOOD: 10 days until expiry",
			Tier:       model.TierLocal,
		},
	}
}

func sampleOrg(name string) *model.Organization {
	return &model.Organization{
		Name:     name,
		Address:  "123 Main Street",
		Lat:      40.7128,
		Lng:      -74.0060,
		OrgType:  "food_bank",
		Capacity: 5000,
		IsActive: true,
	}
}

// --- Listings ---

func TestSQLite_CreateAndGetListing(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l := sampleListing("Fresh Organic Apples", "2026-03-11")
	require.NoError(t, st.CreateListing(ctx, l))
	require.NotEmpty(t, l.ID)
	assert.Equal(t, model.ListingAvailable, l.Status)

	got, err := st.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fresh Organic Apples", got.FoodName)
	assert.Equal(t, 50, got.Quantity)
	assert.Equal(t, "kg", got.Unit)
	assert.Equal(t, "2026-03-11", got.ExpiryDate)
	require.NotNil(t, got.Location.Lat)
	assert.InDelta(t, 40.7128, *got.Location.Lat, 1e-9)
	assert.Equal(t, model.StatusSafeToDonate, got.AI.Status)
	assert.Equal(t, model.TierLocal, got.AI.Tier)
	assert.Equal(t, model.ListingAvailable, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLite_CreateListing_Defaults(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l := &model.Listing{DonorName: "Bakery", FoodName: "Bread", ExpiryDate: "2026-03-03"}
	require.NoError(t, st.CreateListing(ctx, l))

	got, err := st.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Quantity)
	assert.Equal(t, "items", got.Unit)
	assert.Nil(t, got.Location.Lat)
	assert.Nil(t, got.Location.Lng)
}

func TestSQLite_GetListing_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetListing(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_ListListings_Filter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := sampleListing("Apples", "2026-03-11")
	b := sampleListing("Milk", "2026-03-04")
	b.AI.Status = model.StatusConsumeSoon
	c := sampleListing("Bread", "2026-03-02")
	for _, l := range []*model.Listing{a, b, c} {
		require.NoError(t, st.CreateListing(ctx, l))
	}
	_, err := st.ClaimListing(ctx, c.ID, "", "")
	require.NoError(t, err)

	all, err := st.ListListings(ctx, model.ListingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	available, err := st.ListListings(ctx, model.ListingFilter{Status: model.ListingAvailable})
	require.NoError(t, err)
	assert.Len(t, available, 2)

	soon, err := st.ListListings(ctx, model.ListingFilter{AIStatus: model.StatusConsumeSoon})
	require.NoError(t, err)
	require.Len(t, soon, 1)
	assert.Equal(t, "Milk", soon[0].FoodName)

	limited, err := st.ListListings(ctx, model.ListingFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_ListListings_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	listings, err := st.ListListings(context.Background(), model.ListingFilter{})
	require.NoError(t, err)
	assert.NotNil(t, listings)
	assert.Empty(t, listings)
}

func TestSQLite_UpdateClassification(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l := sampleListing("Bananas", "2026-03-03")
	require.NoError(t, st.CreateListing(ctx, l))

	err := st.UpdateClassification(ctx, l.ID, model.Classification{
		Status:     model.StatusReject,
		Confidence: 0.95,
		Reason:     "UNSAFE: mold detected",
		Tier:       model.TierVision,
		ModelID:    "google/gemini-2.0-flash-exp:free",
	})
	require.NoError(t, err)

	got, err := st.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReject, got.AI.Status)
	assert.InDelta(t, 0.95, got.AI.Confidence, 1e-9)
	assert.Equal(t, "google/gemini-2.0-flash-exp:free", got.AI.ModelID)

	err = st.UpdateClassification(ctx, "missing", model.Classification{})
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_SetListingImage(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l := sampleListing("Apples", "2026-03-11")
	require.NoError(t, st.CreateListing(ctx, l))
	require.NoError(t, st.SetListingImage(ctx, l.ID, "/uploads/a.png"))

	got, err := st.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/a.png", got.ImageURL)

	assert.True(t, eris.Is(st.SetListingImage(ctx, "missing", "/x"), ErrNotFound))
}

func TestSQLite_ExpireListings(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	today := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)

	old := sampleListing("Old Bread", "2026-03-04")
	current := sampleListing("Today Milk", "2026-03-05")
	claimed := sampleListing("Claimed Fish", "2026-03-01")
	for _, l := range []*model.Listing{old, current, claimed} {
		require.NoError(t, st.CreateListing(ctx, l))
	}
	_, err := st.ClaimListing(ctx, claimed.ID, "", "")
	require.NoError(t, err)

	n, err := st.ExpireListings(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.GetListing(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingExpired, got.Status)

	got, err = st.GetListing(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingClaimed, got.Status)

	n, err = st.ExpireListings(ctx, today)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// --- Organizations ---

func TestSQLite_Organizations(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	active := sampleOrg("Community Food Bank")
	inactive := sampleOrg("Closed Shelter")
	inactive.IsActive = false
	require.NoError(t, st.CreateOrganization(ctx, active))
	require.NoError(t, st.CreateOrganization(ctx, inactive))
	require.NotEmpty(t, active.ID)

	orgs, err := st.ListOrganizations(ctx, true)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "Community Food Bank", orgs[0].Name)
	assert.Equal(t, 5000, orgs[0].Capacity)
	assert.True(t, orgs[0].IsActive)

	all, err := st.ListOrganizations(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// --- Claims ---

func TestSQLite_ClaimListing(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	org := sampleOrg("Community Food Bank")
	require.NoError(t, st.CreateOrganization(ctx, org))
	l := sampleListing("Apples", "2026-03-11")
	require.NoError(t, st.CreateListing(ctx, l))

	tx, err := st.ClaimListing(ctx, l.ID, org.ID, "pickup at 5pm")
	require.NoError(t, err)
	assert.Equal(t, l.ID, tx.ListingID)
	assert.Equal(t, org.ID, tx.OrganizationID)
	assert.Equal(t, model.TransactionClaimed, tx.Status)

	got, err := st.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingClaimed, got.Status)

	_, err = st.ClaimListing(ctx, l.ID, org.ID, "")
	var na *NotAvailableError
	require.True(t, errors.As(err, &na))
	assert.Equal(t, model.ListingClaimed, na.Status)
	assert.Equal(t, "donation is already claimed", na.Error())
}

func TestSQLite_ClaimListing_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.ClaimListing(ctx, "missing", "", "")
	assert.True(t, eris.Is(err, ErrNotFound))

	l := sampleListing("Apples", "2026-03-11")
	require.NoError(t, st.CreateListing(ctx, l))
	_, err = st.ClaimListing(ctx, l.ID, "no-such-org", "")
	assert.True(t, eris.Is(err, ErrNotFound))

	// The failed claim left the listing available.
	got, err := st.GetListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingAvailable, got.Status)
}

func TestSQLite_ClaimListing_Concurrent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l := sampleListing("Apples", "2026-03-11")
	require.NoError(t, st.CreateListing(ctx, l))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := st.ClaimListing(ctx, l.ID, "", ""); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

// --- Stats ---

func TestSQLite_Stats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	empty, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{}, *empty)

	require.NoError(t, st.CreateOrganization(ctx, sampleOrg("Food Bank")))

	a := sampleListing("Apples", "2026-03-11")
	b := sampleListing("Milk", "2026-03-04")
	b.AI.Status = model.StatusConsumeSoon
	c := sampleListing("Moldy Bread", "2026-03-02")
	c.AI.Status = model.StatusReject
	for _, l := range []*model.Listing{a, b, c} {
		require.NoError(t, st.CreateListing(ctx, l))
	}
	require.NoError(t, st.SetListingImage(ctx, a.ID, "/uploads/a.jpg"))
	_, err = st.ClaimListing(ctx, a.ID, "", "")
	require.NoError(t, err)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{
		TotalDonations:      3,
		Available:           2,
		Claimed:             1,
		Organizations:       1,
		DonationsWithImages: 1,
		AISafe:              1,
		AIConsumeSoon:       1,
		AIReject:            1,
	}, *stats)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}
