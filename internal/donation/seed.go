package donation

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/foodshare/internal/model"
)

type seedListing struct {
	in        CreateInput
	daysAhead int
}

func ptr(f float64) *float64 { return &f }

var seedListings = []seedListing{
	{
		in: CreateInput{
			DonorName:        "John's Restaurant",
			DonorContact:     "john@example.com",
			FoodName:         "Fresh Organic Apples",
			Description:      "Freshly picked organic apples from local farm",
			Quantity:         50,
			Unit:             "kg",
			FoodType:         "fruits",
			Location:         model.Location{Lat: ptr(40.7128), Lng: ptr(-74.0060), Address: "123 Restaurant St, Cityville"},
			ImageURL:         "https://images.unsplash.com/photo-1568702846914-96b305d2aaeb?w=400&h=300&fit=crop",
			StorageCondition: "refrigerated",
			Packaging:        "original",
		},
		daysAhead: 10,
	},
	{
		in: CreateInput{
			DonorName:        "Downtown Bakery",
			DonorContact:     "bakery@example.com",
			FoodName:         "Fresh Bread Loaves",
			Description:      "Whole wheat bread baked today",
			Quantity:         20,
			Unit:             "loaves",
			FoodType:         "bakery",
			Location:         model.Location{Lat: ptr(40.7589), Lng: ptr(-73.9851), Address: "456 Bakery Ave, Cityville"},
			ImageURL:         "https://images.unsplash.com/photo-1509440159596-0249088772ff?w=400&h=300&fit=crop",
			StorageCondition: "pantry",
			Packaging:        "sealed",
		},
		daysAhead: 2,
	},
	{
		in: CreateInput{
			DonorName:        "Super Fresh Market",
			DonorContact:     "market@example.com",
			FoodName:         "Canned Vegetable Assortment",
			Description:      "Assorted canned vegetables, long shelf life",
			Quantity:         100,
			Unit:             "cans",
			FoodType:         "canned_goods",
			Location:         model.Location{Lat: ptr(40.7831), Lng: ptr(-73.9712), Address: "789 Market St, Cityville"},
			ImageURL:         "https://images.unsplash.com/photo-1540420773420-3366772f4999?w=400&h=300&fit=crop",
			StorageCondition: "pantry",
			Packaging:        "sealed",
		},
		daysAhead: 365,
	},
}

// Seed loads a sample organization and three sample listings into an empty
// database. It does nothing when any organization already exists.
func (s *Service) Seed(ctx context.Context) (bool, error) {
	orgs, err := s.store.ListOrganizations(ctx, false)
	if err != nil {
		return false, eris.Wrap(err, "donation: seed check")
	}
	if len(orgs) > 0 {
		zap.L().Debug("donation: database already seeded")
		return false, nil
	}

	org := &model.Organization{
		Name:           "Community Food Bank",
		Description:    "Providing meals to those in need since 2010",
		Address:        "123 Main Street, Cityville",
		Phone:          "(555) 123-4567",
		Email:          "info@communityfoodbank.org",
		Lat:            40.7128,
		Lng:            -74.0060,
		OrgType:        "food_bank",
		Capacity:       5000,
		OperatingHours: "Mon-Fri: 9AM-5PM, Sat: 10AM-2PM",
	}
	if err := s.CreateOrganization(ctx, org); err != nil {
		return false, err
	}

	today := s.clock()
	for _, sl := range seedListings {
		in := sl.in
		in.ExpiryDate = today.AddDate(0, 0, sl.daysAhead).Format(time.DateOnly)
		if _, _, err := s.Create(ctx, in, nil); err != nil {
			return false, eris.Wrapf(err, "donation: seed %s", in.FoodName)
		}
	}

	zap.L().Info("donation: database seeded", zap.Int("listings", len(seedListings)))
	return true, nil
}
