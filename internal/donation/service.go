// Package donation implements the marketplace operations: listing donations,
// classifying them, attaching photos, and claiming them for a receiver.
package donation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/foodshare/internal/imagestore"
	"github.com/sells-group/foodshare/internal/model"
	"github.com/sells-group/foodshare/internal/store"
	"github.com/sells-group/foodshare/internal/waterfall"
)

// defaultConcurrency bounds parallel reclassification.
const defaultConcurrency = 4

// ErrUploadsDisabled is returned for image operations when no image store is
// configured.
var ErrUploadsDisabled = eris.New("donation: image uploads are disabled")

// Classifier decides whether a donated item is safe. It never fails.
type Classifier interface {
	Classify(ctx context.Context, req waterfall.Request) model.Verdict
}

// Images persists uploaded photos and reads them back for reclassification.
type Images interface {
	Save(data []byte) (imagestore.Saved, error)
	Load(url string) ([]byte, error)
}

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CreateInput is the donor-supplied part of a new listing.
type CreateInput struct {
	DonorName        string         `json:"donor_name"`
	DonorContact     string         `json:"donor_contact"`
	FoodName         string         `json:"food_name"`
	Description      string         `json:"description"`
	Quantity         int            `json:"quantity"`
	Unit             string         `json:"unit"`
	ExpiryDate       string         `json:"expiry_date"`
	FoodType         string         `json:"food_type"`
	Location         model.Location `json:"location"`
	StorageCondition string         `json:"storage_condition"`
	Packaging        string         `json:"packaging"`
	ImageURL         string         `json:"image_url"`
}

// Validate checks required fields and normalizes whitespace.
func (in *CreateInput) Validate() error {
	in.FoodName = strings.TrimSpace(in.FoodName)
	in.DonorName = strings.TrimSpace(in.DonorName)
	in.ExpiryDate = strings.TrimSpace(in.ExpiryDate)

	switch {
	case in.FoodName == "":
		return &ValidationError{Field: "food_name", Message: "is required"}
	case in.DonorName == "":
		return &ValidationError{Field: "donor_name", Message: "is required"}
	case in.ExpiryDate == "":
		return &ValidationError{Field: "expiry_date", Message: "is required"}
	case in.Quantity < 0:
		return &ValidationError{Field: "quantity", Message: "must not be negative"}
	}
	if _, err := time.Parse(time.DateOnly, in.ExpiryDate); err != nil {
		return &ValidationError{Field: "expiry_date", Message: "must be YYYY-MM-DD"}
	}
	return nil
}

// Result summarizes a bulk operation.
type Result struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// RemoteImages downloads photos hosted elsewhere.
type RemoteImages interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Service coordinates persistence, images, and classification.
type Service struct {
	store      store.Store
	classifier Classifier
	images     Images
	remote     RemoteImages
	clock      func() time.Time
}

// New creates a donation service. images may be nil when uploads are disabled.
func New(st store.Store, c Classifier, images Images) *Service {
	return &Service{store: st, classifier: c, images: images, clock: time.Now}
}

// WithNow sets a fixed time for testing.
func (s *Service) WithNow(t time.Time) *Service {
	s.clock = func() time.Time { return t }
	return s
}

// WithRemoteImages lets reclassification download photos that listings
// reference by absolute URL.
func (s *Service) WithRemoteImages(r RemoteImages) *Service {
	s.remote = r
	return s
}

// Classify runs the cascade without touching storage.
func (s *Service) Classify(ctx context.Context, req waterfall.Request) model.Verdict {
	return s.classifier.Classify(ctx, req)
}

// Create validates and classifies a new donation, then stores it with its
// classification. image is optional; when present it is saved and passed to
// the vision tier.
func (s *Service) Create(ctx context.Context, in CreateInput, image []byte) (*model.Listing, model.Verdict, error) {
	if err := in.Validate(); err != nil {
		return nil, model.Verdict{}, err
	}

	l := &model.Listing{
		DonorName:        in.DonorName,
		DonorContact:     in.DonorContact,
		FoodName:         in.FoodName,
		Description:      in.Description,
		Quantity:         in.Quantity,
		Unit:             in.Unit,
		ExpiryDate:       in.ExpiryDate,
		FoodType:         in.FoodType,
		Location:         in.Location,
		StorageCondition: in.StorageCondition,
		Packaging:        in.Packaging,
		ImageURL:         in.ImageURL,
	}

	if len(image) > 0 {
		saved, err := s.saveImage(image)
		if err != nil {
			return nil, model.Verdict{}, err
		}
		l.ImageURL = saved.URL
	}

	v := s.classifier.Classify(ctx, waterfall.Request{
		FoodName:    l.FoodName,
		ExpiryDate:  l.ExpiryDate,
		Description: l.Description,
		Image:       image,
	})
	l.AI = model.ClassificationFrom(v)

	if err := s.store.CreateListing(ctx, l); err != nil {
		return nil, model.Verdict{}, eris.Wrap(err, "donation: create listing")
	}

	zap.L().Info("donation: listing created",
		zap.String("id", l.ID),
		zap.String("food_name", l.FoodName),
		zap.String("ai_status", string(v.Status)),
		zap.String("tier", string(v.Source.Tier)),
	)
	return l, v, nil
}

// Get returns one listing.
func (s *Service) Get(ctx context.Context, id string) (*model.Listing, error) {
	return s.store.GetListing(ctx, id)
}

// List returns listings matching filter.
func (s *Service) List(ctx context.Context, filter model.ListingFilter) ([]model.Listing, error) {
	return s.store.ListListings(ctx, filter)
}

// AttachImage stores a photo for an existing listing and reclassifies it with
// the image so the vision tier can weigh in.
func (s *Service) AttachImage(ctx context.Context, id string, data []byte) (*model.Listing, model.Verdict, error) {
	l, err := s.store.GetListing(ctx, id)
	if err != nil {
		return nil, model.Verdict{}, err
	}

	saved, err := s.saveImage(data)
	if err != nil {
		return nil, model.Verdict{}, err
	}
	if err := s.store.SetListingImage(ctx, id, saved.URL); err != nil {
		return nil, model.Verdict{}, eris.Wrap(err, "donation: set image")
	}
	l.ImageURL = saved.URL

	v := s.classifier.Classify(ctx, waterfall.Request{
		FoodName:    l.FoodName,
		ExpiryDate:  l.ExpiryDate,
		Description: l.Description,
		Image:       data,
	})
	l.AI = model.ClassificationFrom(v)
	if err := s.store.UpdateClassification(ctx, id, l.AI); err != nil {
		return nil, model.Verdict{}, eris.Wrap(err, "donation: update classification")
	}
	return l, v, nil
}

// Claim assigns an available listing to a receiving organization.
func (s *Service) Claim(ctx context.Context, listingID, orgID, notes string) (*model.Transaction, error) {
	tx, err := s.store.ClaimListing(ctx, listingID, strings.TrimSpace(orgID), notes)
	if err != nil {
		return nil, err
	}
	zap.L().Info("donation: listing claimed",
		zap.String("listing_id", listingID),
		zap.String("organization_id", orgID),
		zap.String("transaction_id", tx.ID),
	)
	return tx, nil
}

// CreateOrganization registers a receiving organization.
func (s *Service) CreateOrganization(ctx context.Context, o *model.Organization) error {
	o.Name = strings.TrimSpace(o.Name)
	o.Address = strings.TrimSpace(o.Address)
	if o.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if o.Address == "" {
		return &ValidationError{Field: "address", Message: "is required"}
	}
	if o.Capacity < 0 {
		return &ValidationError{Field: "capacity", Message: "must not be negative"}
	}
	o.IsActive = true
	if err := s.store.CreateOrganization(ctx, o); err != nil {
		return eris.Wrap(err, "donation: create organization")
	}
	return nil
}

// Organizations lists active receiving organizations.
func (s *Service) Organizations(ctx context.Context) ([]model.Organization, error) {
	return s.store.ListOrganizations(ctx, true)
}

// Stats returns marketplace counters.
func (s *Service) Stats(ctx context.Context) (*model.Stats, error) {
	return s.store.Stats(ctx)
}

// ExpireStale marks available listings past their expiry date as expired.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	n, err := s.store.ExpireListings(ctx, s.clock())
	if err != nil {
		return 0, eris.Wrap(err, "donation: expire listings")
	}
	if n > 0 {
		zap.L().Info("donation: listings expired", zap.Int("count", n))
	}
	return n, nil
}

// Reclassify re-runs the cascade for every available listing and persists the
// new classification. Individual failures are counted, not returned.
func (s *Service) Reclassify(ctx context.Context, concurrency int) (Result, error) {
	listings, err := s.store.ListListings(ctx, model.ListingFilter{Status: model.ListingAvailable})
	if err != nil {
		return Result{}, eris.Wrap(err, "donation: list for reclassify")
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	var (
		mu  sync.Mutex
		res = Result{Total: len(listings)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, l := range listings {
		g.Go(func() error {
			v := s.classifier.Classify(gctx, waterfall.Request{
				FoodName:    l.FoodName,
				ExpiryDate:  l.ExpiryDate,
				Description: l.Description,
				Image:       s.loadImage(gctx, l),
			})
			err := s.store.UpdateClassification(gctx, l.ID, model.ClassificationFrom(v))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				zap.L().Warn("donation: reclassify update failed",
					zap.String("id", l.ID),
					zap.Error(err),
				)
				res.Failed++
				return nil // don't fail the group
			}
			res.Updated++
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, eris.Wrap(err, "donation: reclassify")
	}

	zap.L().Info("donation: reclassify complete",
		zap.Int("total", res.Total),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (s *Service) saveImage(data []byte) (imagestore.Saved, error) {
	if s.images == nil {
		return imagestore.Saved{}, ErrUploadsDisabled
	}
	saved, err := s.images.Save(data)
	if err != nil {
		return imagestore.Saved{}, eris.Wrap(err, "donation: save image")
	}
	return saved, nil
}

// loadImage returns the photo for l, or nil when there is none or it cannot
// be read. Local uploads are read from disk; absolute URLs are downloaded
// when a remote fetcher is configured.
func (s *Service) loadImage(ctx context.Context, l model.Listing) []byte {
	if l.ImageURL == "" {
		return nil
	}

	var (
		data []byte
		err  error
	)
	switch {
	case isRemote(l.ImageURL):
		if s.remote == nil {
			return nil
		}
		data, err = s.remote.Fetch(ctx, l.ImageURL)
	case s.images != nil:
		data, err = s.images.Load(l.ImageURL)
	default:
		return nil
	}
	if err != nil {
		zap.L().Debug("donation: stored image unavailable",
			zap.String("id", l.ID),
			zap.String("image_url", l.ImageURL),
			zap.Error(err),
		)
		return nil
	}
	return data
}

func isRemote(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
