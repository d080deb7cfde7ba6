package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/foodshare/internal/donation"
	"github.com/sells-group/foodshare/internal/imagestore"
	"github.com/sells-group/foodshare/internal/model"
	"github.com/sells-group/foodshare/internal/store"
	"github.com/sells-group/foodshare/internal/waterfall"
)

// jsonBodyLimit caps JSON request bodies, which may carry a base64 image.
const jsonBodyLimit = 24 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type classifyRequest struct {
	FoodName    string `json:"food_name"`
	ExpiryDate  string `json:"expiry_date"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"` // base64, optionally a data URL
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.FoodName) == "" || strings.TrimSpace(req.ExpiryDate) == "" {
		respondError(w, http.StatusBadRequest, "food_name and expiry_date are required")
		return
	}
	img, err := decodeImage(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, "image must be base64 encoded")
		return
	}

	v := s.svc.Classify(r.Context(), waterfall.Request{
		FoodName:    req.FoodName,
		ExpiryDate:  req.ExpiryDate,
		Description: req.Description,
		Image:       img,
	})
	respondJSON(w, http.StatusOK, v)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// listingFilter reads status, ai_status and limit. status defaults to
// available; "all" disables the status filter.
func listingFilter(r *http.Request) (model.ListingFilter, error) {
	q := r.URL.Query()
	var f model.ListingFilter

	switch status := q.Get("status"); status {
	case "":
		f.Status = model.ListingAvailable
	case "all":
	default:
		f.Status = model.ListingStatus(status)
		if !f.Status.Valid() {
			return f, &donation.ValidationError{Field: "status", Message: "unknown status " + status}
		}
	}

	if ai := q.Get("ai_status"); ai != "" {
		f.AIStatus = model.Status(ai)
		if !f.AIStatus.Valid() {
			return f, &donation.ValidationError{Field: "ai_status", Message: "unknown status " + ai}
		}
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, &donation.ValidationError{Field: "limit", Message: "must be a non-negative integer"}
		}
		f.Limit = n
	}
	return f, nil
}

func (s *Server) handleListDonations(w http.ResponseWriter, r *http.Request) {
	f, err := listingFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	listings, err := s.svc.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listings)
}

// handleListDonationImages returns available listings that have a photo.
func (s *Server) handleListDonationImages(w http.ResponseWriter, r *http.Request) {
	listings, err := s.svc.List(r.Context(), model.ListingFilter{Status: model.ListingAvailable})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := []model.Listing{}
	for _, l := range listings {
		if l.ImageURL != "" {
			out = append(out, l)
		}
	}
	respondJSON(w, http.StatusOK, out)
}

type createDonationRequest struct {
	donation.CreateInput
	Image string `json:"image,omitempty"`
}

type donationResponse struct {
	Donation         *model.Listing `json:"donation"`
	AIClassification model.Verdict  `json:"ai_classification"`
}

func (s *Server) handleCreateDonation(w http.ResponseWriter, r *http.Request) {
	var req createDonationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	img, err := decodeImage(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, "image must be base64 encoded")
		return
	}

	l, v, err := s.svc.Create(r.Context(), req.CreateInput, img)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, donationResponse{Donation: l, AIClassification: v})
}

func (s *Server) handleGetDonation(w http.ResponseWriter, r *http.Request) {
	l, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		respondError(w, http.StatusBadRequest, "expected multipart form with an image field")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "no image file provided")
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(file, s.opts.MaxUploadBytes+1))
	if err != nil {
		s.fail(w, r, eris.Wrap(err, "api: read upload"))
		return
	}

	l, v, err := s.svc.AttachImage(r.Context(), chi.URLParam(r, "id"), data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, donationResponse{Donation: l, AIClassification: v})
}

type claimRequest struct {
	OrganizationID string `json:"organization_id"`
	Notes          string `json:"notes"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	tx, err := s.svc.Claim(r.Context(), chi.URLParam(r, "id"), req.OrganizationID, req.Notes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":     "Donation claimed successfully",
		"transaction": tx,
	})
}

func (s *Server) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := s.svc.Organizations(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, orgs)
}

func (s *Server) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	var org model.Organization
	if !decodeJSON(w, r, &org) {
		return
	}
	if err := s.svc.CreateOrganization(r.Context(), &org); err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, org)
}

// fail maps service errors to status codes. Unexpected errors are logged and
// reported without detail.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *donation.ValidationError
		na *store.NotAvailableError
	)
	switch {
	case errors.As(err, &ve):
		respondError(w, http.StatusBadRequest, ve.Error())
	case eris.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.As(err, &na):
		respondError(w, http.StatusConflict, na.Error())
	case eris.Is(err, imagestore.ErrTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, "image too large")
	case eris.Is(err, imagestore.ErrEmpty), eris.Is(err, imagestore.ErrNotImage):
		respondError(w, http.StatusBadRequest, "file is not a supported image")
	case eris.Is(err, donation.ErrUploadsDisabled):
		respondError(w, http.StatusServiceUnavailable, "image uploads are disabled")
	default:
		zap.L().Error("api: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, jsonBodyLimit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// decodeImage accepts plain base64 or a data URL. Empty input yields nil.
func decodeImage(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, eris.Wrap(err, "api: decode image")
	}
	return data, nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
