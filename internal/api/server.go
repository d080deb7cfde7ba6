// Package api exposes the donation marketplace over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/foodshare/internal/donation"
	"github.com/sells-group/foodshare/internal/model"
	"github.com/sells-group/foodshare/internal/waterfall"
)

// Donations is the service surface the handlers depend on.
type Donations interface {
	Classify(ctx context.Context, req waterfall.Request) model.Verdict
	Create(ctx context.Context, in donation.CreateInput, image []byte) (*model.Listing, model.Verdict, error)
	Get(ctx context.Context, id string) (*model.Listing, error)
	List(ctx context.Context, filter model.ListingFilter) ([]model.Listing, error)
	AttachImage(ctx context.Context, id string, data []byte) (*model.Listing, model.Verdict, error)
	Claim(ctx context.Context, listingID, orgID, notes string) (*model.Transaction, error)
	CreateOrganization(ctx context.Context, o *model.Organization) error
	Organizations(ctx context.Context) ([]model.Organization, error)
	Stats(ctx context.Context) (*model.Stats, error)
}

// Options configures the HTTP server.
type Options struct {
	UploadDir      string
	MaxUploadBytes int64
	CORSOrigins    []string
	RequestTimeout time.Duration
}

const (
	defaultMaxUploadBytes = 16 << 20
	defaultRequestTimeout = 60 * time.Second
)

// Server routes marketplace requests to the donation service.
type Server struct {
	svc    Donations
	opts   Options
	router chi.Router
}

// NewServer builds the router.
func NewServer(svc Donations, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	s := &Server{svc: svc, opts: opts}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/classify", s.handleClassify)
		r.Get("/stats", s.handleStats)

		r.Route("/donations", func(r chi.Router) {
			r.Get("/", s.handleListDonations)
			r.Post("/", s.handleCreateDonation)
			r.Get("/images", s.handleListDonationImages)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDonation)
				r.Post("/upload-image", s.handleUploadImage)
				r.Post("/claim", s.handleClaim)
			})
		})

		r.Route("/organizations", func(r chi.Router) {
			r.Get("/", s.handleListOrganizations)
			r.Post("/", s.handleCreateOrganization)
		})
	})

	if s.opts.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.opts.UploadDir))))
	}

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs one line per request through zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
