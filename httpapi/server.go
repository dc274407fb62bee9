package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"collexa/admin"
	"collexa/auth"
	"collexa/listing"
	"collexa/ratelimit"
	"collexa/report"
	"collexa/storage"
)

// AuthService is the slice of the auth service the HTTP layer uses.
type AuthService interface {
	TokenVerifier
	Signup(ctx context.Context, req auth.SignupRequest) error
	ResendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, req auth.VerifyOTPRequest) (auth.LoginResult, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	GetUserByID(ctx context.Context, userID string) (*auth.User, error)
}

type ListingService interface {
	Create(ctx context.Context, p auth.Principal, params listing.CreateParams) (listing.Listing, error)
	List(ctx context.Context, f listing.Filters) ([]listing.Listing, int, error)
	GetByID(ctx context.Context, id, viewerID string) (listing.Listing, error)
	ListMine(ctx context.Context, p auth.Principal, status string) ([]listing.Listing, error)
	Update(ctx context.Context, p auth.Principal, id string, params listing.UpdateParams) (listing.Listing, error)
	Delete(ctx context.Context, p auth.Principal, id string) error
	Reactivate(ctx context.Context, p auth.Principal, id string) (listing.Listing, error)
}

type ReportService interface {
	Create(ctx context.Context, p auth.Principal, params report.CreateParams) (report.Report, error)
	ListMine(ctx context.Context, p auth.Principal) ([]report.Report, error)
	Review(ctx context.Context, p auth.Principal, reportID string, params report.ReviewParams) (report.Report, error)
}

type AdminService interface {
	Dashboard(ctx context.Context, p auth.Principal) (admin.DashboardStats, error)
	ListUsers(ctx context.Context, p auth.Principal, page admin.Page) ([]admin.UserSummary, int64, error)
	ListListings(ctx context.Context, p auth.Principal, status string, page admin.Page) ([]admin.ListingSummary, int64, error)
	ListReports(ctx context.Context, p auth.Principal, status string, page admin.Page) ([]admin.ReportSummary, int64, error)
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	auth     AuthService
	listings ListingService
	reports  ReportService
	admin    AdminService
	blobs    storage.BlobStore
	limiter  ratelimit.Limiter
	logger   zerolog.Logger
	now      func() time.Time
}

func NewServer(
	authSvc AuthService,
	listings ListingService,
	reports ReportService,
	adminSvc AdminService,
	blobs storage.BlobStore,
	limiter ratelimit.Limiter,
	logger zerolog.Logger,
) *Server {
	return &Server{
		auth:     authSvc,
		listings: listings,
		reports:  reports,
		admin:    adminSvc,
		blobs:    blobs,
		limiter:  limiter,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// Router builds the full route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondMessage(w, http.StatusOK, "ok")
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignup)
			r.Post("/verify-otp", s.handleVerifyOTP)
			r.Post("/resend-otp", s.handleResendOTP)
			r.Post("/login", s.handleLogin)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth(s.auth))
				r.Get("/me", s.handleMe)
			})
		})

		r.Route("/listings", func(r chi.Router) {
			r.Get("/", s.handleListListings)
			r.With(optionalAuth(s.auth)).Get("/{id}", s.handleGetListing)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth(s.auth))
				r.Post("/", s.handleCreateListing)
				r.Get("/my-listings", s.handleMyListings)
				r.Put("/{id}", s.handleUpdateListing)
				r.Delete("/{id}", s.handleDeleteListing)
				r.Post("/{id}/reactivate", s.handleReactivateListing)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth(s.auth))
			r.Post("/uploads", s.handleUpload)

			r.Route("/reports", func(r chi.Router) {
				r.Post("/", s.handleCreateReport)
				r.Get("/my-reports", s.handleMyReports)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/stats", s.handleAdminStats)
				r.Get("/users", s.handleAdminUsers)
				r.Get("/listings", s.handleAdminListings)
				r.Get("/reports", s.handleAdminReports)
				r.Put("/reports/{id}/review", s.handleReviewReport)
			})
		})
	})

	return r
}

// requestLogger emits one structured line per request once it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
