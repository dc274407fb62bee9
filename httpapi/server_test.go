package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"collexa/admin"
	"collexa/auth"
	"collexa/listing"
	"collexa/ratelimit"
	"collexa/report"
	"collexa/storage"
)

func newTestServer(t *testing.T) (*Server, *fakeAuth, *fakeListings) {
	t.Helper()
	fa := &fakeAuth{
		tokens: map[string]auth.Principal{
			"seller-token": {UserID: "user-seller", IsVerified: true},
			"admin-token":  {UserID: "user-admin", IsAdmin: true, IsVerified: true},
		},
	}
	fl := &fakeListings{}
	srv := NewServer(fa, fl, &fakeReports{}, &fakeAdmin{}, &fakeBlobs{}, ratelimit.NewMemoryLimiter(), zerolog.Nop()).
		WithClock(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) })
	return srv, fa, fl
}

func doJSON(t *testing.T, handler http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: bad envelope %q: %v", method, path, rec.Body.String(), err)
	}
	return rec, env
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec, env := doJSON(t, srv.Router(), http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("got %d %+v", rec.Code, env)
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv, _, _ := newTestServer(t)
	router := srv.Router()

	rec, env := doJSON(t, router, http.MethodGet, "/api/auth/me", "", "")
	if rec.Code != http.StatusUnauthorized || env.Success {
		t.Fatalf("missing token: got %d %+v", rec.Code, env)
	}

	rec, _ = doJSON(t, router, http.MethodGet, "/api/auth/me", "garbage", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: got %d", rec.Code)
	}

	rec, env = doJSON(t, router, http.MethodGet, "/api/auth/me", "seller-token", "")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("valid token: got %d %+v", rec.Code, env)
	}
}

func TestSignup_OTPRateLimit(t *testing.T) {
	srv, _, _ := newTestServer(t)
	router := srv.Router()
	body := `{"name":"Asha","email":"asha@campus.edu","password":"password123"}`

	for i := 0; i < otpPerHour; i++ {
		rec, _ := doJSON(t, router, http.MethodPost, "/api/auth/signup", "", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("signup %d: got %d", i+1, rec.Code)
		}
	}
	rec, env := doJSON(t, router, http.MethodPost, "/api/auth/signup", "", body)
	if rec.Code != http.StatusTooManyRequests || env.Success {
		t.Fatalf("expected 429, got %d %+v", rec.Code, env)
	}

	// The quota is per email.
	rec, _ = doJSON(t, router, http.MethodPost, "/api/auth/signup", "",
		`{"name":"Ravi","email":"ravi@campus.edu","password":"password123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("other email: got %d", rec.Code)
	}
}

func TestLogin_RateLimitPerIP(t *testing.T) {
	srv, fa, _ := newTestServer(t)
	fa.loginErr = auth.ErrInvalidCredentials
	router := srv.Router()
	body := `{"email":"asha@campus.edu","password":"wrong"}`

	for i := 0; i < loginAttempts; i++ {
		rec, _ := doJSON(t, router, http.MethodPost, "/api/auth/login", "", body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: got %d", i+1, rec.Code)
		}
	}
	rec, _ := doJSON(t, router, http.MethodPost, "/api/auth/login", "", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestCreateListing(t *testing.T) {
	srv, _, fl := newTestServer(t)
	router := srv.Router()
	body := `{
		"title": "Calculus textbook",
		"description": "Barely used, all pages intact",
		"category": "Books",
		"condition": "Good",
		"price": 450,
		"listing_type": "sell",
		"images": [{"url": "https://cdn.test/a.jpg", "storage_id": "blob-a"}]
	}`

	rec, _ := doJSON(t, router, http.MethodPost, "/api/listings", "", body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create: got %d", rec.Code)
	}

	rec, env := doJSON(t, router, http.MethodPost, "/api/listings", "seller-token", body)
	if rec.Code != http.StatusCreated || !env.Success {
		t.Fatalf("create: got %d %+v", rec.Code, env)
	}
	if fl.lastCreate.Title != "Calculus textbook" || len(fl.lastCreate.Images) != 1 {
		t.Fatalf("params not passed through: %+v", fl.lastCreate)
	}

	rec, _ = doJSON(t, router, http.MethodPost, "/api/listings", "seller-token", `{"title": 12}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: got %d", rec.Code)
	}
}

func TestGetListing_ViewerPassthrough(t *testing.T) {
	srv, _, fl := newTestServer(t)
	router := srv.Router()

	rec, _ := doJSON(t, router, http.MethodGet, "/api/listings/listing-1", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous get: got %d", rec.Code)
	}
	if fl.lastViewer != "" {
		t.Fatalf("anonymous viewer should be empty, got %q", fl.lastViewer)
	}

	if _, _ = doJSON(t, router, http.MethodGet, "/api/listings/listing-1", "seller-token", ""); fl.lastViewer != "user-seller" {
		t.Fatalf("expected viewer user-seller, got %q", fl.lastViewer)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, _, fl := newTestServer(t)
	router := srv.Router()

	fl.getErr = listing.ErrNotFound
	rec, env := doJSON(t, router, http.MethodGet, "/api/listings/missing", "", "")
	if rec.Code != http.StatusNotFound || env.Success {
		t.Fatalf("not found: got %d %+v", rec.Code, env)
	}

	fl.getErr = nil
	fl.reactivateErr = listing.ErrNotExpired
	rec, _ = doJSON(t, router, http.MethodPost, "/api/listings/listing-1/reactivate", "seller-token", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("not expired: got %d", rec.Code)
	}

	fl.deleteErr = listing.ErrForbidden
	rec, _ = doJSON(t, router, http.MethodDelete, "/api/listings/listing-1", "seller-token", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("forbidden: got %d", rec.Code)
	}

	fl.deleteErr = fmt.Errorf("pq: connection refused")
	rec, env = doJSON(t, router, http.MethodDelete, "/api/listings/listing-1", "seller-token", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("internal: got %d", rec.Code)
	}
	if strings.Contains(env.Message, "connection refused") {
		t.Fatalf("internal error leaked cause: %q", env.Message)
	}
}

func TestAdminRoutes_ForbiddenForNonAdmin(t *testing.T) {
	srv, _, _ := newTestServer(t)
	router := srv.Router()

	rec, _ := doJSON(t, router, http.MethodGet, "/api/admin/stats", "seller-token", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin stats: got %d", rec.Code)
	}

	rec, env := doJSON(t, router, http.MethodGet, "/api/admin/stats", "admin-token", "")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("admin stats: got %d %+v", rec.Code, env)
	}
}

// --- fakes ---

type fakeAuth struct {
	tokens   map[string]auth.Principal
	loginErr error
}

func (f *fakeAuth) VerifyToken(token string) (auth.Principal, error) {
	p, ok := f.tokens[token]
	if !ok {
		return auth.Principal{}, fmt.Errorf("unknown token")
	}
	return p, nil
}

func (f *fakeAuth) Signup(ctx context.Context, req auth.SignupRequest) error { return nil }

func (f *fakeAuth) ResendOTP(ctx context.Context, email string) error { return nil }

func (f *fakeAuth) VerifyOTP(ctx context.Context, req auth.VerifyOTPRequest) (auth.LoginResult, error) {
	return auth.LoginResult{Token: "fresh-token", User: auth.User{ID: "user-new", Email: req.Email}}, nil
}

func (f *fakeAuth) Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error) {
	if f.loginErr != nil {
		return auth.LoginResult{}, f.loginErr
	}
	return auth.LoginResult{Token: "session-token", User: auth.User{ID: "user-seller", Email: req.Email}}, nil
}

func (f *fakeAuth) GetUserByID(ctx context.Context, userID string) (*auth.User, error) {
	return &auth.User{ID: userID, Email: "asha@campus.edu", IsVerified: true}, nil
}

type fakeListings struct {
	lastCreate listing.CreateParams
	lastViewer string

	getErr        error
	deleteErr     error
	reactivateErr error
}

func (f *fakeListings) sample(id string) listing.Listing {
	return listing.Listing{
		ID:       id,
		SellerID: "user-seller",
		Title:    "Calculus textbook",
		Status:   listing.StatusActive,
	}
}

func (f *fakeListings) Create(ctx context.Context, p auth.Principal, params listing.CreateParams) (listing.Listing, error) {
	f.lastCreate = params
	l := f.sample("listing-new")
	l.Title = params.Title
	return l, nil
}

func (f *fakeListings) List(ctx context.Context, filters listing.Filters) ([]listing.Listing, int, error) {
	return []listing.Listing{f.sample("listing-1")}, 1, nil
}

func (f *fakeListings) GetByID(ctx context.Context, id, viewerID string) (listing.Listing, error) {
	if f.getErr != nil {
		return listing.Listing{}, f.getErr
	}
	f.lastViewer = viewerID
	return f.sample(id), nil
}

func (f *fakeListings) ListMine(ctx context.Context, p auth.Principal, status string) ([]listing.Listing, error) {
	return []listing.Listing{f.sample("listing-1")}, nil
}

func (f *fakeListings) Update(ctx context.Context, p auth.Principal, id string, params listing.UpdateParams) (listing.Listing, error) {
	return f.sample(id), nil
}

func (f *fakeListings) Delete(ctx context.Context, p auth.Principal, id string) error {
	return f.deleteErr
}

func (f *fakeListings) Reactivate(ctx context.Context, p auth.Principal, id string) (listing.Listing, error) {
	if f.reactivateErr != nil {
		return listing.Listing{}, f.reactivateErr
	}
	return f.sample(id), nil
}

type fakeReports struct{}

func (f *fakeReports) Create(ctx context.Context, p auth.Principal, params report.CreateParams) (report.Report, error) {
	return report.Report{ID: "report-1", ListingID: params.ListingID, Status: report.StatusPending}, nil
}

func (f *fakeReports) ListMine(ctx context.Context, p auth.Principal) ([]report.Report, error) {
	return nil, nil
}

func (f *fakeReports) Review(ctx context.Context, p auth.Principal, reportID string, params report.ReviewParams) (report.Report, error) {
	if !p.IsAdmin {
		return report.Report{}, report.ErrForbidden
	}
	return report.Report{ID: reportID, Status: params.Action}, nil
}

type fakeAdmin struct{}

func (f *fakeAdmin) Dashboard(ctx context.Context, p auth.Principal) (admin.DashboardStats, error) {
	if !p.IsAdmin {
		return admin.DashboardStats{}, admin.ErrForbidden
	}
	return admin.DashboardStats{TotalUsers: 1}, nil
}

func (f *fakeAdmin) ListUsers(ctx context.Context, p auth.Principal, page admin.Page) ([]admin.UserSummary, int64, error) {
	if !p.IsAdmin {
		return nil, 0, admin.ErrForbidden
	}
	return nil, 0, nil
}

func (f *fakeAdmin) ListListings(ctx context.Context, p auth.Principal, status string, page admin.Page) ([]admin.ListingSummary, int64, error) {
	if !p.IsAdmin {
		return nil, 0, admin.ErrForbidden
	}
	return nil, 0, nil
}

func (f *fakeAdmin) ListReports(ctx context.Context, p auth.Principal, status string, page admin.Page) ([]admin.ReportSummary, int64, error) {
	if !p.IsAdmin {
		return nil, 0, admin.ErrForbidden
	}
	return nil, 0, nil
}

type fakeBlobs struct{}

func (f *fakeBlobs) Upload(ctx context.Context, r io.Reader, filename string) (storage.Blob, error) {
	return storage.Blob{URL: "https://cdn.test/" + filename, StorageID: "blob-" + filename}, nil
}

func (f *fakeBlobs) Delete(ctx context.Context, storageID string) error { return nil }
