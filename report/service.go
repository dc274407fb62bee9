package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"collexa/auth"
	"collexa/listing"
	"collexa/ratelimit"
)

var (
	// ErrNotFound is returned when no report exists for the id.
	ErrNotFound = errors.New("report: not found")
	// ErrDuplicate signals the reporter already reported this listing.
	ErrDuplicate = errors.New("report: already reported")
	// ErrOwnListing rejects sellers reporting their own listings.
	ErrOwnListing = errors.New("report: cannot report own listing")
	// ErrForbidden signals a missing admin role on review.
	ErrForbidden = errors.New("report: forbidden")
	// ErrValidation wraps malformed input.
	ErrValidation = errors.New("report: invalid input")
	// ErrNotVerified rejects reports from unverified principals.
	ErrNotVerified = errors.New("report: account not verified")
)

// Repository defines the data access required by the service.
type Repository interface {
	CreateWithCount(ctx context.Context, r Report) (Report, error)
	GetByID(ctx context.Context, id string) (Report, error)
	ListByReporter(ctx context.Context, reporterID string) ([]Report, error)
	SetReview(ctx context.Context, id string, status Status, reviewerID, note string, at time.Time) (Report, error)
}

// ListingFinder resolves the reported listing.
type ListingFinder interface {
	GetByID(ctx context.Context, id string) (listing.Listing, error)
}

// ListingDeleter force-removes a listing during an action_taken review.
// Satisfied by the listing service so cascades release stored images too.
type ListingDeleter interface {
	Delete(ctx context.Context, p auth.Principal, id string) error
}

// Service implements the moderation overlay: submitting reports and the admin
// review flow. It reads listings but never changes lifecycle rules beyond the
// admin-initiated cascade delete.
type Service struct {
	repo     Repository
	listings ListingFinder
	deleter  ListingDeleter
	limiter  ratelimit.Limiter
	logger   zerolog.Logger
	idGen    func() string
	now      func() time.Time
}

func NewService(repo Repository, listings ListingFinder, deleter ListingDeleter, limiter ratelimit.Limiter, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		listings: listings,
		deleter:  deleter,
		limiter:  limiter,
		logger:   logger,
		idGen:    func() string { return uuid.NewString() },
		now:      time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithIDGenerator overrides id generation. Test hook.
func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

// Create files a report against a listing. Duplicates per (listing, reporter)
// conflict; the listing's report counter moves exactly once per accepted
// report.
func (s *Service) Create(ctx context.Context, p auth.Principal, params CreateParams) (Report, error) {
	if !p.IsVerified {
		return Report{}, ErrNotVerified
	}
	if !validReason(params.Reason) {
		return Report{}, fmt.Errorf("%w: unknown reason %q", ErrValidation, params.Reason)
	}
	if len(params.Description) > MaxDescriptionLen {
		return Report{}, fmt.Errorf("%w: description cannot exceed %d characters", ErrValidation, MaxDescriptionLen)
	}

	l, err := s.listings.GetByID(ctx, params.ListingID)
	if err != nil {
		if errors.Is(err, listing.ErrNotFound) {
			return Report{}, listing.ErrNotFound
		}
		return Report{}, err
	}
	if l.Status == listing.StatusDeleted {
		return Report{}, listing.ErrNotFound
	}
	if l.SellerID == p.UserID {
		return Report{}, ErrOwnListing
	}

	if err := s.limiter.Allow(ctx, "report-create:"+p.UserID, ReportsPerHour, time.Hour); err != nil {
		return Report{}, err
	}

	return s.repo.CreateWithCount(ctx, Report{
		ID:          s.idGen(),
		ListingID:   params.ListingID,
		ReporterID:  p.UserID,
		Reason:      params.Reason,
		Description: params.Description,
		Status:      StatusPending,
	})
}

// ListMine returns the principal's submitted reports, newest first.
func (s *Service) ListMine(ctx context.Context, p auth.Principal) ([]Report, error) {
	return s.repo.ListByReporter(ctx, p.UserID)
}

// Review records an admin decision. action_taken with CascadeDelete removes
// the reported listing through the listing service, bypassing the ownership
// check since the actor is an admin.
func (s *Service) Review(ctx context.Context, p auth.Principal, reportID string, params ReviewParams) (Report, error) {
	if !p.IsAdmin {
		return Report{}, ErrForbidden
	}
	if !validAction(params.Action) {
		return Report{}, fmt.Errorf("%w: unknown action %q", ErrValidation, params.Action)
	}
	if len(params.Note) > MaxReviewNoteLen {
		return Report{}, fmt.Errorf("%w: note cannot exceed %d characters", ErrValidation, MaxReviewNoteLen)
	}

	rep, err := s.repo.SetReview(ctx, reportID, params.Action, p.UserID, params.Note, s.now())
	if err != nil {
		return Report{}, err
	}

	if params.Action == StatusActionTaken && params.CascadeDelete {
		if err := s.deleter.Delete(ctx, p, rep.ListingID); err != nil {
			// Already deleted is fine; the cascade is idempotent.
			if !errors.Is(err, listing.ErrNotFound) {
				return Report{}, fmt.Errorf("report: cascade delete listing: %w", err)
			}
		}
	}

	return rep, nil
}

func validReason(reason string) bool {
	for _, r := range Reasons {
		if r == reason {
			return true
		}
	}
	return false
}

func validAction(action Status) bool {
	for _, a := range ReviewActions {
		if a == action {
			return true
		}
	}
	return false
}
