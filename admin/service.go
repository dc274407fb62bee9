package admin

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"collexa/auth"
	"collexa/listing"
	"collexa/report"
)

// ErrForbidden is returned when the principal lacks the admin role.
var ErrForbidden = errors.New("admin: forbidden")

// ErrValidation wraps malformed filter input.
var ErrValidation = errors.New("admin: invalid input")

// Repository defines the read-mostly data access behind the admin views.
type Repository interface {
	UserCounts(ctx context.Context) (total, verified int64, err error)
	ListingCounts(ctx context.Context) (ListingCounts, error)
	ReportCounts(ctx context.Context) (total, pending int64, err error)
	ActiveByCategory(ctx context.Context) ([]CategoryCount, error)

	ListUsers(ctx context.Context, limit, offset int) ([]UserSummary, int64, error)
	ListListings(ctx context.Context, status string, limit, offset int) ([]ListingSummary, int64, error)
	ListReports(ctx context.Context, status string, limit, offset int) ([]ReportSummary, int64, error)
}

// ListingCounts breaks listings down by lifecycle status.
type ListingCounts struct {
	Total   int64
	Active  int64
	Expired int64
	Deleted int64
}

// Service exposes the admin dashboard and moderation list views. Every
// operation requires an admin principal.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Dashboard assembles the stats snapshot. The four count queries are
// independent, so they run concurrently.
func (s *Service) Dashboard(ctx context.Context, p auth.Principal) (DashboardStats, error) {
	if !p.IsAdmin {
		return DashboardStats{}, ErrForbidden
	}

	var stats DashboardStats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		total, verified, err := s.repo.UserCounts(gctx)
		if err != nil {
			return fmt.Errorf("admin: user counts: %w", err)
		}
		stats.TotalUsers, stats.VerifiedUsers = total, verified
		return nil
	})
	g.Go(func() error {
		counts, err := s.repo.ListingCounts(gctx)
		if err != nil {
			return fmt.Errorf("admin: listing counts: %w", err)
		}
		stats.TotalListings = counts.Total
		stats.ActiveListings = counts.Active
		stats.ExpiredListings = counts.Expired
		stats.DeletedListings = counts.Deleted
		return nil
	})
	g.Go(func() error {
		total, pending, err := s.repo.ReportCounts(gctx)
		if err != nil {
			return fmt.Errorf("admin: report counts: %w", err)
		}
		stats.TotalReports, stats.PendingReports = total, pending
		return nil
	})
	g.Go(func() error {
		byCategory, err := s.repo.ActiveByCategory(gctx)
		if err != nil {
			return fmt.Errorf("admin: listings by category: %w", err)
		}
		stats.ListingsByCategory = byCategory
		return nil
	})

	if err := g.Wait(); err != nil {
		return DashboardStats{}, err
	}
	return stats, nil
}

// ListUsers pages through all accounts, newest first.
func (s *Service) ListUsers(ctx context.Context, p auth.Principal, page Page) ([]UserSummary, int64, error) {
	if !p.IsAdmin {
		return nil, 0, ErrForbidden
	}
	limit, offset := page.normalize().limitOffset()
	return s.repo.ListUsers(ctx, limit, offset)
}

// ListListings pages through listings of any status. An empty status means
// all statuses.
func (s *Service) ListListings(ctx context.Context, p auth.Principal, status string, page Page) ([]ListingSummary, int64, error) {
	if !p.IsAdmin {
		return nil, 0, ErrForbidden
	}
	if status != "" && !listing.Status(status).Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	limit, offset := page.normalize().limitOffset()
	return s.repo.ListListings(ctx, status, limit, offset)
}

// ListReports pages through the moderation queue. An empty status means all
// reports; otherwise it must be a known report status.
func (s *Service) ListReports(ctx context.Context, p auth.Principal, status string, page Page) ([]ReportSummary, int64, error) {
	if !p.IsAdmin {
		return nil, 0, ErrForbidden
	}
	if status != "" && !validReportStatus(status) {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	limit, offset := page.normalize().limitOffset()
	return s.repo.ListReports(ctx, status, limit, offset)
}

func validReportStatus(status string) bool {
	switch report.Status(status) {
	case report.StatusPending, report.StatusReviewed, report.StatusDismissed, report.StatusActionTaken:
		return true
	}
	return false
}
