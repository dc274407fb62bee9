package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"collexa/auth"
	"collexa/ratelimit"
	"collexa/storage"
)

var (
	// ErrNotFound is returned when no visible listing exists for the id.
	ErrNotFound = errors.New("listing: not found")
	// ErrForbidden signals an ownership or role check failure.
	ErrForbidden = errors.New("listing: forbidden")
	// ErrNotExpired signals a reactivate on a listing that is not expired.
	ErrNotExpired = errors.New("listing: not expired")
	// ErrValidation wraps malformed or out-of-range input.
	ErrValidation = errors.New("listing: invalid input")
	// ErrNotVerified rejects writes from unverified principals.
	ErrNotVerified = errors.New("listing: account not verified")
)

// Repository defines the data access required by the lifecycle service.
type Repository interface {
	Insert(ctx context.Context, l Listing) (Listing, error)
	List(ctx context.Context, f Filters) ([]Listing, int, error)
	GetByID(ctx context.Context, id string) (Listing, error)
	RecordView(ctx context.Context, id string) error
	ListBySeller(ctx context.Context, sellerID string, status string) ([]Listing, error)
	Update(ctx context.Context, l Listing) (Listing, error)
	SetDeleted(ctx context.Context, id string) error
	Reactivate(ctx context.Context, id string, expiresAt time.Time) (bool, error)
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// Service implements the listing lifecycle: create, browse, edit, soft-delete,
// and reactivate, with ownership and status-transition rules enforced here
// rather than in the HTTP layer.
type Service struct {
	repo    Repository
	blobs   storage.BlobStore
	limiter ratelimit.Limiter
	logger  zerolog.Logger
	idGen   func() string
	now     func() time.Time
}

func NewService(repo Repository, blobs storage.BlobStore, limiter ratelimit.Limiter, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		blobs:   blobs,
		limiter: limiter,
		logger:  logger,
		idGen:   func() string { return uuid.NewString() },
		now:     time.Now,
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

// Create validates the fields, applies the per-seller hourly quota, and
// stores a new active listing expiring in 30 days.
func (s *Service) Create(ctx context.Context, p auth.Principal, params CreateParams) (Listing, error) {
	if !p.IsVerified {
		return Listing{}, ErrNotVerified
	}
	if err := validateCreate(params); err != nil {
		return Listing{}, err
	}
	if err := s.limiter.Allow(ctx, "listing-create:"+p.UserID, CreatesPerHour, time.Hour); err != nil {
		return Listing{}, err
	}

	now := s.now()
	l := Listing{
		ID:           s.idGen(),
		SellerID:     p.UserID,
		Title:        params.Title,
		Description:  params.Description,
		Category:     params.Category,
		Condition:    params.Condition,
		Price:        params.Price,
		Type:         params.Type,
		RentDuration: params.RentDuration,
		Images:       params.Images,
		Status:       StatusActive,
		ExpiresAt:    now.Add(ExpiryWindow),
	}
	if l.Type != TypeRent {
		l.RentDuration = nil
	}

	return s.repo.Insert(ctx, l)
}

// List returns active listings matching the filters, newest first.
func (s *Service) List(ctx context.Context, f Filters) ([]Listing, int, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 || f.PageSize > 100 {
		f.PageSize = 20
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return nil, 0, fmt.Errorf("%w: min price above max price", ErrValidation)
	}
	return s.repo.List(ctx, f)
}

// GetByID returns an active listing. Every fetch counts one view unless the
// viewer is the seller; anonymous views count. The increment is best-effort.
func (s *Service) GetByID(ctx context.Context, id, viewerID string) (Listing, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Listing{}, err
	}
	if l.Status != StatusActive {
		return Listing{}, ErrNotFound
	}

	if viewerID != l.SellerID {
		if err := s.repo.RecordView(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("listing_id", id).Msg("view count increment failed")
		} else {
			l.ViewCount++
		}
	}

	return l, nil
}

// ListMine returns the principal's listings. Without a status filter, deleted
// listings are hidden; asking for "deleted" explicitly shows them.
func (s *Service) ListMine(ctx context.Context, p auth.Principal, status string) ([]Listing, error) {
	if status != "" && status != "all" && !Status(status).Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.repo.ListBySeller(ctx, p.UserID, status)
}

// Update applies a partial edit by the owner or an admin. Replacing images
// releases every previously stored blob.
func (s *Service) Update(ctx context.Context, p auth.Principal, id string, params UpdateParams) (Listing, error) {
	l, err := s.visibleForWrite(ctx, p, id)
	if err != nil {
		return Listing{}, err
	}

	if params.Title != nil {
		l.Title = *params.Title
	}
	if params.Description != nil {
		l.Description = *params.Description
	}
	if params.Price != nil {
		l.Price = *params.Price
	}
	if params.Condition != nil {
		l.Condition = *params.Condition
	}

	var retired []Image
	if params.Images != nil {
		// A replacement set must stand on its own; emptying a live listing
		// is not an edit.
		if len(params.Images) == 0 {
			return Listing{}, fmt.Errorf("%w: at least one image is required", ErrValidation)
		}
		if err := validateImages(params.Images); err != nil {
			return Listing{}, err
		}
		retired = l.Images
		l.Images = params.Images
	}

	if err := validateFields(l.Title, l.Description, l.Category, l.Condition, l.Price, l.Type, l.RentDuration); err != nil {
		return Listing{}, err
	}

	updated, err := s.repo.Update(ctx, l)
	if err != nil {
		return Listing{}, err
	}

	s.releaseBlobs(ctx, updated.ID, retired)
	return updated, nil
}

// Delete soft-deletes the listing and releases its stored images. The status
// transition commits first; blob cleanup failures are logged with the
// orphaned storage id for later reconciliation, never surfaced.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id string) error {
	l, err := s.visibleForWrite(ctx, p, id)
	if err != nil {
		return err
	}

	if err := s.repo.SetDeleted(ctx, l.ID); err != nil {
		return err
	}

	s.releaseBlobs(ctx, l.ID, l.Images)
	return nil
}

// Reactivate flips an expired listing back to active for another 30 days.
// Only the owner may reactivate; any other current status is a conflict.
func (s *Service) Reactivate(ctx context.Context, p auth.Principal, id string) (Listing, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Listing{}, err
	}
	if l.Status == StatusDeleted {
		return Listing{}, ErrNotFound
	}
	if l.SellerID != p.UserID {
		return Listing{}, ErrForbidden
	}
	if l.Status != StatusExpired {
		return Listing{}, ErrNotExpired
	}

	expiresAt := s.now().Add(ExpiryWindow)
	ok, err := s.repo.Reactivate(ctx, l.ID, expiresAt)
	if err != nil {
		return Listing{}, err
	}
	if !ok {
		// Raced with another transition since the read above.
		return Listing{}, ErrNotExpired
	}

	l.Status = StatusActive
	l.ExpiresAt = expiresAt
	return l, nil
}

func (s *Service) visibleForWrite(ctx context.Context, p auth.Principal, id string) (Listing, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Listing{}, err
	}
	if l.Status == StatusDeleted {
		return Listing{}, ErrNotFound
	}
	if l.SellerID != p.UserID && !p.IsAdmin {
		return Listing{}, ErrForbidden
	}
	return l, nil
}

func (s *Service) releaseBlobs(ctx context.Context, listingID string, images []Image) {
	for _, img := range images {
		if img.StorageID == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, img.StorageID); err != nil {
			orphanedBlobsTotal.Inc()
			s.logger.Error().Err(err).
				Str("listing_id", listingID).
				Str("storage_id", img.StorageID).
				Msg("orphaned blob: delete failed, needs reconciliation")
		}
	}
}

func validateCreate(p CreateParams) error {
	if err := validateFields(p.Title, p.Description, p.Category, p.Condition, p.Price, p.Type, p.RentDuration); err != nil {
		return err
	}
	if len(p.Images) == 0 {
		return fmt.Errorf("%w: at least one image is required", ErrValidation)
	}
	return validateImages(p.Images)
}

func validateFields(title, description, category, condition string, price float64, t Type, rentDuration *string) error {
	if l := len(title); l < MinTitleLen || l > MaxTitleLen {
		return fmt.Errorf("%w: title must be %d-%d characters", ErrValidation, MinTitleLen, MaxTitleLen)
	}
	if l := len(description); l < MinDescriptionLen || l > MaxDescriptionLen {
		return fmt.Errorf("%w: description must be %d-%d characters", ErrValidation, MinDescriptionLen, MaxDescriptionLen)
	}
	if !oneOf(category, Categories) {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, category)
	}
	if !oneOf(condition, Conditions) {
		return fmt.Errorf("%w: unknown condition %q", ErrValidation, condition)
	}
	if price < 0 || price > MaxPrice {
		return fmt.Errorf("%w: price must be between 0 and %d", ErrValidation, MaxPrice)
	}
	if !t.Valid() {
		return fmt.Errorf("%w: listing type must be sell or rent", ErrValidation)
	}
	if t == TypeRent {
		if rentDuration == nil || !oneOf(*rentDuration, RentDurations) {
			return fmt.Errorf("%w: rent duration is required for rentals", ErrValidation)
		}
	}
	return nil
}

func validateImages(images []Image) error {
	if len(images) > MaxImages {
		return fmt.Errorf("%w: at most %d images", ErrValidation, MaxImages)
	}
	for _, img := range images {
		if img.URL == "" || img.StorageID == "" {
			return fmt.Errorf("%w: image url and storage id are required", ErrValidation)
		}
	}
	return nil
}
