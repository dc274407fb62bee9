package listing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"collexa/auth"
	"collexa/ratelimit"
	"collexa/storage"
)

var (
	seller = auth.Principal{UserID: "user-seller", IsVerified: true}
	buyer  = auth.Principal{UserID: "user-buyer", IsVerified: true}
	admin  = auth.Principal{UserID: "user-admin", IsAdmin: true, IsVerified: true}
)

func validParams() CreateParams {
	return CreateParams{
		Title:       "Calculus textbook, 9th edition",
		Description: "Barely used, no highlights or notes.",
		Category:    "Books",
		Condition:   "Good",
		Price:       500,
		Type:        TypeSell,
		Images: []Image{
			{URL: "https://img.example/a.jpg", StorageID: "blob-a"},
			{URL: "https://img.example/b.jpg", StorageID: "blob-b"},
		},
	}
}

type fixture struct {
	svc     *Service
	repo    *fakeRepository
	blobs   *fakeBlobStore
	current *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }
	repo := newFakeListingRepository()
	blobs := &fakeBlobStore{}
	limiter := ratelimit.NewMemoryLimiter().WithClock(clock)

	next := 0
	svc := NewService(repo, blobs, limiter, zerolog.Nop()).
		WithClock(func() time.Time { return current }).
		WithIDGenerator(func() string {
			next++
			return fmt.Sprintf("listing-%d", next)
		})

	// The clock closures share the local, so tests advance time through
	// f.current.
	return &fixture{svc: svc, repo: repo, blobs: blobs, current: &current}
}

func TestCreate_SetsLifecycleDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.svc.Create(ctx, seller, validParams())
	if err != nil {
		t.Fatalf("create: unexpected error: %v", err)
	}

	if l.Status != StatusActive {
		t.Fatalf("expected status active, got %s", l.Status)
	}
	wantExpiry := f.current.Add(ExpiryWindow)
	if !l.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected expiry %v, got %v", wantExpiry, l.ExpiresAt)
	}
	if l.ViewCount != 0 {
		t.Fatalf("expected zero views, got %d", l.ViewCount)
	}
	if len(l.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(l.Images))
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateParams)
	}{
		{"short title", func(p *CreateParams) { p.Title = "hey" }},
		{"short description", func(p *CreateParams) { p.Description = "too short" }},
		{"unknown category", func(p *CreateParams) { p.Category = "Furniture" }},
		{"unknown condition", func(p *CreateParams) { p.Condition = "Broken" }},
		{"negative price", func(p *CreateParams) { p.Price = -1 }},
		{"price over cap", func(p *CreateParams) { p.Price = 100001 }},
		{"bad type", func(p *CreateParams) { p.Type = "lease" }},
		{"rent without duration", func(p *CreateParams) { p.Type = TypeRent; p.RentDuration = nil }},
		{"no images", func(p *CreateParams) { p.Images = nil }},
		{"too many images", func(p *CreateParams) {
			p.Images = make([]Image, 6)
			for i := range p.Images {
				p.Images[i] = Image{URL: "u", StorageID: "s"}
			}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validParams()
			tc.mutate(&p)
			if _, err := f.svc.Create(ctx, seller, p); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestCreate_RentKeepsDuration(t *testing.T) {
	f := newFixture(t)
	dur := "per week"
	p := validParams()
	p.Type = TypeRent
	p.RentDuration = &dur

	l, err := f.svc.Create(context.Background(), seller, p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.RentDuration == nil || *l.RentDuration != dur {
		t.Fatalf("expected rent duration %q, got %v", dur, l.RentDuration)
	}

	// A sell listing silently drops any stray duration.
	p = validParams()
	p.RentDuration = &dur
	l, err = f.svc.Create(context.Background(), seller, p)
	if err != nil {
		t.Fatalf("create sell: %v", err)
	}
	if l.RentDuration != nil {
		t.Fatalf("expected nil rent duration for sell listing, got %q", *l.RentDuration)
	}
}

func TestCreate_RejectsUnverified(t *testing.T) {
	f := newFixture(t)
	unverified := auth.Principal{UserID: "user-x"}
	if _, err := f.svc.Create(context.Background(), unverified, validParams()); !errors.Is(err, ErrNotVerified) {
		t.Fatalf("expected ErrNotVerified, got %v", err)
	}
}

func TestCreate_RateLimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < CreatesPerHour; i++ {
		if _, err := f.svc.Create(ctx, seller, validParams()); err != nil {
			t.Fatalf("create %d: %v", i+1, err)
		}
	}
	if _, err := f.svc.Create(ctx, seller, validParams()); !errors.Is(err, ratelimit.ErrLimited) {
		t.Fatalf("expected ErrLimited, got %v", err)
	}

	// Another seller is not affected.
	if _, err := f.svc.Create(ctx, buyer, validParams()); err != nil {
		t.Fatalf("other seller: %v", err)
	}
}

func TestGetByID_ViewCounting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.svc.Create(ctx, seller, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Self-view never counts.
	got, err := f.svc.GetByID(ctx, l.ID, seller.UserID)
	if err != nil {
		t.Fatalf("self view: %v", err)
	}
	if got.ViewCount != 0 {
		t.Fatalf("self view counted: %d", got.ViewCount)
	}

	// Each foreign view counts exactly once per fetch; anonymous counts too.
	if _, err := f.svc.GetByID(ctx, l.ID, buyer.UserID); err != nil {
		t.Fatalf("buyer view: %v", err)
	}
	got, err = f.svc.GetByID(ctx, l.ID, "")
	if err != nil {
		t.Fatalf("anonymous view: %v", err)
	}
	if got.ViewCount != 2 {
		t.Fatalf("expected 2 views, got %d", got.ViewCount)
	}
}

func TestGetByID_HidesInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.svc.Create(ctx, seller, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.repo.setStatus(l.ID, StatusExpired)

	if _, err := f.svc.GetByID(ctx, l.ID, buyer.UserID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired, got %v", err)
	}
	if _, err := f.svc.GetByID(ctx, "no-such-id", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestLifecycle_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sweeper := NewSweeper(f.repo, zerolog.Nop()).WithClock(func() time.Time { return *f.current })

	l, err := f.svc.Create(ctx, seller, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.Status != StatusActive || l.ViewCount != 0 {
		t.Fatalf("unexpected fresh listing: %+v", l)
	}

	// Nothing stale yet: sweep is a no-op.
	count, err := sweeper.Sweep(ctx)
	if err != nil || count != 0 {
		t.Fatalf("expected clean sweep of 0, got %d, %v", count, err)
	}

	// Push the listing past its expiry and sweep.
	f.repo.setExpiresAt(l.ID, f.current.Add(-time.Hour))
	count, err = sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 expired, got %d", count)
	}
	if st := f.repo.listings[l.ID].Status; st != StatusExpired {
		t.Fatalf("expected expired, got %s", st)
	}

	// Sweeping again with no intervening writes is idempotent.
	count, err = sweeper.Sweep(ctx)
	if err != nil || count != 0 {
		t.Fatalf("expected idempotent second sweep, got %d, %v", count, err)
	}

	// Owner reactivates: active again, expiry reset to a fresh 30 days.
	reactivated, err := f.svc.Reactivate(ctx, seller, l.ID)
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if reactivated.Status != StatusActive {
		t.Fatalf("expected active, got %s", reactivated.Status)
	}
	if want := f.current.Add(ExpiryWindow); !reactivated.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, reactivated.ExpiresAt)
	}

	// A second reactivate conflicts: the listing is no longer expired.
	if _, err := f.svc.Reactivate(ctx, seller, l.ID); !errors.Is(err, ErrNotExpired) {
		t.Fatalf("expected ErrNotExpired, got %v", err)
	}
}

func TestReactivate_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.svc.Create(ctx, seller, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Reactivate(ctx, seller, l.ID); !errors.Is(err, ErrNotExpired) {
		t.Fatalf("active listing: expected ErrNotExpired, got %v", err)
	}

	f.repo.setStatus(l.ID, StatusExpired)
	if _, err := f.svc.Reactivate(ctx, buyer, l.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign owner: expected ErrForbidden, got %v", err)
	}

	f.repo.setStatus(l.ID, StatusDeleted)
	if _, err := f.svc.Reactivate(ctx, seller, l.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted listing: expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_OwnershipAndPartialEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.svc.Create(ctx, seller, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Update(ctx, buyer, l.ID, UpdateParams{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	price := 750.0
	title := "Calculus textbook, like new"
	updated, err := f.svc.Update(ctx, seller, l.ID, UpdateParams{Title: &title, Price: &price})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Title != title || updated.Price != price {
		t.Fatalf("partial update not applied: %+v", updated)
	}
	if updated.Description != l.Description {
		t.Fatal("untouched field changed")
	}

	// Admin may edit someone else's listing.
	cond := "Fair"
	if _, err := f.svc.Update(ctx, admin, l.ID, UpdateParams{Condition: &cond}); err != nil {
		t.Fatalf("admin update: %v", err)
	}

	// Edits are still validated.
	bad := 200000.0
	if _, err := f.svc.Update(ctx, seller, l.ID, UpdateParams{Price: &bad}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUpdate_ImageReplacementReleasesOldBlobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.svc.Create(ctx, seller, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	replacement := []Image{{URL: "https://img.example/c.jpg", StorageID: "blob-c"}}
	updated, err := f.svc.Update(ctx, seller, l.ID, UpdateParams{Images: replacement})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Images) != 1 || updated.Images[0].StorageID != "blob-c" {
		t.Fatalf("images not replaced: %+v", updated.Images)
	}

	// Exactly one delete per retired image, none for the new one.
	f.blobs.assertDeleted(t, "blob-a", "blob-b")
}

func TestUpdate_RejectsEmptyImageReplacement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.svc.Create(ctx, seller, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Update(ctx, seller, l.ID, UpdateParams{Images: []Image{}}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	// The listing and its stored blobs are untouched.
	got, err := f.svc.GetByID(ctx, l.ID, seller.UserID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Images) != 2 {
		t.Fatalf("images must survive the rejected edit, got %+v", got.Images)
	}
	if len(f.blobs.deleted) != 0 {
		t.Fatalf("expected no blob deletes, got %v", f.blobs.deleted)
	}
}

func TestUpdate_WithoutImagesKeepsBlobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.svc.Create(ctx, seller, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	title := "Calculus textbook, second owner"
	if _, err := f.svc.Update(ctx, seller, l.ID, UpdateParams{Title: &title}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(f.blobs.deleted) != 0 {
		t.Fatalf("expected no blob deletes, got %v", f.blobs.deleted)
	}
}

func TestDelete_SoftDeletesAndReleasesBlobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.svc.Create(ctx, seller, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := f.svc.Delete(ctx, buyer, l.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if err := f.svc.Delete(ctx, seller, l.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if st := f.repo.listings[l.ID].Status; st != StatusDeleted {
		t.Fatalf("expected deleted, got %s", st)
	}
	f.blobs.assertDeleted(t, "blob-a", "blob-b")

	// Deleted is terminal and invisible to further writes.
	if err := f.svc.Delete(ctx, seller, l.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDelete_SurvivesBlobStoreFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.svc.Create(ctx, seller, validParams())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	f.blobs.deleteErr = errors.New("cloud unreachable")
	if err := f.svc.Delete(ctx, seller, l.ID); err != nil {
		t.Fatalf("delete must not fail on storage errors, got %v", err)
	}
	if st := f.repo.listings[l.ID].Status; st != StatusDeleted {
		t.Fatalf("status transition must still commit, got %s", st)
	}
}

func TestListMine_DeletedHiddenByDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.svc.Create(ctx, seller, validParams())
	b, _ := f.svc.Create(ctx, seller, validParams())
	if err := f.svc.Delete(ctx, seller, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	mine, err := f.svc.ListMine(ctx, seller, "")
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != a.ID {
		t.Fatalf("expected only the live listing, got %+v", mine)
	}

	deleted, err := f.svc.ListMine(ctx, seller, "deleted")
	if err != nil {
		t.Fatalf("list deleted: %v", err)
	}
	if len(deleted) != 1 || deleted[0].ID != b.ID {
		t.Fatalf("expected the deleted listing, got %+v", deleted)
	}

	if _, err := f.svc.ListMine(ctx, seller, "archived"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown status, got %v", err)
	}
}

func TestList_FiltersAndVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	book, _ := f.svc.Create(ctx, seller, validParams())

	cycle := validParams()
	cycle.Title = "Mountain cycle, 21 gears"
	cycle.Description = "Serviced last month, new tires."
	cycle.Category = "Cycles"
	cycle.Price = 4000
	if _, err := f.svc.Create(ctx, seller, cycle); err != nil {
		t.Fatalf("create cycle: %v", err)
	}

	expired := validParams()
	expiredListing, _ := f.svc.Create(ctx, seller, expired)
	f.repo.setStatus(expiredListing.ID, StatusExpired)

	items, total, err := f.svc.List(ctx, Filters{Category: "Books"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != book.ID {
		t.Fatalf("category filter wrong: total=%d items=%+v", total, items)
	}

	min, max := 1000.0, 5000.0
	_, total, err = f.svc.List(ctx, Filters{MinPrice: &min, MaxPrice: &max})
	if err != nil {
		t.Fatalf("price filter: %v", err)
	}
	if total != 1 {
		t.Fatalf("price filter expected 1, got %d", total)
	}

	_, total, err = f.svc.List(ctx, Filters{Search: "mountain"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 {
		t.Fatalf("search expected 1, got %d", total)
	}

	// Expired listings never show in the public browse.
	_, total, err = f.svc.List(ctx, Filters{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 active listings, got %d", total)
	}

	if _, _, err := f.svc.List(ctx, Filters{MinPrice: &max, MaxPrice: &min}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for inverted range, got %v", err)
	}
}

func TestEscapeLike_MetacharactersAreLiteral(t *testing.T) {
	got := escapeLike(`100%_real\deal`)
	want := `100\%\_real\\deal`
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	// Regex metacharacters carry no meaning in LIKE and pass through.
	if got := escapeLike("a.b*"); got != "a.b*" {
		t.Fatalf("expected a.b* unchanged, got %q", got)
	}
}

// --- fakes ---

type fakeBlobStore struct {
	deleted   []string
	deleteErr error
}

func (f *fakeBlobStore) Upload(ctx context.Context, file io.Reader, filename string) (storage.Blob, error) {
	return storage.Blob{URL: "https://img.example/" + filename, StorageID: "blob-" + filename}, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, storageID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, storageID)
	return nil
}

func (f *fakeBlobStore) assertDeleted(t *testing.T, want ...string) {
	t.Helper()
	counts := map[string]int{}
	for _, id := range f.deleted {
		counts[id]++
	}
	for _, id := range want {
		if counts[id] != 1 {
			t.Fatalf("expected exactly one delete for %s, got %d (all: %v)", id, counts[id], f.deleted)
		}
	}
	if len(f.deleted) != len(want) {
		t.Fatalf("unexpected extra deletes: %v", f.deleted)
	}
}

type fakeRepository struct {
	listings map[string]Listing
	order    []string
}

func newFakeListingRepository() *fakeRepository {
	return &fakeRepository{listings: make(map[string]Listing)}
}

func (f *fakeRepository) setStatus(id string, status Status) {
	l := f.listings[id]
	l.Status = status
	f.listings[id] = l
}

func (f *fakeRepository) setExpiresAt(id string, at time.Time) {
	l := f.listings[id]
	l.ExpiresAt = at
	f.listings[id] = l
}

func (f *fakeRepository) Insert(ctx context.Context, l Listing) (Listing, error) {
	f.listings[l.ID] = l
	f.order = append(f.order, l.ID)
	return l, nil
}

func (f *fakeRepository) newestFirst() []Listing {
	out := make([]Listing, 0, len(f.order))
	for i := len(f.order) - 1; i >= 0; i-- {
		out = append(out, f.listings[f.order[i]])
	}
	return out
}

func (f *fakeRepository) List(ctx context.Context, flt Filters) ([]Listing, int, error) {
	var matched []Listing
	for _, l := range f.newestFirst() {
		if l.Status != StatusActive {
			continue
		}
		if flt.Category != "" && l.Category != flt.Category {
			continue
		}
		if flt.Type != "" && l.Type != flt.Type {
			continue
		}
		if flt.MinPrice != nil && l.Price < *flt.MinPrice {
			continue
		}
		if flt.MaxPrice != nil && l.Price > *flt.MaxPrice {
			continue
		}
		if flt.Search != "" {
			q := strings.ToLower(flt.Search)
			if !strings.Contains(strings.ToLower(l.Title), q) &&
				!strings.Contains(strings.ToLower(l.Description), q) {
				continue
			}
		}
		matched = append(matched, l)
	}

	total := len(matched)
	start := (flt.Page - 1) * flt.PageSize
	if start > total {
		start = total
	}
	end := start + flt.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (f *fakeRepository) GetByID(ctx context.Context, id string) (Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return Listing{}, ErrNotFound
	}
	return l, nil
}

func (f *fakeRepository) RecordView(ctx context.Context, id string) error {
	l, ok := f.listings[id]
	if !ok {
		return ErrNotFound
	}
	l.ViewCount++
	f.listings[id] = l
	return nil
}

func (f *fakeRepository) ListBySeller(ctx context.Context, sellerID string, status string) ([]Listing, error) {
	var out []Listing
	for _, l := range f.newestFirst() {
		if l.SellerID != sellerID {
			continue
		}
		if status != "" && status != "all" {
			if l.Status != Status(status) {
				continue
			}
		} else if l.Status == StatusDeleted {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeRepository) Update(ctx context.Context, l Listing) (Listing, error) {
	stored, ok := f.listings[l.ID]
	if !ok {
		return Listing{}, ErrNotFound
	}
	stored.Title = l.Title
	stored.Description = l.Description
	stored.Price = l.Price
	stored.Condition = l.Condition
	stored.RentDuration = l.RentDuration
	stored.Images = l.Images
	f.listings[l.ID] = stored
	return stored, nil
}

func (f *fakeRepository) SetDeleted(ctx context.Context, id string) error {
	l, ok := f.listings[id]
	if !ok {
		return ErrNotFound
	}
	l.Status = StatusDeleted
	f.listings[id] = l
	return nil
}

func (f *fakeRepository) Reactivate(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	l, ok := f.listings[id]
	if !ok || l.Status != StatusExpired {
		return false, nil
	}
	l.Status = StatusActive
	l.ExpiresAt = expiresAt
	f.listings[id] = l
	return true, nil
}

func (f *fakeRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	for id, l := range f.listings {
		if l.Status == StatusActive && l.ExpiresAt.Before(now) {
			l.Status = StatusExpired
			f.listings[id] = l
			count++
		}
	}
	return count, nil
}
