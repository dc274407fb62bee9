package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const listingColumns = `id, seller_id, title, description, category, condition, price, listing_type, rent_duration, status, expires_at, view_count, report_count, created_at, updated_at`

type listingRow struct {
	ID           string    `db:"id"`
	SellerID     string    `db:"seller_id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	Category     string    `db:"category"`
	Condition    string    `db:"condition"`
	Price        float64   `db:"price"`
	ListingType  string    `db:"listing_type"`
	RentDuration *string   `db:"rent_duration"`
	Status       string    `db:"status"`
	ExpiresAt    time.Time `db:"expires_at"`
	ViewCount    int       `db:"view_count"`
	ReportCount  int       `db:"report_count"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r listingRow) toDomain() Listing {
	return Listing{
		ID:           r.ID,
		SellerID:     r.SellerID,
		Title:        r.Title,
		Description:  r.Description,
		Category:     r.Category,
		Condition:    r.Condition,
		Price:        r.Price,
		Type:         Type(r.ListingType),
		RentDuration: r.RentDuration,
		Status:       Status(r.Status),
		ExpiresAt:    r.ExpiresAt,
		ViewCount:    r.ViewCount,
		ReportCount:  r.ReportCount,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert stores the listing and its ordered images in one transaction.
func (r *PGRepository) Insert(ctx context.Context, l Listing) (Listing, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Listing{}, fmt.Errorf("listing: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insertSQL := `
		INSERT INTO listings (id, seller_id, title, description, category, condition, price, listing_type, rent_duration, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + listingColumns

	var row listingRow
	if err := pgxscan.Get(ctx, tx, &row, insertSQL,
		l.ID, l.SellerID, l.Title, l.Description, l.Category, l.Condition,
		l.Price, string(l.Type), l.RentDuration, string(l.Status), l.ExpiresAt,
	); err != nil {
		return Listing{}, fmt.Errorf("listing: insert: %w", err)
	}

	if err := replaceImages(ctx, tx, l.ID, l.Images); err != nil {
		return Listing{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Listing{}, fmt.Errorf("listing: commit insert: %w", err)
	}

	created := row.toDomain()
	created.Images = l.Images
	return created, nil
}

// List returns active listings matching the filters plus the total match count.
func (r *PGRepository) List(ctx context.Context, f Filters) ([]Listing, int, error) {
	where := filtersToWhere(f)

	query := psql.Select(strings.Split(listingColumns, ", ")...).
		From("listings").
		Where(where).
		OrderBy("created_at DESC").
		Limit(uint64(f.PageSize)).
		Offset(uint64((f.Page - 1) * f.PageSize))

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("listing: build list query: %w", err)
	}

	var rows []listingRow
	if err := pgxscan.Select(ctx, r.pool, &rows, sqlStr, args...); err != nil {
		return nil, 0, fmt.Errorf("listing: list: %w", err)
	}

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("listings").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("listing: build count query: %w", err)
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("listing: count: %w", err)
	}

	listings, err := r.attachImages(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

func filtersToWhere(f Filters) sq.And {
	where := sq.And{sq.Eq{"status": string(StatusActive)}}
	if f.Category != "" {
		where = append(where, sq.Eq{"category": f.Category})
	}
	if f.Type != "" {
		where = append(where, sq.Eq{"listing_type": string(f.Type)})
	}
	if f.MinPrice != nil {
		where = append(where, sq.GtOrEq{"price": *f.MinPrice})
	}
	if f.MaxPrice != nil {
		where = append(where, sq.LtOrEq{"price": *f.MaxPrice})
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(f.Search) + "%"
		where = append(where, sq.Or{
			sq.ILike{"title": pattern},
			sq.ILike{"description": pattern},
		})
	}
	return where
}

// escapeLike neutralizes LIKE metacharacters so user input matches literal
// substrings only.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// GetByID returns the listing regardless of status; visibility rules live in
// the service.
func (r *PGRepository) GetByID(ctx context.Context, id string) (Listing, error) {
	var row listingRow
	err := pgxscan.Get(ctx, r.pool, &row,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, fmt.Errorf("listing: get by id: %w", err)
	}

	listings, err := r.attachImages(ctx, []listingRow{row})
	if err != nil {
		return Listing{}, err
	}
	return listings[0], nil
}

// RecordView bumps the view counter. Lost updates under concurrent views are
// acceptable; this is a single atomic add, not a read-modify-write.
func (r *PGRepository) RecordView(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx,
		`UPDATE listings SET view_count = view_count + 1 WHERE id = $1`, id); err != nil {
		return fmt.Errorf("listing: record view: %w", err)
	}
	return nil
}

// ListBySeller returns the seller's listings, newest first. Empty or "all"
// status hides deleted listings; a concrete status selects exactly it.
func (r *PGRepository) ListBySeller(ctx context.Context, sellerID string, status string) ([]Listing, error) {
	where := sq.And{sq.Eq{"seller_id": sellerID}}
	if status != "" && status != "all" {
		where = append(where, sq.Eq{"status": status})
	} else {
		where = append(where, sq.NotEq{"status": string(StatusDeleted)})
	}

	sqlStr, args, err := psql.Select(strings.Split(listingColumns, ", ")...).
		From("listings").
		Where(where).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("listing: build seller query: %w", err)
	}

	var rows []listingRow
	if err := pgxscan.Select(ctx, r.pool, &rows, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("listing: list by seller: %w", err)
	}
	return r.attachImages(ctx, rows)
}

// Update persists edited fields and replaces the image set.
func (r *PGRepository) Update(ctx context.Context, l Listing) (Listing, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Listing{}, fmt.Errorf("listing: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updateSQL := `
		UPDATE listings
		SET title = $2, description = $3, price = $4, condition = $5, rent_duration = $6, updated_at = now()
		WHERE id = $1
		RETURNING ` + listingColumns

	var row listingRow
	if err := pgxscan.Get(ctx, tx, &row, updateSQL,
		l.ID, l.Title, l.Description, l.Price, l.Condition, l.RentDuration); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, fmt.Errorf("listing: update: %w", err)
	}

	if err := replaceImages(ctx, tx, l.ID, l.Images); err != nil {
		return Listing{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Listing{}, fmt.Errorf("listing: commit update: %w", err)
	}

	updated := row.toDomain()
	updated.Images = l.Images
	return updated, nil
}

// SetDeleted soft-deletes the listing. Deleted is terminal.
func (r *PGRepository) SetDeleted(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE listings SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(StatusDeleted))
	if err != nil {
		return fmt.Errorf("listing: set deleted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reactivate flips expired back to active with a fresh expiry. The status
// guard in the WHERE clause makes the transition atomic, so a listing swept
// or deleted since the caller's read is reported as a miss, not clobbered.
func (r *PGRepository) Reactivate(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE listings
		SET status = $2, expires_at = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`, id, string(StatusActive), expiresAt, string(StatusExpired))
	if err != nil {
		return false, fmt.Errorf("listing: reactivate: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ExpireStale transitions every active listing past its expiry in a single
// conditional batch update and reports how many rows it touched. Running it
// twice in a row affects zero rows the second time.
func (r *PGRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE listings
		SET status = $2, updated_at = $3
		WHERE status = $1 AND expires_at < $3
	`, string(StatusActive), string(StatusExpired), now)
	if err != nil {
		return 0, fmt.Errorf("listing: expire stale: %w", err)
	}
	return tag.RowsAffected(), nil
}

func replaceImages(ctx context.Context, tx pgx.Tx, listingID string, images []Image) error {
	if _, err := tx.Exec(ctx, `DELETE FROM listing_images WHERE listing_id = $1`, listingID); err != nil {
		return fmt.Errorf("listing: clear images: %w", err)
	}
	for i, img := range images {
		if _, err := tx.Exec(ctx,
			`INSERT INTO listing_images (listing_id, position, url, storage_id) VALUES ($1, $2, $3, $4)`,
			listingID, i, img.URL, img.StorageID); err != nil {
			return fmt.Errorf("listing: insert image: %w", err)
		}
	}
	return nil
}

type imageRow struct {
	ListingID string `db:"listing_id"`
	URL       string `db:"url"`
	StorageID string `db:"storage_id"`
}

func (r *PGRepository) attachImages(ctx context.Context, rows []listingRow) ([]Listing, error) {
	listings := make([]Listing, 0, len(rows))
	if len(rows) == 0 {
		return listings, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var imgRows []imageRow
	if err := pgxscan.Select(ctx, r.pool, &imgRows, `
		SELECT listing_id, url, storage_id
		FROM listing_images
		WHERE listing_id = ANY($1)
		ORDER BY listing_id, position
	`, ids); err != nil {
		return nil, fmt.Errorf("listing: load images: %w", err)
	}

	byListing := make(map[string][]Image, len(rows))
	for _, img := range imgRows {
		byListing[img.ListingID] = append(byListing[img.ListingID], Image{URL: img.URL, StorageID: img.StorageID})
	}

	for _, row := range rows {
		l := row.toDomain()
		l.Images = byListing[row.ID]
		listings = append(listings, l)
	}
	return listings, nil
}
