package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reportColumns = `id, listing_id, reporter_id, reason, description, status, reviewed_by, review_note, reviewed_at, created_at, updated_at`

type reportRow struct {
	ID          string     `db:"id"`
	ListingID   string     `db:"listing_id"`
	ReporterID  string     `db:"reporter_id"`
	Reason      string     `db:"reason"`
	Description string     `db:"description"`
	Status      string     `db:"status"`
	ReviewedBy  *string    `db:"reviewed_by"`
	ReviewNote  string     `db:"review_note"`
	ReviewedAt  *time.Time `db:"reviewed_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`

	ListingTitle  *string `db:"listing_title"`
	ListingStatus *string `db:"listing_status"`
}

func (r reportRow) toDomain() Report {
	rep := Report{
		ID:          r.ID,
		ListingID:   r.ListingID,
		ReporterID:  r.ReporterID,
		Reason:      r.Reason,
		Description: r.Description,
		Status:      Status(r.Status),
		ReviewedBy:  r.ReviewedBy,
		ReviewNote:  r.ReviewNote,
		ReviewedAt:  r.ReviewedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.ListingTitle != nil {
		rep.ListingTitle = *r.ListingTitle
	}
	if r.ListingStatus != nil {
		rep.ListingStatus = *r.ListingStatus
	}
	return rep
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CreateWithCount inserts the report and bumps the listing's report counter
// in the same transaction, so the counter moves exactly once per accepted
// report. The unique (listing_id, reporter_id) index turns duplicates into
// ErrDuplicate.
func (r *PGRepository) CreateWithCount(ctx context.Context, rep Report) (Report, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("report: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insertSQL := `
		INSERT INTO reports (id, listing_id, reporter_id, reason, description, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + reportColumns

	var row reportRow
	if err := pgxscan.Get(ctx, tx, &row, insertSQL,
		rep.ID, rep.ListingID, rep.ReporterID, rep.Reason, rep.Description, string(rep.Status)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Report{}, ErrDuplicate
		}
		return Report{}, fmt.Errorf("report: insert: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE listings SET report_count = report_count + 1 WHERE id = $1`, rep.ListingID); err != nil {
		return Report{}, fmt.Errorf("report: bump report count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Report{}, fmt.Errorf("report: commit: %w", err)
	}

	return row.toDomain(), nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Report, error) {
	var row reportRow
	err := pgxscan.Get(ctx, r.pool, &row,
		`SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Report{}, ErrNotFound
		}
		return Report{}, fmt.Errorf("report: get by id: %w", err)
	}
	return row.toDomain(), nil
}

// ListByReporter returns the reporter's reports, newest first, with the
// listing title and status joined in for display.
func (r *PGRepository) ListByReporter(ctx context.Context, reporterID string) ([]Report, error) {
	var rows []reportRow
	err := pgxscan.Select(ctx, r.pool, &rows, `
		SELECT r.id, r.listing_id, r.reporter_id, r.reason, r.description, r.status,
		       r.reviewed_by, r.review_note, r.reviewed_at, r.created_at, r.updated_at,
		       l.title AS listing_title, l.status AS listing_status
		FROM reports r
		JOIN listings l ON l.id = r.listing_id
		WHERE r.reporter_id = $1
		ORDER BY r.created_at DESC
	`, reporterID)
	if err != nil {
		return nil, fmt.Errorf("report: list by reporter: %w", err)
	}

	reports := make([]Report, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, row.toDomain())
	}
	return reports, nil
}

// SetReview stamps the admin decision on the report.
func (r *PGRepository) SetReview(ctx context.Context, id string, status Status, reviewerID, note string, at time.Time) (Report, error) {
	updateSQL := `
		UPDATE reports
		SET status = $2, reviewed_by = $3, review_note = $4, reviewed_at = $5, updated_at = $5
		WHERE id = $1
		RETURNING ` + reportColumns

	var row reportRow
	if err := pgxscan.Get(ctx, r.pool, &row, updateSQL, id, string(status), reviewerID, note, at); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Report{}, ErrNotFound
		}
		return Report{}, fmt.Errorf("report: set review: %w", err)
	}
	return row.toDomain(), nil
}
