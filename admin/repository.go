package admin

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PGRepository implements Repository backed by PostgreSQL. All queries are
// read-only aggregates over the domain tables.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) UserCounts(ctx context.Context) (total, verified int64, err error) {
	row := r.pool.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE is_verified) FROM users`)
	if err := row.Scan(&total, &verified); err != nil {
		return 0, 0, fmt.Errorf("admin: user counts: %w", err)
	}
	return total, verified, nil
}

func (r *PGRepository) ListingCounts(ctx context.Context) (ListingCounts, error) {
	var counts ListingCounts
	row := r.pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE status = 'active'),
		       count(*) FILTER (WHERE status = 'expired'),
		       count(*) FILTER (WHERE status = 'deleted')
		FROM listings`)
	if err := row.Scan(&counts.Total, &counts.Active, &counts.Expired, &counts.Deleted); err != nil {
		return ListingCounts{}, fmt.Errorf("admin: listing counts: %w", err)
	}
	return counts, nil
}

func (r *PGRepository) ReportCounts(ctx context.Context) (total, pending int64, err error) {
	row := r.pool.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE status = 'pending') FROM reports`)
	if err := row.Scan(&total, &pending); err != nil {
		return 0, 0, fmt.Errorf("admin: report counts: %w", err)
	}
	return total, pending, nil
}

func (r *PGRepository) ActiveByCategory(ctx context.Context) ([]CategoryCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT category, count(*)
		FROM listings
		WHERE status = 'active'
		GROUP BY category
		ORDER BY count(*) DESC, category`)
	if err != nil {
		return nil, fmt.Errorf("admin: listings by category: %w", err)
	}
	defer rows.Close()

	var out []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("admin: scan category count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type userSummaryRow struct {
	ID           string     `db:"id"`
	Email        string     `db:"email"`
	Name         string     `db:"name"`
	Phone        *string    `db:"phone"`
	IsVerified   bool       `db:"is_verified"`
	IsAdmin      bool       `db:"is_admin"`
	CreatedAt    time.Time  `db:"created_at"`
	LastLoginAt  *time.Time `db:"last_login_at"`
	ListingCount int64      `db:"listing_count"`
}

func (r *PGRepository) ListUsers(ctx context.Context, limit, offset int) ([]UserSummary, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("admin: count users: %w", err)
	}

	var rows []userSummaryRow
	err := pgxscan.Select(ctx, r.pool, &rows, `
		SELECT u.id, u.email, u.name, u.phone, u.is_verified, u.is_admin,
		       u.created_at, u.last_login_at,
		       count(l.id) FILTER (WHERE l.status <> 'deleted') AS listing_count
		FROM users u
		LEFT JOIN listings l ON l.seller_id = u.id
		GROUP BY u.id
		ORDER BY u.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("admin: list users: %w", err)
	}

	users := make([]UserSummary, 0, len(rows))
	for _, row := range rows {
		users = append(users, UserSummary{
			ID:           row.ID,
			Email:        row.Email,
			Name:         row.Name,
			Phone:        row.Phone,
			IsVerified:   row.IsVerified,
			IsAdmin:      row.IsAdmin,
			CreatedAt:    row.CreatedAt,
			LastLoginAt:  row.LastLoginAt,
			ListingCount: row.ListingCount,
		})
	}
	return users, total, nil
}

type listingSummaryRow struct {
	ID          string    `db:"id"`
	SellerID    string    `db:"seller_id"`
	SellerEmail string    `db:"seller_email"`
	Title       string    `db:"title"`
	Category    string    `db:"category"`
	Price       float64   `db:"price"`
	Status      string    `db:"status"`
	ReportCount int       `db:"report_count"`
	ViewCount   int       `db:"view_count"`
	CreatedAt   time.Time `db:"created_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

func (r *PGRepository) ListListings(ctx context.Context, status string, limit, offset int) ([]ListingSummary, int64, error) {
	where := sq.And{}
	if status != "" {
		where = append(where, sq.Eq{"l.status": status})
	}

	countSQL, countArgs, err := psql.Select("count(*)").From("listings l").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("admin: build count query: %w", err)
	}
	var total int64
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("admin: count listings: %w", err)
	}

	querySQL, queryArgs, err := psql.
		Select("l.id", "l.seller_id", "u.email AS seller_email", "l.title", "l.category",
			"l.price", "l.status", "l.report_count", "l.view_count", "l.created_at", "l.expires_at").
		From("listings l").
		Join("users u ON u.id = l.seller_id").
		Where(where).
		OrderBy("l.created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("admin: build list query: %w", err)
	}

	var rows []listingSummaryRow
	if err := pgxscan.Select(ctx, r.pool, &rows, querySQL, queryArgs...); err != nil {
		return nil, 0, fmt.Errorf("admin: list listings: %w", err)
	}

	listings := make([]ListingSummary, 0, len(rows))
	for _, row := range rows {
		listings = append(listings, ListingSummary(row))
	}
	return listings, total, nil
}

type reportSummaryRow struct {
	ID            string     `db:"id"`
	ListingID     string     `db:"listing_id"`
	ListingTitle  string     `db:"listing_title"`
	ListingStatus string     `db:"listing_status"`
	ReporterID    string     `db:"reporter_id"`
	ReporterEmail string     `db:"reporter_email"`
	Reason        string     `db:"reason"`
	Description   string     `db:"description"`
	Status        string     `db:"status"`
	ReviewedBy    *string    `db:"reviewed_by"`
	ReviewNote    string     `db:"review_note"`
	ReviewedAt    *time.Time `db:"reviewed_at"`
	CreatedAt     time.Time  `db:"created_at"`
}

func (r *PGRepository) ListReports(ctx context.Context, status string, limit, offset int) ([]ReportSummary, int64, error) {
	where := sq.And{}
	if status != "" {
		where = append(where, sq.Eq{"r.status": status})
	}

	countSQL, countArgs, err := psql.Select("count(*)").From("reports r").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("admin: build count query: %w", err)
	}
	var total int64
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("admin: count reports: %w", err)
	}

	querySQL, queryArgs, err := psql.
		Select("r.id", "r.listing_id", "l.title AS listing_title", "l.status AS listing_status",
			"r.reporter_id", "u.email AS reporter_email", "r.reason", "r.description",
			"r.status", "r.reviewed_by", "r.review_note", "r.reviewed_at", "r.created_at").
		From("reports r").
		Join("listings l ON l.id = r.listing_id").
		Join("users u ON u.id = r.reporter_id").
		Where(where).
		OrderBy("r.created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("admin: build list query: %w", err)
	}

	var rows []reportSummaryRow
	if err := pgxscan.Select(ctx, r.pool, &rows, querySQL, queryArgs...); err != nil {
		return nil, 0, fmt.Errorf("admin: list reports: %w", err)
	}

	reports := make([]ReportSummary, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, ReportSummary(row))
	}
	return reports, total, nil
}
