package admin

import "time"

// DashboardStats is the aggregate snapshot shown on the admin dashboard.
type DashboardStats struct {
	TotalUsers      int64 `json:"total_users"`
	VerifiedUsers   int64 `json:"verified_users"`
	TotalListings   int64 `json:"total_listings"`
	ActiveListings  int64 `json:"active_listings"`
	ExpiredListings int64 `json:"expired_listings"`
	DeletedListings int64 `json:"deleted_listings"`
	TotalReports    int64 `json:"total_reports"`
	PendingReports  int64 `json:"pending_reports"`

	// ListingsByCategory counts active listings per category.
	ListingsByCategory []CategoryCount `json:"listings_by_category"`
}

// CategoryCount pairs a category with its active listing count.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// UserSummary is the admin view of an account.
type UserSummary struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Phone       *string    `json:"phone,omitempty"`
	IsVerified  bool       `json:"is_verified"`
	IsAdmin     bool       `json:"is_admin"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	ListingCount int64 `json:"listing_count"`
}

// ListingSummary is the admin view of a listing, any status included.
type ListingSummary struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"seller_id"`
	SellerEmail string    `json:"seller_email"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Status      string    `json:"status"`
	ReportCount int       `json:"report_count"`
	ViewCount   int       `json:"view_count"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ReportSummary is the admin moderation queue row.
type ReportSummary struct {
	ID            string     `json:"id"`
	ListingID     string     `json:"listing_id"`
	ListingTitle  string     `json:"listing_title"`
	ListingStatus string     `json:"listing_status"`
	ReporterID    string     `json:"reporter_id"`
	ReporterEmail string     `json:"reporter_email"`
	Reason        string     `json:"reason"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	ReviewedBy    *string    `json:"reviewed_by,omitempty"`
	ReviewNote    string     `json:"review_note,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Page carries pagination for the admin list views.
type Page struct {
	Number int
	Size   int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

func (p Page) limitOffset() (limit, offset int) {
	return p.Size, (p.Number - 1) * p.Size
}
