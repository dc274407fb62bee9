package httpapi

import (
	"time"

	"collexa/auth"
	"collexa/listing"
	"collexa/report"
)

type imagePayload struct {
	URL       string `json:"url"`
	StorageID string `json:"storage_id"`
}

func toImages(payloads []imagePayload) []listing.Image {
	if payloads == nil {
		return nil
	}
	images := make([]listing.Image, 0, len(payloads))
	for _, p := range payloads {
		images = append(images, listing.Image{URL: p.URL, StorageID: p.StorageID})
	}
	return images
}

func fromImages(images []listing.Image) []imagePayload {
	payloads := make([]imagePayload, 0, len(images))
	for _, img := range images {
		payloads = append(payloads, imagePayload{URL: img.URL, StorageID: img.StorageID})
	}
	return payloads
}

type listingView struct {
	ID            string         `json:"id"`
	SellerID      string         `json:"seller_id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Category      string         `json:"category"`
	Condition     string         `json:"condition"`
	Price         float64        `json:"price"`
	Type          string         `json:"listing_type"`
	RentDuration  *string        `json:"rent_duration,omitempty"`
	Images        []imagePayload `json:"images"`
	Status        string         `json:"status"`
	ExpiresAt     time.Time      `json:"expires_at"`
	DaysRemaining int            `json:"days_remaining"`
	ViewCount     int            `json:"view_count"`
	ReportCount   int            `json:"report_count"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func toListingView(l listing.Listing, now time.Time) listingView {
	return listingView{
		ID:            l.ID,
		SellerID:      l.SellerID,
		Title:         l.Title,
		Description:   l.Description,
		Category:      l.Category,
		Condition:     l.Condition,
		Price:         l.Price,
		Type:          string(l.Type),
		RentDuration:  l.RentDuration,
		Images:        fromImages(l.Images),
		Status:        string(l.Status),
		ExpiresAt:     l.ExpiresAt,
		DaysRemaining: l.DaysRemaining(now),
		ViewCount:     l.ViewCount,
		ReportCount:   l.ReportCount,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}

func toListingViews(ls []listing.Listing, now time.Time) []listingView {
	views := make([]listingView, 0, len(ls))
	for _, l := range ls {
		views = append(views, toListingView(l, now))
	}
	return views
}

type createListingRequest struct {
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Category     string         `json:"category"`
	Condition    string         `json:"condition"`
	Price        float64        `json:"price"`
	Type         string         `json:"listing_type"`
	RentDuration *string        `json:"rent_duration"`
	Images       []imagePayload `json:"images"`
}

type updateListingRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Price       *float64       `json:"price"`
	Condition   *string        `json:"condition"`
	Images      []imagePayload `json:"images"`
}

type userView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Phone      *string    `json:"phone,omitempty"`
	IsVerified bool       `json:"is_verified"`
	IsAdmin    bool       `json:"is_admin"`
	CreatedAt  time.Time  `json:"created_at"`
	LastLogin  *time.Time `json:"last_login_at,omitempty"`
}

func toUserView(u auth.User) userView {
	return userView{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Phone:      u.Phone,
		IsVerified: u.IsVerified,
		IsAdmin:    u.IsAdmin,
		CreatedAt:  u.CreatedAt,
		LastLogin:  u.LastLoginAt,
	}
}

type sessionView struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

type createReportRequest struct {
	ListingID   string `json:"listing_id"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

type reviewReportRequest struct {
	Action        string `json:"action"`
	Note          string `json:"note"`
	DeleteListing bool   `json:"delete_listing"`
}

type reportView struct {
	ID            string     `json:"id"`
	ListingID     string     `json:"listing_id"`
	ListingTitle  string     `json:"listing_title,omitempty"`
	ListingStatus string     `json:"listing_status,omitempty"`
	Reason        string     `json:"reason"`
	Description   string     `json:"description,omitempty"`
	Status        string     `json:"status"`
	ReviewNote    string     `json:"review_note,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toReportView(r report.Report) reportView {
	return reportView{
		ID:            r.ID,
		ListingID:     r.ListingID,
		ListingTitle:  r.ListingTitle,
		ListingStatus: r.ListingStatus,
		Reason:        r.Reason,
		Description:   r.Description,
		Status:        string(r.Status),
		ReviewNote:    r.ReviewNote,
		ReviewedAt:    r.ReviewedAt,
		CreatedAt:     r.CreatedAt,
	}
}

func toReportViews(rs []report.Report) []reportView {
	views := make([]reportView, 0, len(rs))
	for _, r := range rs {
		views = append(views, toReportView(r))
	}
	return views
}

// pageView wraps a list payload with its pagination envelope.
type pageView struct {
	Items    any   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}
