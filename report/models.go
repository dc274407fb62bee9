package report

import "time"

// Status tracks the moderation state of a report.
type Status string

const (
	StatusPending     Status = "pending"
	StatusReviewed    Status = "reviewed"
	StatusDismissed   Status = "dismissed"
	StatusActionTaken Status = "action_taken"
)

// ReviewActions are the statuses an admin may set; pending is not one of them.
var ReviewActions = []Status{StatusReviewed, StatusDismissed, StatusActionTaken}

// Reasons is the closed set of report reasons.
var Reasons = []string{
	"Fake Listing",
	"Inappropriate Content",
	"Spam",
	"Incorrect Price",
	"Already Sold",
	"Other",
}

const (
	MaxDescriptionLen = 500
	MaxReviewNoteLen  = 300

	// ReportsPerHour caps report submission per reporter.
	ReportsPerHour = 5
)

// Report mirrors the reports table. One report per (listing, reporter) pair.
type Report struct {
	ID          string
	ListingID   string
	ReporterID  string
	Reason      string
	Description string
	Status      Status
	ReviewedBy  *string
	ReviewNote  string
	ReviewedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Denormalized for the my-reports view.
	ListingTitle  string
	ListingStatus string
}

// CreateParams carries a new report submission.
type CreateParams struct {
	ListingID   string
	Reason      string
	Description string
}

// ReviewParams carries an admin decision on a pending report.
type ReviewParams struct {
	Action Status
	Note   string
	// CascadeDelete removes the reported listing when the action is
	// action_taken.
	CascadeDelete bool
}
