package listing

import "time"

// Status tracks where a listing sits in its lifecycle. Deleted is terminal.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusDeleted Status = "deleted"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusExpired, StatusDeleted:
		return true
	default:
		return false
	}
}

type Type string

const (
	TypeSell Type = "sell"
	TypeRent Type = "rent"
)

func (t Type) Valid() bool {
	return t == TypeSell || t == TypeRent
}

// Categories and conditions are closed sets; anything else is rejected up front.
var Categories = []string{
	"Books",
	"Cycles",
	"Electronics",
	"Instruments",
	"Sports Equipment",
	"Lab Equipment",
	"Others",
}

var Conditions = []string{"New", "Like New", "Good", "Fair"}

var RentDurations = []string{"per day", "per week", "per month"}

const (
	// ExpiryWindow is how long a listing stays active after creation or reactivation.
	ExpiryWindow = 30 * 24 * time.Hour

	MinTitleLen       = 5
	MaxTitleLen       = 100
	MinDescriptionLen = 10
	MaxDescriptionLen = 1000
	MaxPrice          = 100000
	MaxImages         = 5

	// CreatesPerHour caps listing creation per seller.
	CreatesPerHour = 10
)

// Image is one stored picture: the public URL plus the blob-storage handle we
// must release when the image is retired.
type Image struct {
	URL       string
	StorageID string
}

// Listing mirrors the listings table plus its ordered images.
type Listing struct {
	ID           string
	SellerID     string
	Title        string
	Description  string
	Category     string
	Condition    string
	Price        float64
	Type         Type
	RentDuration *string
	Images       []Image
	Status       Status
	ExpiresAt    time.Time
	ViewCount    int
	ReportCount  int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DaysRemaining reports whole days until expiry, rounded up. Listings past
// their expiry report zero, never a negative count.
func (l Listing) DaysRemaining(now time.Time) int {
	d := l.ExpiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// CreateParams carries the caller-supplied fields for a new listing.
type CreateParams struct {
	Title        string
	Description  string
	Category     string
	Condition    string
	Price        float64
	Type         Type
	RentDuration *string
	Images       []Image
}

// UpdateParams carries a partial edit. Nil fields are left untouched; a
// non-nil Images slice replaces the full image set.
type UpdateParams struct {
	Title       *string
	Description *string
	Price       *float64
	Condition   *string
	Images      []Image
}

// Filters narrows the public browse query. Zero values mean "no constraint".
type Filters struct {
	Category string
	Type     Type
	MinPrice *float64
	MaxPrice *float64
	Search   string
	Page     int
	PageSize int
}

func oneOf(value string, set []string) bool {
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}
