package domain

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxImages bounds the number of image URLs per listing.
	MaxImages = 5
	// MaxAmountCents bounds asking prices and bids at one billion dollars.
	MaxAmountCents int64 = 100_000_000_000

	maxTitleRunes       = 120
	maxDescriptionRunes = 5000
	maxShortFieldRunes  = 80

	minimumIncrementCents = 100
	suggestedStepCents    = 500
)

// Status tracks whether a listing is still for sale.
type Status string

const (
	StatusActive Status = "active"
	StatusSold   Status = "sold"
)

// ParseStatus normalizes a status token and reports whether it is known.
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusActive, StatusSold:
		return s, true
	default:
		return "", false
	}
}

// Seller is the seller snapshot denormalized onto a listing at create time.
type Seller struct {
	ID        string
	Name      string
	AvatarURL string
	Rating    float64
	Location  string
}

// Listing is a sellable item.
type Listing struct {
	ID              string
	Title           string
	Description     string
	PriceCents      int64
	Images          []string
	Category        string
	Condition       string
	Location        string
	Seller          Seller
	Status          Status
	IsBiddable      bool
	HighestBidCents int64
	HighestBidderID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasBid reports whether any bid was accepted.
func (l Listing) HasBid() bool {
	return l.HighestBidCents > 0
}

// MinimumBid is the smallest acceptable next bid: one dollar over the
// highest bid, or one dollar over 80% of the asking price when unbid.
func (l Listing) MinimumBid() int64 {
	if l.HasBid() {
		return addCents(l.HighestBidCents, minimumIncrementCents)
	}
	return addCents(fraction(l.PriceCents, 4, 5), minimumIncrementCents)
}

// SuggestedBid is the amount offered by default: five dollars over the
// highest bid, or 90% of the asking price when unbid.
func (l Listing) SuggestedBid() int64 {
	if l.HasBid() {
		return addCents(l.HighestBidCents, suggestedStepCents)
	}
	return fraction(l.PriceCents, 9, 10)
}

// fraction returns cents*num/den rounded toward zero without forming the
// full product.
func fraction(cents, num, den int64) int64 {
	return cents/den*num + cents%den*num/den
}

// addCents adds a non-negative step, saturating at math.MaxInt64.
func addCents(cents, step int64) int64 {
	if cents > math.MaxInt64-step {
		return math.MaxInt64
	}
	return cents + step
}

// FilterValue exposes fields to AIP filter matching. Money is in cents.
func (l Listing) FilterValue(field string) (any, bool) {
	switch field {
	case "category":
		return l.Category, true
	case "condition":
		return l.Condition, true
	case "location":
		return l.Location, true
	case "seller_id":
		return l.Seller.ID, true
	case "status":
		return string(l.Status), true
	case "price":
		return l.PriceCents, true
	case "highest_bid":
		return l.HighestBidCents, true
	case "is_biddable":
		return l.IsBiddable, true
	default:
		return nil, false
	}
}

// Clone returns a copy that shares no slices with l.
func (l Listing) Clone() Listing {
	l.Images = append([]string(nil), l.Images...)
	return l
}

func normalizeTitle(raw string) (string, error) {
	title := strings.Join(strings.Fields(raw), " ")
	if title == "" {
		return "", ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		return "", ErrTitleTooLong
	}
	return title, nil
}

func normalizeDescription(raw string) (string, error) {
	description := strings.TrimSpace(raw)
	if utf8.RuneCountInString(description) > maxDescriptionRunes {
		return "", ErrDescriptionTooLong
	}
	return description, nil
}

func normalizeCategory(raw string) (string, error) {
	category := strings.TrimSpace(raw)
	if category == "" {
		return "", ErrCategoryRequired
	}
	if utf8.RuneCountInString(category) > maxShortFieldRunes {
		return "", ErrFieldTooLong
	}
	return category, nil
}

func normalizeShortField(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if utf8.RuneCountInString(value) > maxShortFieldRunes {
		return "", ErrFieldTooLong
	}
	return value, nil
}

func validatePrice(cents int64) error {
	if cents <= 0 || cents > MaxAmountCents {
		return ErrPriceInvalid
	}
	return nil
}

// normalizeImages trims URLs, drops blanks and keeps at most MaxImages.
func normalizeImages(raw []string) []string {
	images := make([]string, 0, min(len(raw), MaxImages))
	for _, image := range raw {
		image = strings.TrimSpace(image)
		if image == "" {
			continue
		}
		images = append(images, image)
		if len(images) == MaxImages {
			break
		}
	}
	return images
}
