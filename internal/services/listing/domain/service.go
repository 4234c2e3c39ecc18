// Package domain implements listing browse, CRUD and bidding use-cases.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/rebazzar/internal/platform/id"
	"github.com/louisbranch/rebazzar/internal/platform/pagination"
	"github.com/louisbranch/rebazzar/internal/services/listing/filter"
)

var (
	// ErrNotFound indicates a listing record was not found.
	ErrNotFound = errors.New("listing not found")
	// ErrSellerNotFound indicates the seller could not be resolved.
	ErrSellerNotFound = errors.New("seller not found")
	// ErrForbidden indicates the actor does not own the listing.
	ErrForbidden = errors.New("only the seller may change this listing")
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("listing store is not configured")
	// ErrListingIDRequired indicates a listing id is required.
	ErrListingIDRequired = errors.New("listing id is required")
	// ErrActorRequired indicates the acting user id is required.
	ErrActorRequired      = errors.New("user id is required")
	ErrTitleRequired      = errors.New("title is required")
	ErrTitleTooLong       = errors.New("title is too long")
	ErrDescriptionTooLong = errors.New("description is too long")
	ErrCategoryRequired   = errors.New("category is required")
	ErrFieldTooLong       = errors.New("field is too long")
	ErrPriceInvalid       = errors.New("price must be greater than zero and at most one billion dollars")
	ErrStatusInvalid      = errors.New("status must be active or sold")
	// ErrInvalidQuery wraps malformed filters, order_by values and page tokens.
	ErrInvalidQuery = errors.New("invalid listing query")
	// ErrNotBiddable indicates the listing does not accept bids.
	ErrNotBiddable = errors.New("listing does not accept bids")
	// ErrNotActive indicates the listing is no longer for sale.
	ErrNotActive = errors.New("listing is not active")
	// ErrOwnListing indicates a seller tried to bid on their own listing.
	ErrOwnListing = errors.New("sellers cannot bid on their own listing")
	// ErrBidAmountInvalid indicates a bid above MaxAmountCents.
	ErrBidAmountInvalid = errors.New("bid amount is out of range")
	// ErrBidTooLow indicates a bid under the current minimum.
	ErrBidTooLow = errors.New("bid is below the minimum")
)

// BidTooLowError carries the minimum acceptable bid. It matches ErrBidTooLow.
type BidTooLowError struct {
	MinimumCents int64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%s of %d cents", ErrBidTooLow, e.MinimumCents)
}

func (e *BidTooLowError) Is(target error) bool {
	return target == ErrBidTooLow
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Order is a listing sort key.
type Order string

const (
	OrderNewest    Order = "newest"
	OrderOldest    Order = "oldest"
	OrderPriceLow  Order = "price_low"
	OrderPriceHigh Order = "price_high"
	OrderRelevance Order = "relevance"
)

// Query configures listing browse.
type Query struct {
	Category  string
	Location  string
	SellerID  string
	Status    string
	Filter    string
	Search    string
	OrderBy   string
	PageSize  int
	PageToken string
}

// Criteria is the store-facing form of a validated Query. Limit zero means
// no limit.
type Criteria struct {
	Category string
	Location string
	SellerID string
	Status   Status
	Filter   filter.Filter
	Order    Order
	Limit    int
	Offset   int
}

// Match reports whether l satisfies every criterion except ordering.
func (c Criteria) Match(l Listing) bool {
	if c.Category != "" && !strings.EqualFold(l.Category, c.Category) {
		return false
	}
	if c.Location != "" && !strings.Contains(strings.ToLower(l.Location), strings.ToLower(c.Location)) {
		return false
	}
	if c.SellerID != "" && l.Seller.ID != c.SellerID {
		return false
	}
	if c.Status != "" && l.Status != c.Status {
		return false
	}
	return c.Filter.Match(l)
}

// Less orders a before b under o. Ties fall back to newest first, then id.
func (o Order) Less(a, b Listing) bool {
	switch o {
	case OrderOldest:
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	case OrderPriceLow:
		if a.PriceCents != b.PriceCents {
			return a.PriceCents < b.PriceCents
		}
	case OrderPriceHigh:
		if a.PriceCents != b.PriceCents {
			return a.PriceCents > b.PriceCents
		}
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Page is one page of listings.
type Page struct {
	Listings      []Listing
	NextPageToken string
}

// CreateInput describes a new listing.
type CreateInput struct {
	Title       string
	Description string
	PriceCents  int64
	Images      []string
	Category    string
	Condition   string
	Location    string
	IsBiddable  bool
}

// UpdateInput is a partial listing update. Nil fields are unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	PriceCents  *int64
	Images      *[]string
	Category    *string
	Condition   *string
	Location    *string
	IsBiddable  *bool
	Status      *string
}

// Store is the persistence boundary for listings.
type Store interface {
	PutListing(ctx context.Context, listing Listing) error
	GetListing(ctx context.Context, listingID string) (Listing, error)
	// UpdateListing applies mutate atomically. An error from mutate aborts
	// the write and is returned unchanged.
	UpdateListing(ctx context.Context, listingID string, mutate func(*Listing) error) (Listing, error)
	DeleteListing(ctx context.Context, listingID string) error
	ListListings(ctx context.Context, criteria Criteria) ([]Listing, error)
}

// SellerDirectory resolves seller snapshots.
type SellerDirectory interface {
	LookupSeller(ctx context.Context, userID string) (Seller, error)
}

// Notifier receives bid events.
type Notifier interface {
	BidPlaced(ctx context.Context, listing Listing, bidderID string, amountCents int64)
}

// Service orchestrates listing behavior.
type Service struct {
	store    Store
	sellers  SellerDirectory
	notifier Notifier
	clock    func() time.Time
	newID    func() (string, error)
}

// NewService constructs listing domain use-cases.
func NewService(store Store, sellers SellerDirectory, notifier Notifier, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store:    store,
		sellers:  sellers,
		notifier: notifier,
		clock:    clock,
		newID:    newID,
	}
}

// List returns one page of listings for query.
func (s *Service) List(ctx context.Context, query Query) (Page, error) {
	if s == nil || s.store == nil {
		return Page{}, ErrStoreNotConfigured
	}
	criteria, err := buildCriteria(query)
	if err != nil {
		return Page{}, err
	}
	pageSize := pagination.ClampPageSize(query.PageSize, pagination.PageSizeConfig{Default: defaultPageSize, Max: maxPageSize})
	offset, err := pagination.DecodeOffset(query.PageToken)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	search := strings.TrimSpace(query.Search)
	if search == "" {
		criteria.Offset = offset
		criteria.Limit = pageSize + 1
		listings, err := s.store.ListListings(ctx, criteria)
		if err != nil {
			return Page{}, fmt.Errorf("list listings: %w", err)
		}
		return pageOf(listings, offset, pageSize), nil
	}

	// Search ranks the whole candidate set before paging.
	byRelevance := criteria.Order == OrderRelevance
	if byRelevance {
		criteria.Order = OrderNewest
	}
	candidates, err := s.store.ListListings(ctx, criteria)
	if err != nil {
		return Page{}, fmt.Errorf("list listings: %w", err)
	}
	matches := rankByRelevance(candidates, search)
	if !byRelevance {
		matches = keepOrder(candidates, matches)
	}
	if offset >= len(matches) {
		return Page{Listings: []Listing{}}, nil
	}
	return pageOf(matches[offset:], offset, pageSize), nil
}

func buildCriteria(query Query) (Criteria, error) {
	defaultOrder := string(OrderNewest)
	if strings.TrimSpace(query.Search) != "" {
		defaultOrder = string(OrderRelevance)
	}
	orderBy, err := pagination.NormalizeOrderBy(query.OrderBy, pagination.OrderByConfig{
		Default: defaultOrder,
		Allowed: []string{
			string(OrderNewest), string(OrderOldest), string(OrderPriceLow),
			string(OrderPriceHigh), string(OrderRelevance),
		},
	})
	if err != nil {
		return Criteria{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	parsed, err := filter.Parse(query.Filter)
	if err != nil {
		return Criteria{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	criteria := Criteria{
		Category: strings.TrimSpace(query.Category),
		Location: strings.TrimSpace(query.Location),
		SellerID: strings.TrimSpace(query.SellerID),
		Filter:   parsed,
		Order:    Order(orderBy),
	}
	if criteria.Order == OrderRelevance && strings.TrimSpace(query.Search) == "" {
		criteria.Order = OrderNewest
	}
	if raw := strings.TrimSpace(query.Status); raw != "" && !strings.EqualFold(raw, "all") {
		status, ok := ParseStatus(raw)
		if !ok {
			return Criteria{}, fmt.Errorf("%w: %v", ErrInvalidQuery, ErrStatusInvalid)
		}
		criteria.Status = status
	}
	return criteria, nil
}

// pageOf trims a pageSize+1 window into a page.
func pageOf(listings []Listing, offset, pageSize int) Page {
	page := Page{Listings: listings}
	if len(listings) > pageSize {
		page.Listings = listings[:pageSize]
		page.NextPageToken = pagination.EncodeOffset(offset + pageSize)
	}
	if page.Listings == nil {
		page.Listings = []Listing{}
	}
	return page
}

// keepOrder returns the members of matches in the order they appear in all.
func keepOrder(all, matches []Listing) []Listing {
	keep := make(map[string]struct{}, len(matches))
	for _, l := range matches {
		keep[l.ID] = struct{}{}
	}
	ordered := make([]Listing, 0, len(matches))
	for _, l := range all {
		if _, ok := keep[l.ID]; ok {
			ordered = append(ordered, l)
		}
	}
	return ordered
}

// Get returns one listing.
func (s *Service) Get(ctx context.Context, listingID string) (Listing, error) {
	if s == nil || s.store == nil {
		return Listing{}, ErrStoreNotConfigured
	}
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return Listing{}, ErrListingIDRequired
	}
	return s.store.GetListing(ctx, listingID)
}

// Create stores a new active listing owned by sellerID.
func (s *Service) Create(ctx context.Context, sellerID string, input CreateInput) (Listing, error) {
	if s == nil || s.store == nil {
		return Listing{}, ErrStoreNotConfigured
	}
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return Listing{}, ErrActorRequired
	}
	title, err := normalizeTitle(input.Title)
	if err != nil {
		return Listing{}, err
	}
	description, err := normalizeDescription(input.Description)
	if err != nil {
		return Listing{}, err
	}
	if err := validatePrice(input.PriceCents); err != nil {
		return Listing{}, err
	}
	category, err := normalizeCategory(input.Category)
	if err != nil {
		return Listing{}, err
	}
	condition, err := normalizeShortField(input.Condition)
	if err != nil {
		return Listing{}, err
	}
	location, err := normalizeShortField(input.Location)
	if err != nil {
		return Listing{}, err
	}
	if s.sellers == nil {
		return Listing{}, ErrSellerNotFound
	}
	seller, err := s.sellers.LookupSeller(ctx, sellerID)
	if err != nil {
		return Listing{}, err
	}
	if location == "" {
		location = seller.Location
	}

	listingID, err := s.newID()
	if err != nil {
		return Listing{}, fmt.Errorf("generate listing id: %w", err)
	}
	now := s.clock().UTC()
	listing := Listing{
		ID:          listingID,
		Title:       title,
		Description: description,
		PriceCents:  input.PriceCents,
		Images:      normalizeImages(input.Images),
		Category:    category,
		Condition:   condition,
		Location:    location,
		Seller:      seller,
		Status:      StatusActive,
		IsBiddable:  input.IsBiddable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.PutListing(ctx, listing); err != nil {
		return Listing{}, fmt.Errorf("put listing: %w", err)
	}
	return listing, nil
}

// Update applies a partial update on behalf of the seller.
func (s *Service) Update(ctx context.Context, listingID, actorID string, input UpdateInput) (Listing, error) {
	if s == nil || s.store == nil {
		return Listing{}, ErrStoreNotConfigured
	}
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return Listing{}, ErrListingIDRequired
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return Listing{}, ErrActorRequired
	}
	patch, err := normalizeUpdate(input)
	if err != nil {
		return Listing{}, err
	}
	now := s.clock().UTC()
	return s.store.UpdateListing(ctx, listingID, func(l *Listing) error {
		if l.Seller.ID != actorID {
			return ErrForbidden
		}
		patch.apply(l)
		l.UpdatedAt = now
		return nil
	})
}

type listingPatch struct {
	input     UpdateInput
	title     string
	desc      string
	category  string
	condition string
	location  string
	images    []string
	status    Status
}

func normalizeUpdate(input UpdateInput) (listingPatch, error) {
	patch := listingPatch{input: input}
	var err error
	if input.Title != nil {
		if patch.title, err = normalizeTitle(*input.Title); err != nil {
			return listingPatch{}, err
		}
	}
	if input.Description != nil {
		if patch.desc, err = normalizeDescription(*input.Description); err != nil {
			return listingPatch{}, err
		}
	}
	if input.PriceCents != nil {
		if err = validatePrice(*input.PriceCents); err != nil {
			return listingPatch{}, err
		}
	}
	if input.Category != nil {
		if patch.category, err = normalizeCategory(*input.Category); err != nil {
			return listingPatch{}, err
		}
	}
	if input.Condition != nil {
		if patch.condition, err = normalizeShortField(*input.Condition); err != nil {
			return listingPatch{}, err
		}
	}
	if input.Location != nil {
		if patch.location, err = normalizeShortField(*input.Location); err != nil {
			return listingPatch{}, err
		}
	}
	if input.Images != nil {
		patch.images = normalizeImages(*input.Images)
	}
	if input.Status != nil {
		status, ok := ParseStatus(*input.Status)
		if !ok {
			return listingPatch{}, ErrStatusInvalid
		}
		patch.status = status
	}
	return patch, nil
}

func (p listingPatch) apply(l *Listing) {
	if p.input.Title != nil {
		l.Title = p.title
	}
	if p.input.Description != nil {
		l.Description = p.desc
	}
	if p.input.PriceCents != nil {
		l.PriceCents = *p.input.PriceCents
	}
	if p.input.Images != nil {
		l.Images = p.images
	}
	if p.input.Category != nil {
		l.Category = p.category
	}
	if p.input.Condition != nil {
		l.Condition = p.condition
	}
	if p.input.Location != nil {
		l.Location = p.location
	}
	if p.input.IsBiddable != nil {
		l.IsBiddable = *p.input.IsBiddable
	}
	if p.input.Status != nil {
		l.Status = p.status
	}
}

// Delete removes a listing on behalf of the seller.
func (s *Service) Delete(ctx context.Context, listingID, actorID string) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return ErrListingIDRequired
	}
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.Seller.ID != strings.TrimSpace(actorID) {
		return ErrForbidden
	}
	return s.store.DeleteListing(ctx, listingID)
}

// PlaceBid raises the highest bid on a biddable listing.
func (s *Service) PlaceBid(ctx context.Context, listingID, bidderID string, amountCents int64) (Listing, error) {
	if s == nil || s.store == nil {
		return Listing{}, ErrStoreNotConfigured
	}
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return Listing{}, ErrListingIDRequired
	}
	bidderID = strings.TrimSpace(bidderID)
	if bidderID == "" {
		return Listing{}, ErrActorRequired
	}
	if amountCents > MaxAmountCents {
		return Listing{}, ErrBidAmountInvalid
	}
	now := s.clock().UTC()
	updated, err := s.store.UpdateListing(ctx, listingID, func(l *Listing) error {
		switch {
		case !l.IsBiddable:
			return ErrNotBiddable
		case l.Status != StatusActive:
			return ErrNotActive
		case l.Seller.ID == bidderID:
			return ErrOwnListing
		}
		if minimum := l.MinimumBid(); amountCents < minimum || amountCents <= l.HighestBidCents {
			return &BidTooLowError{MinimumCents: minimum}
		}
		l.HighestBidCents = amountCents
		l.HighestBidderID = bidderID
		l.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Listing{}, err
	}
	if s.notifier != nil {
		s.notifier.BidPlaced(ctx, updated, bidderID, amountCents)
	}
	return updated, nil
}
