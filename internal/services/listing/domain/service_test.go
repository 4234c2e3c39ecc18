package domain

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"
	"time"
)

var errIDGeneratorExhausted = errors.New("id generator exhausted")

var baseTime = time.Date(2023, 9, 15, 10, 0, 0, 0, time.UTC)

func TestCreate_SnapshotsSellerAndNormalizes(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sellers := fakeSellers{"user-1": {ID: "user-1", Name: "John Doe", Rating: 4.8, Location: "San Francisco, CA"}}
	svc := NewService(store, sellers, nil, fixedClock(baseTime), sequentialIDGenerator("listing-1"))

	images := []string{" https://img/1 ", "", "https://img/2", "https://img/3", "https://img/4", "https://img/5", "https://img/6"}
	created, err := svc.Create(context.Background(), "user-1", CreateInput{
		Title:      "  iPhone 13   Pro ",
		PriceCents: 89900,
		Images:     images,
		Category:   " Electronics ",
		Condition:  "Like New",
		IsBiddable: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "listing-1" || created.Title != "iPhone 13 Pro" || created.Category != "Electronics" {
		t.Fatalf("unexpected listing: %+v", created)
	}
	if len(created.Images) != MaxImages || created.Images[0] != "https://img/1" {
		t.Fatalf("images = %v", created.Images)
	}
	if created.Seller.Name != "John Doe" || created.Seller.Rating != 4.8 {
		t.Fatalf("seller snapshot = %+v", created.Seller)
	}
	if created.Location != "San Francisco, CA" {
		t.Fatalf("location = %q, want seller location", created.Location)
	}
	if created.Status != StatusActive || created.HasBid() {
		t.Fatalf("unexpected initial state: %+v", created)
	}
	if _, err := store.GetListing(context.Background(), "listing-1"); err != nil {
		t.Fatalf("stored listing: %v", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	t.Parallel()

	sellers := fakeSellers{"user-1": {ID: "user-1"}}
	svc := NewService(newFakeStore(), sellers, nil, fixedClock(baseTime), sequentialIDGenerator("listing-1"))
	valid := CreateInput{Title: "Bike", PriceCents: 100, Category: "Sports"}
	tests := []struct {
		name   string
		seller string
		mutate func(*CreateInput)
		want   error
	}{
		{name: "title", seller: "user-1", mutate: func(in *CreateInput) { in.Title = " " }, want: ErrTitleRequired},
		{name: "price zero", seller: "user-1", mutate: func(in *CreateInput) { in.PriceCents = 0 }, want: ErrPriceInvalid},
		{name: "price negative", seller: "user-1", mutate: func(in *CreateInput) { in.PriceCents = -5 }, want: ErrPriceInvalid},
		{name: "price over cap", seller: "user-1", mutate: func(in *CreateInput) { in.PriceCents = MaxAmountCents + 1 }, want: ErrPriceInvalid},
		{name: "price max int", seller: "user-1", mutate: func(in *CreateInput) { in.PriceCents = math.MaxInt64 }, want: ErrPriceInvalid},
		{name: "category", seller: "user-1", mutate: func(in *CreateInput) { in.Category = "" }, want: ErrCategoryRequired},
		{name: "actor", seller: "", mutate: func(*CreateInput) {}, want: ErrActorRequired},
		{name: "unknown seller", seller: "ghost", mutate: func(*CreateInput) {}, want: ErrSellerNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := valid
			tc.mutate(&input)
			if _, err := svc.Create(context.Background(), tc.seller, input); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestList_FiltersAndOrders(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedListings(t, store)
	svc := NewService(store, nil, nil, fixedClock(baseTime), nil)

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{name: "newest default", query: Query{}, want: []string{"4", "3", "2", "1"}},
		{name: "oldest", query: Query{OrderBy: "oldest"}, want: []string{"1", "2", "3", "4"}},
		{name: "price low", query: Query{OrderBy: "price_low"}, want: []string{"3", "4", "2", "1"}},
		{name: "price high", query: Query{OrderBy: "price_high"}, want: []string{"1", "2", "4", "3"}},
		{name: "category case insensitive", query: Query{Category: "electronics"}, want: []string{"2", "1"}},
		{name: "location substring", query: Query{Location: "york"}, want: []string{"2"}},
		{name: "seller", query: Query{SellerID: "seller-3"}, want: []string{"3"}},
		{name: "status", query: Query{Status: "sold"}, want: []string{"4"}},
		{name: "aip filter", query: Query{Filter: `is_biddable = true AND price >= 400`}, want: []string{"2", "1"}},
		{name: "relevance without search is newest", query: Query{OrderBy: "relevance"}, want: []string{"4", "3", "2", "1"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			page, err := svc.List(context.Background(), tc.query)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			assertIDs(t, page.Listings, tc.want)
		})
	}
}

func TestList_SearchRanksTitleMatchesFirst(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedListings(t, store)
	svc := NewService(store, nil, nil, fixedClock(baseTime), nil)

	page, err := svc.List(context.Background(), Query{Search: "iphone"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	assertIDs(t, page.Listings, []string{"1"})

	page, err = svc.List(context.Background(), Query{Search: "macbok"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	assertIDs(t, page.Listings, []string{"2"})

	// "chair" hits listing 3 in the title and listing 4 only in the description.
	page, err = svc.List(context.Background(), Query{Search: "chair"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	assertIDs(t, page.Listings, []string{"3", "4"})

	page, err = svc.List(context.Background(), Query{Search: "chair", OrderBy: "price_high"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	assertIDs(t, page.Listings, []string{"4", "3"})

	// Category names alone are not searchable; the category filter covers them.
	page, err = svc.List(context.Background(), Query{Search: "furniture"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	assertIDs(t, page.Listings, []string{})
}

func TestList_Paginates(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedListings(t, store)
	svc := NewService(store, nil, nil, fixedClock(baseTime), nil)

	first, err := svc.List(context.Background(), Query{PageSize: 3})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	assertIDs(t, first.Listings, []string{"4", "3", "2"})
	if first.NextPageToken == "" {
		t.Fatal("expected next page token")
	}
	second, err := svc.List(context.Background(), Query{PageSize: 3, PageToken: first.NextPageToken})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	assertIDs(t, second.Listings, []string{"1"})
	if second.NextPageToken != "" {
		t.Fatalf("expected final page, got token %q", second.NextPageToken)
	}
}

func TestList_RejectsInvalidQueries(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore(), nil, nil, fixedClock(baseTime), nil)
	for _, query := range []Query{
		{OrderBy: "cheapest"},
		{Filter: "price >"},
		{Filter: "colour = \"red\""},
		{Status: "archived"},
		{PageToken: "%%%"},
	} {
		if _, err := svc.List(context.Background(), query); !errors.Is(err, ErrInvalidQuery) {
			t.Fatalf("query %+v: err = %v, want ErrInvalidQuery", query, err)
		}
	}
}

func TestUpdate_OnlySellerMayChange(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedListings(t, store)
	svc := NewService(store, nil, nil, fixedClock(baseTime.Add(time.Hour)), nil)

	title := "iPhone 13 Pro Max"
	if _, err := svc.Update(context.Background(), "1", "seller-2", UpdateInput{Title: &title}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	sold := "sold"
	price := int64(85000)
	updated, err := svc.Update(context.Background(), "1", "seller-1", UpdateInput{Title: &title, Status: &sold, PriceCents: &price})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != title || updated.Status != StatusSold || updated.PriceCents != price {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if !updated.UpdatedAt.Equal(baseTime.Add(time.Hour)) {
		t.Fatalf("updated at = %v", updated.UpdatedAt)
	}
	huge := int64(math.MaxInt64)
	if _, err := svc.Update(context.Background(), "1", "seller-1", UpdateInput{PriceCents: &huge}); !errors.Is(err, ErrPriceInvalid) {
		t.Fatalf("err = %v, want ErrPriceInvalid", err)
	}
	bad := "archived"
	if _, err := svc.Update(context.Background(), "1", "seller-1", UpdateInput{Status: &bad}); !errors.Is(err, ErrStatusInvalid) {
		t.Fatalf("err = %v, want ErrStatusInvalid", err)
	}
	if _, err := svc.Update(context.Background(), "missing", "seller-1", UpdateInput{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete_OnlySeller(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedListings(t, store)
	svc := NewService(store, nil, nil, fixedClock(baseTime), nil)

	if err := svc.Delete(context.Background(), "2", "seller-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(context.Background(), "2", "seller-2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), "2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPlaceBid_Rules(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedListings(t, store)
	notifier := &recordingNotifier{}
	svc := NewService(store, nil, notifier, fixedClock(baseTime), nil)
	ctx := context.Background()

	// Listing 1: price $899, highest $750, minimum $751.
	_, err := svc.PlaceBid(ctx, "1", "buyer", 75000)
	var tooLow *BidTooLowError
	if !errors.As(err, &tooLow) || !errors.Is(err, ErrBidTooLow) || tooLow.MinimumCents != 75100 {
		t.Fatalf("err = %v, want minimum 75100", err)
	}
	if got, _ := store.GetListing(ctx, "1"); got.HighestBidCents != 75000 {
		t.Fatalf("rejected bid mutated state: %d", got.HighestBidCents)
	}

	updated, err := svc.PlaceBid(ctx, "1", "buyer", 75100)
	if err != nil {
		t.Fatalf("place bid: %v", err)
	}
	if updated.HighestBidCents != 75100 || updated.HighestBidderID != "buyer" {
		t.Fatalf("unexpected bid state: %+v", updated)
	}
	if len(notifier.bids) != 1 || notifier.bids[0] != 75100 {
		t.Fatalf("notifier bids = %v", notifier.bids)
	}

	tests := []struct {
		name    string
		listing string
		bidder  string
		want    error
	}{
		{name: "not biddable", listing: "3", bidder: "buyer", want: ErrNotBiddable},
		{name: "sold", listing: "4", bidder: "buyer", want: ErrNotActive},
		{name: "own listing", listing: "2", bidder: "seller-2", want: ErrOwnListing},
		{name: "missing", listing: "nope", bidder: "buyer", want: ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.PlaceBid(ctx, tc.listing, tc.bidder, 1_000_000); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	if len(notifier.bids) != 1 {
		t.Fatalf("rejected bids notified: %v", notifier.bids)
	}
}

func TestPlaceBid_ConcurrentBidsOnlyGrow(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedListings(t, store)
	svc := NewService(store, nil, nil, fixedClock(baseTime), nil)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			_, _ = svc.PlaceBid(context.Background(), "2", "buyer", amount)
		}(200000 + int64(i)*100)
	}
	wg.Wait()

	got, err := store.GetListing(context.Background(), "2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.HighestBidCents != 200000+19*100 {
		t.Fatalf("highest bid = %d, want the largest offer", got.HighestBidCents)
	}
}

func TestPlaceBid_HighestBidNeverDecreases(t *testing.T) {
	t.Parallel()

	type bid struct {
		amount int64
		want   error
	}
	tests := []struct {
		name string
		bids []bid
	}{
		{name: "extremes before any bid", bids: []bid{
			{amount: math.MaxInt64, want: ErrBidAmountInvalid},
			{amount: MaxAmountCents + 1, want: ErrBidAmountInvalid},
			{amount: math.MinInt64, want: ErrBidTooLow},
			{amount: 0, want: ErrBidTooLow},
			{amount: 60099, want: ErrBidTooLow},
			{amount: 60100},
			{amount: 1, want: ErrBidTooLow},
		}},
		{name: "bid at the cap", bids: []bid{
			{amount: MaxAmountCents},
			{amount: MaxAmountCents, want: ErrBidTooLow},
			{amount: math.MaxInt64, want: ErrBidAmountInvalid},
			{amount: 1, want: ErrBidTooLow},
		}},
		{name: "increments", bids: []bid{
			{amount: 70000},
			{amount: 70099, want: ErrBidTooLow},
			{amount: 70100},
			{amount: 69000, want: ErrBidTooLow},
			{amount: 500000},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store := newFakeStore()
			seedListings(t, store)
			svc := NewService(store, nil, nil, fixedClock(baseTime), nil)
			ctx := context.Background()

			highest := int64(0)
			for i, b := range tc.bids {
				_, err := svc.PlaceBid(ctx, "2", "buyer", b.amount)
				if b.want == nil && err != nil {
					t.Fatalf("bid %d of %d: %v", i, b.amount, err)
				}
				if b.want != nil && !errors.Is(err, b.want) {
					t.Fatalf("bid %d of %d: err = %v, want %v", i, b.amount, err, b.want)
				}
				got, err := store.GetListing(ctx, "2")
				if err != nil {
					t.Fatalf("get: %v", err)
				}
				if got.HighestBidCents < highest {
					t.Fatalf("bid %d of %d lowered highest bid from %d to %d", i, b.amount, highest, got.HighestBidCents)
				}
				if b.want == nil && got.HighestBidCents != b.amount {
					t.Fatalf("bid %d: highest = %d, want %d", i, got.HighestBidCents, b.amount)
				}
				if got.MinimumBid() <= got.HighestBidCents {
					t.Fatalf("bid %d: minimum %d not above highest %d", i, got.MinimumBid(), got.HighestBidCents)
				}
				highest = got.HighestBidCents
			}
		})
	}
}

func TestMinimumAndSuggestedBid(t *testing.T) {
	t.Parallel()

	unbid := Listing{PriceCents: 129999}
	if got := unbid.MinimumBid(); got != 103999+100 {
		t.Fatalf("minimum = %d", got)
	}
	if got := unbid.SuggestedBid(); got != 116999 {
		t.Fatalf("suggested = %d", got)
	}
	bid := Listing{PriceCents: 89900, HighestBidCents: 75000}
	if bid.MinimumBid() != 75100 || bid.SuggestedBid() != 75500 {
		t.Fatalf("minimum/suggested = %d/%d", bid.MinimumBid(), bid.SuggestedBid())
	}

	capped := Listing{PriceCents: MaxAmountCents}
	if got := capped.MinimumBid(); got != MaxAmountCents/5*4+100 {
		t.Fatalf("minimum at cap = %d", got)
	}
	if got := capped.SuggestedBid(); got != MaxAmountCents/10*9 {
		t.Fatalf("suggested at cap = %d", got)
	}
	extreme := Listing{PriceCents: math.MaxInt64}
	if extreme.MinimumBid() <= 0 || extreme.SuggestedBid() <= 0 {
		t.Fatalf("minimum/suggested wrapped: %d/%d", extreme.MinimumBid(), extreme.SuggestedBid())
	}
	topped := Listing{PriceCents: 100, HighestBidCents: math.MaxInt64 - 1}
	if topped.MinimumBid() != math.MaxInt64 || topped.SuggestedBid() != math.MaxInt64 {
		t.Fatalf("minimum/suggested = %d/%d, want saturation", topped.MinimumBid(), topped.SuggestedBid())
	}
}

func TestService_RequiresStore(t *testing.T) {
	t.Parallel()

	var svc *Service
	if _, err := svc.List(context.Background(), Query{}); !errors.Is(err, ErrStoreNotConfigured) {
		t.Fatalf("err = %v", err)
	}
	if _, err := NewService(nil, nil, nil, nil, nil).Get(context.Background(), "1"); !errors.Is(err, ErrStoreNotConfigured) {
		t.Fatalf("err = %v", err)
	}
}

func seedListings(t *testing.T, store *fakeStore) {
	t.Helper()
	listings := []Listing{
		{ID: "1", Title: "iPhone 13 Pro - Excellent Condition", Description: "Barely used.", PriceCents: 89900, Category: "Electronics", Location: "San Francisco, CA", Seller: Seller{ID: "seller-1"}, Status: StatusActive, IsBiddable: true, HighestBidCents: 75000},
		{ID: "2", Title: "MacBook Air M1", Description: "Great laptop.", PriceCents: 75000, Category: "Electronics", Location: "New York, NY", Seller: Seller{ID: "seller-2"}, Status: StatusActive, IsBiddable: true},
		{ID: "3", Title: "Office Chair", Description: "Ergonomic mesh back.", PriceCents: 12000, Category: "Furniture", Location: "Austin, TX", Seller: Seller{ID: "seller-3"}, Status: StatusActive},
		{ID: "4", Title: "Standing Desk", Description: "Pairs well with any chair.", PriceCents: 35000, Category: "Furniture", Location: "Seattle, WA", Seller: Seller{ID: "seller-4"}, Status: StatusSold, IsBiddable: true},
	}
	for i, l := range listings {
		l.CreatedAt = baseTime.Add(time.Duration(i) * time.Hour)
		l.UpdatedAt = l.CreatedAt
		if err := store.PutListing(context.Background(), l); err != nil {
			t.Fatalf("seed listing %s: %v", l.ID, err)
		}
	}
}

func assertIDs(t *testing.T, listings []Listing, want []string) {
	t.Helper()
	got := make([]string, len(listings))
	for i, l := range listings {
		got[i] = l.ID
	}
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func sequentialIDGenerator(ids ...string) func() (string, error) {
	index := 0
	return func() (string, error) {
		if index >= len(ids) {
			return "", errIDGeneratorExhausted
		}
		value := ids[index]
		index++
		return value, nil
	}
}

type recordingNotifier struct {
	mu   sync.Mutex
	bids []int64
}

func (n *recordingNotifier) BidPlaced(_ context.Context, _ Listing, _ string, amountCents int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bids = append(n.bids, amountCents)
}

type fakeSellers map[string]Seller

func (f fakeSellers) LookupSeller(_ context.Context, userID string) (Seller, error) {
	seller, ok := f[userID]
	if !ok {
		return Seller{}, ErrSellerNotFound
	}
	return seller, nil
}

type fakeStore struct {
	mu       sync.Mutex
	listings map[string]Listing
}

func newFakeStore() *fakeStore {
	return &fakeStore{listings: make(map[string]Listing)}
}

func (s *fakeStore) PutListing(_ context.Context, listing Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[listing.ID] = listing.Clone()
	return nil
}

func (s *fakeStore) GetListing(_ context.Context, listingID string) (Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	listing, ok := s.listings[listingID]
	if !ok {
		return Listing{}, ErrNotFound
	}
	return listing.Clone(), nil
}

func (s *fakeStore) UpdateListing(_ context.Context, listingID string, mutate func(*Listing) error) (Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	listing, ok := s.listings[listingID]
	if !ok {
		return Listing{}, ErrNotFound
	}
	listing = listing.Clone()
	if err := mutate(&listing); err != nil {
		return Listing{}, err
	}
	s.listings[listingID] = listing
	return listing.Clone(), nil
}

func (s *fakeStore) DeleteListing(_ context.Context, listingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[listingID]; !ok {
		return ErrNotFound
	}
	delete(s.listings, listingID)
	return nil
}

func (s *fakeStore) ListListings(_ context.Context, criteria Criteria) ([]Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]Listing, 0, len(s.listings))
	for _, l := range s.listings {
		if criteria.Match(l) {
			matched = append(matched, l.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool { return criteria.Order.Less(matched[i], matched[j]) })
	if criteria.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[criteria.Offset:]
	if criteria.Limit > 0 && len(matched) > criteria.Limit {
		matched = matched[:criteria.Limit]
	}
	return matched, nil
}
