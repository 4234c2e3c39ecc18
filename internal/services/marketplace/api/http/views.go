package httpapi

import (
	"time"

	authdomain "github.com/louisbranch/rebazzar/internal/services/auth/domain"
	"github.com/louisbranch/rebazzar/internal/services/catalog"
	listingdomain "github.com/louisbranch/rebazzar/internal/services/listing/domain"
	notificationsdomain "github.com/louisbranch/rebazzar/internal/services/notifications/domain"
)

type userJSON struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Avatar   string  `json:"avatar"`
	Role     string  `json:"role"`
	Rating   float64 `json:"rating"`
	Location string  `json:"location"`
}

func userView(u authdomain.User) userJSON {
	return userJSON{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Avatar:   u.AvatarURL,
		Role:     string(u.Role),
		Rating:   u.Rating,
		Location: u.Location,
	}
}

type profileJSON struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Avatar   string  `json:"avatar"`
	Role     string  `json:"role"`
	Rating   float64 `json:"rating"`
	Location string  `json:"location"`
}

func profileView(p authdomain.Profile) profileJSON {
	return profileJSON{
		ID:       p.ID,
		Name:     p.Name,
		Avatar:   p.AvatarURL,
		Role:     string(p.Role),
		Rating:   p.Rating,
		Location: p.Location,
	}
}

type sessionJSON struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userJSON  `json:"user"`
}

type sellerJSON struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Avatar   string  `json:"avatar"`
	Rating   float64 `json:"rating"`
	Location string  `json:"location,omitempty"`
}

type listingJSON struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	PriceCents        int64      `json:"price_cents"`
	Images            []string   `json:"images"`
	Category          string     `json:"category"`
	Condition         string     `json:"condition"`
	Location          string     `json:"location"`
	Seller            sellerJSON `json:"seller"`
	Status            string     `json:"status"`
	IsBiddable        bool       `json:"is_biddable"`
	HighestBidCents   int64      `json:"highest_bid_cents,omitempty"`
	HighestBidderID   string     `json:"highest_bidder_id,omitempty"`
	MinimumBidCents   int64      `json:"minimum_bid_cents,omitempty"`
	SuggestedBidCents int64      `json:"suggested_bid_cents,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func listingView(l listingdomain.Listing) listingJSON {
	images := l.Images
	if images == nil {
		images = []string{}
	}
	view := listingJSON{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		PriceCents:  l.PriceCents,
		Images:      images,
		Category:    l.Category,
		Condition:   l.Condition,
		Location:    l.Location,
		Seller: sellerJSON{
			ID:       l.Seller.ID,
			Name:     l.Seller.Name,
			Avatar:   l.Seller.AvatarURL,
			Rating:   l.Seller.Rating,
			Location: l.Seller.Location,
		},
		Status:          string(l.Status),
		IsBiddable:      l.IsBiddable,
		HighestBidCents: l.HighestBidCents,
		HighestBidderID: l.HighestBidderID,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
	if l.IsBiddable {
		view.MinimumBidCents = l.MinimumBid()
		view.SuggestedBidCents = l.SuggestedBid()
	}
	return view
}

type listingPageJSON struct {
	Listings      []listingJSON `json:"listings"`
	NextPageToken string        `json:"next_page_token,omitempty"`
}

func listingPageView(page listingdomain.Page) listingPageJSON {
	views := make([]listingJSON, 0, len(page.Listings))
	for _, l := range page.Listings {
		views = append(views, listingView(l))
	}
	return listingPageJSON{Listings: views, NextPageToken: page.NextPageToken}
}

type notificationJSON struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	ActionURL string    `json:"action_url,omitempty"`
}

func notificationView(n notificationsdomain.Notification) notificationJSON {
	return notificationJSON{
		ID:        n.ID,
		Type:      string(n.Type),
		Title:     n.Title,
		Content:   n.Content,
		Timestamp: n.CreatedAt,
		Read:      n.Read(),
		ActionURL: n.ActionURL,
	}
}

type unreadJSON struct {
	UnreadCount int  `json:"unread_count"`
	HasUnread   bool `json:"has_unread"`
}

type categoryJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

func categoryViews(categories []catalog.Category) []categoryJSON {
	views := make([]categoryJSON, 0, len(categories))
	for _, c := range categories {
		views = append(views, categoryJSON{ID: c.ID, Name: c.Name, Icon: c.Icon})
	}
	return views
}
