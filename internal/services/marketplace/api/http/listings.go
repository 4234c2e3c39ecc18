package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	apperrors "github.com/louisbranch/rebazzar/internal/platform/errors"
	"github.com/louisbranch/rebazzar/internal/platform/httpx"
	"github.com/louisbranch/rebazzar/internal/services/catalog"
	listingdomain "github.com/louisbranch/rebazzar/internal/services/listing/domain"
)

const (
	bidOutcomeAccepted = "accepted"
	bidOutcomeTooLow   = "too_low"
	bidOutcomeRejected = "rejected"
)

type createListingRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	PriceCents  int64    `json:"price_cents"`
	Images      []string `json:"images"`
	Category    string   `json:"category"`
	Condition   string   `json:"condition"`
	Location    string   `json:"location"`
	IsBiddable  bool     `json:"is_biddable"`
}

type updateListingRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	PriceCents  *int64    `json:"price_cents"`
	Images      *[]string `json:"images"`
	Category    *string   `json:"category"`
	Condition   *string   `json:"condition"`
	Location    *string   `json:"location"`
	IsBiddable  *bool     `json:"is_biddable"`
	Status      *string   `json:"status"`
}

type placeBidRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

type bidTooLowJSON struct {
	httpx.ErrorBody
	MinimumBidCents int64 `json:"minimum_bid_cents"`
}

func (h *Handler) listCategories(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"categories": categoryViews(catalog.Categories())})
}

func (h *Handler) listListings(w http.ResponseWriter, r *http.Request) {
	query, err := listingQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := h.deps.Listings.List(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listingPageView(page))
}

func (h *Handler) myListings(w http.ResponseWriter, r *http.Request) {
	query, err := listingQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	query.SellerID = principalUserID(r)
	if query.Status == "" {
		query.Status = "all"
	}
	page, err := h.deps.Listings.List(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listingPageView(page))
}

func listingQuery(r *http.Request) (listingdomain.Query, error) {
	values := r.URL.Query()
	pageSize, err := httpx.QueryInt(r, "page_size")
	if err != nil {
		return listingdomain.Query{}, err
	}
	return listingdomain.Query{
		Category:  catalog.FilterName(values.Get("category")),
		Location:  strings.TrimSpace(values.Get("location")),
		SellerID:  strings.TrimSpace(values.Get("seller_id")),
		Status:    strings.TrimSpace(values.Get("status")),
		Filter:    values.Get("filter"),
		Search:    values.Get("q"),
		OrderBy:   strings.TrimSpace(values.Get("order_by")),
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(values.Get("page_token")),
	}, nil
}

func (h *Handler) getListing(w http.ResponseWriter, r *http.Request) {
	listing, err := h.deps.Listings.Get(r.Context(), chi.URLParam(r, "listingID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listingView(listing))
}

func (h *Handler) createListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	listing, err := h.deps.Listings.Create(r.Context(), principalUserID(r), listingdomain.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Images:      req.Images,
		Category:    req.Category,
		Condition:   req.Condition,
		Location:    req.Location,
		IsBiddable:  req.IsBiddable,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.deps.Metrics != nil {
		h.deps.Metrics.ListingsCreated.Inc()
	}
	h.writeJSON(w, http.StatusCreated, listingView(listing))
}

func (h *Handler) updateListing(w http.ResponseWriter, r *http.Request) {
	var req updateListingRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	listing, err := h.deps.Listings.Update(r.Context(), chi.URLParam(r, "listingID"), principalUserID(r), listingdomain.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Images:      req.Images,
		Category:    req.Category,
		Condition:   req.Condition,
		Location:    req.Location,
		IsBiddable:  req.IsBiddable,
		Status:      req.Status,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, listingView(listing))
}

func (h *Handler) deleteListing(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Listings.Delete(r.Context(), chi.URLParam(r, "listingID"), principalUserID(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) placeBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	listing, err := h.deps.Listings.PlaceBid(r.Context(), chi.URLParam(r, "listingID"), principalUserID(r), req.AmountCents)
	var tooLow *listingdomain.BidTooLowError
	switch {
	case errors.As(err, &tooLow):
		h.recordBid(bidOutcomeTooLow)
		h.writeJSON(w, http.StatusBadRequest, bidTooLowJSON{
			ErrorBody: httpx.ErrorBody{
				Error: err.Error(),
				Kind:  apperrors.KindInvalidInput,
			},
			MinimumBidCents: tooLow.MinimumCents,
		})
		return
	case err != nil:
		h.recordBid(bidOutcomeRejected)
		h.writeError(w, r, err)
		return
	}
	h.recordBid(bidOutcomeAccepted)
	h.writeJSON(w, http.StatusOK, listingView(listing))
}

func (h *Handler) recordBid(outcome string) {
	if h.deps.Metrics != nil {
		h.deps.Metrics.BidsPlaced.WithLabelValues(outcome).Inc()
	}
}
