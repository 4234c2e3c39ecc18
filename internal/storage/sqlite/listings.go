package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	listingdomain "github.com/louisbranch/rebazzar/internal/services/listing/domain"
)

const listingColumns = `id, title, description, price_cents, images, category, condition, location,
	seller_id, seller_name, seller_avatar_url, seller_rating, seller_location,
	status, is_biddable, highest_bid_cents, highest_bidder_id, created_at, updated_at`

// listingFilterColumns maps filter fields to listing columns.
var listingFilterColumns = map[string]string{
	"category":    "category",
	"condition":   "condition",
	"location":    "location",
	"seller_id":   "seller_id",
	"status":      "status",
	"price":       "price_cents",
	"highest_bid": "highest_bid_cents",
	"is_biddable": "is_biddable",
}

var listingOrderClauses = map[listingdomain.Order]string{
	listingdomain.OrderNewest:    "created_at DESC, id DESC",
	listingdomain.OrderOldest:    "created_at ASC, id ASC",
	listingdomain.OrderPriceLow:  "price_cents ASC, created_at DESC, id DESC",
	listingdomain.OrderPriceHigh: "price_cents DESC, created_at DESC, id DESC",
}

func scanListing(row rowScanner) (listingdomain.Listing, error) {
	var (
		listing    listingdomain.Listing
		images     string
		status     string
		isBiddable int64
		createdAt  int64
		updatedAt  int64
	)
	if err := row.Scan(
		&listing.ID,
		&listing.Title,
		&listing.Description,
		&listing.PriceCents,
		&images,
		&listing.Category,
		&listing.Condition,
		&listing.Location,
		&listing.Seller.ID,
		&listing.Seller.Name,
		&listing.Seller.AvatarURL,
		&listing.Seller.Rating,
		&listing.Seller.Location,
		&status,
		&isBiddable,
		&listing.HighestBidCents,
		&listing.HighestBidderID,
		&createdAt,
		&updatedAt,
	); err != nil {
		return listingdomain.Listing{}, err
	}
	if err := json.Unmarshal([]byte(images), &listing.Images); err != nil {
		return listingdomain.Listing{}, fmt.Errorf("decode listing images: %w", err)
	}
	listing.Status = listingdomain.Status(status)
	listing.IsBiddable = isBiddable != 0
	listing.CreatedAt = fromMillis(createdAt)
	listing.UpdatedAt = fromMillis(updatedAt)
	return listing, nil
}

func encodeImages(images []string) (string, error) {
	if images == nil {
		images = []string{}
	}
	data, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("encode listing images: %w", err)
	}
	return string(data), nil
}

// PutListing inserts or replaces a listing.
func (s *Store) PutListing(ctx context.Context, listing listingdomain.Listing) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	images, err := encodeImages(listing.Images)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT OR REPLACE INTO listings (`+listingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		listingArgs(listing, images)...,
	)
	if err != nil {
		return fmt.Errorf("put listing: %w", err)
	}
	return nil
}

func listingArgs(listing listingdomain.Listing, images string) []any {
	return []any{
		listing.ID,
		listing.Title,
		listing.Description,
		listing.PriceCents,
		images,
		listing.Category,
		listing.Condition,
		listing.Location,
		listing.Seller.ID,
		listing.Seller.Name,
		listing.Seller.AvatarURL,
		listing.Seller.Rating,
		listing.Seller.Location,
		string(listing.Status),
		boolToInt(listing.IsBiddable),
		listing.HighestBidCents,
		listing.HighestBidderID,
		toMillis(listing.CreatedAt),
		toMillis(listing.UpdatedAt),
	}
}

// GetListing returns one listing by id.
func (s *Store) GetListing(ctx context.Context, listingID string) (listingdomain.Listing, error) {
	if err := s.ready(ctx); err != nil {
		return listingdomain.Listing{}, err
	}
	listing, err := scanListing(s.sqlDB.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, listingID))
	if errors.Is(err, sql.ErrNoRows) {
		return listingdomain.Listing{}, listingdomain.ErrNotFound
	}
	if err != nil {
		return listingdomain.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return listing, nil
}

// UpdateListing applies mutate to the stored listing inside one transaction.
func (s *Store) UpdateListing(ctx context.Context, listingID string, mutate func(*listingdomain.Listing) error) (listingdomain.Listing, error) {
	if err := s.ready(ctx); err != nil {
		return listingdomain.Listing{}, err
	}
	var updated listingdomain.Listing
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		listing, err := scanListing(tx.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, listingID))
		if errors.Is(err, sql.ErrNoRows) {
			return listingdomain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get listing: %w", err)
		}
		if err := mutate(&listing); err != nil {
			return err
		}
		listing.ID = listingID
		images, err := encodeImages(listing.Images)
		if err != nil {
			return err
		}
		args := listingArgs(listing, images)
		// Rotate id to the end for the WHERE clause.
		args = append(args[1:], args[0])
		if _, err := tx.ExecContext(ctx,
			`UPDATE listings
			    SET title = ?, description = ?, price_cents = ?, images = ?, category = ?,
			        condition = ?, location = ?, seller_id = ?, seller_name = ?,
			        seller_avatar_url = ?, seller_rating = ?, seller_location = ?, status = ?,
			        is_biddable = ?, highest_bid_cents = ?, highest_bidder_id = ?,
			        created_at = ?, updated_at = ?
			  WHERE id = ?`,
			args...,
		); err != nil {
			return fmt.Errorf("update listing: %w", err)
		}
		updated = listing
		return nil
	})
	if err != nil {
		return listingdomain.Listing{}, err
	}
	return updated, nil
}

// DeleteListing removes a listing.
func (s *Store) DeleteListing(ctx context.Context, listingID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, listingID)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete listing rows affected: %w", err)
	}
	if affected == 0 {
		return listingdomain.ErrNotFound
	}
	return nil
}

// ListListings returns listings matching criteria in the requested order.
func (s *Store) ListListings(ctx context.Context, criteria listingdomain.Criteria) ([]listingdomain.Listing, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	query, args, err := buildListingQuery(criteria)
	if err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	listings := make([]listingdomain.Listing, 0)
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return listings, nil
}

func buildListingQuery(criteria listingdomain.Criteria) (string, []any, error) {
	var (
		where []string
		args  []any
	)
	if criteria.Category != "" {
		where = append(where, "category = ? COLLATE NOCASE")
		args = append(args, criteria.Category)
	}
	if criteria.Location != "" {
		where = append(where, "instr(lower(location), lower(?)) > 0")
		args = append(args, criteria.Location)
	}
	if criteria.SellerID != "" {
		where = append(where, "seller_id = ?")
		args = append(args, criteria.SellerID)
	}
	if criteria.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(criteria.Status))
	}
	condition, err := criteria.Filter.SQL(listingFilterColumns)
	if err != nil {
		return "", nil, fmt.Errorf("translate listing filter: %w", err)
	}
	if condition.Clause != "" {
		where = append(where, condition.Clause)
		args = append(args, condition.Params...)
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + listingColumns + ` FROM listings`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	order, ok := listingOrderClauses[criteria.Order]
	if !ok {
		order = listingOrderClauses[listingdomain.OrderNewest]
	}
	b.WriteString(" ORDER BY " + order)
	switch {
	case criteria.Limit > 0:
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, criteria.Limit, criteria.Offset)
	case criteria.Offset > 0:
		b.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, criteria.Offset)
	}
	return b.String(), args, nil
}
