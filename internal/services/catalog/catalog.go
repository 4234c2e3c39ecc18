// Package catalog lists the browse categories.
package catalog

import "strings"

// Category is one browse filter entry.
type Category struct {
	ID   string
	Name string
	Icon string
}

// AllID selects every category.
const AllID = "all"

var categories = []Category{
	{ID: AllID, Name: "All", Icon: "🏠"},
	{ID: "electronics", Name: "Electronics", Icon: "📱"},
	{ID: "clothing", Name: "Clothing", Icon: "👕"},
	{ID: "furniture", Name: "Furniture", Icon: "🛋️"},
	{ID: "vehicles", Name: "Vehicles", Icon: "🚗"},
	{ID: "sports", Name: "Sports", Icon: "⚽"},
	{ID: "toys", Name: "Toys", Icon: "🧸"},
	{ID: "books", Name: "Books", Icon: "📚"},
	{ID: "jewelry", Name: "Jewelry", Icon: "💍"},
	{ID: "art", Name: "Art", Icon: "🎨"},
}

// Categories returns a copy of the catalog in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// Lookup finds a category by id, case-insensitively.
func Lookup(id string) (Category, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// FilterName maps a category id to the listing category filter value.
// "all" and unknown ids yield "" and the raw id respectively.
func FilterName(id string) string {
	c, ok := Lookup(id)
	switch {
	case !ok:
		return strings.TrimSpace(id)
	case c.ID == AllID:
		return ""
	default:
		return c.Name
	}
}
