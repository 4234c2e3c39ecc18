package filter

import (
	"errors"
	"reflect"
	"testing"
)

type record map[string]any

func (r record) FilterValue(field string) (any, bool) {
	value, ok := r[field]
	return value, ok
}

var iphone = record{
	"category":    "Electronics",
	"condition":   "Like New",
	"location":    "San Francisco, CA",
	"seller_id":   "2",
	"status":      "active",
	"price":       int64(79900),
	"highest_bid": int64(75000),
	"is_biddable": true,
}

var jacket = record{
	"category":    "Clothing",
	"condition":   "Good",
	"location":    "Portland, OR",
	"seller_id":   "3",
	"status":      "active",
	"price":       int64(12000),
	"highest_bid": int64(0),
	"is_biddable": false,
}

func TestParseEmptyMatchesEverything(t *testing.T) {
	t.Parallel()

	f, err := Parse("   ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !f.IsZero() || !f.Match(iphone) {
		t.Fatal("empty filter should match everything")
	}
	cond, err := f.SQL(nil)
	if err != nil || cond.Clause != "" {
		t.Fatalf("empty sql = %+v, %v", cond, err)
	}
}

func TestMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filter string
		iphone bool
		jacket bool
	}{
		{filter: `category = "electronics"`, iphone: true},
		{filter: `category != "Electronics"`, jacket: true},
		{filter: `price > 500`, iphone: true},
		{filter: `price <= 120`, jacket: true},
		{filter: `price >= 120 AND price < 800`, iphone: true, jacket: true},
		{filter: `is_biddable = true`, iphone: true},
		{filter: `is_biddable`, iphone: true},
		{filter: `NOT is_biddable`, jacket: true},
		{filter: `location:"francisco"`, iphone: true},
		{filter: `seller_id = "3" OR highest_bid > 700`, iphone: true, jacket: true},
		{filter: `status = "active" AND condition = "Good"`, jacket: true},
		{filter: `NOT (category = "Clothing")`, iphone: true},
	}
	for _, tc := range tests {
		t.Run(tc.filter, func(t *testing.T) {
			t.Parallel()
			f, err := Parse(tc.filter)
			if err != nil {
				t.Fatalf("parse %q: %v", tc.filter, err)
			}
			if got := f.Match(iphone); got != tc.iphone {
				t.Fatalf("iphone match = %v, want %v", got, tc.iphone)
			}
			if got := f.Match(jacket); got != tc.jacket {
				t.Fatalf("jacket match = %v, want %v", got, tc.jacket)
			}
		})
	}
}

func TestMatchMissingFieldIsFalse(t *testing.T) {
	t.Parallel()

	f, err := Parse(`category = "Electronics"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Match(record{}) {
		t.Fatal("record without the field should not match")
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		`unknown = "x"`,
		`price = "cheap"`,
		`category = 5`,
		`price > 10.5`,
		`category =`,
		`price:"1"`,
		`is_biddable > true`,
	} {
		if _, err := Parse(raw); !errors.Is(err, ErrInvalid) {
			t.Fatalf("Parse(%q) err = %v, want ErrInvalid", raw, err)
		}
	}
}

func TestSQL(t *testing.T) {
	t.Parallel()

	columns := map[string]string{
		"category":    "category",
		"location":    "location",
		"price":       "price_cents",
		"is_biddable": "is_biddable",
	}
	f, err := Parse(`category = "Electronics" AND (price > 500 OR is_biddable) AND location:"CA"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cond, err := f.SQL(columns)
	if err != nil {
		t.Fatalf("sql: %v", err)
	}
	wantClause := `((category = ? COLLATE NOCASE AND (price_cents > ? OR is_biddable = ?)) AND instr(lower(location), lower(?)) > 0)`
	if cond.Clause != wantClause {
		t.Fatalf("clause = %s\nwant    %s", cond.Clause, wantClause)
	}
	wantParams := []any{"Electronics", int64(50000), int64(1), "CA"}
	if !reflect.DeepEqual(cond.Params, wantParams) {
		t.Fatalf("params = %#v, want %#v", cond.Params, wantParams)
	}
}

func TestSQLRequiresColumnMapping(t *testing.T) {
	t.Parallel()

	f, err := Parse(`status = "sold"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := f.SQL(map[string]string{}); err == nil {
		t.Fatal("expected error for unmapped column")
	}
}

func TestFieldsListsDeclaredIdents(t *testing.T) {
	t.Parallel()

	if got := len(Fields()); got != len(fields) {
		t.Fatalf("fields = %d, want %d", got, len(fields))
	}
	if _, err := Declarations(); err != nil {
		t.Fatalf("declarations: %v", err)
	}
}
