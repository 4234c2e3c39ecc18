// Package pagination normalizes list paging parameters and page tokens.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPageToken reports a page token that could not be decoded.
var ErrInvalidPageToken = errors.New("invalid page token")

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// OrderByConfig configures order_by validation.
type OrderByConfig struct {
	Default string
	Allowed []string
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int, cfg PageSizeConfig) int {
	pageSize := value
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// NormalizeOrderBy validates order_by and applies defaults.
func NormalizeOrderBy(orderBy string, cfg OrderByConfig) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return cfg.Default, nil
	}
	for _, allowed := range cfg.Allowed {
		if orderBy == allowed {
			return orderBy, nil
		}
	}
	return "", fmt.Errorf("invalid order_by: %s", orderBy)
}

// EncodeOffset builds an opaque token for an offset into a result set.
func EncodeOffset(offset int) string {
	if offset <= 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte("o:" + strconv.Itoa(offset)))
}

// DecodeOffset returns the offset carried by token. Empty tokens start at 0.
func DecodeOffset(token string) (int, error) {
	raw, err := decode(token, "o:")
	if err != nil || raw == "" {
		return 0, err
	}
	offset, err := strconv.Atoi(raw)
	if err != nil || offset < 0 {
		return 0, ErrInvalidPageToken
	}
	return offset, nil
}

// EncodeCursor builds an opaque token resuming after the row with id.
func EncodeCursor(id string) string {
	if id == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte("c:" + id))
}

// DecodeCursor returns the id carried by token. Empty tokens return "".
func DecodeCursor(token string) (string, error) {
	return decode(token, "c:")
}

// EncodeKeyset builds a token resuming after the row sorted at (at, id)
// in descending order.
func EncodeKeyset(at time.Time, id string) string {
	if id == "" {
		return ""
	}
	return EncodeCursor(strconv.FormatInt(at.UTC().UnixMilli(), 10) + "|" + id)
}

// DecodeKeyset returns the position carried by token. Empty tokens return
// the zero time and "".
func DecodeKeyset(token string) (time.Time, string, error) {
	raw, err := DecodeCursor(token)
	if err != nil || raw == "" {
		return time.Time{}, "", err
	}
	millis, id, ok := strings.Cut(raw, "|")
	if !ok || id == "" {
		return time.Time{}, "", ErrInvalidPageToken
	}
	value, err := strconv.ParseInt(millis, 10, 64)
	if err != nil {
		return time.Time{}, "", ErrInvalidPageToken
	}
	return time.UnixMilli(value).UTC(), id, nil
}

func decode(token, prefix string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrInvalidPageToken
	}
	value, ok := strings.CutPrefix(string(data), prefix)
	if !ok || value == "" {
		return "", ErrInvalidPageToken
	}
	return value, nil
}
