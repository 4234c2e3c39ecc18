package id

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewULID returns a lowercase ULID for at. Ids minted in the same
// millisecond still sort in creation order.
func NewULID(at time.Time) (string, error) {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	value, err := ulid.New(ulid.Timestamp(at), ulidEntropy)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return strings.ToLower(value.String()), nil
}

// ULIDTime extracts the timestamp encoded in a ULID string.
func ULIDTime(raw string) (time.Time, error) {
	value, err := ulid.ParseStrict(strings.ToUpper(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse ulid: %w", err)
	}
	return ulid.Time(value.Time()).UTC(), nil
}
