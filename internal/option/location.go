package option

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeCoordinate canonicalizes a decimal coordinate string so that
// textual variants of the same number ("10", "10.0", " 10.00") map to one
// representation. Returns ErrInvalidLocation when the input is not a decimal.
func NormalizeCoordinate(raw string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrInvalidLocation
	}
	return d.String(), nil
}

// LocationKey derives the exposure-bucket key for a coordinate pair. Options
// at the same physical point always share a key regardless of how the
// coordinates were written.
func LocationKey(lat, lon string) (string, error) {
	nlat, err := NormalizeCoordinate(lat)
	if err != nil {
		return "", err
	}
	nlon, err := NormalizeCoordinate(lon)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(nlat + "|" + nlon))
	return hex.EncodeToString(sum[:]), nil
}
