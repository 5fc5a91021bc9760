// Package rent looks up average commercial rent by administrative district.
package rent

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Lookup returns the average rent for a district. found is false when the
// district is unknown.
type Lookup interface {
	AverageRent(ctx context.Context, district string) (rent float64, found bool, err error)
}

// NormalizeDistrict makes district names comparable: Unicode NFC, case
// folding and collapsed whitespace.
func NormalizeDistrict(name string) string {
	s := norm.NFC.String(name)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}
