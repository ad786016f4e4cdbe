// Package tracking generates public complaint tracking numbers.
package tracking

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prefix starts every tracking number.
const Prefix = "CMP"

// Generator produces URL-safe tracking numbers of the form
// CMP-20260301-3F2A9C4B5D6E4F708192A3B4C5D6E7F8. The random part is a full
// UUIDv4, so numbers are globally unique without a database round trip.
type Generator struct {
	now func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// Generate returns a new tracking number.
func (g *Generator) Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	random := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return Prefix + "-" + g.now().UTC().Format("20060102") + "-" + random, nil
}
