// Package catalog provides data contracts and storage access for the product catalog.
package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// ErrSourceUnavailable is returned when the catalog store cannot be reached.
// The caller fails the current request only; retries belong to the client.
var ErrSourceUnavailable = errors.New("candidate source unavailable")

// Product is an immutable snapshot of a catalog record's payload at fetch time.
type Product struct {
	Name                 string  `json:"name"`
	Brand                string  `json:"brand"`
	Price                float64 `json:"price"`
	HasPrice             bool    `json:"has_price"`
	DisplayPrice         string  `json:"display_price"`
	Color                string  `json:"color"`
	Category             string  `json:"category"`
	Availability         string  `json:"availability"`
	URL                  string  `json:"url,omitempty"`
	Image                string  `json:"image,omitempty"`
	HasDiscount          bool    `json:"has_discount"`
	OriginalPrice        float64 `json:"original_price,omitempty"`
	DisplayOriginalPrice string  `json:"display_original_price,omitempty"`
	DiscountPercent      float64 `json:"discount_percentage,omitempty"`
}

// Candidate is one catalog record under consideration for a search, with
// its stored embedding. Immutable once fetched into the pipeline.
type Candidate struct {
	ID        string
	Embedding []float32
	Product   Product
}

// Filter holds the hard filter predicate applied by the store before scoring.
type Filter struct {
	MaxPrice float64
	Category string // empty means any
	Color    string // empty means any
}

// Source fetches filtered candidates with their embeddings. No ordering is
// guaranteed by the store; all ordering happens in the ranking pipeline.
type Source interface {
	Fetch(ctx context.Context, filter Filter, limit int) ([]Candidate, error)
}

// Entry is a product ready for indexing, produced by the scraper.
type Entry struct {
	ID      string
	Vector  []float32
	Product Product
}

// Indexer writes catalog entries into the store.
type Indexer interface {
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, entries []Entry) error
}

// ErrUnparsablePrice is returned when a display price string contains no
// usable number. Callers treat the product as priced at the budget rather
// than excluding it.
var ErrUnparsablePrice = errors.New("unparsable price")

// ParsePrice extracts a numeric price from a display string such as
// "3 499,000 DT". Comma is treated as a decimal separator; everything that
// is not a digit or a dot is dropped.
func ParsePrice(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", ".")
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, ErrUnparsablePrice
	}
	// Multiple dots can survive thousand separators ("3.499.000"); keep the
	// first as the decimal point and strip the rest.
	if strings.Count(cleaned, ".") > 1 {
		first := strings.Index(cleaned, ".")
		cleaned = cleaned[:first+1] + strings.ReplaceAll(cleaned[first+1:], ".", "")
	}
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, ErrUnparsablePrice
	}
	return price, nil
}
