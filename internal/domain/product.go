package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// DensityProduct is a named density tier.
type DensityProduct struct {
	ID               string
	Tier             string
	GridResolutionKm float64
}

var products = map[string]DensityProduct{
	"daily_lowres_density": {ID: "daily_lowres_density", Tier: "lowres", GridResolutionKm: 5},
	"daily_hires_density":  {ID: "daily_hires_density", Tier: "hires", GridResolutionKm: 1},
}

// LookupProduct returns the product registered under id.
func LookupProduct(id string) (DensityProduct, bool) {
	p, ok := products[id]
	return p, ok
}

// ProductIDs lists the registered product IDs in sorted order.
func ProductIDs() []string {
	ids := make([]string, 0, len(products))
	for id := range products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

var countryCodeRe = regexp.MustCompile(`^[A-Z]{2}$`)

// Request identifies one overlay: a product, a country and a UTC calendar day.
type Request struct {
	Product DensityProduct
	Country string
	Date    time.Time
}

// ParseRequest validates raw request parameters. An unknown product returns
// ErrUnknownProduct; other problems return a descriptive error. The country
// code is upper-cased but not checked against the boundary dataset.
func ParseRequest(productID, country string, year, month, day int) (Request, error) {
	p, ok := LookupProduct(productID)
	if !ok {
		return Request{}, ErrUnknownProduct
	}
	code := strings.ToUpper(strings.TrimSpace(country))
	if !countryCodeRe.MatchString(code) {
		return Request{}, fmt.Errorf("country must be a two-letter ISO code, got %q", country)
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || int(date.Month()) != month || date.Day() != day {
		return Request{}, fmt.Errorf("invalid date %04d-%02d-%02d", year, month, day)
	}
	return Request{Product: p, Country: code, Date: date}, nil
}

// Window returns the half-open sensing interval [day 00:00 UTC, next day 00:00 UTC).
func (r Request) Window() (start, end time.Time) {
	start = r.Date
	return start, start.AddDate(0, 0, 1)
}

// DateString formats the request day as YYYY-MM-DD.
func (r Request) DateString() string {
	return r.Date.Format(time.DateOnly)
}
