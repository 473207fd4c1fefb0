package model

import "strings"

// NotFound is the error marker recorded for tickers without a listing.
const NotFound = "Not found"

// QuoteInfo holds the market-data attributes of a listing. Every field is
// optional because sources omit them freely, especially for small caps.
type QuoteInfo struct {
	LongName      *string
	ShortName     *string
	Sector        *string
	Industry      *string
	MarketCap     *int64
	Employees     *int64
	Founded       *int64
	Country       *string
	Currency      *string
	CurrentPrice  *float64
	PreviousClose *float64
	Open          *float64
	DayHigh       *float64
	DayLow        *float64
	Volume        *int64
	Website       *string
	About         *string
}

// HasName reports whether the canonical name is present, which is what
// confirms a real listing.
func (q *QuoteInfo) HasName() bool {
	return q != nil && q.LongName != nil && strings.TrimSpace(*q.LongName) != ""
}

// ResolvedSymbol is the outcome of probing the market-data source for one
// input ticker. MatchedSymbol is nil iff Error is set.
type ResolvedSymbol struct {
	InputTicker   string
	MatchedSymbol *string
	Info          *QuoteInfo
	Error         *string
}

// Resolved builds a successful resolution.
func Resolved(ticker, symbol string, info *QuoteInfo) ResolvedSymbol {
	return ResolvedSymbol{InputTicker: ticker, MatchedSymbol: Ptr(symbol), Info: info}
}

// Unresolved builds a resolution miss.
func Unresolved(ticker string) ResolvedSymbol {
	return ResolvedSymbol{InputTicker: ticker, Error: Ptr(NotFound)}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns the pointed-to value or the zero value.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
