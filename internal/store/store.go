// Package store persists enriched records in a single SQLite table and serves
// the read-only query surface over it.
package store

import "time"

// TableName is the table holding enriched records.
const TableName = "training"

// AnnotationColumns are added by migration when missing. They are nullable
// text and only ever written by the backfill.
var AnnotationColumns = []string{"summarized_content", "summarized_comments", "verdict"}

// Filter narrows Query results.
type Filter struct {
	Limit           int
	Since           time.Time
	Ticker          string
	IncludeComments bool
}

// PricePoint is one stored price observation for a ticker.
type PricePoint struct {
	Ticker        string
	Symbol        string
	CurrentPrice  *float64
	PreviousClose *float64
	LastUpdated   time.Time
}
