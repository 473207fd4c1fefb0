package collector

import (
	"context"
	"errors"

	"PennyAI/internal/model"
)

// ErrNotFound is returned by a Fetcher when the source has no listing for a symbol.
var ErrNotFound = errors.New("symbol not found")

// Fetcher defines the interface for looking up listing attributes.
type Fetcher interface {
	FetchInfo(ctx context.Context, symbol string) (*model.QuoteInfo, error)
	Name() string
}
