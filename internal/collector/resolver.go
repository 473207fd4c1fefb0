package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"PennyAI/internal/model"
)

// DefaultSuffixes is the exchange-suffix probe order. The bare symbol goes first.
var DefaultSuffixes = []string{"", ".CN", ".V", ".TO", ".AX", ".L", ".NS", ".BO", ".SA", ".HK", ".NE", ".F"}

// MockFetcher returns fixed listings for development and testing.
type MockFetcher struct {
	Listings map[string]*model.QuoteInfo
	Errors   map[string]error
	Calls    []string
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchInfo(_ context.Context, symbol string) (*model.QuoteInfo, error) {
	m.Calls = append(m.Calls, symbol)
	if err, ok := m.Errors[symbol]; ok {
		return nil, err
	}
	if info, ok := m.Listings[symbol]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("mock %s: %w", symbol, ErrNotFound)
}

// Resolver maps tickers to exchange-qualified symbols by probing a Fetcher
// with each suffix in turn.
type Resolver struct {
	Fetcher  Fetcher
	Suffixes []string
	logger   arbor.ILogger
}

// NewResolver creates a Resolver. The suffix list is used as given.
func NewResolver(fetcher Fetcher, suffixes []string, logger arbor.ILogger) *Resolver {
	return &Resolver{Fetcher: fetcher, Suffixes: suffixes, logger: logger}
}

// WithLogger returns a copy of the resolver that logs to logger.
func (r *Resolver) WithLogger(logger arbor.ILogger) *Resolver {
	c := *r
	c.logger = logger
	return &c
}

// Resolve probes ticker+suffix in order and stops at the first listing with a
// canonical name. Fetch failures count as a miss for that suffix only.
func (r *Resolver) Resolve(ctx context.Context, ticker string) model.ResolvedSymbol {
	for _, suffix := range r.Suffixes {
		if ctx.Err() != nil {
			break
		}
		symbol := ticker + suffix
		info, err := r.Fetcher.FetchInfo(ctx, symbol)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				r.logger.Warn().Err(err).Str("symbol", symbol).Msg("market data lookup failed")
			}
			continue
		}
		if info.HasName() {
			r.logger.Debug().Str("ticker", ticker).Str("symbol", symbol).Msg("ticker resolved")
			return model.Resolved(ticker, symbol, info)
		}
	}
	return model.Unresolved(ticker)
}

// ResolveAll resolves each distinct ticker exactly once, in first-seen order.
func (r *Resolver) ResolveAll(ctx context.Context, tickers []string) []model.ResolvedSymbol {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]model.ResolvedSymbol, 0, len(tickers))
	for _, t := range tickers {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, r.Resolve(ctx, t))
	}

	var missed int
	for _, rs := range out {
		if rs.Error != nil {
			missed++
		}
	}
	r.logger.Info().
		Str("source", r.Fetcher.Name()).
		Int("tickers", len(out)).
		Int("not_found", missed).
		Msg("ticker resolution complete")
	return out
}
