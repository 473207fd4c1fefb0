// Package backfill annotates stored rows that have no summary yet.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"PennyAI/internal/model"
	"PennyAI/internal/publisher"
	"PennyAI/internal/store"
	"PennyAI/internal/summarizer"
)

// Store is the part of the record store the backfill needs.
type Store interface {
	PendingSummaries(ctx context.Context) ([]model.PendingRow, error)
	ApplySummaries(ctx context.Context, updates []model.AnnotationUpdate) ([]int64, error)
}

// Result counts what one backfill pass did.
type Result struct {
	Pending   int
	Succeeded int
	Failed    int
	Applied   int64
	Published int
}

// Backfiller runs the summarizer over pending rows and writes the results back
// in one batch.
type Backfiller struct {
	store      Store
	summarizer summarizer.Summarizer
	publisher  publisher.Publisher
	logger     arbor.ILogger
}

// New creates a Backfiller. A nil publisher disables verdict events.
func New(store Store, s summarizer.Summarizer, pub publisher.Publisher, logger arbor.ILogger) *Backfiller {
	if pub == nil {
		pub = publisher.NewNoopPublisher()
	}
	return &Backfiller{store: store, summarizer: s, publisher: pub, logger: logger}
}

// WithLogger returns a copy of the backfiller that logs to logger. A store
// that supports it is rebound to the same logger.
func (b *Backfiller) WithLogger(logger arbor.ILogger) *Backfiller {
	c := *b
	c.logger = logger
	if sl, ok := b.store.(interface {
		WithLogger(arbor.ILogger) *store.SQLiteStore
	}); ok {
		c.store = sl.WithLogger(logger)
	}
	return &c
}

// Run summarizes every pending row. A failed summary stages empty values so
// the row stays pending for the next run. Store errors are returned; publish
// errors are only logged.
func (b *Backfiller) Run(ctx context.Context) (Result, error) {
	var res Result

	pending, err := b.store.PendingSummaries(ctx)
	if err != nil {
		return res, fmt.Errorf("select pending rows: %w", err)
	}
	res.Pending = len(pending)
	if len(pending) == 0 {
		b.logger.Info().Msg("no rows pending summary")
		return res, nil
	}
	b.logger.Info().Int("rows", len(pending)).Str("summarizer", b.summarizer.Name()).Msg("backfill started")

	updates := make([]model.AnnotationUpdate, 0, len(pending))
	for i, row := range pending {
		if ctx.Err() != nil {
			b.logger.Warn().Int("remaining", len(pending)-i).Msg("backfill interrupted")
			break
		}
		u := model.AnnotationUpdate{RowID: row.RowID, Ticker: row.Ticker, Symbol: row.Symbol}
		a, err := b.summarizer.Summarize(ctx, row.Content, strings.Join(row.Comments, " "))
		if err == nil && strings.TrimSpace(a.Summary) == "" {
			err = errors.New("empty summary")
		}
		if err != nil {
			res.Failed++
			b.logger.Warn().Err(err).Int64("row_id", row.RowID).Str("ticker", row.Ticker).Msg("summary failed")
		} else {
			res.Succeeded++
			u.Annotation = *a
			b.logger.Debug().
				Int64("row_id", row.RowID).
				Str("verdict", string(a.Verdict)).
				Msgf("processed row %d/%d", i+1, len(pending))
		}
		updates = append(updates, u)
	}

	// Staged work is written even if the context was cancelled mid-loop.
	applied, err := b.store.ApplySummaries(context.WithoutCancel(ctx), updates)
	if err != nil {
		return res, fmt.Errorf("apply summaries: %w", err)
	}
	res.Applied = int64(len(applied))
	b.logger.Info().
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Int64("applied", res.Applied).
		Msg("backfill applied")

	sent, err := b.publisher.PublishVerdicts(ctx, published(updates, applied))
	res.Published = sent
	if err != nil {
		b.logger.Warn().Err(err).Int("published", sent).Msg("verdict publishing incomplete")
	}

	if ctx.Err() != nil {
		return res, fmt.Errorf("backfill interrupted: %w", ctx.Err())
	}
	return res, nil
}

// published keeps the updates the store actually wrote that carry a verdict.
func published(updates []model.AnnotationUpdate, applied []int64) []model.AnnotationUpdate {
	written := make(map[int64]struct{}, len(applied))
	for _, id := range applied {
		written[id] = struct{}{}
	}
	var out []model.AnnotationUpdate
	for _, u := range updates {
		if _, ok := written[u.RowID]; !ok {
			continue
		}
		if u.Annotation.Summary != "" && u.Annotation.Verdict != model.VerdictUnset {
			out = append(out, u)
		}
	}
	return out
}
