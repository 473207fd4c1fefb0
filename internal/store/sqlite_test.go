package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"PennyAI/internal/model"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "duck", "pennyai.db"), arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func sampleRecord(ticker string, created int64) model.EnrichedRecord {
	return model.EnrichedRecord{
		RedditTicker:   ticker,
		YFinanceSymbol: model.Ptr(ticker + ".TO"),
		Info: model.QuoteInfo{
			LongName:      model.Ptr(ticker + " Corp"),
			CurrentPrice:  model.Ptr(1.10),
			PreviousClose: model.Ptr(1.00),
			MarketCap:     model.Ptr(int64(5_000_000)),
		},
		Score:       3,
		NumComments: 1,
		Content:     "post about $" + ticker,
		Comments:    []string{"nice"},
		ContentFull: "post about $" + ticker + " nice",
		CreatedAt:   time.Unix(created, 0).UTC(),
		LastUpdated: time.Unix(created+10, 0).UTC(),
	}
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, []model.EnrichedRecord{sampleRecord("ABC", 1)})
	require.NoError(t, err)

	colsBefore, err := s.Columns(ctx)
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureSchema(ctx))
	colsAfter, err := s.Columns(ctx)
	require.NoError(t, err)

	assert.Equal(t, colsBefore, colsAfter)
	for _, c := range AnnotationColumns {
		assert.Contains(t, colsAfter, c)
	}
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEnsureSchema_AddsMissingAnnotationColumns(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "old.db"), arbor.NewLogger())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	// A table from before annotations existed.
	_, err = s.db.Exec(`CREATE TABLE training (row_id INTEGER PRIMARY KEY AUTOINCREMENT, reddit_ticker TEXT, created_utc INTEGER, score INTEGER)`)
	require.NoError(t, err)
	_, err = s.db.Exec(`INSERT INTO training (reddit_ticker, created_utc, score) VALUES ('OLD', 1, 1)`)
	require.NoError(t, err)

	require.NoError(t, s.EnsureSchema(ctx))

	cols, err := s.Columns(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"row_id", "reddit_ticker", "created_utc", "score",
		"summarized_content", "summarized_comments", "verdict"}, cols)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAppend_MonotonicRowIDs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first, err := s.Append(ctx, []model.EnrichedRecord{sampleRecord("AAA", 1), sampleRecord("BBB", 2)})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, first)

	// Same tickers again are new history, not upserts.
	second, err := s.Append(ctx, []model.EnrichedRecord{sampleRecord("AAA", 3)})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Greater(t, second[0], first[1])

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestAppend_NeverReusesDeletedIDs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ids, err := s.Append(ctx, []model.EnrichedRecord{sampleRecord("AAA", 1), sampleRecord("BBB", 2)})
	require.NoError(t, err)
	_, err = s.db.Exec(`DELETE FROM training WHERE row_id = ?`, ids[1])
	require.NoError(t, err)

	next, err := s.Append(ctx, []model.EnrichedRecord{sampleRecord("CCC", 3)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), next[0])
}

func TestAppend_NullOptionalFields(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	unresolved := model.EnrichedRecord{
		RedditTicker: "NOPE",
		Error:        model.Ptr(model.NotFound),
		CreatedAt:    time.Unix(5, 0).UTC(),
	}
	ids, err := s.Append(ctx, []model.EnrichedRecord{unresolved, sampleRecord("ABC", 4)})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	got, err := s.Query(ctx, Filter{Ticker: "nope"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].YFinanceSymbol)
	assert.Nil(t, got[0].Info.CurrentPrice)
	require.NotNil(t, got[0].Error)
	assert.Equal(t, model.NotFound, *got[0].Error)
	assert.Nil(t, got[0].Summary)
	assert.Equal(t, model.VerdictUnset, got[0].Verdict)
}

func TestApplySummaries_NeverOverwrites(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ids, err := s.Append(ctx, []model.EnrichedRecord{sampleRecord("AAA", 1), sampleRecord("BBB", 2)})
	require.NoError(t, err)

	pending, err := s.PendingSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, []string{"nice"}, pending[0].Comments)

	applied, err := s.ApplySummaries(ctx, []model.AnnotationUpdate{
		{RowID: ids[0], Annotation: model.Annotation{Summary: "first", CommentSummary: "c", Verdict: model.VerdictBuy}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[0]}, applied)

	applied, err = s.ApplySummaries(ctx, []model.AnnotationUpdate{
		{RowID: ids[0], Annotation: model.Annotation{Summary: "second", Verdict: model.VerdictSell}},
	})
	require.NoError(t, err)
	assert.Empty(t, applied)

	got, err := s.Query(ctx, Filter{Ticker: "AAA"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "first", *got[0].Summary)
	assert.Equal(t, model.VerdictBuy, got[0].Verdict)

	pending, err = s.PendingSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ids[1], pending[0].RowID)
}

func TestQuery_FiltersAndOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	low := sampleRecord("LOW", 100)
	low.Score = 1
	high := sampleRecord("HIGH", 100)
	high.Score = 50
	_, err := s.Append(ctx, []model.EnrichedRecord{sampleRecord("OLD", 10), low, high})
	require.NoError(t, err)

	all, err := s.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "HIGH", all[0].RedditTicker)
	assert.Equal(t, "LOW", all[1].RedditTicker)
	assert.Equal(t, "OLD", all[2].RedditTicker)
	assert.Nil(t, all[0].Comments, "comments are omitted unless requested")

	recent, err := s.Query(ctx, Filter{Since: time.Unix(50, 0), IncludeComments: true})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, []string{"nice"}, recent[0].Comments)

	bySymbol, err := s.Query(ctx, Filter{Ticker: "old.to"})
	require.NoError(t, err)
	require.Len(t, bySymbol, 1)

	limited, err := s.Query(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPriceHistoryAndCountTickers(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	unpriced := sampleRecord("ZZZ", 300)
	unpriced.Info.CurrentPrice = nil
	_, err := s.Append(ctx, []model.EnrichedRecord{sampleRecord("AAA", 100), sampleRecord("AAA", 200), unpriced})
	require.NoError(t, err)

	points, err := s.PriceHistory(ctx)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "AAA", points[0].Ticker)
	assert.True(t, points[0].LastUpdated.Before(points[1].LastUpdated))

	total, err := s.CountTickers(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	recent, err := s.CountTickers(ctx, time.Unix(250, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), recent)
}

func TestApplySummaries_VerdictWithoutSummaryIsNotKept(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ids, err := s.Append(ctx, []model.EnrichedRecord{sampleRecord("AAA", 1)})
	require.NoError(t, err)

	applied, err := s.ApplySummaries(ctx, []model.AnnotationUpdate{
		{RowID: ids[0], Annotation: model.Annotation{Summary: "", Verdict: model.VerdictBuy}},
	})
	require.NoError(t, err)
	assert.Equal(t, ids, applied)

	got, err := s.Query(ctx, Filter{Ticker: "AAA"})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictUnset, got[0].Verdict)

	pending, err := s.PendingSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	applied, err = s.ApplySummaries(ctx, []model.AnnotationUpdate{
		{RowID: ids[0], Annotation: model.Annotation{Summary: "s", Verdict: model.VerdictSell}},
	})
	require.NoError(t, err)
	assert.Equal(t, ids, applied)

	got, err = s.Query(ctx, Filter{Ticker: "AAA"})
	require.NoError(t, err)
	assert.Equal(t, "s", *got[0].Summary)
	assert.Equal(t, model.VerdictSell, got[0].Verdict)
}

func TestApplySummaries_SetVerdictBlocksRewrite(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ids, err := s.Append(ctx, []model.EnrichedRecord{sampleRecord("AAA", 1)})
	require.NoError(t, err)
	// A row written before summaries were validated.
	_, err = s.db.Exec(`UPDATE training SET summarized_content = '', verdict = 'BUY' WHERE row_id = ?`, ids[0])
	require.NoError(t, err)

	applied, err := s.ApplySummaries(ctx, []model.AnnotationUpdate{
		{RowID: ids[0], Annotation: model.Annotation{Summary: "s", Verdict: model.VerdictSell}},
	})
	require.NoError(t, err)
	assert.Empty(t, applied)

	got, err := s.Query(ctx, Filter{Ticker: "AAA"})
	require.NoError(t, err)
	assert.Equal(t, model.VerdictBuy, got[0].Verdict)
}
