// Package pipeline runs the collection stages in order, handing data between
// them through stage files so any stage can be rerun on its own.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"PennyAI/internal/backfill"
	"PennyAI/internal/collector"
	"PennyAI/internal/extractor"
	"PennyAI/internal/logger"
	"PennyAI/internal/merge"
	"PennyAI/internal/model"
	"PennyAI/internal/stagefile"
	"PennyAI/internal/store"
)

// PostSource delivers raw posts.
type PostSource interface {
	FetchPosts(ctx context.Context, subreddits []string, limitPerSub int) ([]model.Post, error)
}

// Store is the record store as seen by the upload stage.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Append(ctx context.Context, records []model.EnrichedRecord) ([]int64, error)
	Count(ctx context.Context) (int64, error)
}

// Options tunes what is fetched and where stage files live.
type Options struct {
	Subreddits  []string
	LimitPerSub int
	DataDir     string
}

// Pipeline wires the stages to their collaborators. Any collaborator a
// stage does not use may be nil.
type Pipeline struct {
	posts    PostSource
	resolver *collector.Resolver
	store    Store
	backfill *backfill.Backfiller
	opts     Options
	layout   stagefile.Layout
	logger   arbor.ILogger
	now      func() time.Time
}

func New(posts PostSource, resolver *collector.Resolver, store Store, bf *backfill.Backfiller, opts Options, logger arbor.ILogger) *Pipeline {
	return &Pipeline{
		posts:    posts,
		resolver: resolver,
		store:    store,
		backfill: bf,
		opts:     opts,
		layout:   stagefile.Layout{Dir: opts.DataDir},
		logger:   logger,
		now:      time.Now,
	}
}

// Result summarizes one full run.
type Result struct {
	RunID      string
	Started    time.Time
	Finished   time.Time
	Posts      int
	Mentions   int
	Tickers    int
	Unresolved int
	Records    int
	Appended   int
	TotalRows  int64
	Backfill   backfill.Result
	Stage      string // stage that failed, empty on success
	Err        error
}

// Fetch pulls posts from every configured subreddit and stages them.
func (p *Pipeline) Fetch(ctx context.Context) (int, error) {
	if p.posts == nil {
		return 0, fmt.Errorf("fetch: no post source configured")
	}
	posts, err := p.posts.FetchPosts(ctx, p.opts.Subreddits, p.opts.LimitPerSub)
	if err != nil {
		return 0, fmt.Errorf("fetch posts: %w", err)
	}
	if err := stagefile.WritePosts(p.layout.Posts(), posts); err != nil {
		return 0, err
	}
	p.logger.Info().Int("posts", len(posts)).Int("subreddits", len(p.opts.Subreddits)).Msg("posts fetched")
	return len(posts), nil
}

// Preprocess extracts tickers and stages one mention per post and ticker.
func (p *Pipeline) Preprocess(_ context.Context) (int, error) {
	posts, err := stagefile.ReadPosts(p.layout.Posts())
	if err != nil {
		return 0, err
	}
	mentions := extractor.Explode(posts)
	if err := stagefile.WriteMentions(p.layout.Mentions(), mentions); err != nil {
		return 0, err
	}
	p.logger.Info().Int("posts", len(posts)).Int("mentions", len(mentions)).Msg("tickers extracted")
	return len(mentions), nil
}

// Resolve looks up every distinct ticker once and stages the outcomes. It
// returns the number of tickers and how many were not found.
func (p *Pipeline) Resolve(ctx context.Context) (int, int, error) {
	if p.resolver == nil {
		return 0, 0, fmt.Errorf("resolve: no resolver configured")
	}
	mentions, err := stagefile.ReadMentions(p.layout.Mentions())
	if err != nil {
		return 0, 0, err
	}
	resolved := p.resolver.ResolveAll(ctx, extractor.DistinctTickers(mentions))
	if err := ctx.Err(); err != nil {
		return 0, 0, fmt.Errorf("resolve interrupted: %w", err)
	}
	if err := stagefile.WriteResolved(p.layout.Resolved(), resolved); err != nil {
		return 0, 0, err
	}
	var missed int
	for _, rs := range resolved {
		if rs.Error != nil {
			missed++
		}
	}
	return len(resolved), missed, nil
}

// Merge joins staged mentions with staged resolutions.
func (p *Pipeline) Merge(_ context.Context) (int, error) {
	mentions, err := stagefile.ReadMentions(p.layout.Mentions())
	if err != nil {
		return 0, err
	}
	resolved, err := stagefile.ReadResolved(p.layout.Resolved())
	if err != nil {
		return 0, err
	}
	records := merge.Join(mentions, resolved, p.now().UTC())
	if err := stagefile.WriteRecords(p.layout.Dataset(), records); err != nil {
		return 0, err
	}
	p.logger.Info().Int("records", len(records)).Msg("datasets merged")
	return len(records), nil
}

// Upload appends the staged dataset to the store and checks that the row
// count grew by exactly the number of records. It returns the appended count
// and the new total.
func (p *Pipeline) Upload(ctx context.Context) (int, int64, error) {
	if p.store == nil {
		return 0, 0, fmt.Errorf("upload: no store configured")
	}
	records, err := stagefile.ReadRecords(p.layout.Dataset())
	if err != nil {
		return 0, 0, err
	}
	if err := p.store.EnsureSchema(ctx); err != nil {
		return 0, 0, fmt.Errorf("ensure schema: %w", err)
	}
	before, err := p.store.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	ids, err := p.store.Append(ctx, records)
	if err != nil {
		return 0, 0, fmt.Errorf("append records: %w", err)
	}
	after, err := p.store.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	if after != before+int64(len(records)) {
		return len(ids), after, fmt.Errorf("upload: row count %d after appending %d to %d", after, len(records), before)
	}

	var first, last int64
	if len(ids) > 0 {
		first, last = ids[0], ids[len(ids)-1]
	}
	p.logger.Info().
		Int("appended", len(ids)).
		Int64("total", after).
		Int64("first_row_id", first).
		Int64("last_row_id", last).
		Msg("records uploaded")
	return len(ids), after, nil
}

// Backfill annotates rows still missing a summary.
func (p *Pipeline) Backfill(ctx context.Context) (backfill.Result, error) {
	if p.backfill == nil {
		return backfill.Result{}, fmt.Errorf("backfill: no summarizer configured")
	}
	return p.backfill.Run(ctx)
}

// forRun returns a copy of the pipeline whose collaborators log to l.
func (p *Pipeline) forRun(l arbor.ILogger) *Pipeline {
	run := *p
	run.logger = l
	if p.resolver != nil {
		run.resolver = p.resolver.WithLogger(l)
	}
	if sl, ok := p.store.(interface {
		WithLogger(arbor.ILogger) *store.SQLiteStore
	}); ok {
		run.store = sl.WithLogger(l)
	}
	if p.backfill != nil {
		run.backfill = p.backfill.WithLogger(l)
	}
	return &run
}

// RunAll executes every stage in order under a fresh run id and stops at the
// first failing stage. The returned Result is always non-nil.
func (p *Pipeline) RunAll(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	run := p.forRun(logger.ForRun(p.logger, runID))

	res := &Result{RunID: runID, Started: p.now().UTC()}
	run.logger.Info().Str("run_id", runID).Msg("pipeline started")

	fail := func(stage string, err error) (*Result, error) {
		res.Stage = stage
		res.Err = err
		res.Finished = p.now().UTC()
		run.logger.Error().Err(err).Str("stage", stage).Msg("pipeline failed")
		return res, fmt.Errorf("%s: %w", stage, err)
	}

	var err error
	if res.Posts, err = run.Fetch(ctx); err != nil {
		return fail("fetch", err)
	}
	if res.Mentions, err = run.Preprocess(ctx); err != nil {
		return fail("preprocess", err)
	}
	if res.Tickers, res.Unresolved, err = run.Resolve(ctx); err != nil {
		return fail("resolve", err)
	}
	if res.Records, err = run.Merge(ctx); err != nil {
		return fail("merge", err)
	}
	if res.Appended, res.TotalRows, err = run.Upload(ctx); err != nil {
		return fail("upload", err)
	}
	if res.Backfill, err = run.Backfill(ctx); err != nil {
		return fail("backfill", err)
	}

	res.Finished = p.now().UTC()
	run.logger.Info().
		Int("posts", res.Posts).
		Int("mentions", res.Mentions).
		Int("tickers", res.Tickers).
		Int("appended", res.Appended).
		Int("summarized", res.Backfill.Succeeded).
		Dur("elapsed", res.Finished.Sub(res.Started)).
		Msg("pipeline completed")
	return res, nil
}
