package main

import (
	"context"
	"fmt"

	"PennyAI/internal/backfill"
	"PennyAI/internal/collector"
	"PennyAI/internal/config"
	"PennyAI/internal/notifier"
	"PennyAI/internal/pipeline"
	"PennyAI/internal/publisher"
	"PennyAI/internal/reddit"
	"PennyAI/internal/store"
	"PennyAI/internal/summarizer"
)

// needs selects which collaborators a command builds, so a stage rerun only
// requires the credentials it actually uses.
type needs struct {
	posts    bool
	resolver bool
	store    bool
	backfill bool
}

var allStages = needs{posts: true, resolver: true, store: true, backfill: true}

// app holds the wired collaborators and whatever must be closed on exit.
type app struct {
	pipeline  *pipeline.Pipeline
	store     *store.SQLiteStore
	publisher publisher.Publisher
}

func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("close publisher")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("close store")
		}
	}
}

func newFetcher(c *config.Config) collector.Fetcher {
	if c.DataSource.BaseURL != "" {
		return collector.NewRESTFetcher(c.DataSource.BaseURL, c.DataSource.APIKey, c.Proxy)
	}
	return collector.NewYahooFetcher(c.Proxy, c.DataSource.MinInterval)
}

func newPublisher(c *config.Config) (publisher.Publisher, error) {
	if !c.KafkaEnabled() {
		return publisher.NewNoopPublisher(), nil
	}
	kp, err := publisher.NewKafkaPublisher(c.Kafka, log)
	if err != nil {
		return nil, err
	}
	return kp, nil
}

func newNotifier(c *config.Config) (notifier.Notifier, *notifier.TelegramNotifier) {
	if !c.TelegramEnabled() {
		return notifier.NoopNotifier{}, nil
	}
	tn := notifier.NewTelegramNotifier(c.Telegram.BotToken, c.Telegram.ChatID, c.Proxy, log)
	return tn, tn
}

func openStore(c *config.Config) (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(c.Database.SQLitePath, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func buildApp(ctx context.Context, c *config.Config, n needs) (*app, error) {
	a := &app{}
	var (
		posts    pipeline.PostSource
		resolver *collector.Resolver
		st       pipeline.Store
		bf       *backfill.Backfiller
	)

	if n.posts {
		if err := c.ValidateFetch(); err != nil {
			return nil, err
		}
		posts = reddit.New(c.Reddit, c.Proxy, log)
	}
	if n.resolver {
		fetcher := newFetcher(c)
		suffixes := c.DataSource.Suffixes
		if len(suffixes) == 0 {
			suffixes = collector.DefaultSuffixes
		}
		log.Info().Str("source", fetcher.Name()).Strs("suffixes", suffixes).Msg("market data source ready")
		resolver = collector.NewResolver(fetcher, suffixes, log)
	}
	if n.store || n.backfill {
		s, err := openStore(c)
		if err != nil {
			return nil, err
		}
		a.store = s
		st = s
	}
	if n.backfill {
		if err := c.ValidateSummarizer(); err != nil {
			a.Close()
			return nil, err
		}
		sum, err := summarizer.New(ctx, c.Summarizer, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init summarizer: %w", err)
		}
		pub, err := newPublisher(c)
		if err != nil {
			log.Warn().Err(err).Msg("kafka unavailable, verdict events disabled")
			pub = publisher.NewNoopPublisher()
		}
		a.publisher = pub
		bf = backfill.New(a.store, sum, pub, log)
	}

	a.pipeline = pipeline.New(posts, resolver, st, bf, pipeline.Options{
		Subreddits:  c.Reddit.Subreddits,
		LimitPerSub: c.Reddit.LimitPerSub,
		DataDir:     c.Pipeline.DataDir,
	}, log)
	return a, nil
}
