// Package stagefile reads and writes the parquet files that hand data from one
// pipeline stage to the next, so each stage can be rerun on its own.
package stagefile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"PennyAI/internal/model"
)

const (
	PostsFile    = "reddit_posts.parquet"
	MentionsFile = "processed_reddit_posts.parquet"
	ResolvedFile = "processed_yfinance_info.parquet"
	DatasetFile  = "llm_ready_dataset.parquet"
)

// Layout locates the stage files under one data directory.
type Layout struct {
	Dir string
}

func (l Layout) Posts() string    { return filepath.Join(l.Dir, PostsFile) }
func (l Layout) Mentions() string { return filepath.Join(l.Dir, MentionsFile) }
func (l Layout) Resolved() string { return filepath.Join(l.Dir, ResolvedFile) }
func (l Layout) Dataset() string  { return filepath.Join(l.Dir, DatasetFile) }

type postRow struct {
	Subreddit   string   `parquet:"subreddit"`
	ID          string   `parquet:"id"`
	Title       string   `parquet:"title"`
	Body        string   `parquet:"body"`
	Author      string   `parquet:"author"`
	Score       int64    `parquet:"score"`
	NumComments int64    `parquet:"num_comments"`
	Comments    []string `parquet:"comments,list"`
	CreatedUTC  int64    `parquet:"created_utc"`
	URL         string   `parquet:"url"`
}

type mentionRow struct {
	Ticker      string   `parquet:"ticker"`
	Score       int64    `parquet:"score"`
	NumComments int64    `parquet:"num_comments"`
	Content     string   `parquet:"content"`
	Comments    []string `parquet:"comments,list"`
	CreatedUTC  int64    `parquet:"created_utc"`
}

type quoteColumns struct {
	LongName      *string  `parquet:"long_name,optional"`
	ShortName     *string  `parquet:"short_name,optional"`
	Sector        *string  `parquet:"sector,optional"`
	Industry      *string  `parquet:"industry,optional"`
	MarketCap     *int64   `parquet:"market_cap,optional"`
	Employees     *int64   `parquet:"employees,optional"`
	Founded       *int64   `parquet:"founded,optional"`
	Country       *string  `parquet:"country,optional"`
	Currency      *string  `parquet:"currency,optional"`
	CurrentPrice  *float64 `parquet:"current_price,optional"`
	PreviousClose *float64 `parquet:"previous_close,optional"`
	Open          *float64 `parquet:"open,optional"`
	DayHigh       *float64 `parquet:"day_high,optional"`
	DayLow        *float64 `parquet:"day_low,optional"`
	Volume        *int64   `parquet:"volume,optional"`
	Website       *string  `parquet:"website,optional"`
	About         *string  `parquet:"about,optional"`
}

type resolvedRow struct {
	InputTicker   string       `parquet:"input_ticker"`
	MatchedSymbol *string      `parquet:"yfinance_symbol,optional"`
	HasInfo       bool         `parquet:"has_info"`
	Quote         quoteColumns `parquet:"quote"`
	Error         *string      `parquet:"error,optional"`
}

type recordRow struct {
	RedditTicker   string       `parquet:"reddit_ticker"`
	YFinanceSymbol *string      `parquet:"yfinance_symbol,optional"`
	Quote          quoteColumns `parquet:"quote"`
	Score          int64        `parquet:"score"`
	NumComments    int64        `parquet:"num_comments"`
	Content        string       `parquet:"content"`
	Comments       []string     `parquet:"comments,list"`
	ContentFull    string       `parquet:"content_full"`
	CreatedUTC     int64        `parquet:"created_utc"`
	Error          *string      `parquet:"error,optional"`
	LastUpdated    int64        `parquet:"last_updated"`
}

func write[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create stage dir: %w", err)
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func read[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return rows, nil
}

// WritePosts stores the raw fetched posts.
func WritePosts(path string, posts []model.Post) error {
	rows := make([]postRow, len(posts))
	for i, p := range posts {
		rows[i] = postRow{
			Subreddit:   p.Subreddit,
			ID:          p.ID,
			Title:       p.Title,
			Body:        p.Body,
			Author:      p.Author,
			Score:       int64(p.Score),
			NumComments: int64(p.NumComments),
			Comments:    p.Comments,
			CreatedUTC:  p.CreatedUTC,
			URL:         p.URL,
		}
	}
	return write(path, rows)
}

func ReadPosts(path string) ([]model.Post, error) {
	rows, err := read[postRow](path)
	if err != nil {
		return nil, err
	}
	posts := make([]model.Post, len(rows))
	for i, r := range rows {
		posts[i] = model.Post{
			Subreddit:   r.Subreddit,
			ID:          r.ID,
			Title:       r.Title,
			Body:        r.Body,
			Author:      r.Author,
			Score:       int(r.Score),
			NumComments: int(r.NumComments),
			Comments:    r.Comments,
			CreatedUTC:  r.CreatedUTC,
			URL:         r.URL,
		}
	}
	return posts, nil
}

// WriteMentions stores the exploded one-row-per-ticker mentions.
func WriteMentions(path string, mentions []model.Mention) error {
	rows := make([]mentionRow, len(mentions))
	for i, m := range mentions {
		rows[i] = mentionRow{
			Ticker:      m.Ticker,
			Score:       int64(m.Score),
			NumComments: int64(m.NumComments),
			Content:     m.Content,
			Comments:    m.Comments,
			CreatedUTC:  m.CreatedAt.Unix(),
		}
	}
	return write(path, rows)
}

func ReadMentions(path string) ([]model.Mention, error) {
	rows, err := read[mentionRow](path)
	if err != nil {
		return nil, err
	}
	mentions := make([]model.Mention, len(rows))
	for i, r := range rows {
		mentions[i] = model.Mention{
			Ticker:      r.Ticker,
			Score:       int(r.Score),
			NumComments: int(r.NumComments),
			Content:     r.Content,
			Comments:    r.Comments,
			CreatedAt:   time.Unix(r.CreatedUTC, 0).UTC(),
		}
	}
	return mentions, nil
}

// WriteResolved stores one row per distinct ticker with its lookup outcome.
func WriteResolved(path string, resolved []model.ResolvedSymbol) error {
	rows := make([]resolvedRow, len(resolved))
	for i, rs := range resolved {
		rows[i] = resolvedRow{
			InputTicker:   rs.InputTicker,
			MatchedSymbol: rs.MatchedSymbol,
			HasInfo:       rs.Info != nil,
			Error:         rs.Error,
		}
		if rs.Info != nil {
			rows[i].Quote = fromInfo(*rs.Info)
		}
	}
	return write(path, rows)
}

func ReadResolved(path string) ([]model.ResolvedSymbol, error) {
	rows, err := read[resolvedRow](path)
	if err != nil {
		return nil, err
	}
	resolved := make([]model.ResolvedSymbol, len(rows))
	for i, r := range rows {
		resolved[i] = model.ResolvedSymbol{
			InputTicker:   r.InputTicker,
			MatchedSymbol: r.MatchedSymbol,
			Error:         r.Error,
		}
		if r.HasInfo {
			info := r.Quote.toInfo()
			resolved[i].Info = &info
		}
	}
	return resolved, nil
}

// WriteRecords stores the joined dataset ready for upload.
func WriteRecords(path string, records []model.EnrichedRecord) error {
	rows := make([]recordRow, len(records))
	for i, r := range records {
		rows[i] = recordRow{
			RedditTicker:   r.RedditTicker,
			YFinanceSymbol: r.YFinanceSymbol,
			Quote:          fromInfo(r.Info),
			Score:          int64(r.Score),
			NumComments:    int64(r.NumComments),
			Content:        r.Content,
			Comments:       r.Comments,
			ContentFull:    r.ContentFull,
			CreatedUTC:     r.CreatedAt.Unix(),
			Error:          r.Error,
			LastUpdated:    r.LastUpdated.Unix(),
		}
	}
	return write(path, rows)
}

func ReadRecords(path string) ([]model.EnrichedRecord, error) {
	rows, err := read[recordRow](path)
	if err != nil {
		return nil, err
	}
	records := make([]model.EnrichedRecord, len(rows))
	for i, r := range rows {
		records[i] = model.EnrichedRecord{
			RedditTicker:   r.RedditTicker,
			YFinanceSymbol: r.YFinanceSymbol,
			Info:           r.Quote.toInfo(),
			Score:          int(r.Score),
			NumComments:    int(r.NumComments),
			Content:        r.Content,
			Comments:       r.Comments,
			ContentFull:    r.ContentFull,
			CreatedAt:      time.Unix(r.CreatedUTC, 0).UTC(),
			Error:          r.Error,
			LastUpdated:    time.Unix(r.LastUpdated, 0).UTC(),
		}
	}
	return records, nil
}

func fromInfo(in model.QuoteInfo) quoteColumns {
	return quoteColumns{
		LongName:      in.LongName,
		ShortName:     in.ShortName,
		Sector:        in.Sector,
		Industry:      in.Industry,
		MarketCap:     in.MarketCap,
		Employees:     in.Employees,
		Founded:       in.Founded,
		Country:       in.Country,
		Currency:      in.Currency,
		CurrentPrice:  in.CurrentPrice,
		PreviousClose: in.PreviousClose,
		Open:          in.Open,
		DayHigh:       in.DayHigh,
		DayLow:        in.DayLow,
		Volume:        in.Volume,
		Website:       in.Website,
		About:         in.About,
	}
}

func (q quoteColumns) toInfo() model.QuoteInfo {
	return model.QuoteInfo{
		LongName:      q.LongName,
		ShortName:     q.ShortName,
		Sector:        q.Sector,
		Industry:      q.Industry,
		MarketCap:     q.MarketCap,
		Employees:     q.Employees,
		Founded:       q.Founded,
		Country:       q.Country,
		Currency:      q.Currency,
		CurrentPrice:  q.CurrentPrice,
		PreviousClose: q.PreviousClose,
		Open:          q.Open,
		DayHigh:       q.DayHigh,
		DayLow:        q.DayLow,
		Volume:        q.Volume,
		Website:       q.Website,
		About:         q.About,
	}
}
