package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"PennyAI/internal/calculator"
	"PennyAI/internal/model"
	"PennyAI/internal/store"
)

const (
	defaultLimit = 100
	topGainers   = 5
)

// queryFailed reports a store error in the body; the status stays 200 so
// dashboards render the message instead of failing the fetch.
func (s *Server) queryFailed(c *gin.Context, err error) {
	s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("query failed")
	c.JSON(http.StatusOK, gin.H{"error": err.Error()})
}

func (s *Server) getPennyStocks(c *gin.Context) {
	limit, ok := intParam(c, "limit", defaultLimit)
	if !ok {
		return
	}
	rows, err := s.store.Query(c.Request.Context(), store.Filter{Limit: limit})
	if err != nil {
		s.queryFailed(c, err)
		return
	}
	tickers := make([]string, len(rows))
	for i, r := range rows {
		tickers[i] = r.RedditTicker
	}
	c.JSON(http.StatusOK, gin.H{"totalStocks": len(rows), "tickers": tickers})
}

type trendPoint struct {
	LastUpdated  string   `json:"last_updated"`
	CurrentPrice *float64 `json:"current_price"`
}

func (s *Server) getSummary(c *gin.Context) {
	ctx := c.Request.Context()
	total, err := s.store.CountTickers(ctx, time.Time{})
	if err != nil {
		s.queryFailed(c, err)
		return
	}
	today, err := s.store.CountTickers(ctx, s.now().Add(-24*time.Hour))
	if err != nil {
		s.queryFailed(c, err)
		return
	}
	history, err := s.store.PriceHistory(ctx)
	if err != nil {
		s.queryFailed(c, err)
		return
	}

	// History is ordered by ticker then time, so the last point per ticker
	// is its latest quote.
	trends := make(map[string][]trendPoint)
	latest := make(map[string]store.PricePoint)
	var order []string
	for _, p := range history {
		if _, seen := trends[p.Ticker]; !seen {
			order = append(order, p.Ticker)
		}
		trends[p.Ticker] = append(trends[p.Ticker], trendPoint{
			LastUpdated:  p.LastUpdated.Format(time.RFC3339),
			CurrentPrice: calculator.Finite(p.CurrentPrice),
		})
		latest[p.Ticker] = p
	}
	gainers := make([]calculator.Gainer, 0, len(order))
	for _, t := range order {
		p := latest[t]
		gainers = append(gainers, calculator.Gainer{
			Ticker:       t,
			CurrentPrice: calculator.Finite(p.CurrentPrice),
			ChangePct:    calculator.PercentChange(p.CurrentPrice, p.PreviousClose),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"totalStocks":    total,
		"newStocksToday": today,
		"topGainers":     calculator.RankGainers(gainers, topGainers),
		"trends":         trends,
	})
}

type detailRow struct {
	RowID              int64    `json:"row_id"`
	RedditTicker       string   `json:"reddit_ticker"`
	YFinanceSymbol     *string  `json:"yfinance_symbol"`
	LongName           *string  `json:"long_name"`
	ShortName          *string  `json:"short_name"`
	Sector             *string  `json:"sector"`
	Industry           *string  `json:"industry"`
	MarketCap          *int64   `json:"market_cap"`
	Employees          *int64   `json:"employees"`
	Founded            *int64   `json:"founded"`
	Country            *string  `json:"country"`
	Currency           *string  `json:"currency"`
	CurrentPrice       *float64 `json:"current_price"`
	PreviousClose      *float64 `json:"previous_close"`
	Open               *float64 `json:"open"`
	DayHigh            *float64 `json:"day_high"`
	DayLow             *float64 `json:"day_low"`
	Volume             *int64   `json:"volume"`
	ChangePct          *float64 `json:"change_pct"`
	Website            *string  `json:"website"`
	About              *string  `json:"about"`
	Score              int      `json:"score"`
	NumComments        int      `json:"num_comments"`
	Content            string   `json:"content"`
	Comments           []string `json:"comments,omitempty"`
	CreatedUTC         string   `json:"created_utc"`
	Error              *string  `json:"error,omitempty"`
	LastUpdated        string   `json:"last_updated"`
	SummarizedContent  *string  `json:"summarized_content,omitempty"`
	SummarizedComments *string  `json:"summarized_comments,omitempty"`
	Verdict            string   `json:"verdict,omitempty"`
}

func toDetailRow(r model.EnrichedRecord) detailRow {
	in := r.Info
	return detailRow{
		RowID:              r.RowID,
		RedditTicker:       r.RedditTicker,
		YFinanceSymbol:     r.YFinanceSymbol,
		LongName:           in.LongName,
		ShortName:          in.ShortName,
		Sector:             in.Sector,
		Industry:           in.Industry,
		MarketCap:          in.MarketCap,
		Employees:          in.Employees,
		Founded:            in.Founded,
		Country:            in.Country,
		Currency:           in.Currency,
		CurrentPrice:       calculator.Finite(in.CurrentPrice),
		PreviousClose:      calculator.Finite(in.PreviousClose),
		Open:               calculator.Finite(in.Open),
		DayHigh:            calculator.Finite(in.DayHigh),
		DayLow:             calculator.Finite(in.DayLow),
		Volume:             in.Volume,
		ChangePct:          calculator.PercentChange(in.CurrentPrice, in.PreviousClose),
		Website:            in.Website,
		About:              in.About,
		Score:              r.Score,
		NumComments:        r.NumComments,
		Content:            r.Content,
		Comments:           r.Comments,
		CreatedUTC:         r.CreatedAt.Format(time.RFC3339),
		Error:              r.Error,
		LastUpdated:        r.LastUpdated.Format(time.RFC3339),
		SummarizedContent:  r.Summary,
		SummarizedComments: r.CommentSummary,
		Verdict:            string(r.Verdict),
	}
}

func (s *Server) getDetails(c *gin.Context) {
	limit, ok := intParam(c, "limit", defaultLimit)
	if !ok {
		return
	}
	includeComments, err := strconv.ParseBool(c.DefaultQuery("include_comments", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "include_comments must be a boolean"})
		return
	}
	f := store.Filter{
		Limit:           limit,
		Ticker:          c.Query("ticker"),
		IncludeComments: includeComments,
	}
	if v := c.Query("since"); v != "" {
		since, err := parseSince(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339 or YYYY-MM-DD"})
			return
		}
		f.Since = since
	}

	rows, err := s.store.Query(c.Request.Context(), f)
	if err != nil {
		s.queryFailed(c, err)
		return
	}
	data := make([]detailRow, len(rows))
	for i, r := range rows {
		data[i] = toDetailRow(r)
	}
	c.JSON(http.StatusOK, gin.H{"totalStocks": len(data), "data": data})
}

func intParam(c *gin.Context, name string, def int) (int, bool) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return n, true
}

func parseSince(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
