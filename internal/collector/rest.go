package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"PennyAI/internal/model"
)

// RESTFetcher implements Fetcher against a self-hosted market-data REST API.
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string) *RESTFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &RESTFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restInfo is the expected JSON shape from the info endpoint.
type restInfo struct {
	LongName      *string  `json:"long_name"`
	ShortName     *string  `json:"short_name"`
	Sector        *string  `json:"sector"`
	Industry      *string  `json:"industry"`
	MarketCap     *int64   `json:"market_cap"`
	Employees     *int64   `json:"employees"`
	Founded       *int64   `json:"founded"`
	Country       *string  `json:"country"`
	Currency      *string  `json:"currency"`
	CurrentPrice  *float64 `json:"current_price"`
	PreviousClose *float64 `json:"previous_close"`
	Open          *float64 `json:"open"`
	DayHigh       *float64 `json:"day_high"`
	DayLow        *float64 `json:"day_low"`
	Volume        *int64   `json:"volume"`
	Website       *string  `json:"website"`
	About         *string  `json:"about"`
}

func (f *RESTFetcher) FetchInfo(ctx context.Context, symbol string) (*model.QuoteInfo, error) {
	endpoint := fmt.Sprintf("%s/api/v1/info?symbol=%s", f.BaseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("fetch info %s: %w", symbol, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch info: status %d, body: %s", resp.StatusCode, string(body))
	}
	var ri restInfo
	if err := json.NewDecoder(resp.Body).Decode(&ri); err != nil {
		return nil, fmt.Errorf("decode info: %w", err)
	}
	return &model.QuoteInfo{
		LongName:      nonEmpty(ri.LongName),
		ShortName:     nonEmpty(ri.ShortName),
		Sector:        nonEmpty(ri.Sector),
		Industry:      nonEmpty(ri.Industry),
		MarketCap:     ri.MarketCap,
		Employees:     ri.Employees,
		Founded:       ri.Founded,
		Country:       nonEmpty(ri.Country),
		Currency:      nonEmpty(ri.Currency),
		CurrentPrice:  ri.CurrentPrice,
		PreviousClose: ri.PreviousClose,
		Open:          ri.Open,
		DayHigh:       ri.DayHigh,
		DayLow:        ri.DayLow,
		Volume:        ri.Volume,
		Website:       nonEmpty(ri.Website),
		About:         nonEmpty(ri.About),
	}, nil
}
