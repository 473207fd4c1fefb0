package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"PennyAI/internal/model"
)

const (
	yahooQuoteBase  = "https://query2.finance.yahoo.com"
	yahooCookieURL  = "https://fc.yahoo.com"
	yahooModules    = "price,summaryProfile,summaryDetail"
	yahooUserAgent  = "Mozilla/5.0"
	defaultInterval = 500 * time.Millisecond
)

// YahooFetcher implements Fetcher using the Yahoo Finance quoteSummary API.
type YahooFetcher struct {
	Client    *http.Client
	BaseURL   string
	CookieURL string

	limiter *rate.Limiter
	mu      sync.Mutex
	crumb   string
}

// NewYahooFetcher creates a new Yahoo Finance fetcher. Requests are spaced at
// least minInterval apart; zero selects a conservative default.
func NewYahooFetcher(proxyURL string, minInterval time.Duration) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	jar, _ := cookiejar.New(nil)
	if minInterval <= 0 {
		minInterval = defaultInterval
	}
	return &YahooFetcher{
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
			Jar:       jar,
		},
		BaseURL:   yahooQuoteBase,
		CookieURL: yahooCookieURL,
		limiter:   rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// rawValue is Yahoo's {"raw": 1.23, "fmt": "1.23"} number wrapper.
type rawValue struct {
	Raw *float64 `json:"raw"`
}

// yahooSummary is the response structure from the quoteSummary API.
type yahooSummary struct {
	QuoteSummary struct {
		Result []struct {
			Price *struct {
				LongName                   *string  `json:"longName"`
				ShortName                  *string  `json:"shortName"`
				Currency                   *string  `json:"currency"`
				RegularMarketPrice         rawValue `json:"regularMarketPrice"`
				RegularMarketPreviousClose rawValue `json:"regularMarketPreviousClose"`
				RegularMarketOpen          rawValue `json:"regularMarketOpen"`
				RegularMarketDayHigh       rawValue `json:"regularMarketDayHigh"`
				RegularMarketDayLow        rawValue `json:"regularMarketDayLow"`
				RegularMarketVolume        rawValue `json:"regularMarketVolume"`
				MarketCap                  rawValue `json:"marketCap"`
			} `json:"price"`
			SummaryProfile *struct {
				Sector              *string `json:"sector"`
				Industry            *string `json:"industry"`
				Country             *string `json:"country"`
				Website             *string `json:"website"`
				FullTimeEmployees   *int64  `json:"fullTimeEmployees"`
				LongBusinessSummary *string `json:"longBusinessSummary"`
			} `json:"summaryProfile"`
			SummaryDetail *struct {
				PreviousClose rawValue `json:"previousClose"`
				Open          rawValue `json:"open"`
				DayHigh       rawValue `json:"dayHigh"`
				DayLow        rawValue `json:"dayLow"`
				Volume        rawValue `json:"volume"`
				MarketCap     rawValue `json:"marketCap"`
			} `json:"summaryDetail"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

func (f *YahooFetcher) FetchInfo(ctx context.Context, symbol string) (*model.QuoteInfo, error) {
	crumb, err := f.ensureCrumb(ctx)
	if err != nil {
		return nil, err
	}
	info, status, err := f.fetchSummary(ctx, symbol, crumb)
	if status == http.StatusUnauthorized {
		// Crumbs expire with the session cookie; refresh once.
		f.resetCrumb()
		if crumb, err = f.ensureCrumb(ctx); err != nil {
			return nil, err
		}
		info, _, err = f.fetchSummary(ctx, symbol, crumb)
	}
	return info, err
}

func (f *YahooFetcher) fetchSummary(ctx context.Context, symbol, crumb string) (*model.QuoteInfo, int, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}
	}

	q := url.Values{}
	q.Set("modules", yahooModules)
	if crumb != "" {
		q.Set("crumb", crumb)
	}
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?%s", f.BaseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("yahoo read body: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, resp.StatusCode, fmt.Errorf("yahoo %s: %w", symbol, ErrNotFound)
	default:
		return nil, resp.StatusCode, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var summary yahooSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("yahoo decode: %w", err)
	}
	if summary.QuoteSummary.Error != nil {
		return nil, resp.StatusCode, fmt.Errorf("yahoo api error: %s: %w", summary.QuoteSummary.Error.Description, ErrNotFound)
	}
	if len(summary.QuoteSummary.Result) == 0 {
		return nil, resp.StatusCode, fmt.Errorf("yahoo %s: %w", symbol, ErrNotFound)
	}
	return summary.toQuoteInfo(), resp.StatusCode, nil
}

func (s *yahooSummary) toQuoteInfo() *model.QuoteInfo {
	r := s.QuoteSummary.Result[0]
	info := &model.QuoteInfo{}
	if p := r.Price; p != nil {
		info.LongName = nonEmpty(p.LongName)
		info.ShortName = nonEmpty(p.ShortName)
		info.Currency = nonEmpty(p.Currency)
		info.CurrentPrice = p.RegularMarketPrice.Raw
		info.PreviousClose = p.RegularMarketPreviousClose.Raw
		info.Open = p.RegularMarketOpen.Raw
		info.DayHigh = p.RegularMarketDayHigh.Raw
		info.DayLow = p.RegularMarketDayLow.Raw
		info.Volume = p.RegularMarketVolume.asInt64()
		info.MarketCap = p.MarketCap.asInt64()
	}
	if sp := r.SummaryProfile; sp != nil {
		info.Sector = nonEmpty(sp.Sector)
		info.Industry = nonEmpty(sp.Industry)
		info.Country = nonEmpty(sp.Country)
		info.Website = nonEmpty(sp.Website)
		info.Employees = sp.FullTimeEmployees
		info.About = nonEmpty(sp.LongBusinessSummary)
	}
	// summaryDetail fills whatever the price module left out.
	if sd := r.SummaryDetail; sd != nil {
		info.PreviousClose = firstFloat(info.PreviousClose, sd.PreviousClose.Raw)
		info.Open = firstFloat(info.Open, sd.Open.Raw)
		info.DayHigh = firstFloat(info.DayHigh, sd.DayHigh.Raw)
		info.DayLow = firstFloat(info.DayLow, sd.DayLow.Raw)
		if info.Volume == nil {
			info.Volume = sd.Volume.asInt64()
		}
		if info.MarketCap == nil {
			info.MarketCap = sd.MarketCap.asInt64()
		}
	}
	return info
}

func (v rawValue) asInt64() *int64 {
	if v.Raw == nil {
		return nil
	}
	n := int64(*v.Raw)
	return &n
}

func firstFloat(a, b *float64) *float64 {
	if a != nil {
		return a
	}
	return b
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func (f *YahooFetcher) ensureCrumb(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.crumb != "" {
		return f.crumb, nil
	}

	// The cookie endpoint answers 404 but still sets the session cookie.
	if f.CookieURL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.CookieURL, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", yahooUserAgent)
		resp, err := f.Client.Do(req)
		if err != nil {
			return "", fmt.Errorf("yahoo cookie: %w", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+"/v1/test/getcrumb", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("yahoo crumb: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("yahoo crumb read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("yahoo crumb: status %d", resp.StatusCode)
	}
	f.crumb = strings.TrimSpace(string(body))
	return f.crumb, nil
}

func (f *YahooFetcher) resetCrumb() {
	f.mu.Lock()
	f.crumb = ""
	f.mu.Unlock()
}
