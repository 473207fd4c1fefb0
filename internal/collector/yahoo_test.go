package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const abcSummary = `{"quoteSummary":{"result":[{
	"price":{"longName":"ABC Mining Corp","shortName":"ABC MINING","currency":"CAD",
		"regularMarketPrice":{"raw":0.42,"fmt":"0.42"},
		"regularMarketPreviousClose":{"raw":0.40,"fmt":"0.40"},
		"regularMarketOpen":{},
		"regularMarketVolume":{"raw":125000,"fmt":"125k"},
		"marketCap":{"raw":21000000,"fmt":"21M"}},
	"summaryProfile":{"sector":"Basic Materials","industry":"Gold","country":"Canada",
		"fullTimeEmployees":12,"longBusinessSummary":"Explores for gold."},
	"summaryDetail":{"open":{"raw":0.41},"dayHigh":{"raw":0.44},"dayLow":{"raw":0.39}}
}],"error":null}}`

func newYahooTestServer(t *testing.T, crumbCalls *int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/test/getcrumb", func(w http.ResponseWriter, r *http.Request) {
		*crumbCalls++
		fmt.Fprint(w, "crumb-1")
	})
	mux.HandleFunc("/v10/finance/quoteSummary/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("crumb") != "crumb-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		symbol := strings.TrimPrefix(r.URL.Path, "/v10/finance/quoteSummary/")
		if symbol != "ABC.TO" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"quoteSummary":{"result":null,"error":{"code":"Not Found","description":"Quote not found"}}}`)
			return
		}
		fmt.Fprint(w, abcSummary)
	})
	return httptest.NewServer(mux)
}

func newTestYahoo(url string) *YahooFetcher {
	f := NewYahooFetcher("", time.Millisecond)
	f.BaseURL = url
	f.CookieURL = ""
	return f
}

func TestYahooFetcher_FetchInfo(t *testing.T) {
	var crumbCalls int
	srv := newYahooTestServer(t, &crumbCalls)
	defer srv.Close()

	f := newTestYahoo(srv.URL)
	info, err := f.FetchInfo(context.Background(), "ABC.TO")
	require.NoError(t, err)

	assert.True(t, info.HasName())
	assert.Equal(t, "ABC Mining Corp", *info.LongName)
	assert.Equal(t, "Basic Materials", *info.Sector)
	assert.Equal(t, int64(12), *info.Employees)
	assert.InDelta(t, 0.42, *info.CurrentPrice, 1e-9)
	assert.InDelta(t, 0.41, *info.Open, 1e-9, "open falls back to summaryDetail")
	assert.Equal(t, int64(125000), *info.Volume)
	assert.Equal(t, int64(21000000), *info.MarketCap)
	assert.Nil(t, info.Founded)
}

func TestYahooFetcher_NotFound(t *testing.T) {
	var crumbCalls int
	srv := newYahooTestServer(t, &crumbCalls)
	defer srv.Close()

	f := newTestYahoo(srv.URL)
	_, err := f.FetchInfo(context.Background(), "ABC")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestYahooFetcher_ReusesCrumb(t *testing.T) {
	var crumbCalls int
	srv := newYahooTestServer(t, &crumbCalls)
	defer srv.Close()

	f := newTestYahoo(srv.URL)
	for _, s := range []string{"ABC", "ABC.CN", "ABC.TO"} {
		_, _ = f.FetchInfo(context.Background(), s)
	}
	assert.Equal(t, 1, crumbCalls)
}

func TestYahooFetcher_ServerErrorIsNotNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/test/getcrumb" {
			fmt.Fprint(w, "c")
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := newTestYahoo(srv.URL)
	_, err := f.FetchInfo(context.Background(), "ABC")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "status 429")
}
