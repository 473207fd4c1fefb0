// Package reddit fetches recent subreddit posts and their top comments with
// app-only OAuth.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"PennyAI/internal/config"
	"PennyAI/internal/model"
)

const (
	tokenURL = "https://www.reddit.com/api/v1/access_token"
	apiBase  = "https://oauth.reddit.com"
)

// Client reads the Reddit API on behalf of the registered app.
type Client struct {
	http         *http.Client
	baseURL      string
	userAgent    string
	commentLimit int
	logger       arbor.ILogger
}

// New creates a client that obtains and refreshes its bearer token through the
// client-credentials grant.
func New(cfg config.RedditConfig, proxyURL string, logger arbor.ILogger) *Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	base := &http.Client{Timeout: 30 * time.Second, Transport: transport}
	return newClient(cfg, tokenURL, apiBase, base, logger)
}

func newClient(cfg config.RedditConfig, tokenURL, baseURL string, base *http.Client, logger arbor.ILogger) *Client {
	// Reddit rejects requests without a descriptive User-Agent, including
	// the token exchange.
	base.Transport = &userAgentTransport{agent: cfg.UserAgent, next: base.Transport}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := cc.Client(ctx)
	httpClient.Timeout = base.Timeout

	limit := cfg.CommentLimit
	if limit <= 0 {
		limit = 10
	}
	return &Client{
		http:         httpClient,
		baseURL:      baseURL,
		userAgent:    cfg.UserAgent,
		commentLimit: limit,
		logger:       logger,
	}
}

type userAgentTransport struct {
	agent string
	next  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	if t.agent == "" {
		return next.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.agent)
	return next.RoundTrip(r)
}

type listing struct {
	Data struct {
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type link struct {
	ID          string  `json:"id"`
	Subreddit   string  `json:"subreddit"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	URL         string  `json:"url"`
}

type comment struct {
	Body string `json:"body"`
}

// FetchPosts returns the newest posts of each subreddit, in subreddit order,
// with up to the configured number of top-level comments each. A failed
// comment lookup leaves that post without comments.
func (c *Client) FetchPosts(ctx context.Context, subreddits []string, limitPerSub int) ([]model.Post, error) {
	var posts []model.Post
	for _, sub := range subreddits {
		links, err := c.newPosts(ctx, sub, limitPerSub)
		if err != nil {
			return nil, fmt.Errorf("fetch r/%s: %w", sub, err)
		}
		for _, l := range links {
			comments, err := c.topComments(ctx, l.ID)
			if err != nil {
				c.logger.Warn().Err(err).Str("post", l.ID).Msg("comment fetch failed")
			}
			posts = append(posts, model.Post{
				Subreddit:   sub,
				ID:          l.ID,
				Title:       l.Title,
				Body:        l.Selftext,
				Author:      l.Author,
				Score:       l.Score,
				NumComments: l.NumComments,
				Comments:    comments,
				CreatedUTC:  int64(l.CreatedUTC),
				URL:         l.URL,
			})
		}
		c.logger.Info().Str("subreddit", sub).Int("posts", len(links)).Msg("subreddit fetched")
	}
	return posts, nil
}

func (c *Client) newPosts(ctx context.Context, sub string, limit int) ([]link, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	q.Set("raw_json", "1")
	var l listing
	if err := c.get(ctx, "/r/"+url.PathEscape(sub)+"/new?"+q.Encode(), &l); err != nil {
		return nil, err
	}
	out := make([]link, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		var p link
		if err := json.Unmarshal(child.Data, &p); err != nil {
			return nil, fmt.Errorf("decode post: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Client) topComments(ctx context.Context, postID string) ([]string, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(c.commentLimit))
	q.Set("depth", "1")
	q.Set("raw_json", "1")
	// The response is [post listing, comment listing].
	var pages []listing
	if err := c.get(ctx, "/comments/"+url.PathEscape(postID)+"?"+q.Encode(), &pages); err != nil {
		return nil, err
	}
	if len(pages) < 2 {
		return nil, nil
	}
	var out []string
	for _, child := range pages[1].Data.Children {
		if child.Kind != "t1" {
			continue
		}
		var cm comment
		if err := json.Unmarshal(child.Data, &cm); err != nil {
			return out, fmt.Errorf("decode comment: %w", err)
		}
		out = append(out, cm.Body)
		if len(out) == c.commentLimit {
			break
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reddit request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("reddit: status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("reddit decode: %w", err)
	}
	return nil
}
