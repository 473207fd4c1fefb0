// Package extractor pulls cashtag tickers out of post text and explodes posts
// into one Mention per distinct ticker.
package extractor

import (
	"regexp"
	"sort"
	"strings"

	"PennyAI/internal/model"
)

const marker = "$"

var cashtag = regexp.MustCompile(`\$[A-Za-z]{1,5}`)

// ExtractTickers returns the distinct normalized tickers found in title and
// body, sorted. Either text may be empty.
func ExtractTickers(title, body string) []string {
	seen := make(map[string]struct{})
	for _, text := range []string{title, body} {
		if text == "" {
			continue
		}
		for _, m := range cashtag.FindAllString(text, -1) {
			seen[normalize(m)] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	tickers := make([]string, 0, len(seen))
	for t := range seen {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

func normalize(match string) string {
	return strings.ToUpper(strings.TrimPrefix(match, marker))
}

// Content joins title and body the way the summarizer expects to read a post.
func Content(title, body string) string {
	return title + "\n\n" + body
}

// Explode turns posts into mentions. A post naming N distinct tickers yields N
// mentions; a post naming none yields nothing.
func Explode(posts []model.Post) []model.Mention {
	var mentions []model.Mention
	for _, p := range posts {
		tickers := ExtractTickers(p.Title, p.Body)
		if len(tickers) == 0 {
			continue
		}
		content := Content(p.Title, p.Body)
		for _, t := range tickers {
			mentions = append(mentions, model.Mention{
				Ticker:      t,
				Score:       p.Score,
				NumComments: p.NumComments,
				Content:     content,
				Comments:    p.Comments,
				CreatedAt:   p.CreatedAt(),
			})
		}
	}
	return mentions
}

// DistinctTickers returns the unique tickers across mentions in first-seen order.
func DistinctTickers(mentions []model.Mention) []string {
	seen := make(map[string]struct{}, len(mentions))
	var out []string
	for _, m := range mentions {
		if _, ok := seen[m.Ticker]; ok {
			continue
		}
		seen[m.Ticker] = struct{}{}
		out = append(out, m.Ticker)
	}
	return out
}
