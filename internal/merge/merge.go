// Package merge joins extracted mentions with resolved market data.
package merge

import (
	"sort"
	"strings"
	"time"

	"PennyAI/internal/model"
)

// Join performs a left outer join of mentions against resolved symbols keyed
// on the normalized ticker. Every mention yields exactly one record; mentions
// without a resolution carry the NotFound error and no attributes. The result
// is ordered by creation time, then score, both descending.
func Join(mentions []model.Mention, resolved []model.ResolvedSymbol, now time.Time) []model.EnrichedRecord {
	byTicker := make(map[string]model.ResolvedSymbol, len(resolved))
	for _, rs := range resolved {
		key := normalize(rs.InputTicker)
		if _, dup := byTicker[key]; dup {
			continue
		}
		byTicker[key] = rs
	}

	records := make([]model.EnrichedRecord, 0, len(mentions))
	for _, m := range mentions {
		ticker := normalize(m.Ticker)
		rec := model.EnrichedRecord{
			RedditTicker: ticker,
			Score:        m.Score,
			NumComments:  m.NumComments,
			Content:      m.Content,
			Comments:     m.Comments,
			ContentFull:  ContentFull(m.Content, m.Comments),
			CreatedAt:    m.CreatedAt,
			LastUpdated:  now,
		}
		rs, ok := byTicker[ticker]
		switch {
		case !ok:
			rec.Error = model.Ptr(model.NotFound)
		case rs.Error != nil:
			rec.Error = rs.Error
		default:
			rec.YFinanceSymbol = rs.MatchedSymbol
			if rs.Info != nil {
				rec.Info = *rs.Info
			}
		}
		records = append(records, rec)
	}

	Sort(records)
	return records
}

// Sort orders records newest first, breaking ties by higher score.
func Sort(records []model.EnrichedRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Score > b.Score
	})
}

// ContentFull concatenates post content and flattened comments.
func ContentFull(content string, comments []string) string {
	return strings.TrimSpace(content + " " + strings.Join(comments, " "))
}

func normalize(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
