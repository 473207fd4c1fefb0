package model

import (
	"strings"
	"time"
)

// Verdict is the trading stance produced by the summarizer.
type Verdict string

const (
	VerdictBuy   Verdict = "BUY"
	VerdictSell  Verdict = "SELL"
	VerdictHold  Verdict = "HOLD"
	VerdictUnset Verdict = ""
)

// ParseVerdict normalizes free-form model output. Unknown values map to VerdictUnset.
func ParseVerdict(s string) Verdict {
	switch v := Verdict(strings.ToUpper(strings.TrimSpace(s))); v {
	case VerdictBuy, VerdictSell, VerdictHold:
		return v
	default:
		return VerdictUnset
	}
}

// EnrichedRecord is a Mention joined with its ResolvedSymbol. It is the unit
// of persistence; RowID is zero until the store assigns one.
type EnrichedRecord struct {
	RowID          int64
	RedditTicker   string
	YFinanceSymbol *string
	Info           QuoteInfo
	Score          int
	NumComments    int
	Content        string
	Comments       []string
	ContentFull    string
	CreatedAt      time.Time
	Error          *string
	LastUpdated    time.Time
	Summary        *string
	CommentSummary *string
	Verdict        Verdict
}

// Annotation is the structured result of the summarization collaborator.
type Annotation struct {
	Summary        string
	CommentSummary string
	Verdict        Verdict
}

// PendingRow is a stored row still waiting for its annotation.
type PendingRow struct {
	RowID    int64
	Ticker   string
	Symbol   *string
	Content  string
	Comments []string
}

// AnnotationUpdate is a staged backfill write.
type AnnotationUpdate struct {
	RowID      int64
	Ticker     string
	Symbol     *string
	Annotation Annotation
}
