// Package publisher announces backfilled verdicts to downstream consumers.
package publisher

import (
	"context"
	"time"

	"PennyAI/internal/model"
)

const (
	EventTypeVerdict = "pennyai.verdict"
	EventSource      = "pennyai"
	SchemaVersion    = "1"
)

// VerdictEvent is the envelope published for every row that received a verdict.
type VerdictEvent struct {
	EventType     string      `json:"event_type"`
	Source        string      `json:"source"`
	SchemaVersion string      `json:"schema_version"`
	Timestamp     time.Time   `json:"timestamp"`
	Data          VerdictData `json:"data"`
}

type VerdictData struct {
	RowID          int64   `json:"row_id"`
	Ticker         string  `json:"ticker"`
	Symbol         *string `json:"symbol"`
	Verdict        string  `json:"verdict"`
	Summary        string  `json:"summary"`
	CommentSummary string  `json:"comment_summary,omitempty"`
}

// NewVerdictEvent builds the event for one applied annotation.
func NewVerdictEvent(u model.AnnotationUpdate, now time.Time) VerdictEvent {
	return VerdictEvent{
		EventType:     EventTypeVerdict,
		Source:        EventSource,
		SchemaVersion: SchemaVersion,
		Timestamp:     now.UTC(),
		Data: VerdictData{
			RowID:          u.RowID,
			Ticker:         u.Ticker,
			Symbol:         u.Symbol,
			Verdict:        string(u.Annotation.Verdict),
			Summary:        u.Annotation.Summary,
			CommentSummary: u.Annotation.CommentSummary,
		},
	}
}

// Publisher delivers verdict events. Updates without a verdict are skipped.
type Publisher interface {
	PublishVerdicts(ctx context.Context, updates []model.AnnotationUpdate) (int, error)
	Close() error
}
