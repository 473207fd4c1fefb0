package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"PennyAI/internal/pipeline"
)

// FormatRunReport formats a pipeline run into a Telegram message.
func FormatRunReport(res *pipeline.Result) string {
	var b strings.Builder

	status := "✅ completed"
	if res.Err != nil {
		status = "❌ failed at " + res.Stage
	}
	b.WriteString(fmt.Sprintf("📊 <b>PennyAI run</b> | %s\n", res.Started.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Status: %s\n\n", status))

	b.WriteString(fmt.Sprintf("Posts fetched: %d\n", res.Posts))
	b.WriteString(fmt.Sprintf("Ticker mentions: %d\n", res.Mentions))
	b.WriteString(fmt.Sprintf("Tickers resolved: %d/%d\n", res.Tickers-res.Unresolved, res.Tickers))
	b.WriteString(fmt.Sprintf("Rows appended: %d (total %d)\n", res.Appended, res.TotalRows))
	if bf := res.Backfill; bf.Pending > 0 {
		b.WriteString(fmt.Sprintf("Summaries: %d ok, %d failed of %d pending\n", bf.Succeeded, bf.Failed, bf.Pending))
	}
	if !res.Finished.IsZero() {
		b.WriteString(fmt.Sprintf("Elapsed: %s\n", res.Finished.Sub(res.Started).Round(time.Second)))
	}
	if res.Err != nil {
		b.WriteString(fmt.Sprintf("\n⚠️ %s\n", html.EscapeString(res.Err.Error())))
	}
	b.WriteString(fmt.Sprintf("\n<code>%s</code>", res.RunID))
	return b.String()
}

// StoreStatus is the snapshot shown by the /status command.
type StoreStatus struct {
	TotalRows    int64
	Pending      int
	TickersToday int64
	LastRun      *pipeline.Result
	Running      bool
}

// FormatStatus formats the store snapshot for display.
func FormatStatus(s StoreStatus) string {
	var b strings.Builder
	b.WriteString("💼 <b>PennyAI status</b>\n\n")
	b.WriteString(fmt.Sprintf("Stored rows: %d\n", s.TotalRows))
	b.WriteString(fmt.Sprintf("Awaiting summary: %d\n", s.Pending))
	b.WriteString(fmt.Sprintf("Tickers in last 24h: %d\n", s.TickersToday))
	switch {
	case s.Running:
		b.WriteString("Pipeline: running\n")
	case s.LastRun != nil:
		state := "ok"
		if s.LastRun.Err != nil {
			state = "failed at " + s.LastRun.Stage
		}
		b.WriteString(fmt.Sprintf("Last run: %s (%s)\n", s.LastRun.Started.Format("2006-01-02 15:04"), state))
	default:
		b.WriteString("Last run: none\n")
	}
	return b.String()
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return "Available commands:\n• /run start a pipeline run\n• /status show store status"
}
