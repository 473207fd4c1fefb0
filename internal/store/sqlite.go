package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	_ "modernc.org/sqlite"

	"PennyAI/internal/model"
)

// SQLiteStore persists enriched records to a SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	mu     *sync.Mutex
	logger arbor.ILogger
	path   string
}

// NewSQLiteStore opens (or creates) the SQLite database. Call EnsureSchema
// before writing.
func NewSQLiteStore(dbPath string, logger arbor.ILogger) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the query service read while a pipeline run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("sqlite store opened")
	return &SQLiteStore{db: db, mu: &sync.Mutex{}, logger: logger, path: dbPath}, nil
}

// EnsureSchema creates the table and indexes if absent and adds any missing
// annotation column. It never drops or renames columns and is safe to call on
// every run.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// AUTOINCREMENT keeps the high-water mark in sqlite_sequence, so row ids
	// are never reused across runs.
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + TableName + ` (
			row_id          INTEGER PRIMARY KEY AUTOINCREMENT,
			reddit_ticker   TEXT,
			yfinance_symbol TEXT,
			long_name       TEXT,
			short_name      TEXT,
			sector          TEXT,
			industry        TEXT,
			market_cap      INTEGER,
			employees       INTEGER,
			founded         INTEGER,
			country         TEXT,
			currency        TEXT,
			current_price   REAL,
			previous_close  REAL,
			open            REAL,
			day_high        REAL,
			day_low         REAL,
			volume          INTEGER,
			website         TEXT,
			about           TEXT,
			score           INTEGER,
			num_comments    INTEGER,
			content         TEXT,
			comments        TEXT,
			content_full    TEXT,
			created_utc     INTEGER,
			error           TEXT,
			last_updated    INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_training_created ON ` + TableName + `(created_utc)`,
		`CREATE INDEX IF NOT EXISTS idx_training_ticker ON ` + TableName + `(reddit_ticker)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", strings.TrimSpace(stmt)[:40], err)
		}
	}

	existing, err := s.columns(ctx)
	if err != nil {
		return err
	}
	for _, col := range AnnotationColumns {
		if _, ok := existing[col]; ok {
			continue
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", TableName, col)); err != nil {
			return fmt.Errorf("add column %s: %w", col, err)
		}
		s.logger.Info().Str("column", col).Msg("annotation column added")
	}
	return nil
}

// Columns returns the table's column names in declaration order.
func (s *SQLiteStore) Columns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", TableName)
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (s *SQLiteStore) columns(ctx context.Context) (map[string]struct{}, error) {
	cols, err := s.Columns(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		set[c] = struct{}{}
	}
	return set, nil
}

const insertSQL = `INSERT INTO ` + TableName + `
	(reddit_ticker, yfinance_symbol, long_name, short_name, sector, industry,
	 market_cap, employees, founded, country, currency,
	 current_price, previous_close, open, day_high, day_low, volume,
	 website, about, score, num_comments, content, comments, content_full,
	 created_utc, error, last_updated)
	VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`

// Append inserts every record as a new row inside one transaction and returns
// the assigned row ids in input order. Records are never deduplicated against
// existing rows.
func (s *SQLiteStore) Append(ctx context.Context, records []model.EnrichedRecord) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(records))
	for _, r := range records {
		comments, err := encodeComments(r.Comments)
		if err != nil {
			return nil, err
		}
		in := r.Info
		res, err := stmt.ExecContext(ctx,
			r.RedditTicker, val(r.YFinanceSymbol), val(in.LongName), val(in.ShortName), val(in.Sector), val(in.Industry),
			val(in.MarketCap), val(in.Employees), val(in.Founded), val(in.Country), val(in.Currency),
			val(in.CurrentPrice), val(in.PreviousClose), val(in.Open), val(in.DayHigh), val(in.DayLow), val(in.Volume),
			val(in.Website), val(in.About), r.Score, r.NumComments, r.Content, comments, r.ContentFull,
			r.CreatedAt.Unix(), val(r.Error), r.LastUpdated.Unix(),
		)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", r.RedditTicker, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return ids, nil
}

// WithLogger returns a view of the store that logs to logger. The view shares
// the connection and write lock; close only the original.
func (s *SQLiteStore) WithLogger(logger arbor.ILogger) *SQLiteStore {
	v := *s
	v.logger = logger
	return &v
}

// Count returns the number of stored rows.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+TableName).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

const (
	pendingPredicate      = `(summarized_content IS NULL OR summarized_content = '')`
	unsetVerdictPredicate = `(verdict IS NULL OR verdict = '')`
)

// PendingSummaries returns rows that still lack a summary, oldest row id first.
func (s *SQLiteStore) PendingSummaries(ctx context.Context) ([]model.PendingRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT row_id, reddit_ticker, yfinance_symbol, content, comments
		FROM `+TableName+` WHERE `+pendingPredicate+` ORDER BY row_id`)
	if err != nil {
		return nil, fmt.Errorf("select pending: %w", err)
	}
	defer rows.Close()

	var out []model.PendingRow
	for rows.Next() {
		var (
			p                         model.PendingRow
			ticker, content, comments sql.NullString
			symbol                    sql.NullString
		)
		if err := rows.Scan(&p.RowID, &ticker, &symbol, &content, &comments); err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		p.Ticker = ticker.String
		p.Symbol = nullString(symbol)
		p.Content = content.String
		p.Comments = decodeComments(comments.String)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ApplySummaries writes all staged annotations in a single transaction and
// returns the ids of the rows it changed. A row is only written while both
// its summary and its verdict are empty, so an annotation lands at most once.
// An update without a summary is written as all empty values.
func (s *SQLiteStore) ApplySummaries(ctx context.Context, updates []model.AnnotationUpdate) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE `+TableName+`
		SET summarized_content = ?, summarized_comments = ?, verdict = ?
		WHERE row_id = ? AND `+pendingPredicate+` AND `+unsetVerdictPredicate)
	if err != nil {
		return nil, fmt.Errorf("prepare update: %w", err)
	}
	defer stmt.Close()

	var applied []int64
	for _, u := range updates {
		a := u.Annotation
		if strings.TrimSpace(a.Summary) == "" {
			a = model.Annotation{}
		}
		res, err := stmt.ExecContext(ctx, a.Summary, a.CommentSummary, string(a.Verdict), u.RowID)
		if err != nil {
			return nil, fmt.Errorf("update row %d: %w", u.RowID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n > 0 {
			applied = append(applied, u.RowID)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return applied, nil
}

const selectColumns = `row_id, reddit_ticker, yfinance_symbol, long_name, short_name, sector, industry,
	market_cap, employees, founded, country, currency,
	current_price, previous_close, open, day_high, day_low, volume,
	website, about, score, num_comments, content, comments, content_full,
	created_utc, error, last_updated, summarized_content, summarized_comments, verdict`

// Query returns stored records, newest first, narrowed by f.
func (s *SQLiteStore) Query(ctx context.Context, f Filter) ([]model.EnrichedRecord, error) {
	var (
		where []string
		args  []any
	)
	if !f.Since.IsZero() {
		where = append(where, "created_utc >= ?")
		args = append(args, f.Since.Unix())
	}
	if t := strings.ToUpper(strings.TrimSpace(f.Ticker)); t != "" {
		where = append(where, "(reddit_ticker = ? OR UPPER(yfinance_symbol) = ?)")
		args = append(args, t, t)
	}
	q := "SELECT " + selectColumns + " FROM " + TableName
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_utc DESC, score DESC, row_id ASC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []model.EnrichedRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if !f.IncludeComments {
			r.Comments = nil
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecord(rows *sql.Rows) (model.EnrichedRecord, error) {
	var (
		r                                                    model.EnrichedRecord
		ticker, symbol, longName, shortName, sector, industry sql.NullString
		country, currency, website, about                    sql.NullString
		content, comments, contentFull, errText              sql.NullString
		summary, commentSummary, verdict                     sql.NullString
		marketCap, employees, founded, volume                sql.NullInt64
		price, prevClose, open, high, low                    sql.NullFloat64
		score, numComments, created, updated                 sql.NullInt64
	)
	err := rows.Scan(&r.RowID, &ticker, &symbol, &longName, &shortName, &sector, &industry,
		&marketCap, &employees, &founded, &country, &currency,
		&price, &prevClose, &open, &high, &low, &volume,
		&website, &about, &score, &numComments, &content, &comments, &contentFull,
		&created, &errText, &updated, &summary, &commentSummary, &verdict)
	if err != nil {
		return r, fmt.Errorf("scan record: %w", err)
	}
	r.RedditTicker = ticker.String
	r.YFinanceSymbol = nullString(symbol)
	r.Info = model.QuoteInfo{
		LongName:      nullString(longName),
		ShortName:     nullString(shortName),
		Sector:        nullString(sector),
		Industry:      nullString(industry),
		MarketCap:     nullInt(marketCap),
		Employees:     nullInt(employees),
		Founded:       nullInt(founded),
		Country:       nullString(country),
		Currency:      nullString(currency),
		CurrentPrice:  nullFloat(price),
		PreviousClose: nullFloat(prevClose),
		Open:          nullFloat(open),
		DayHigh:       nullFloat(high),
		DayLow:        nullFloat(low),
		Volume:        nullInt(volume),
		Website:       nullString(website),
		About:         nullString(about),
	}
	r.Score = int(score.Int64)
	r.NumComments = int(numComments.Int64)
	r.Content = content.String
	r.Comments = decodeComments(comments.String)
	r.ContentFull = contentFull.String
	r.CreatedAt = time.Unix(created.Int64, 0).UTC()
	r.Error = nullString(errText)
	r.LastUpdated = time.Unix(updated.Int64, 0).UTC()
	r.Summary = nullString(summary)
	r.CommentSummary = nullString(commentSummary)
	r.Verdict = model.ParseVerdict(verdict.String)
	return r, nil
}

// PriceHistory returns every priced observation ordered by ticker and time.
func (s *SQLiteStore) PriceHistory(ctx context.Context) ([]PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT reddit_ticker, yfinance_symbol, current_price, previous_close, last_updated
		FROM `+TableName+` WHERE current_price IS NOT NULL
		ORDER BY reddit_ticker, last_updated, row_id`)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var out []PricePoint
	for rows.Next() {
		var (
			p              PricePoint
			ticker, symbol sql.NullString
			price, prev    sql.NullFloat64
			updated        sql.NullInt64
		)
		if err := rows.Scan(&ticker, &symbol, &price, &prev, &updated); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		p.Ticker = ticker.String
		p.Symbol = symbol.String
		p.CurrentPrice = nullFloat(price)
		p.PreviousClose = nullFloat(prev)
		p.LastUpdated = time.Unix(updated.Int64, 0).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountTickers returns the number of distinct tickers mentioned since the
// given time; a zero time counts all rows.
func (s *SQLiteStore) CountTickers(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT reddit_ticker) FROM "+TableName+" WHERE created_utc >= ?",
		since.Unix()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tickers: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.logger.Info().Str("path", s.path).Msg("closing sqlite store")
	return s.db.Close()
}

func encodeComments(comments []string) (string, error) {
	if comments == nil {
		comments = []string{}
	}
	b, err := json.Marshal(comments)
	if err != nil {
		return "", fmt.Errorf("encode comments: %w", err)
	}
	return string(b), nil
}

// decodeComments accepts the JSON array form written by Append and falls back
// to treating any other text as a single comment.
func decodeComments(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return []string{s}
	}
	return out
}

// val unwraps an optional field into a driver value; nil becomes NULL.
func val[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
