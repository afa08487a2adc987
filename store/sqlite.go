package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/minewatch/minewatch/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS incidents (
	id                    TEXT PRIMARY KEY,
	report_id             TEXT NOT NULL DEFAULT '',
	date_reported         TEXT,
	accident_date         TEXT,
	mine_name             TEXT,
	mine_owner            TEXT,
	district              TEXT,
	state                 TEXT,
	mineral               TEXT,
	location              TEXT,
	brief_cause           TEXT,
	cause_code            TEXT,
	fatalities            TEXT,
	injuries              TEXT,
	best_practices        TEXT,
	source_url            TEXT,
	summary               TEXT,
	created_at            TEXT,
	verification_status   TEXT,
	verification_time     TEXT,
	verification_articles TEXT,
	raw_title             TEXT,
	raw_text              TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_incidents_report_id
	ON incidents(report_id) WHERE report_id <> '';
CREATE VIRTUAL TABLE IF NOT EXISTS incidents_fts USING fts5(
	id UNINDEXED, mine_name, district, state, brief_cause, summary
);
`

// SQLite is the durable Store backed by mattn/go-sqlite3, with an FTS5 side
// table powering keyword retrieval over cause and summary text.
type SQLite struct {
	db *sql.DB
}

var (
	_ core.Store            = (*SQLite)(nil)
	_ core.KeywordRetriever = (*SQLite)(nil)
)

// OpenSQLite opens (creating if needed) the store at dsn and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dsn, err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

// Insert persists a new record. The partial unique index rejects a second
// record with the same non-empty report id.
func (s *SQLite) Insert(ctx context.Context, rec core.IncidentRecord) (string, error) {
	id := uuid.NewString()
	fatalities, _ := json.Marshal(rec.Incident.Fatalities)
	injuries, _ := json.Marshal(rec.Incident.Injuries)
	practices, _ := json.Marshal(rec.BestPractices)
	articles, _ := json.Marshal(rec.Verification.Articles)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("store: begin insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO incidents (
		id, report_id, date_reported, accident_date,
		mine_name, mine_owner, district, state, mineral,
		location, brief_cause, cause_code,
		fatalities, injuries, best_practices,
		source_url, summary, created_at,
		verification_status, verification_time, verification_articles,
		raw_title, raw_text
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		id, rec.ReportID, rec.DateReported, rec.AccidentDate,
		rec.Mine.Name, rec.Mine.Owner, rec.Mine.District, rec.Mine.State, rec.Mine.Mineral,
		rec.Incident.Location, rec.Incident.BriefCause, rec.Incident.CauseCode,
		string(fatalities), string(injuries), string(practices),
		rec.SourceURL, rec.Summary, rec.CreatedAt.UTC().Format(time.RFC3339),
		rec.Verification.Status, rec.Verification.Timestamp.UTC().Format(time.RFC3339), string(articles),
		rec.RawTitle, rec.RawText,
	)
	if err != nil {
		return "", fmt.Errorf("store: insert: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO incidents_fts (id, mine_name, district, state, brief_cause, summary) VALUES (?,?,?,?,?,?)`,
		id, rec.Mine.Name, rec.Mine.District, rec.Mine.State, rec.Incident.BriefCause, rec.Summary,
	)
	if err != nil {
		return "", fmt.Errorf("store: index: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("store: commit insert: %w", err)
	}
	return id, nil
}

// CountSimilar applies the fuzzy duplicate query in SQL: LIKE matches on the
// present location fields and a BETWEEN over the ±3 day window.
func (s *SQLite) CountSimilar(ctx context.Context, q core.DuplicateQuery) (int, error) {
	var conds []string
	var args []any
	if q.MineName != "" {
		conds = append(conds, "mine_name LIKE '%' || ? || '%' COLLATE NOCASE")
		args = append(args, q.MineName)
	}
	if q.District != "" {
		conds = append(conds, "district LIKE '%' || ? || '%' COLLATE NOCASE")
		args = append(args, q.District)
	}
	if q.State != "" {
		conds = append(conds, "state LIKE '%' || ? || '%' COLLATE NOCASE")
		args = append(args, q.State)
	}
	if from, to, ok := dateWindow(q.Date, 3); ok {
		conds = append(conds, "accident_date BETWEEN ? AND ?")
		args = append(args, from, to)
	}
	if len(conds) == 0 {
		return 0, nil
	}
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM incidents WHERE "+strings.Join(conds, " AND "), args...)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("store: count similar: %w", err)
	}
	return count, nil
}

// HasReportID reports whether a record with the given report id exists.
func (s *SQLite) HasReportID(ctx context.Context, reportID string) (bool, error) {
	if reportID == "" {
		return false, nil
	}
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM incidents WHERE report_id = ?", reportID)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("store: has report id: %w", err)
	}
	return count > 0, nil
}

// UpdateVerification overwrites the verification block of the record keyed by
// report id; exactly one row must match.
func (s *SQLite) UpdateVerification(ctx context.Context, reportID string, v core.Verification) error {
	if reportID == "" {
		return fmt.Errorf("store: empty report id")
	}
	articles, _ := json.Marshal(v.Articles)
	res, err := s.db.ExecContext(ctx,
		`UPDATE incidents SET verification_status = ?, verification_time = ?, verification_articles = ? WHERE report_id = ?`,
		v.Status, v.Timestamp.UTC().Format(time.RFC3339), string(articles), reportID,
	)
	if err != nil {
		return fmt.Errorf("store: update verification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update verification: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("store: report id %q matched %d records", reportID, n)
	}
	return nil
}

// All returns every stored record ordered by creation time.
func (s *SQLite) All(ctx context.Context) ([]core.IncidentRecord, error) {
	return s.query(ctx, "SELECT "+columns+" FROM incidents ORDER BY created_at")
}

// Since returns records with accident dates inside [from, to].
func (s *SQLite) Since(ctx context.Context, from, to string) ([]core.IncidentRecord, error) {
	return s.query(ctx, "SELECT "+columns+" FROM incidents WHERE accident_date BETWEEN ? AND ? ORDER BY accident_date", from, to)
}

// RetrieveKeyword ranks incidents by FTS5 match and formats each hit as a
// labeled context block for the answering prompt.
func (s *SQLite) RetrieveKeyword(ctx context.Context, query string, limit int) ([]string, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM incidents_fts WHERE incidents_fts MATCH ? ORDER BY rank LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("store: keyword search: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: keyword search: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: keyword search: %w", err)
	}
	var out []string
	for _, id := range ids {
		recs, err := s.query(ctx, "SELECT "+columns+" FROM incidents WHERE id = ?", id)
		if err != nil {
			return nil, err
		}
		if len(recs) == 1 {
			out = append(out, FormatContextBlock(recs[0]))
		}
	}
	return out, nil
}

// ftsQuery quotes each token so user text cannot inject FTS5 syntax, joining
// tokens with OR for recall.
func ftsQuery(query string) string {
	var toks []string
	for _, tok := range strings.Fields(query) {
		tok = strings.ReplaceAll(tok, `"`, "")
		if tok == "" {
			continue
		}
		toks = append(toks, `"`+tok+`"`)
	}
	return strings.Join(toks, " OR ")
}

const columns = `report_id, date_reported, accident_date,
	mine_name, mine_owner, district, state, mineral,
	location, brief_cause, cause_code,
	fatalities, injuries, best_practices,
	source_url, summary, created_at,
	verification_status, verification_time, verification_articles,
	raw_title, raw_text`

func (s *SQLite) query(ctx context.Context, q string, args ...any) ([]core.IncidentRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()
	var out []core.IncidentRecord
	for rows.Next() {
		var rec core.IncidentRecord
		var fatalities, injuries, practices, articles, createdAt, verifTime string
		err := rows.Scan(
			&rec.ReportID, &rec.DateReported, &rec.AccidentDate,
			&rec.Mine.Name, &rec.Mine.Owner, &rec.Mine.District, &rec.Mine.State, &rec.Mine.Mineral,
			&rec.Incident.Location, &rec.Incident.BriefCause, &rec.Incident.CauseCode,
			&fatalities, &injuries, &practices,
			&rec.SourceURL, &rec.Summary, &createdAt,
			&rec.Verification.Status, &verifTime, &articles,
			&rec.RawTitle, &rec.RawText,
		)
		if err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		_ = json.Unmarshal([]byte(fatalities), &rec.Incident.Fatalities)
		_ = json.Unmarshal([]byte(injuries), &rec.Incident.Injuries)
		_ = json.Unmarshal([]byte(practices), &rec.BestPractices)
		_ = json.Unmarshal([]byte(articles), &rec.Verification.Articles)
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		rec.Verification.Timestamp, _ = time.Parse(time.RFC3339, verifTime)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: rows: %w", err)
	}
	return out, nil
}
