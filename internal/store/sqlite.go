package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/funding-harvester/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	country    TEXT,
	domain     TEXT,
	first_seen TEXT,
	last_seen  TEXT
);

CREATE TABLE IF NOT EXISTS company_identifiers (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id INTEGER NOT NULL REFERENCES companies(id),
	kind       TEXT NOT NULL,
	value      TEXT NOT NULL,
	UNIQUE (kind, value)
);

CREATE TABLE IF NOT EXISTS funding_events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id   INTEGER NOT NULL REFERENCES companies(id),
	funding_type TEXT,
	amount       REAL,
	date         TEXT,
	source       TEXT NOT NULL,
	raw_id       TEXT
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	run_key            TEXT NOT NULL,
	source             TEXT NOT NULL,
	started_at         DATETIME NOT NULL,
	finished_at        DATETIME,
	status             TEXT NOT NULL DEFAULT 'running',
	records_fetched    INTEGER NOT NULL DEFAULT 0,
	records_normalized INTEGER NOT NULL DEFAULT 0,
	error              TEXT
);

CREATE TABLE IF NOT EXISTS raw_ingest (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	source      TEXT NOT NULL,
	payload     BLOB NOT NULL,
	ingested_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_companies_country ON companies(country);
CREATE INDEX IF NOT EXISTS idx_funding_events_company_id ON funding_events(company_id);
CREATE INDEX IF NOT EXISTS idx_company_identifiers_company_id ON company_identifiers(company_id);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_source ON ingest_runs(source);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Companies ---

func (s *SQLiteStore) CreateCompany(ctx context.Context, c *model.Company) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (name, country, domain, first_seen, last_seen) VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.Country, c.Domain, c.FirstSeen, c.LastSeen,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert company")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: company last insert id")
	}
	c.ID = id
	return nil
}

func (s *SQLiteStore) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, country, domain, first_seen, last_seen FROM companies WHERE id = ?`, id)
	c, err := scanCompany(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get company %d", id)
	}
	return c, nil
}

func (s *SQLiteStore) ListCompanies(ctx context.Context, country *string) ([]model.Company, error) {
	query := `SELECT id, name, country, domain, first_seen, last_seen FROM companies`
	var args []any
	if country != nil {
		query += ` WHERE country = ?`
		args = append(args, *country)
	}
	query += ` ORDER BY last_seen DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close()
	return collectCompanies(rows)
}

func (s *SQLiteStore) SearchCompaniesByName(ctx context.Context, query string, limit int) ([]model.Company, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, country, domain, first_seen, last_seen FROM companies
		 WHERE lower(name) LIKE ? ORDER BY name LIMIT ?`,
		"%"+strings.ToLower(query)+"%", limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search companies")
	}
	defer rows.Close()
	return collectCompanies(rows)
}

func (s *SQLiteStore) TouchCompany(ctx context.Context, id int64, seenDate string, domain, name *string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE companies SET
			first_seen = CASE WHEN first_seen IS NULL OR ? < first_seen THEN ? ELSE first_seen END,
			last_seen  = CASE WHEN last_seen  IS NULL OR ? > last_seen  THEN ? ELSE last_seen END,
			domain     = COALESCE(domain, ?),
			name       = COALESCE(?, name)
		 WHERE id = ?`,
		seenDate, seenDate, seenDate, seenDate, domain, name, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: touch company %d", id)
	}
	return checkRowsAffected(res, "company", id)
}

// --- Identifiers ---

func (s *SQLiteStore) UpsertIdentifier(ctx context.Context, ident *model.Identifier) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO company_identifiers (company_id, kind, value) VALUES (?, ?, ?)
		 ON CONFLICT (kind, value) DO NOTHING`,
		ident.CompanyID, ident.Kind, ident.Value,
	)
	return eris.Wrapf(err, "sqlite: upsert identifier %s", ident.Kind)
}

func (s *SQLiteStore) FindCompanyByIdentifier(ctx context.Context, kind, value string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT c.id, c.name, c.country, c.domain, c.first_seen, c.last_seen
		 FROM companies c
		 JOIN company_identifiers ci ON ci.company_id = c.id
		 WHERE ci.kind = ? AND ci.value = ?`,
		kind, value,
	)
	c, err := scanCompany(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find company by %s", kind)
	}
	return c, nil
}

// --- Funding events ---

func (s *SQLiteStore) AddFundingEvent(ctx context.Context, ev *model.FundingEvent) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO funding_events (company_id, funding_type, amount, date, source, raw_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.CompanyID, ev.FundingType, ev.Amount, ev.Date, ev.Source, ev.RawID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert funding event")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: funding event last insert id")
	}
	ev.ID = id
	return nil
}

func (s *SQLiteStore) CountFundingEvents(ctx context.Context, companyID int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM funding_events WHERE company_id = ?`, companyID,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: count events for company %d", companyID)
	}
	return n, nil
}

func (s *SQLiteStore) ListCompanyEvents(ctx context.Context, filter model.EventFilter) ([]model.CompanyEvent, error) {
	query := `SELECT c.id, c.name, c.country, c.domain, e.funding_type, e.amount, e.date, e.source
		 FROM companies c
		 JOIN funding_events e ON e.company_id = c.id
		 WHERE 1=1`
	var args []any
	if filter.Source != "" {
		query += ` AND e.source = ?`
		args = append(args, filter.Source)
	}
	if filter.FundingType != "" {
		query += ` AND ifnull(e.funding_type, '') = ?`
		args = append(args, filter.FundingType)
	}
	if filter.NameQuery != "" {
		query += ` AND lower(c.name) LIKE ?`
		args = append(args, "%"+strings.ToLower(filter.NameQuery)+"%")
	}
	query += ` ORDER BY c.name, e.date DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list company events")
	}
	defer rows.Close()

	var out []model.CompanyEvent
	for rows.Next() {
		var ce model.CompanyEvent
		var country, domain, ftype, date sql.NullString
		var amount sql.NullFloat64
		if err := rows.Scan(&ce.CompanyID, &ce.Name, &country, &domain, &ftype, &amount, &date, &ce.Source); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company event")
		}
		ce.Country = nullableString(country)
		ce.Domain = nullableString(domain)
		ce.FundingType = nullableString(ftype)
		ce.Date = nullableString(date)
		if amount.Valid {
			ce.Amount = &amount.Float64
		}
		out = append(out, ce)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list company events iterate")
}

// --- Merge ---

// MergeCompanies runs the merge protocol as one transaction: re-point events
// and identifiers, widen the surviving span across all original spans, delete
// the absorbed rows. Any failure rolls the whole thing back.
func (s *SQLiteStore) MergeCompanies(ctx context.Context, keepID int64, mergeIDs []int64) error {
	if len(mergeIDs) == 0 {
		return eris.New("sqlite: merge: no companies to merge")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: merge: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(mergeIDs)), ",")
	mergeArgs := make([]any, len(mergeIDs))
	for i, id := range mergeIDs {
		mergeArgs[i] = id
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE funding_events SET company_id = ? WHERE company_id IN (%s)`, placeholders),
		append([]any{keepID}, mergeArgs...)...,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: merge: re-point funding events")
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE company_identifiers SET company_id = ? WHERE company_id IN (%s)`, placeholders),
		append([]any{keepID}, mergeArgs...)...,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: merge: re-point identifiers")
	}

	allPlaceholders := placeholders + ",?"
	allArgs := append(append([]any{}, mergeArgs...), keepID)
	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE companies SET
			first_seen = (SELECT MIN(first_seen) FROM companies WHERE id IN (%s) AND first_seen IS NOT NULL),
			last_seen  = (SELECT MAX(last_seen)  FROM companies WHERE id IN (%s) AND last_seen  IS NOT NULL)
		 WHERE id = ?`, allPlaceholders, allPlaceholders),
		append(append(append([]any{}, allArgs...), allArgs...), keepID)...,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: merge: widen seen span")
	}

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM companies WHERE id IN (%s)`, placeholders),
		mergeArgs...,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: merge: delete merged companies")
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: merge: rows affected")
	}
	if deleted != int64(len(mergeIDs)) {
		return eris.Errorf("sqlite: merge: expected to delete %d companies, deleted %d", len(mergeIDs), deleted)
	}

	return eris.Wrap(tx.Commit(), "sqlite: merge: commit")
}

// --- Ingestion run ledger ---

func (s *SQLiteStore) StartIngestRun(ctx context.Context, source string) (*model.IngestRun, error) {
	runKey := uuid.New().String()
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (run_key, source, started_at, status) VALUES (?, ?, ?, ?)`,
		runKey, source, now, string(model.RunStatusRunning),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: start ingest run for %s", source)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: ingest run last insert id")
	}

	return &model.IngestRun{
		ID:        id,
		RunKey:    runKey,
		Source:    source,
		StartedAt: now,
		Status:    model.RunStatusRunning,
	}, nil
}

func (s *SQLiteStore) CompleteIngestRun(ctx context.Context, runID int64, fetched, normalized int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_runs SET status = ?, finished_at = ?, records_fetched = ?, records_normalized = ?
		 WHERE id = ?`,
		string(model.RunStatusSuccess), time.Now().UTC(), fetched, normalized, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete ingest run %d", runID)
	}
	return checkRowsAffected(res, "ingest run", runID)
}

func (s *SQLiteStore) FailIngestRun(ctx context.Context, runID int64, fetched, normalized int, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_runs SET status = ?, finished_at = ?, records_fetched = ?, records_normalized = ?, error = ?
		 WHERE id = ?`,
		string(model.RunStatusFailed), time.Now().UTC(), fetched, normalized, errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail ingest run %d", runID)
	}
	return checkRowsAffected(res, "ingest run", runID)
}

func (s *SQLiteStore) ListIngestRuns(ctx context.Context, limit int) ([]model.IngestRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_key, source, started_at, finished_at, status, records_fetched, records_normalized, error
		 FROM ingest_runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ingest runs")
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		var r model.IngestRun
		var finished sql.NullTime
		var errMsg sql.NullString
		var status string
		if err := rows.Scan(&r.ID, &r.RunKey, &r.Source, &r.StartedAt, &finished, &status, &r.RecordsFetched, &r.RecordsNormalized, &errMsg); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ingest run")
		}
		r.Status = model.RunStatus(status)
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		r.Error = nullableString(errMsg)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list ingest runs iterate")
}

// --- Raw payload audit trail ---

func (s *SQLiteStore) RecordRawPayloads(ctx context.Context, source string, payloads [][]byte) error {
	if len(payloads) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: raw ingest: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, p := range payloads {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO raw_ingest (source, payload, ingested_at) VALUES (?, ?, ?)`,
			source, p, now,
		); err != nil {
			return eris.Wrap(err, "sqlite: raw ingest: insert payload")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: raw ingest: commit")
}

// --- helpers ---

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %d", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCompany(row scannable) (*model.Company, error) {
	var c model.Company
	var country, domain, firstSeen, lastSeen sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &country, &domain, &firstSeen, &lastSeen); err != nil {
		return nil, err
	}
	c.Country = nullableString(country)
	c.Domain = nullableString(domain)
	c.FirstSeen = nullableString(firstSeen)
	c.LastSeen = nullableString(lastSeen)
	return &c, nil
}

func collectCompanies(rows *sql.Rows) ([]model.Company, error) {
	var out []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: companies iterate")
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
