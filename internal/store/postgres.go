package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-harvester/internal/db"
	"github.com/sells-group/funding-harvester/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	country    TEXT,
	domain     TEXT,
	first_seen TEXT,
	last_seen  TEXT
);

CREATE TABLE IF NOT EXISTS company_identifiers (
	id         BIGSERIAL PRIMARY KEY,
	company_id BIGINT NOT NULL REFERENCES companies(id),
	kind       TEXT NOT NULL,
	value      TEXT NOT NULL,
	UNIQUE (kind, value)
);

CREATE TABLE IF NOT EXISTS funding_events (
	id           BIGSERIAL PRIMARY KEY,
	company_id   BIGINT NOT NULL REFERENCES companies(id),
	funding_type TEXT,
	amount       DOUBLE PRECISION,
	date         TEXT,
	source       TEXT NOT NULL,
	raw_id       TEXT
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id                 BIGSERIAL PRIMARY KEY,
	run_key            TEXT NOT NULL,
	source             TEXT NOT NULL,
	started_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at        TIMESTAMPTZ,
	status             TEXT NOT NULL DEFAULT 'running',
	records_fetched    INT NOT NULL DEFAULT 0,
	records_normalized INT NOT NULL DEFAULT 0,
	error              TEXT
);

CREATE TABLE IF NOT EXISTS raw_ingest (
	id          BIGSERIAL PRIMARY KEY,
	source      TEXT NOT NULL,
	payload     BYTEA NOT NULL,
	ingested_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_companies_country ON companies(country);
CREATE INDEX IF NOT EXISTS idx_funding_events_company_id ON funding_events(company_id);
CREATE INDEX IF NOT EXISTS idx_company_identifiers_company_id ON company_identifiers(company_id);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_source ON ingest_runs(source);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Companies ---

func (s *PostgresStore) CreateCompany(ctx context.Context, c *model.Company) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO companies (name, country, domain, first_seen, last_seen)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		c.Name, c.Country, c.Domain, c.FirstSeen, c.LastSeen,
	).Scan(&c.ID)
	return eris.Wrap(err, "postgres: insert company")
}

func (s *PostgresStore) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	var c model.Company
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, country, domain, first_seen, last_seen FROM companies WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Country, &c.Domain, &c.FirstSeen, &c.LastSeen)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get company %d", id)
	}
	return &c, nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context, country *string) ([]model.Company, error) {
	query := `SELECT id, name, country, domain, first_seen, last_seen FROM companies`
	var args []any
	if country != nil {
		query += ` WHERE country = $1`
		args = append(args, *country)
	}
	query += ` ORDER BY last_seen DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()
	return collectPgCompanies(rows)
}

func (s *PostgresStore) SearchCompaniesByName(ctx context.Context, query string, limit int) ([]model.Company, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, country, domain, first_seen, last_seen FROM companies
		 WHERE lower(name) LIKE $1 ORDER BY name LIMIT $2`,
		"%"+strings.ToLower(query)+"%", limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search companies")
	}
	defer rows.Close()
	return collectPgCompanies(rows)
}

func (s *PostgresStore) TouchCompany(ctx context.Context, id int64, seenDate string, domain, name *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE companies SET
			first_seen = LEAST(COALESCE(first_seen, $2), $2),
			last_seen  = GREATEST(COALESCE(last_seen, $2), $2),
			domain     = COALESCE(domain, $3),
			name       = COALESCE($4, name)
		 WHERE id = $1`,
		id, seenDate, domain, name,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: touch company %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: company not found: %d", id)
	}
	return nil
}

// --- Identifiers ---

func (s *PostgresStore) UpsertIdentifier(ctx context.Context, ident *model.Identifier) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO company_identifiers (company_id, kind, value) VALUES ($1, $2, $3)
		 ON CONFLICT (kind, value) DO NOTHING`,
		ident.CompanyID, ident.Kind, ident.Value,
	)
	return eris.Wrapf(err, "postgres: upsert identifier %s", ident.Kind)
}

func (s *PostgresStore) FindCompanyByIdentifier(ctx context.Context, kind, value string) (*model.Company, error) {
	var c model.Company
	err := s.pool.QueryRow(ctx,
		`SELECT c.id, c.name, c.country, c.domain, c.first_seen, c.last_seen
		 FROM companies c
		 JOIN company_identifiers ci ON ci.company_id = c.id
		 WHERE ci.kind = $1 AND ci.value = $2`,
		kind, value,
	).Scan(&c.ID, &c.Name, &c.Country, &c.Domain, &c.FirstSeen, &c.LastSeen)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find company by %s", kind)
	}
	return &c, nil
}

// --- Funding events ---

func (s *PostgresStore) AddFundingEvent(ctx context.Context, ev *model.FundingEvent) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO funding_events (company_id, funding_type, amount, date, source, raw_id)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		ev.CompanyID, ev.FundingType, ev.Amount, ev.Date, ev.Source, ev.RawID,
	).Scan(&ev.ID)
	return eris.Wrap(err, "postgres: insert funding event")
}

func (s *PostgresStore) CountFundingEvents(ctx context.Context, companyID int64) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM funding_events WHERE company_id = $1`, companyID,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: count events for company %d", companyID)
	}
	return n, nil
}

func (s *PostgresStore) ListCompanyEvents(ctx context.Context, filter model.EventFilter) ([]model.CompanyEvent, error) {
	query := `SELECT c.id, c.name, c.country, c.domain, e.funding_type, e.amount, e.date, e.source
		 FROM companies c
		 JOIN funding_events e ON e.company_id = c.id
		 WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.Source != "" {
		query += ` AND e.source = ` + arg(filter.Source)
	}
	if filter.FundingType != "" {
		query += ` AND COALESCE(e.funding_type, '') = ` + arg(filter.FundingType)
	}
	if filter.NameQuery != "" {
		query += ` AND lower(c.name) LIKE ` + arg("%"+strings.ToLower(filter.NameQuery)+"%")
	}
	query += ` ORDER BY c.name, e.date DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list company events")
	}
	defer rows.Close()

	var out []model.CompanyEvent
	for rows.Next() {
		var ce model.CompanyEvent
		if err := rows.Scan(&ce.CompanyID, &ce.Name, &ce.Country, &ce.Domain, &ce.FundingType, &ce.Amount, &ce.Date, &ce.Source); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company event")
		}
		out = append(out, ce)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list company events iterate")
}

// --- Merge ---

func (s *PostgresStore) MergeCompanies(ctx context.Context, keepID int64, mergeIDs []int64) error {
	if len(mergeIDs) == 0 {
		return eris.New("postgres: merge: no companies to merge")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: merge: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`UPDATE funding_events SET company_id = $1 WHERE company_id = ANY($2)`,
		keepID, mergeIDs,
	); err != nil {
		return eris.Wrap(err, "postgres: merge: re-point funding events")
	}

	if _, err := tx.Exec(ctx,
		`UPDATE company_identifiers SET company_id = $1 WHERE company_id = ANY($2)`,
		keepID, mergeIDs,
	); err != nil {
		return eris.Wrap(err, "postgres: merge: re-point identifiers")
	}

	allIDs := append([]int64{keepID}, mergeIDs...)
	if _, err := tx.Exec(ctx,
		`UPDATE companies SET
			first_seen = (SELECT MIN(first_seen) FROM companies WHERE id = ANY($2) AND first_seen IS NOT NULL),
			last_seen  = (SELECT MAX(last_seen)  FROM companies WHERE id = ANY($2) AND last_seen  IS NOT NULL)
		 WHERE id = $1`,
		keepID, allIDs,
	); err != nil {
		return eris.Wrap(err, "postgres: merge: widen seen span")
	}

	tag, err := tx.Exec(ctx, `DELETE FROM companies WHERE id = ANY($1)`, mergeIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: merge: delete merged companies")
	}
	if tag.RowsAffected() != int64(len(mergeIDs)) {
		return eris.Errorf("postgres: merge: expected to delete %d companies, deleted %d", len(mergeIDs), tag.RowsAffected())
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: merge: commit")
}

// --- Ingestion run ledger ---

func (s *PostgresStore) StartIngestRun(ctx context.Context, source string) (*model.IngestRun, error) {
	runKey := uuid.New().String()
	now := time.Now().UTC()

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO ingest_runs (run_key, source, started_at, status) VALUES ($1, $2, $3, $4) RETURNING id`,
		runKey, source, now, string(model.RunStatusRunning),
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: start ingest run for %s", source)
	}

	return &model.IngestRun{
		ID:        id,
		RunKey:    runKey,
		Source:    source,
		StartedAt: now,
		Status:    model.RunStatusRunning,
	}, nil
}

func (s *PostgresStore) CompleteIngestRun(ctx context.Context, runID int64, fetched, normalized int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ingest_runs SET status = $1, finished_at = now(), records_fetched = $2, records_normalized = $3
		 WHERE id = $4`,
		string(model.RunStatusSuccess), fetched, normalized, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete ingest run %d", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: ingest run not found: %d", runID)
	}
	return nil
}

func (s *PostgresStore) FailIngestRun(ctx context.Context, runID int64, fetched, normalized int, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ingest_runs SET status = $1, finished_at = now(), records_fetched = $2, records_normalized = $3, error = $4
		 WHERE id = $5`,
		string(model.RunStatusFailed), fetched, normalized, errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail ingest run %d", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: ingest run not found: %d", runID)
	}
	return nil
}

func (s *PostgresStore) ListIngestRuns(ctx context.Context, limit int) ([]model.IngestRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_key, source, started_at, finished_at, status, records_fetched, records_normalized, error
		 FROM ingest_runs ORDER BY id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ingest runs")
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		var r model.IngestRun
		var status string
		if err := rows.Scan(&r.ID, &r.RunKey, &r.Source, &r.StartedAt, &r.FinishedAt, &status, &r.RecordsFetched, &r.RecordsNormalized, &r.Error); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ingest run")
		}
		r.Status = model.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list ingest runs iterate")
}

// --- Raw payload audit trail ---

// RecordRawPayloads bulk-loads raw response pages via COPY; the table is
// append-only audit data with no relational integrity requirements.
func (s *PostgresStore) RecordRawPayloads(ctx context.Context, source string, payloads [][]byte) error {
	if len(payloads) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, len(payloads))
	for i, p := range payloads {
		rows[i] = []any{source, p, now}
	}

	_, err := db.CopyFrom(ctx, s.pool, "raw_ingest", []string{"source", "payload", "ingested_at"}, rows)
	return err
}

// --- helpers ---

func collectPgCompanies(rows pgx.Rows) ([]model.Company, error) {
	var out []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Country, &c.Domain, &c.FirstSeen, &c.LastSeen); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: companies iterate")
}
