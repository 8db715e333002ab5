// Package store implements the persistent registry of companies, funding
// events, and ingestion audit trails, backed by SQLite or PostgreSQL.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-harvester/internal/model"
)

// Store is the persistence interface for the funding registry. It is a
// superset of what the resolution engine needs (resolve.Store).
type Store interface {
	// Companies
	CreateCompany(ctx context.Context, c *model.Company) error
	GetCompany(ctx context.Context, id int64) (*model.Company, error)
	ListCompanies(ctx context.Context, country *string) ([]model.Company, error)
	SearchCompaniesByName(ctx context.Context, query string, limit int) ([]model.Company, error)
	TouchCompany(ctx context.Context, id int64, seenDate string, domain, name *string) error

	// Identifiers
	UpsertIdentifier(ctx context.Context, ident *model.Identifier) error
	FindCompanyByIdentifier(ctx context.Context, kind, value string) (*model.Company, error)

	// Funding events (append-only; re-parented only by MergeCompanies)
	AddFundingEvent(ctx context.Context, ev *model.FundingEvent) error
	CountFundingEvents(ctx context.Context, companyID int64) (int64, error)
	ListCompanyEvents(ctx context.Context, filter model.EventFilter) ([]model.CompanyEvent, error)

	// Merge
	MergeCompanies(ctx context.Context, keepID int64, mergeIDs []int64) error

	// Ingestion run ledger
	StartIngestRun(ctx context.Context, source string) (*model.IngestRun, error)
	CompleteIngestRun(ctx context.Context, runID int64, fetched, normalized int) error
	FailIngestRun(ctx context.Context, runID int64, fetched, normalized int, errMsg string) error
	ListIngestRuns(ctx context.Context, limit int) ([]model.IngestRun, error)

	// Raw payload audit trail
	RecordRawPayloads(ctx context.Context, source string, payloads [][]byte) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
