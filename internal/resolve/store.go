package resolve

import (
	"context"

	"github.com/sells-group/funding-harvester/internal/model"
)

// Store defines the persistence operations the resolution engine depends on.
// Implementations must make each mutation atomic: a failed call leaves the
// store unchanged.
type Store interface {
	CreateCompany(ctx context.Context, c *model.Company) error
	GetCompany(ctx context.Context, id int64) (*model.Company, error)
	ListCompanies(ctx context.Context, country *string) ([]model.Company, error)

	// TouchCompany widens the company's seen-date span to include seenDate,
	// backfills domain if currently unset (first writer wins), and, when name
	// is non-nil, overwrites the display name (last writer wins).
	TouchCompany(ctx context.Context, id int64, seenDate string, domain, name *string) error

	UpsertIdentifier(ctx context.Context, ident *model.Identifier) error
	FindCompanyByIdentifier(ctx context.Context, kind, value string) (*model.Company, error)

	CountFundingEvents(ctx context.Context, companyID int64) (int64, error)

	// MergeCompanies atomically re-points all funding events and identifiers
	// owned by mergeIDs onto keepID, widens keepID's seen span across all
	// original spans, and deletes the merged rows. All-or-nothing.
	MergeCompanies(ctx context.Context, keepID int64, mergeIDs []int64) error
}
