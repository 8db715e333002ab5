package resolve

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-harvester/internal/model"
)

// Observation is one canonical funding observation reduced to the fields the
// identity decision needs.
type Observation struct {
	Name        string
	Country     *string
	SeenDate    string
	Domain      *string
	Identifiers map[string]string
}

// Resolver decides whether an incoming observation refers to an already-known
// company and mutates the store accordingly. Safe to call repeatedly with the
// same logical observation: the date-span and domain semantics are idempotent.
type Resolver struct {
	store  Store
	finder *Finder
	th     Thresholds
}

// NewResolver creates a resolver with the given thresholds.
func NewResolver(store Store, th Thresholds) *Resolver {
	return &Resolver{store: store, finder: NewFinder(store, th), th: th}
}

// ResolveAndUpsert maps an observation to a company id, creating or updating
// the company row. Decision order: identifier-exact match, then fuzzy match at
// or above the auto-merge threshold, then create.
//
// On an identifier-exact match the display name is overwritten with the
// observed spelling (exact identifiers are trusted to correct drift); on a
// fuzzy match it is preserved, so a wrong heuristic match cannot corrupt the
// name.
func (r *Resolver) ResolveAndUpsert(ctx context.Context, obs Observation) (int64, error) {
	if strings.TrimSpace(obs.Name) == "" {
		return 0, eris.New("resolve: observation has no company name")
	}

	candidates, err := r.finder.Find(ctx, obs.Name, obs.Country, obs.Identifiers)
	if err != nil {
		return 0, err
	}

	if len(candidates) > 0 {
		top := candidates[0]

		if top.MatchType == MatchIdentifierExact {
			if err := r.store.TouchCompany(ctx, top.CompanyID, obs.SeenDate, obs.Domain, &obs.Name); err != nil {
				return 0, err
			}
			if err := r.attachIdentifiers(ctx, top.CompanyID, obs.Identifiers); err != nil {
				return 0, err
			}
			zap.L().Debug("resolve: matched by identifier",
				zap.String("name", obs.Name),
				zap.Int64("company_id", top.CompanyID),
			)
			return top.CompanyID, nil
		}

		if top.Confidence >= r.th.AutoMerge {
			if err := r.store.TouchCompany(ctx, top.CompanyID, obs.SeenDate, obs.Domain, nil); err != nil {
				return 0, err
			}
			if err := r.attachIdentifiers(ctx, top.CompanyID, obs.Identifiers); err != nil {
				return 0, err
			}
			zap.L().Debug("resolve: matched by name similarity",
				zap.String("name", obs.Name),
				zap.String("existing", top.Name),
				zap.Float64("confidence", top.Confidence),
				zap.Int64("company_id", top.CompanyID),
			)
			return top.CompanyID, nil
		}
	}

	// Ambiguity below the auto-merge threshold is not an error: create a new
	// row rather than guess, and leave reconciliation to an operator merge.
	company := &model.Company{
		Name:      obs.Name,
		Country:   obs.Country,
		Domain:    obs.Domain,
		FirstSeen: &obs.SeenDate,
		LastSeen:  &obs.SeenDate,
	}
	if err := r.store.CreateCompany(ctx, company); err != nil {
		return 0, err
	}
	if err := r.attachIdentifiers(ctx, company.ID, obs.Identifiers); err != nil {
		return 0, err
	}

	zap.L().Info("resolve: created new company",
		zap.String("name", obs.Name),
		zap.Int64("company_id", company.ID),
	)
	return company.ID, nil
}

// attachIdentifiers links any recognized source identifiers to the resolved
// company. (kind, value) is unique registry-wide, so re-linking on repeat
// observations is a no-op.
func (r *Resolver) attachIdentifiers(ctx context.Context, companyID int64, identifiers map[string]string) error {
	for _, kind := range model.IdentifierKinds {
		value := identifierValue(identifiers, kind)
		if value == "" {
			continue
		}
		err := r.store.UpsertIdentifier(ctx, &model.Identifier{
			CompanyID: companyID,
			Kind:      kind,
			Value:     value,
		})
		if err != nil {
			return eris.Wrapf(err, "resolve: link identifier %s", kind)
		}
	}
	return nil
}
