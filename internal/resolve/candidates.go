package resolve

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-harvester/internal/model"
)

// Match types, from strongest to weakest.
const (
	MatchIdentifierExact      = "identifier_exact"
	MatchNameSimilarityDomain = "name_similarity_domain"
	MatchNameSimilarity       = "name_similarity"
)

// Thresholds are the tunable knobs of the resolution policy.
type Thresholds struct {
	// CandidateFloor is the minimum similarity for a fuzzy candidate.
	CandidateFloor float64 `yaml:"candidate_floor" mapstructure:"candidate_floor"`
	// AutoMerge is the minimum top-candidate confidence at which an
	// observation is attached to an existing company without operator review.
	AutoMerge float64 `yaml:"auto_merge" mapstructure:"auto_merge"`
	// DomainBoost is added when both names collapse to the same domain-like
	// token; DomainBoostCap caps the boosted confidence.
	DomainBoost    float64 `yaml:"domain_boost" mapstructure:"domain_boost"`
	DomainBoostCap float64 `yaml:"domain_boost_cap" mapstructure:"domain_boost_cap"`
	// MaxCandidates caps the candidate list length.
	MaxCandidates int `yaml:"max_candidates" mapstructure:"max_candidates"`
}

// DefaultThresholds returns the tuned production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CandidateFloor: 0.60,
		AutoMerge:      0.85,
		DomainBoost:    0.20,
		DomainBoostCap: 0.95,
		MaxCandidates:  10,
	}
}

// Candidate is a potential duplicate company for an incoming observation.
type Candidate struct {
	CompanyID  int64   `json:"company_id"`
	Name       string  `json:"name"`
	Country    *string `json:"country,omitempty"`
	Domain     *string `json:"domain,omitempty"`
	Confidence float64 `json:"confidence"`
	MatchType  string  `json:"match_type"`
}

// Finder queries the store for companies that could plausibly match a new
// observation, using identifier-exact and fuzzy-name strategies.
type Finder struct {
	store Store
	th    Thresholds
}

// NewFinder creates a candidate finder.
func NewFinder(store Store, th Thresholds) *Finder {
	return &Finder{store: store, th: th}
}

// Find returns match candidates ordered by descending confidence, capped at
// Thresholds.MaxCandidates. An identifier-exact hit pre-empts fuzzy matching
// entirely.
func (f *Finder) Find(ctx context.Context, name string, country *string, identifiers map[string]string) ([]Candidate, error) {
	exact, err := f.findByIdentifiers(ctx, identifiers)
	if err != nil {
		return nil, err
	}
	if len(exact) > 0 {
		return exact, nil
	}

	// Cross-country collisions are out of scope for the name heuristic, so
	// the scan is narrowed when the observation carries a country.
	companies, err := f.store.ListCompanies(ctx, country)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: list companies")
	}

	var candidates []Candidate
	for _, c := range companies {
		confidence := Score(name, c.Name)
		if confidence < f.th.CandidateFloor {
			continue
		}

		matchType := MatchNameSimilarity
		if da, db := collapseAlnum(name), collapseAlnum(c.Name); da != "" && da == db {
			confidence += f.th.DomainBoost
			if confidence > f.th.DomainBoostCap {
				confidence = f.th.DomainBoostCap
			}
			matchType = MatchNameSimilarityDomain
		}

		candidates = append(candidates, Candidate{
			CompanyID:  c.ID,
			Name:       c.Name,
			Country:    c.Country,
			Domain:     c.Domain,
			Confidence: confidence,
			MatchType:  matchType,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	if len(candidates) > f.th.MaxCandidates {
		candidates = candidates[:f.th.MaxCandidates]
	}
	return candidates, nil
}

// findByIdentifiers resolves the identifier-exact pass: any company carrying
// an identical (kind, value) identifier matches with confidence 1.0.
func (f *Finder) findByIdentifiers(ctx context.Context, identifiers map[string]string) ([]Candidate, error) {
	if len(identifiers) == 0 {
		return nil, nil
	}

	var out []Candidate
	seen := map[int64]bool{}
	for _, kind := range model.IdentifierKinds {
		value := identifierValue(identifiers, kind)
		if value == "" {
			continue
		}
		c, err := f.store.FindCompanyByIdentifier(ctx, kind, value)
		if err != nil {
			return nil, eris.Wrapf(err, "resolve: find by identifier %s", kind)
		}
		if c == nil || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, Candidate{
			CompanyID:  c.ID,
			Name:       c.Name,
			Country:    c.Country,
			Domain:     c.Domain,
			Confidence: 1.0,
			MatchType:  MatchIdentifierExact,
		})
	}
	return out, nil
}

// identifierValue looks up an identifier kind case-insensitively, since
// connectors vary in key casing.
func identifierValue(identifiers map[string]string, kind string) string {
	if v := identifiers[kind]; v != "" {
		return v
	}
	for k, v := range identifiers {
		if strings.EqualFold(k, kind) {
			return v
		}
	}
	return ""
}
