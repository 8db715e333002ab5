// Package model defines the persistent domain types for the funding registry.
package model

// Company is one resolved real-world company. Uniqueness is not a database
// constraint; it is an emergent property of the resolution protocol, since
// legitimate names repeat with variant spellings.
type Company struct {
	ID      int64   `json:"id" db:"id"`
	Name    string  `json:"name" db:"name"`
	Country *string `json:"country,omitempty" db:"country"`
	Domain  *string `json:"domain,omitempty" db:"domain"`

	// FirstSeen/LastSeen are ISO dates (YYYY-MM-DD) spanning observed activity.
	FirstSeen *string `json:"first_seen,omitempty" db:"first_seen"`
	LastSeen  *string `json:"last_seen,omitempty" db:"last_seen"`
}

// Identifier links a company to a source-native identifier value.
// (kind, value) is unique across the registry, which makes identifier-exact
// candidate lookup a single indexed query.
type Identifier struct {
	ID        int64  `json:"id" db:"id"`
	CompanyID int64  `json:"company_id" db:"company_id"`
	Kind      string `json:"kind" db:"kind"`
	Value     string `json:"value" db:"value"`
}

// Known identifier kinds.
const (
	IdentifierUEI  = "uei"
	IdentifierDUNS = "duns"
	IdentifierCIK  = "cik"
)

// IdentifierKinds lists the kinds consulted by the identifier-exact
// candidate pass, in lookup order.
var IdentifierKinds = []string{IdentifierUEI, IdentifierDUNS, IdentifierCIK}
