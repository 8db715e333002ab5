package model

// FundingEvent is one normalized funding observation. Events are append-only:
// created once, never mutated, re-parented only by a company merge.
type FundingEvent struct {
	ID          int64    `json:"id" db:"id"`
	CompanyID   int64    `json:"company_id" db:"company_id"`
	FundingType *string  `json:"funding_type,omitempty" db:"funding_type"`
	Amount      *float64 `json:"amount,omitempty" db:"amount"`
	Date        *string  `json:"date,omitempty" db:"date"`
	Source      string   `json:"source" db:"source"`
	RawID       *string  `json:"raw_id,omitempty" db:"raw_id"`
}

// CompanyEvent is a denormalized company x funding event row used by the
// export and serve surfaces.
type CompanyEvent struct {
	CompanyID   int64    `json:"company_id"`
	Name        string   `json:"name"`
	Country     *string  `json:"country,omitempty"`
	Domain      *string  `json:"domain,omitempty"`
	FundingType *string  `json:"funding_type,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
	Date        *string  `json:"date,omitempty"`
	Source      string   `json:"source"`
}

// EventFilter narrows CompanyEvent listings.
type EventFilter struct {
	Source      string `json:"source,omitempty"`
	FundingType string `json:"funding_type,omitempty"`
	NameQuery   string `json:"name_query,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}
