package resolve

import (
	"context"
	"fmt"

	"github.com/sells-group/funding-harvester/internal/model"
)

// memStore is an in-memory Store for exercising the resolution engine without
// a database.
type memStore struct {
	nextID      int64
	companies   map[int64]*model.Company
	identifiers map[string]int64 // "kind|value" -> company id
	eventCounts map[int64]int64

	touchErr error
	mergeLog [][]int64
}

func newMemStore() *memStore {
	return &memStore{
		nextID:      1,
		companies:   map[int64]*model.Company{},
		identifiers: map[string]int64{},
		eventCounts: map[int64]int64{},
	}
}

func (m *memStore) CreateCompany(_ context.Context, c *model.Company) error {
	clone := *c
	clone.ID = m.nextID
	m.nextID++
	m.companies[clone.ID] = &clone
	c.ID = clone.ID
	return nil
}

func (m *memStore) GetCompany(_ context.Context, id int64) (*model.Company, error) {
	c, ok := m.companies[id]
	if !ok {
		return nil, nil
	}
	clone := *c
	return &clone, nil
}

func (m *memStore) ListCompanies(_ context.Context, country *string) ([]model.Company, error) {
	var out []model.Company
	for id := int64(1); id < m.nextID; id++ {
		c, ok := m.companies[id]
		if !ok {
			continue
		}
		if country != nil && (c.Country == nil || *c.Country != *country) {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *memStore) TouchCompany(_ context.Context, id int64, seenDate string, domain, name *string) error {
	if m.touchErr != nil {
		return m.touchErr
	}
	c, ok := m.companies[id]
	if !ok {
		return fmt.Errorf("company not found: %d", id)
	}
	if c.FirstSeen == nil || seenDate < *c.FirstSeen {
		d := seenDate
		c.FirstSeen = &d
	}
	if c.LastSeen == nil || seenDate > *c.LastSeen {
		d := seenDate
		c.LastSeen = &d
	}
	if c.Domain == nil && domain != nil {
		d := *domain
		c.Domain = &d
	}
	if name != nil {
		c.Name = *name
	}
	return nil
}

func (m *memStore) UpsertIdentifier(_ context.Context, ident *model.Identifier) error {
	key := ident.Kind + "|" + ident.Value
	if _, exists := m.identifiers[key]; !exists {
		m.identifiers[key] = ident.CompanyID
	}
	return nil
}

func (m *memStore) FindCompanyByIdentifier(ctx context.Context, kind, value string) (*model.Company, error) {
	id, ok := m.identifiers[kind+"|"+value]
	if !ok {
		return nil, nil
	}
	return m.GetCompany(ctx, id)
}

func (m *memStore) CountFundingEvents(_ context.Context, companyID int64) (int64, error) {
	return m.eventCounts[companyID], nil
}

func (m *memStore) MergeCompanies(_ context.Context, keepID int64, mergeIDs []int64) error {
	for _, id := range mergeIDs {
		m.eventCounts[keepID] += m.eventCounts[id]
		delete(m.eventCounts, id)
		delete(m.companies, id)
	}
	m.mergeLog = append(m.mergeLog, append([]int64{keepID}, mergeIDs...))
	return nil
}

func (m *memStore) addCompany(name string, country, domain *string, seen string) int64 {
	c := &model.Company{Name: name, Country: country, Domain: domain, FirstSeen: &seen, LastSeen: &seen}
	_ = m.CreateCompany(context.Background(), c)
	return c.ID
}
