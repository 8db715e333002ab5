package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funding-harvester/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func strPtr(s string) *string { return &s }

func addCompany(t *testing.T, st *SQLiteStore, name string, country, domain, seen *string) *model.Company {
	t.Helper()
	c := &model.Company{Name: name, Country: country, Domain: domain, FirstSeen: seen, LastSeen: seen}
	require.NoError(t, st.CreateCompany(context.Background(), c))
	return c
}

// --- Companies ---

func TestSQLite_CreateCompany_And_GetCompany(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := &model.Company{Name: "Acme Robotics", Country: strPtr("US"), FirstSeen: strPtr("2023-01-15"), LastSeen: strPtr("2023-01-15")}
	require.NoError(t, st.CreateCompany(ctx, c))
	assert.NotZero(t, c.ID)

	fetched, err := st.GetCompany(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, "Acme Robotics", fetched.Name)
	require.NotNil(t, fetched.Country)
	assert.Equal(t, "US", *fetched.Country)
	assert.Nil(t, fetched.Domain)
}

func TestSQLite_GetCompany_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	c, err := st.GetCompany(context.Background(), 9999)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestSQLite_ListCompanies_FilterByCountry(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	addCompany(t, st, "US Corp", strPtr("US"), nil, strPtr("2023-01-01"))
	addCompany(t, st, "DE GmbH", strPtr("DE"), nil, strPtr("2023-01-02"))

	all, err := st.ListCompanies(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	us, err := st.ListCompanies(ctx, strPtr("US"))
	require.NoError(t, err)
	require.Len(t, us, 1)
	assert.Equal(t, "US Corp", us[0].Name)
}

func TestSQLite_SearchCompaniesByName(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	addCompany(t, st, "Acme Robotics Inc", nil, nil, strPtr("2023-01-01"))
	addCompany(t, st, "Globex Corporation", nil, nil, strPtr("2023-01-01"))

	got, err := st.SearchCompaniesByName(ctx, "acme", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Acme Robotics Inc", got[0].Name)
}

// --- TouchCompany ---

func TestSQLite_TouchCompany_WidensSeenSpan(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := addCompany(t, st, "Acme", nil, nil, strPtr("2023-06-01"))

	// Earlier observation moves first_seen back, leaves last_seen alone.
	require.NoError(t, st.TouchCompany(ctx, c.ID, "2023-01-01", nil, nil))
	// Later observation moves last_seen forward.
	require.NoError(t, st.TouchCompany(ctx, c.ID, "2024-03-15", nil, nil))
	// In-between observation changes nothing.
	require.NoError(t, st.TouchCompany(ctx, c.ID, "2023-09-09", nil, nil))

	fetched, err := st.GetCompany(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "2023-01-01", *fetched.FirstSeen)
	assert.Equal(t, "2024-03-15", *fetched.LastSeen)
}

func TestSQLite_TouchCompany_DomainFirstWriterWins(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := addCompany(t, st, "Acme", nil, nil, strPtr("2023-01-01"))

	require.NoError(t, st.TouchCompany(ctx, c.ID, "2023-02-01", strPtr("acme.com"), nil))
	require.NoError(t, st.TouchCompany(ctx, c.ID, "2023-03-01", strPtr("other.com"), nil))

	fetched, err := st.GetCompany(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.Domain)
	assert.Equal(t, "acme.com", *fetched.Domain)
}

func TestSQLite_TouchCompany_NameOnlyWhenProvided(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := addCompany(t, st, "Acme Robotics", nil, nil, strPtr("2023-01-01"))

	// nil name leaves the existing name alone.
	require.NoError(t, st.TouchCompany(ctx, c.ID, "2023-02-01", nil, nil))
	fetched, err := st.GetCompany(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Robotics", fetched.Name)

	// A provided name overwrites it.
	require.NoError(t, st.TouchCompany(ctx, c.ID, "2023-03-01", nil, strPtr("Acme Robotics Inc")))
	fetched, err = st.GetCompany(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Robotics Inc", fetched.Name)
}

func TestSQLite_TouchCompany_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.TouchCompany(context.Background(), 424242, "2023-01-01", nil, nil)
	assert.Error(t, err)
}

// --- Identifiers ---

func TestSQLite_Identifier_UpsertAndFind(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := addCompany(t, st, "Acme", nil, nil, strPtr("2023-01-01"))

	err := st.UpsertIdentifier(ctx, &model.Identifier{CompanyID: c.ID, Kind: model.IdentifierUEI, Value: "ABC123DEF456"})
	require.NoError(t, err)

	found, err := st.FindCompanyByIdentifier(ctx, model.IdentifierUEI, "ABC123DEF456")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, c.ID, found.ID)
}

func TestSQLite_Identifier_UpsertIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := addCompany(t, st, "Acme", nil, nil, strPtr("2023-01-01"))

	ident := &model.Identifier{CompanyID: c.ID, Kind: model.IdentifierCIK, Value: "0001234567"}
	require.NoError(t, st.UpsertIdentifier(ctx, ident))
	require.NoError(t, st.UpsertIdentifier(ctx, ident)) // second insert is a no-op

	found, err := st.FindCompanyByIdentifier(ctx, model.IdentifierCIK, "0001234567")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, c.ID, found.ID)
}

func TestSQLite_FindCompanyByIdentifier_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	found, err := st.FindCompanyByIdentifier(context.Background(), model.IdentifierDUNS, "nope")
	require.NoError(t, err)
	assert.Nil(t, found)
}

// --- Funding events ---

func TestSQLite_AddFundingEvent_And_Count(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := addCompany(t, st, "Acme", nil, nil, strPtr("2023-01-01"))

	amount := 1250000.0
	ev := &model.FundingEvent{
		CompanyID:   c.ID,
		FundingType: strPtr("US_GRANT"),
		Amount:      &amount,
		Date:        strPtr("2023-01-15"),
		Source:      "usaspending",
		RawID:       strPtr("AWD-001"),
	}
	require.NoError(t, st.AddFundingEvent(ctx, ev))
	assert.NotZero(t, ev.ID)

	n, err := st.CountFundingEvents(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLite_ListCompanyEvents_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	acme := addCompany(t, st, "Acme Robotics", nil, nil, strPtr("2023-01-01"))
	globex := addCompany(t, st, "Globex", nil, nil, strPtr("2023-01-01"))

	require.NoError(t, st.AddFundingEvent(ctx, &model.FundingEvent{
		CompanyID: acme.ID, FundingType: strPtr("US_GRANT"), Source: "usaspending", Date: strPtr("2023-02-01"),
	}))
	require.NoError(t, st.AddFundingEvent(ctx, &model.FundingEvent{
		CompanyID: acme.ID, FundingType: strPtr("VC_ROUND"), Source: "sec_form_d", Date: strPtr("2023-03-01"),
	}))
	require.NoError(t, st.AddFundingEvent(ctx, &model.FundingEvent{
		CompanyID: globex.ID, FundingType: strPtr("US_GRANT"), Source: "usaspending", Date: strPtr("2023-04-01"),
	}))

	bySource, err := st.ListCompanyEvents(ctx, model.EventFilter{Source: "sec_form_d"})
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Equal(t, "Acme Robotics", bySource[0].Name)

	byType, err := st.ListCompanyEvents(ctx, model.EventFilter{FundingType: "US_GRANT"})
	require.NoError(t, err)
	assert.Len(t, byType, 2)

	byName, err := st.ListCompanyEvents(ctx, model.EventFilter{NameQuery: "globex"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "Globex", byName[0].Name)

	limited, err := st.ListCompanyEvents(ctx, model.EventFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

// --- Merge ---

func TestSQLite_MergeCompanies_RepointsAndWidensSpan(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	keep := addCompany(t, st, "Acme Robotics Inc", nil, strPtr("acme.com"), strPtr("2023-06-01"))
	dupe := addCompany(t, st, "Acme Robotics", nil, nil, strPtr("2022-01-15"))

	require.NoError(t, st.AddFundingEvent(ctx, &model.FundingEvent{CompanyID: keep.ID, Source: "usaspending"}))
	require.NoError(t, st.AddFundingEvent(ctx, &model.FundingEvent{CompanyID: dupe.ID, Source: "sec_form_d"}))
	require.NoError(t, st.UpsertIdentifier(ctx, &model.Identifier{CompanyID: dupe.ID, Kind: model.IdentifierCIK, Value: "0009999999"}))

	require.NoError(t, st.MergeCompanies(ctx, keep.ID, []int64{dupe.ID}))

	// Merged company is gone.
	gone, err := st.GetCompany(ctx, dupe.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// Its events and identifiers now belong to the keeper.
	n, err := st.CountFundingEvents(ctx, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	byIdent, err := st.FindCompanyByIdentifier(ctx, model.IdentifierCIK, "0009999999")
	require.NoError(t, err)
	require.NotNil(t, byIdent)
	assert.Equal(t, keep.ID, byIdent.ID)

	// Seen span covers both original spans.
	survivor, err := st.GetCompany(ctx, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, "2022-01-15", *survivor.FirstSeen)
	assert.Equal(t, "2023-06-01", *survivor.LastSeen)
}

func TestSQLite_MergeCompanies_MissingTargetRollsBack(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	keep := addCompany(t, st, "Keeper", nil, nil, strPtr("2023-01-01"))
	dupe := addCompany(t, st, "Dupe", nil, nil, strPtr("2023-02-01"))
	require.NoError(t, st.AddFundingEvent(ctx, &model.FundingEvent{CompanyID: dupe.ID, Source: "usaspending"}))

	// One real target plus one that does not exist: delete count mismatch.
	err := st.MergeCompanies(ctx, keep.ID, []int64{dupe.ID, 424242})
	require.Error(t, err)

	// Nothing was re-pointed or deleted.
	still, err := st.GetCompany(ctx, dupe.ID)
	require.NoError(t, err)
	require.NotNil(t, still)

	n, err := st.CountFundingEvents(ctx, dupe.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLite_MergeCompanies_EmptyList(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.MergeCompanies(context.Background(), 1, nil)
	assert.Error(t, err)
}

// --- Ingestion run ledger ---

func TestSQLite_IngestRun_StartComplete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.StartIngestRun(ctx, "usaspending")
	require.NoError(t, err)
	assert.NotZero(t, run.ID)
	assert.NotEmpty(t, run.RunKey)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	require.NoError(t, st.CompleteIngestRun(ctx, run.ID, 120, 118))

	runs, err := st.ListIngestRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusSuccess, runs[0].Status)
	assert.Equal(t, 120, runs[0].RecordsFetched)
	assert.Equal(t, 118, runs[0].RecordsNormalized)
	assert.NotNil(t, runs[0].FinishedAt)
	assert.Nil(t, runs[0].Error)
}

func TestSQLite_IngestRun_Fail(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.StartIngestRun(ctx, "sec_form_d")
	require.NoError(t, err)

	require.NoError(t, st.FailIngestRun(ctx, run.ID, 40, 0, "fetch: status 503"))

	runs, err := st.ListIngestRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	require.NotNil(t, runs[0].Error)
	assert.Contains(t, *runs[0].Error, "503")
}

func TestSQLite_ListIngestRuns_NewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.StartIngestRun(ctx, "usaspending")
	require.NoError(t, err)
	second, err := st.StartIngestRun(ctx, "sbir")
	require.NoError(t, err)

	runs, err := st.ListIngestRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
}

// --- Raw payload audit trail ---

func TestSQLite_RecordRawPayloads(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.RecordRawPayloads(ctx, "usaspending", [][]byte{
		[]byte(`{"page":1}`),
		[]byte(`{"page":2}`),
	})
	require.NoError(t, err)

	var n int
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_ingest WHERE source = ?`, "usaspending").Scan(&n))
	assert.Equal(t, 2, n)
}

func TestSQLite_RecordRawPayloads_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	require.NoError(t, st.RecordRawPayloads(context.Background(), "usaspending", nil))
}

// --- Migrate ---

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)

	require.NoError(t, st.Migrate(context.Background()))
}
