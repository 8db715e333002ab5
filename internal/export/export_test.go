package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/funding-harvester/internal/model"
	"github.com/sells-group/funding-harvester/internal/store"
)

func seededStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	country := "US"
	domain := "acme.com"
	c := &model.Company{Name: "Acme Robotics", Country: &country, Domain: &domain}
	require.NoError(t, st.CreateCompany(ctx, c))

	ftype := "US_GRANT"
	amount := 500000.0
	date := "2024-03-15"
	require.NoError(t, st.AddFundingEvent(ctx, &model.FundingEvent{
		CompanyID: c.ID, FundingType: &ftype, Amount: &amount, Date: &date, Source: "usaspending",
	}))
	return st
}

func TestExport_CSV(t *testing.T) {
	st := seededStore(t)
	dir := t.TempDir()

	path, err := NewExporter(st).Export(context.Background(), dir, FormatCSV, model.EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, ".csv", filepath.Ext(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, header, records[0])
	assert.Equal(t, []string{"Acme Robotics", "US", "acme.com", "US_GRANT", "500000.00", "2024-03-15", "usaspending"}, records[1])
}

func TestExport_XLSX(t *testing.T) {
	st := seededStore(t)
	dir := t.TempDir()

	path, err := NewExporter(st).Export(context.Background(), dir, FormatXLSX, model.EventFilter{})
	require.NoError(t, err)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "companies", sheet.Name)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "company_name", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Acme Robotics", sheet.Rows[1].Cells[0].String())
}

func TestExport_YAML(t *testing.T) {
	st := seededStore(t)
	dir := t.TempDir()

	path, err := NewExporter(st).Export(context.Background(), dir, FormatYAML, model.EventFilter{})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var rows []yamlRow
	require.NoError(t, yaml.Unmarshal(raw, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Acme Robotics", rows[0].CompanyName)
	assert.Equal(t, 500000.0, *rows[0].FundingAmount)
	assert.Equal(t, "usaspending", rows[0].Source)
}

func TestExport_UnknownFormat(t *testing.T) {
	st := seededStore(t)

	_, err := NewExporter(st).Export(context.Background(), t.TempDir(), Format("parquet"), model.EventFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}
