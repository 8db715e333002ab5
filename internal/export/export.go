// Package export writes the normalized company/event dataset to disk in CSV,
// XLSX, or YAML form.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/funding-harvester/internal/model"
	"github.com/sells-group/funding-harvester/internal/store"
)

// Format selects the export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatYAML Format = "yaml"
)

// header is the column order shared by all formats.
var header = []string{
	"company_name", "country", "domain",
	"funding_type", "funding_amount", "funding_date", "source",
}

// Exporter writes company/event rows from the store to files.
type Exporter struct {
	store store.Store
}

// NewExporter creates an Exporter.
func NewExporter(st store.Store) *Exporter {
	return &Exporter{store: st}
}

// Export writes the dataset matching the filter into dir, named
// companies_<YYYYMMDD>.<ext>, and returns the written path.
func (e *Exporter) Export(ctx context.Context, dir string, format Format, filter model.EventFilter) (string, error) {
	rows, err := e.store.ListCompanyEvents(ctx, filter)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "export: create directory %s", dir)
	}
	path := filepath.Join(dir, fmt.Sprintf("companies_%s.%s", time.Now().UTC().Format("20060102"), format))

	switch format {
	case FormatCSV:
		err = writeCSV(path, rows)
	case FormatXLSX:
		err = writeXLSX(path, rows)
	case FormatYAML:
		err = writeYAML(path, rows)
	default:
		return "", eris.Errorf("export: unknown format %q", format)
	}
	if err != nil {
		return "", err
	}

	zap.L().Info("export: dataset written",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
	)
	return path, nil
}

func writeCSV(path string, rows []model.CompanyEvent) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, r := range rows {
		if err := w.Write(rowStrings(r)); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush csv")
}

func writeXLSX(path string, rows []model.CompanyEvent) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("companies")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	hr := sheet.AddRow()
	for _, h := range header {
		hr.AddCell().SetString(h)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range rowStrings(r) {
			row.AddCell().SetString(v)
		}
	}
	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

// yamlRow mirrors the header columns for the YAML encoding.
type yamlRow struct {
	CompanyName   string   `yaml:"company_name"`
	Country       *string  `yaml:"country"`
	Domain        *string  `yaml:"domain"`
	FundingType   *string  `yaml:"funding_type"`
	FundingAmount *float64 `yaml:"funding_amount"`
	FundingDate   *string  `yaml:"funding_date"`
	Source        string   `yaml:"source"`
}

func writeYAML(path string, rows []model.CompanyEvent) error {
	out := make([]yamlRow, len(rows))
	for i, r := range rows {
		out[i] = yamlRow{
			CompanyName:   r.Name,
			Country:       r.Country,
			Domain:        r.Domain,
			FundingType:   r.FundingType,
			FundingAmount: r.Amount,
			FundingDate:   r.Date,
			Source:        r.Source,
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	enc := yaml.NewEncoder(f)
	defer enc.Close() //nolint:errcheck
	return eris.Wrap(enc.Encode(out), "export: encode yaml")
}

func rowStrings(r model.CompanyEvent) []string {
	return []string{
		r.Name,
		derefString(r.Country),
		derefString(r.Domain),
		derefString(r.FundingType),
		formatAmount(r.Amount),
		derefString(r.Date),
		r.Source,
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatAmount(f *float64) string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *f)
}
