package connector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-harvester/internal/canonical"
)

const (
	// SourceSEC is the source key for SEC Form D filings.
	SourceSEC = "sec"

	secBaseURL = "https://www.sec.gov"
)

// SEC pulls Form D (exempt offering) filings from the EDGAR quarterly master
// index. The index carries no offering amount; those events land with a nil
// amount and are still useful as funding signals.
type SEC struct {
	client  *Client
	baseURL string
}

// NewSEC creates the SEC Form D connector.
func NewSEC(client *Client) *SEC {
	return &SEC{client: client, baseURL: secBaseURL}
}

func (s *SEC) Name() string { return SourceSEC }

// Fetch downloads every quarterly master index overlapping [start, end] and
// maps the Form D lines inside the window.
func (s *SEC) Fetch(ctx context.Context, start, end time.Time) (*FetchResult, error) {
	result := &FetchResult{}
	startISO := start.Format("2006-01-02")
	endISO := end.Format("2006-01-02")

	for _, q := range quartersBetween(start, end) {
		url := fmt.Sprintf("%s/Archives/edgar/full-index/%d/QTR%d/master.idx", s.baseURL, q.year, q.quarter)
		raw, err := s.client.GetText(ctx, url)
		if err != nil {
			return nil, eris.Wrapf(err, "sec: fetch index %d QTR%d", q.year, q.quarter)
		}
		result.RawPages = append(result.RawPages, raw)

		for _, line := range strings.Split(string(raw), "\n") {
			filing, ok := parseIndexLine(line)
			if !ok || filing.formType != "D" {
				continue
			}
			if filing.dateFiled < startISO || filing.dateFiled > endISO {
				continue
			}
			result.Events = append(result.Events, mapFormD(filing))
		}
	}

	zap.L().Info("sec: fetched Form D filings",
		zap.Int("events", len(result.Events)),
		zap.Int("indexes", len(result.RawPages)),
	)
	return result, nil
}

// formDFiling is one parsed line of the EDGAR master index.
type formDFiling struct {
	cik         string
	companyName string
	formType    string
	dateFiled   string
	filename    string
	sic         string
}

// parseIndexLine parses one pipe-delimited master index line:
// CIK|Company Name|Form Type|Date Filed|Filename. Header and separator lines
// fail the parse.
func parseIndexLine(line string) (formDFiling, bool) {
	parts := strings.Split(strings.TrimSpace(line), "|")
	if len(parts) < 5 {
		return formDFiling{}, false
	}
	f := formDFiling{
		cik:         strings.TrimSpace(parts[0]),
		companyName: strings.TrimSpace(parts[1]),
		formType:    strings.TrimSpace(parts[2]),
		dateFiled:   strings.TrimSpace(parts[3]),
		filename:    strings.TrimSpace(parts[4]),
	}
	if f.cik == "" || f.companyName == "" || f.dateFiled == "" {
		return formDFiling{}, false
	}
	// Header lines ("CIK|Company Name|...") have a non-numeric first column.
	for _, r := range f.cik {
		if r < '0' || r > '9' {
			return formDFiling{}, false
		}
	}
	return f, true
}

// mapFormD maps a parsed Form D filing to a canonical event. SEC filings are
// US-domiciled; the filing date stands in for the offering date.
func mapFormD(f formDFiling) canonical.Event {
	rawID := "SEC-" + f.dateFiled
	if f.cik != "" {
		rawID = fmt.Sprintf("CIK-%s-%s", f.cik, f.dateFiled)
	}

	var industry any
	if label := sicToIndustry(f.sic); label != "" {
		industry = label
	}

	return canonical.FromFields(map[string]any{
		"company_name": f.companyName,
		"funding_type": "SEC_FORM_D",
		"funding_date": f.dateFiled,
		"source":       SourceSEC,
		"country":      "US",
		"industry":     industry,
		"identifier":   map[string]string{"cik": f.cik},
		"raw_id":       rawID,
	})
}

type yearQuarter struct {
	year    int
	quarter int
}

// quartersBetween lists the calendar quarters touching [start, end].
func quartersBetween(start, end time.Time) []yearQuarter {
	var out []yearQuarter
	y, q := start.Year(), (int(start.Month())-1)/3+1
	endY, endQ := end.Year(), (int(end.Month())-1)/3+1
	for y < endY || (y == endY && q <= endQ) {
		out = append(out, yearQuarter{year: y, quarter: q})
		q++
		if q > 4 {
			q = 1
			y++
		}
	}
	return out
}
