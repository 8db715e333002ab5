package connector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-harvester/internal/canonical"
)

const (
	// SourceSBIR is the source key for SBIR/STTR awards.
	SourceSBIR = "sbir"

	sbirBaseURL  = "https://api.www.sbir.gov"
	sbirPageSize = 100
)

// SBIR pulls SBIR/STTR awards from the sbir.gov public awards API.
type SBIR struct {
	client  *Client
	baseURL string
}

// NewSBIR creates the SBIR/STTR connector.
func NewSBIR(client *Client) *SBIR {
	return &SBIR{client: client, baseURL: sbirBaseURL}
}

func (s *SBIR) Name() string { return SourceSBIR }

// Fetch pages through the awards endpoint and keeps awards dated in the
// window. The API filters by award year only, so date trimming happens here.
func (s *SBIR) Fetch(ctx context.Context, start, end time.Time) (*FetchResult, error) {
	result := &FetchResult{}
	startISO := start.Format("2006-01-02")
	endISO := end.Format("2006-01-02")

	for year := start.Year(); year <= end.Year(); year++ {
		for offset := 0; ; offset += sbirPageSize {
			q := url.Values{}
			q.Set("year", fmt.Sprintf("%d", year))
			q.Set("start", fmt.Sprintf("%d", offset))
			q.Set("rows", fmt.Sprintf("%d", sbirPageSize))

			var awards []map[string]any
			raw, err := s.client.GetJSON(ctx, s.baseURL+"/public/api/awards?"+q.Encode(), &awards)
			if err != nil {
				return nil, eris.Wrapf(err, "sbir: fetch year %d offset %d", year, offset)
			}
			if len(awards) == 0 {
				break
			}
			result.RawPages = append(result.RawPages, raw)

			for _, rec := range awards {
				ev := mapSBIRAward(rec)
				if ev.Date != nil && (*ev.Date < startISO || *ev.Date > endISO) {
					continue
				}
				result.Events = append(result.Events, ev)
			}

			if len(awards) < sbirPageSize {
				break
			}
		}
	}

	zap.L().Info("sbir: fetched awards",
		zap.Int("events", len(result.Events)),
		zap.Int("pages", len(result.RawPages)),
	)
	return result, nil
}

// mapSBIRAward maps one award record to a canonical event.
func mapSBIRAward(rec map[string]any) canonical.Event {
	name := canonical.Text(firstValue(rec, "company_name", "firm_name", "recipient_name", "awardee_name"))

	identifiers := map[string]string{}
	if uei := canonical.Text(firstValue(rec, "uei", "uei_number")); uei != nil {
		identifiers["uei"] = *uei
	}
	if duns := canonical.Text(firstValue(rec, "duns", "duns_number")); duns != nil {
		identifiers["duns"] = *duns
	}

	var industry any
	if naics := canonical.Text(firstValue(rec, "naics_code", "naics")); naics != nil {
		industry = naicsToIndustry(*naics)
	} else {
		industry = firstValue(rec, "industry", "sector", "naics_description")
	}

	var companyName string
	if name != nil {
		companyName = *name
	}

	return canonical.FromFields(map[string]any{
		"company_name":   companyName,
		"funding_type":   classifySBIRType(rec),
		"funding_amount": firstValue(rec, "award_amount", "amount", "total_award_amount", "funding_amount"),
		"funding_date":   firstValue(rec, "award_date", "start_date", "funding_date", "announced_date", "effective_date"),
		"source":         SourceSBIR,
		"country":        "US",
		"industry":       industry,
		"identifier":     identifiers,
		"raw_id":         sbirRawID(rec, companyName),
	})
}

// classifySBIRType derives SBIR_PHASE_N / STTR_PHASE_N from the program and
// phase fields. Unknown phases default to phase 1.
func classifySBIRType(rec map[string]any) string {
	program := ""
	if p := canonical.Text(firstValue(rec, "program")); p != nil {
		program = strings.ToUpper(*p)
	}
	base := "SBIR"
	if strings.Contains(program, "STTR") {
		base = "STTR"
	}

	phase := "1"
	if p := canonical.Text(firstValue(rec, "phase")); p != nil {
		phase = *p
	}
	switch strings.ToUpper(phase) {
	case "2", "II":
		return base + "_PHASE_2"
	case "3", "III":
		return base + "_PHASE_3"
	default:
		return base + "_PHASE_1"
	}
}

// sbirRawID prefers the official award identifiers, falling back to a
// synthesized key from agency, phase, date, and company.
func sbirRawID(rec map[string]any, companyName string) string {
	if id := canonical.Text(firstValue(rec, "award_id", "contract_number", "award_number", "proposal_number")); id != nil {
		return "SBIR-" + *id
	}

	agency := "UNK"
	if a := canonical.Text(firstValue(rec, "agency", "funding_agency")); a != nil {
		agency = *a
	}
	phase := "1"
	if p := canonical.Text(firstValue(rec, "phase")); p != nil {
		phase = *p
	}
	date := "UNK"
	if d := canonical.Date(firstValue(rec, "award_date", "start_date", "funding_date")); d != nil {
		date = *d
	}
	company := "UNKNOWN"
	if companyName != "" {
		company = strings.ReplaceAll(companyName, " ", "")
		if len(company) > 15 {
			company = company[:15]
		}
	}
	return fmt.Sprintf("SBIR-%s-%s-%s-%s", agency, phase, date, company)
}
