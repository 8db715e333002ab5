package connector

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-harvester/internal/canonical"
)

const (
	// SourceUSASpending is the source key for USAspending.gov awards.
	SourceUSASpending = "usaspending"

	usaspendingBaseURL  = "https://api.usaspending.gov"
	usaspendingPageSize = 100
)

// awardFields is the field projection requested from the search endpoint.
var awardFields = []string{
	"Award ID", "Recipient Name", "Award Amount", "Award Type",
	"Action Date", "Recipient UEI", "Recipient DUNS", "NAICS Code",
	"Recipient Country", "generated_unique_award_id",
}

// USASpending pulls prime awards from the USAspending.gov search API.
type USASpending struct {
	client  *Client
	baseURL string
}

// NewUSASpending creates the USAspending connector.
func NewUSASpending(client *Client) *USASpending {
	return &USASpending{client: client, baseURL: usaspendingBaseURL}
}

func (u *USASpending) Name() string { return SourceUSASpending }

type usaspendingResponse struct {
	Results      []map[string]any `json:"results"`
	PageMetadata struct {
		Page    int  `json:"page"`
		HasNext bool `json:"hasNext"`
	} `json:"page_metadata"`
}

// Fetch pages through /api/v2/search/spending_by_award/ for the window.
func (u *USASpending) Fetch(ctx context.Context, start, end time.Time) (*FetchResult, error) {
	result := &FetchResult{}

	for page := 1; ; page++ {
		body := map[string]any{
			"filters": map[string]any{
				"time_period": []map[string]string{{
					"start_date": start.Format("2006-01-02"),
					"end_date":   end.Format("2006-01-02"),
				}},
				"award_type_codes": []string{"A", "B", "C", "D", "02", "03", "04", "05"},
			},
			"fields": awardFields,
			"page":   page,
			"limit":  usaspendingPageSize,
		}

		var resp usaspendingResponse
		raw, err := u.client.PostJSON(ctx, u.baseURL+"/api/v2/search/spending_by_award/", body, &resp)
		if err != nil {
			return nil, eris.Wrapf(err, "usaspending: fetch page %d", page)
		}
		result.RawPages = append(result.RawPages, raw)

		for _, rec := range resp.Results {
			result.Events = append(result.Events, mapAward(rec))
		}

		if !resp.PageMetadata.HasNext {
			break
		}
	}

	zap.L().Info("usaspending: fetched awards",
		zap.Int("events", len(result.Events)),
		zap.Int("pages", len(result.RawPages)),
	)
	return result, nil
}

// mapAward maps one search result to a canonical event. Key variants are
// handled defensively: the API has shipped both snake_case and display-name
// keys depending on the fields projection.
func mapAward(rec map[string]any) canonical.Event {
	recipient, _ := rec["recipient"].(map[string]any)

	name := firstValue(rec, "recipient_name", "Recipient Name")
	if name == nil && recipient != nil {
		name = firstValue(recipient, "recipient_name", "recipient_name_raw")
	}
	country := firstValue(rec, "recipient_country", "Recipient Country")
	if country == nil && recipient != nil {
		country = firstValue(recipient, "location_country_code", "location_country_name")
	}

	identifiers := map[string]string{}
	if uei := canonical.Text(firstValue(rec, "recipient_uei", "Recipient UEI")); uei != nil {
		identifiers["uei"] = *uei
	}
	if duns := canonical.Text(firstValue(rec, "recipient_duns", "Recipient DUNS")); duns != nil {
		identifiers["duns"] = *duns
	}

	var industry any
	if naics := canonical.Text(firstValue(rec, "naics_code", "NAICS Code")); naics != nil {
		industry = naicsToIndustry(*naics)
	}

	return canonical.FromFields(map[string]any{
		"company_name":   name,
		"funding_type":   inferFundingType(rec),
		"funding_amount": firstValue(rec, "award_amount", "Award Amount", "total_obligation", "obligation"),
		"funding_date":   firstValue(rec, "action_date", "Action Date"),
		"source":         SourceUSASpending,
		"country":        country,
		"industry":       industry,
		"identifier":     identifiers,
		"raw_id":         firstValue(rec, "piid", "fain", "uri", "Award ID", "generated_unique_award_id"),
	})
}

// inferFundingType maps USAspending award type codes to a coarse funding
// type: contracts (A-D) vs assistance (02-05), with US_AWARD as the catch-all.
func inferFundingType(rec map[string]any) string {
	code := canonical.Text(firstValue(rec, "type", "award_type", "prime_award_type", "Award Type"))
	if code == nil {
		return "US_AWARD"
	}
	switch *code {
	case "A", "B", "C", "D":
		return "US_CONTRACT"
	case "02", "03", "04", "05":
		return "US_GRANT"
	default:
		return "US_AWARD"
	}
}

// firstValue returns the first non-nil value among the given keys.
func firstValue(rec map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
