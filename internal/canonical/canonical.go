// Package canonical coerces heterogeneous connector field values into the
// fixed canonical funding-event shape. Every function here is total:
// unparsable input degrades to nil, never to an error.
package canonical

import (
	"strconv"
	"strings"
	"time"
)

// Event is a funding observation normalized to the fixed field set,
// independent of source. CompanyName is always present (possibly empty);
// every other field is explicitly optional.
type Event struct {
	CompanyName string            `json:"company_name"`
	FundingType *string           `json:"funding_type,omitempty"`
	Amount      *float64          `json:"funding_amount,omitempty"`
	Date        *string           `json:"funding_date,omitempty"`
	Source      string            `json:"source"`
	Country     *string           `json:"country,omitempty"`
	Industry    *string           `json:"industry,omitempty"`
	Identifiers map[string]string `json:"identifier,omitempty"`
	RawID       *string           `json:"raw_id,omitempty"`
}

// dateLayouts are tried in order; the first that parses wins.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Text trims a value and collapses it to nil if empty after trimming.
func Text(v any) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(toString(v))
	if s == "" {
		return nil
	}
	return &s
}

// Date normalizes a date-ish value to an ISO date string (YYYY-MM-DD).
// Accepts time.Time and strings in a fixed set of layouts; if nothing parses
// but the value already looks like YYYY-MM-DD..., the first 10 characters are
// taken. Returns nil otherwise.
func Date(v any) *string {
	if v == nil {
		return nil
	}
	if t, ok := v.(time.Time); ok {
		s := t.Format("2006-01-02")
		return &s
	}
	s := strings.TrimSpace(toString(v))
	if s == "" {
		return nil
	}

	candidate := s
	if len(candidate) > 19 {
		candidate = candidate[:19]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, candidate); err == nil {
			out := t.Format("2006-01-02")
			return &out
		}
	}

	// Last resort: already shaped like an ISO date with a trailing suffix.
	if len(s) >= 10 && s[4] == '-' && s[7] == '-' {
		out := s[:10]
		return &out
	}
	return nil
}

// currencyStripper removes currency symbols, thousands separators, and
// whitespace before numeric parsing.
var currencyStripper = strings.NewReplacer(
	"$", "", "€", "", "£", "", "¥", "",
	",", "", " ", "", "USD", "", "usd", "",
)

// Amount normalizes a monetary value to a non-negative float. Numeric types
// pass through; strings are stripped of currency decoration first.
func Amount(v any) *float64 {
	if v == nil {
		return nil
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		s := currencyStripper.Replace(strings.TrimSpace(n))
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if f < 0 {
		return nil
	}
	return &f
}

// FromFields builds an Event from a map keyed by the canonical field set.
// Used for connectors that yield loosely-shaped records; the output struct is
// the only shape downstream code sees.
func FromFields(fields map[string]any) Event {
	ev := Event{
		FundingType: Text(fields["funding_type"]),
		Amount:      Amount(fields["funding_amount"]),
		Date:        Date(fields["funding_date"]),
		Country:     Text(fields["country"]),
		Industry:    Text(fields["industry"]),
		RawID:       Text(fields["raw_id"]),
		Identifiers: map[string]string{},
	}
	if name := Text(fields["company_name"]); name != nil {
		ev.CompanyName = *name
	}
	if src := Text(fields["source"]); src != nil {
		ev.Source = *src
	}
	if ids, ok := fields["identifier"].(map[string]string); ok {
		for k, v := range ids {
			if v != "" {
				ev.Identifiers[strings.ToLower(k)] = v
			}
		}
	}
	return ev
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return ""
	}
}
