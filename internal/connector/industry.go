package connector

import "strconv"

// naicsSectors maps the two-digit NAICS sector prefix to a coarse industry
// label shared by the US connectors.
var naicsSectors = map[int]string{
	11: "Agriculture",
	21: "Mining",
	22: "Utilities",
	23: "Construction",
	31: "Manufacturing",
	32: "Manufacturing",
	33: "Manufacturing",
	42: "Wholesale Trade",
	44: "Retail Trade",
	45: "Retail Trade",
	48: "Transportation",
	49: "Transportation",
	51: "Information",
	52: "Finance",
	53: "Real Estate",
	54: "Professional Services",
	55: "Management",
	56: "Administrative Services",
	61: "Educational Services",
	62: "Healthcare",
	71: "Arts and Entertainment",
	72: "Accommodation and Food",
	81: "Other Services",
	92: "Public Administration",
}

// naicsToIndustry maps a NAICS code to its sector label. Unknown or malformed
// codes fall back to "Unknown".
func naicsToIndustry(code string) string {
	if len(code) < 2 {
		return "Unknown"
	}
	sector, err := strconv.Atoi(code[:2])
	if err != nil {
		return "Unknown"
	}
	if label, ok := naicsSectors[sector]; ok {
		return label
	}
	return "Unknown"
}

// sicRange maps a contiguous SIC code range to an industry label.
type sicRange struct {
	min, max string
	label    string
}

// sicRanges is an abbreviated SIC classification used for SEC filings, which
// carry SIC rather than NAICS codes.
var sicRanges = []sicRange{
	{"0100", "0999", "Agriculture"},
	{"1000", "1499", "Mining"},
	{"1500", "1799", "Construction"},
	{"2000", "3999", "Manufacturing"},
	{"4000", "4799", "Transportation"},
	{"4800", "4899", "Communications"},
	{"4900", "4999", "Utilities"},
	{"5000", "5199", "Wholesale Trade"},
	{"5200", "5999", "Retail Trade"},
	{"6000", "6799", "Finance"},
	{"7000", "8999", "Services"},
	{"9000", "9999", "Public Administration"},
}

// sicToIndustry maps a SIC code to an industry label, or "" when the code is
// absent. Codes outside the known ranges map to "Other".
func sicToIndustry(code string) string {
	if code == "" {
		return ""
	}
	for _, r := range sicRanges {
		if code >= r.min && code <= r.max {
			return r.label
		}
	}
	return "Other"
}
