package resolve

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are entity-type tokens dropped during name normalization.
var legalSuffixes = map[string]bool{
	"corp": true, "corporation": true, "incorporated": true, "inc": true,
	"llc": true, "limited": true, "ltd": true, "co": true, "company": true,
}

// stopWords are generic business words and English function words that carry
// no identity signal in a company name.
var stopWords = map[string]bool{
	"the": true, "and": true, "or": true, "but": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "of": true, "with": true, "by": true,
	"a": true, "an": true, "as": true, "if": true, "it": true, "is": true,
	"was": true, "be": true, "been": true, "being": true, "have": true,
	"has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "may": true,
	"might": true, "must": true, "can": true,
	"group": true, "holdings": true, "enterprises": true, "solutions": true,
	"systems": true, "technologies": true, "international": true,
	"global": true, "usa": true, "us": true, "america": true,
}

// asciiFold strips combining diacritical marks so that accented and plain
// spellings of the same name normalize identically.
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName reduces a company name to its comparable core: diacritics
// folded, lowercased, punctuation collapsed to spaces, legal suffixes and
// stop words removed.
func NormalizeName(name string) string {
	if name == "" {
		return ""
	}
	if folded, _, err := transform.String(asciiFold, name); err == nil {
		name = folded
	}
	name = strings.ToLower(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	var kept []string
	for _, tok := range strings.Fields(b.String()) {
		if legalSuffixes[tok] || stopWords[tok] {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// acronym derives the acronym of a multi-word normalized name. Single-word
// names have no acronym.
func acronym(name string) string {
	words := strings.Fields(name)
	if len(words) <= 1 {
		return ""
	}
	var b strings.Builder
	for _, w := range words {
		r := []rune(w)
		b.WriteRune(unicode.ToUpper(r[0]))
	}
	return b.String()
}

// acronymMatch reports whether two normalized names match on acronym form:
// both reduce to the same >=3 letter acronym, or one name (spaces removed,
// uppercased) equals the other's acronym.
func acronymMatch(a, b string) bool {
	acrA, acrB := acronym(a), acronym(b)
	if len(acrA) >= 3 && acrA == acrB {
		return true
	}
	collapsedA := strings.ToUpper(strings.ReplaceAll(a, " ", ""))
	collapsedB := strings.ToUpper(strings.ReplaceAll(b, " ", ""))
	return (acrA != "" && acrA == collapsedB) || (acrB != "" && acrB == collapsedA)
}

// collapseAlnum reduces a raw company name to a domain-like token: lowercase
// alphanumerics only. Returns "" when the collapse is too short to be a
// meaningful signal.
func collapseAlnum(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() <= 3 {
		return ""
	}
	return b.String()
}
