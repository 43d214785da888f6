// internal/process/prefill/markers.go
package prefill

import (
	"strings"
	"unicode"
)

// MarkerTable is the single configurable list of text markers driving the
// best-effort party parsing. One table serves both contract-party parsing
// and document-analysis parsing; the matching is inherently fuzzy.
type MarkerTable struct {
	// BuyerRoles mark a party entry as "the buyer".
	BuyerRoles []string
	// CompanyMarkers mark a party entry as "the company/seller".
	CompanyMarkers []string
	// Connectors are filler words that may surround a role marker inside a
	// role-designation clause ("COMO COMPRADOR", "NA QUALIDADE DE VENDEDOR").
	Connectors []string
	// Honorifics are title prefixes stripped from extracted names.
	Honorifics []string
}

// DefaultMarkers returns the Portuguese + English marker set.
func DefaultMarkers() MarkerTable {
	return MarkerTable{
		BuyerRoles: []string{
			"COMPRADOR", "COMPRADORA", "CLIENTE", "CONTRATANTE",
			"BUYER", "CLIENT", "CONTRACTING PARTY",
		},
		CompanyMarkers: []string{
			"VENDEDOR", "VENDEDORA", "CONTRATADA", "EMPRESA",
			"LTDA", "S.A.", "EIRELI", "ME",
			"SELLER", "COMPANY", "LTD", "INC",
		},
		Connectors: []string{
			"COMO", "NA", "QUALIDADE", "DE", "DO", "DA",
			"AS", "THE", "IN", "CAPACITY", "OF",
		},
		Honorifics: []string{
			"SR.", "SRA.", "SRTA.", "DR.", "DRA.",
			"MR.", "MRS.", "MS.", "DR.",
		},
	}
}

// normalize uppercases and pads the text so markers match on word
// boundaries.
func normalize(text string) string {
	upper := strings.ToUpper(strings.TrimSpace(text))
	upper = strings.Join(strings.Fields(upper), " ")
	return " " + upper + " "
}

func containsMarker(text string, markers []string) bool {
	norm := normalize(text)
	for _, m := range markers {
		if strings.Contains(norm, " "+m+" ") {
			return true
		}
	}
	return false
}

// IsBuyerParty reports whether the party text designates the buyer.
func (t MarkerTable) IsBuyerParty(text string) bool {
	return containsMarker(text, t.BuyerRoles)
}

// IsCompanyParty reports whether the party text designates the
// company/seller side.
func (t MarkerTable) IsCompanyParty(text string) bool {
	return containsMarker(text, t.CompanyMarkers)
}

// ExtractName pulls a candidate name out of a party entry: comma-separated
// segments that are pure role designation are dropped, the rest is rejoined
// and a leading honorific trimmed. "CLIENTE EXEMPLO, COMO COMPRADOR"
// yields "CLIENTE EXEMPLO".
func (t MarkerTable) ExtractName(text string) string {
	var kept []string
	for _, seg := range strings.Split(text, ",") {
		seg = strings.TrimSpace(seg)
		if seg == "" || t.roleOnly(seg) {
			continue
		}
		kept = append(kept, seg)
	}

	name := strings.TrimSpace(strings.Join(kept, " "))
	return t.trimHonorific(name)
}

// roleOnly reports whether the segment consists solely of role markers and
// connector words.
func (t MarkerTable) roleOnly(seg string) bool {
	norm := normalize(seg)
	for _, m := range append(append([]string{}, t.BuyerRoles...), t.CompanyMarkers...) {
		norm = strings.ReplaceAll(norm, " "+m+" ", " ")
	}

	for _, word := range strings.Fields(norm) {
		if !t.isConnector(word) {
			return false
		}
	}
	return true
}

func (t MarkerTable) isConnector(word string) bool {
	for _, c := range t.Connectors {
		if word == c {
			return true
		}
	}
	return false
}

func (t MarkerTable) trimHonorific(name string) string {
	upper := strings.ToUpper(name)
	for _, h := range t.Honorifics {
		if strings.HasPrefix(upper, h+" ") {
			return strings.TrimSpace(name[len(h):])
		}
	}
	return name
}

// countDigits counts decimal digits, ignoring formatting characters.
// 11 digits identify a personal tax id, 14 a company tax id.
func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
