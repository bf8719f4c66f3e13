package sanitize

import "strings"

// Keyword policy for the Energy/Grid climate domain. The lists are heuristic
// and maintained by hand; keep them small and reviewable.

// negativeTerms mark a sub_sector as out of domain regardless of any
// positive match. Finance, payments, and crypto-adjacent vocabulary.
var negativeTerms = []string{
	"fintech",
	"payment",
	"payments",
	"crypto",
	"cryptocurrency",
	"blockchain",
	"bitcoin",
	"defi",
	"nft",
	"neobank",
	"banking",
	"brokerage",
	"trading",
	"lending",
}

// brandDenylist rejects well-known non-domain companies by name even when
// the reported sub_sector looks plausible.
var brandDenylist = []string{
	"robinhood",
	"coinbase",
	"binance",
	"kraken",
	"stripe",
	"revolut",
	"chime",
}

// positiveTerms must match a non-empty sub_sector at least once for the
// event to be kept.
var positiveTerms = []string{
	"energy",
	"grid",
	"solar",
	"wind",
	"battery",
	"batteries",
	"storage",
	"ev",
	"charging",
	"electric",
	"electricity",
	"renewable",
	"renewables",
	"hydrogen",
	"transmission",
	"metering",
	"geothermal",
	"nuclear",
	"fusion",
	"microgrid",
	"utility",
	"power",
	"climate",
	"carbon",
	"ccus",
	"decarbonization",
	"heat pump",
	"cleantech",
}

// isClimateRelevant applies the keyword policy. An absent sub_sector is
// accepted by default: absence of signal is not rejection. A present
// sub_sector must avoid every negative term and hit at least one positive
// term.
func isClimateRelevant(startupName string, subSector *string) bool {
	name := strings.ToLower(startupName)
	for _, brand := range brandDenylist {
		if containsTerm(name, brand) {
			return false
		}
	}

	if subSector == nil {
		return true
	}
	text := strings.ToLower(*subSector)

	for _, term := range negativeTerms {
		if containsTerm(text, term) {
			return false
		}
	}
	for _, term := range positiveTerms {
		if containsTerm(text, term) {
			return true
		}
	}
	return false
}

// containsTerm matches a term against lowercase text. Short terms ("ev")
// match whole tokens only so "every" does not count; longer terms use plain
// substring containment.
func containsTerm(text, term string) bool {
	if len(term) > 3 {
		return strings.Contains(text, term)
	}
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if tok == term {
			return true
		}
	}
	return false
}
