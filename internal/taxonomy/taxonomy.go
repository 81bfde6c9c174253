// Package taxonomy infers the legal act a document belongs to from its file name.
//
// Classification is a pure keyword lookup over an ordered rule table. The
// table order is load-bearing: earlier rules win, and the table must stay
// stable so that labels assigned to already-indexed documents remain
// reproducible.
package taxonomy

import "strings"

// UnknownAct is returned when no rule matches the file name.
const UnknownAct = "Unknown Act"

// Rule maps a file name keyword to an act label.
type Rule struct {
	// Keyword is matched as a case-insensitive substring of the file name.
	Keyword string

	// Label is the act name assigned on match.
	Label string
}

// rules is the ordered classification table. First match wins.
// Do not reorder or edit existing entries; append only.
var rules = []Rule{
	{"ipc", "Indian Penal Code"},
	{"penal", "Indian Penal Code"},
	{"crpc", "Code of Criminal Procedure"},
	{"criminal", "Code of Criminal Procedure"},
	{"evidence", "Indian Evidence Act"},
	{"pocso", "POCSO Act"},
	{"contract", "Indian Contract Act"},
	{"domestic", "Domestic Violence Act"},
	{"motor", "Motor Vehicles Act"},
	{"negotiable", "Negotiable Instruments Act"},
	{"ni act", "Negotiable Instruments Act"},
	{"juvenile", "Juvenile Justice Act"},
	{"ndps", "NDPS Act"},
	// "it" is a broad substring and also catches names like
	// "constitution" (const-it-ution). Kept as-is for compatibility
	// with previously indexed data.
	{"it", "Information Technology Act"},
	{"information technology", "Information Technology Act"},
	{"constitution", "Constitution of India"},
}

// Classify returns the act label for a document file name.
//
// Matching is case-insensitive and consults the rule table top to bottom,
// returning the first matching label. Returns UnknownAct when nothing
// matches. The function is deterministic and has no side effects.
func Classify(filename string) string {
	f := strings.ToLower(filename)
	for _, r := range rules {
		if strings.Contains(f, r.Keyword) {
			return r.Label
		}
	}
	return UnknownAct
}

// Rules returns a copy of the classification table, in match order.
// Exposed so the table can be audited and tested as data.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}
