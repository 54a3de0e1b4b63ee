// Package profile defines the demographic attributes an anonymous user
// declares about themselves and searches for in a partner, plus the
// compatibility predicate used by the matchmaking layer.
package profile

// Gender values a user may declare.
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderUnknown = "unknown"
)

// SearchAny is the wildcard for search attributes: any gender, any age.
const SearchAny = "any"

// AgeGroups is the closed set of declarable age brackets.
var AgeGroups = []string{"12-18", "18-25", "25-35", "35-60"}

// Preferences holds a user's declared attributes and what they search for.
type Preferences struct {
	Gender       string `json:"gender"`
	AgeGroup     string `json:"age_group"`
	SearchGender string `json:"search_gender"`
	SearchAge    string `json:"search_age"`
}

// ValidAgeGroup reports whether v is one of the declarable age brackets.
func ValidAgeGroup(v string) bool {
	for _, g := range AgeGroups {
		if v == g {
			return true
		}
	}
	return false
}

// ValidGender reports whether v is a declarable gender.
func ValidGender(v string) bool {
	return v == GenderMale || v == GenderFemale || v == GenderUnknown
}

// ValidSearchGender reports whether v is a usable search-gender value.
func ValidSearchGender(v string) bool {
	return v == SearchAny || v == GenderMale || v == GenderFemale
}

// ValidSearchAge reports whether v is a usable search-age value.
func ValidSearchAge(v string) bool {
	return v == SearchAny || ValidAgeGroup(v)
}

// Normalize coerces out-of-range attribute values to their safe defaults:
// an unrecognized gender becomes "unknown", unrecognized search values
// become "any". The age group is NOT coerced; callers validate it up front
// with ValidAgeGroup and reject bad values outright.
func Normalize(p Preferences) Preferences {
	if !ValidGender(p.Gender) {
		p.Gender = GenderUnknown
	}
	if !ValidSearchGender(p.SearchGender) {
		p.SearchGender = SearchAny
	}
	if !ValidSearchAge(p.SearchAge) {
		p.SearchAge = SearchAny
	}
	return p
}

// Compatible reports whether two users satisfy each other's search criteria.
// The check is bidirectional: a must want b AND b must want a, on both the
// gender and the age axis (four terms, all required).
//
// A direction's gender check passes when the searcher accepts any gender,
// the candidate's gender is unknown, or the values match exactly. The age
// check is analogous. Compatible(a, b) == Compatible(b, a) by construction.
func Compatible(a, b Preferences) bool {
	return wants(a.SearchGender, b.Gender) &&
		wants(a.SearchAge, b.AgeGroup) &&
		wants(b.SearchGender, a.Gender) &&
		wants(b.SearchAge, a.AgeGroup)
}

// wants is one axis of one direction of the compatibility check. An
// "unknown" declared value matches every search filter, so users who never
// declared an attribute remain matchable.
func wants(search, declared string) bool {
	return search == SearchAny || declared == GenderUnknown || search == declared
}
