package profile

import "testing"

func prefs(gender, age, searchGender, searchAge string) Preferences {
	return Preferences{
		Gender:       gender,
		AgeGroup:     age,
		SearchGender: searchGender,
		SearchAge:    searchAge,
	}
}

func TestCompatible(t *testing.T) {
	cases := []struct {
		name string
		a, b Preferences
		want bool
	}{
		{
			"both wildcard",
			prefs(GenderMale, "18-25", SearchAny, SearchAny),
			prefs(GenderFemale, "25-35", SearchAny, SearchAny),
			true,
		},
		{
			"mutual exact match",
			prefs(GenderMale, "18-25", GenderFemale, "18-25"),
			prefs(GenderFemale, "18-25", GenderMale, "18-25"),
			true,
		},
		{
			"one side gender mismatch",
			prefs(GenderMale, "18-25", GenderFemale, SearchAny),
			prefs(GenderFemale, "18-25", GenderFemale, SearchAny),
			false,
		},
		{
			"one side age mismatch",
			prefs(GenderMale, "18-25", SearchAny, "25-35"),
			prefs(GenderFemale, "18-25", SearchAny, SearchAny),
			false,
		},
		{
			"unknown gender matches a specific search",
			prefs(GenderUnknown, "18-25", SearchAny, SearchAny),
			prefs(GenderFemale, "18-25", GenderMale, SearchAny),
			true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Compatible(tc.a, tc.b); got != tc.want {
				t.Errorf("Compatible(a, b) = %v, want %v", got, tc.want)
			}
			// The predicate must be symmetric.
			if got := Compatible(tc.b, tc.a); got != tc.want {
				t.Errorf("Compatible(b, a) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	p := Normalize(prefs("martian", "18-25", "robots", "everything"))
	if p.Gender != GenderUnknown {
		t.Errorf("gender: expected %q, got %q", GenderUnknown, p.Gender)
	}
	if p.SearchGender != SearchAny {
		t.Errorf("search_gender: expected %q, got %q", SearchAny, p.SearchGender)
	}
	if p.SearchAge != SearchAny {
		t.Errorf("search_age: expected %q, got %q", SearchAny, p.SearchAge)
	}
	// Age group passes through untouched; callers validate it separately.
	if p.AgeGroup != "18-25" {
		t.Errorf("age_group: expected %q, got %q", "18-25", p.AgeGroup)
	}
}

func TestValidAgeGroup(t *testing.T) {
	for _, g := range AgeGroups {
		if !ValidAgeGroup(g) {
			t.Errorf("expected %q to be valid", g)
		}
	}
	for _, g := range []string{"", "any", "60+", "18 - 25"} {
		if ValidAgeGroup(g) {
			t.Errorf("expected %q to be invalid", g)
		}
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"bob", "alice_92", "Катя", "a1_", "abcdefghijklmnopqr"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q): unexpected error: %v", name, err)
		}
	}

	invalid := []string{
		"ab",                  // too short
		"abcdefghijklmnopqrs", // too long
		"has space",
		"dash-name",
		"émile", // accented latin not in the alphabet
		"admin",
		"xXadminXx", // reserved as substring
		"SYSTEM_1",
		"root",
	}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q): expected error, got nil", name)
		}
	}
}

func TestFormatName(t *testing.T) {
	if got := FormatName("alice!92"); got != "alice92" {
		t.Errorf("expected %q, got %q", "alice92", got)
	}
	if got := FormatName("abcdefghijklmnopqrstuvwxyz"); got != "abcdefghijklmnopqr" {
		t.Errorf("truncation: got %q (len %d)", got, len(got))
	}
}
