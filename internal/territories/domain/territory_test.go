package domain

import "testing"

func TestValidKind(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindZipcode, true},
		{KindCity, true},
		{KindCounty, true},
		{KindState, true},
		{Kind("region"), false},
		{Kind(""), false},
	}

	for _, tc := range tests {
		if got := ValidKind(tc.kind); got != tc.want {
			t.Errorf("ValidKind(%q) = %v, want %v", tc.kind, got, tc.want)
		}
	}
}

func TestValidPriority(t *testing.T) {
	for p := PriorityHighest; p <= PriorityLowest; p++ {
		if !ValidPriority(p) {
			t.Errorf("ValidPriority(%d) = false, want true", p)
		}
	}
	if ValidPriority(0) {
		t.Error("ValidPriority(0) should be false")
	}
	if ValidPriority(6) {
		t.Error("ValidPriority(6) should be false")
	}
}

func TestKeyNormalization(t *testing.T) {
	tests := []struct {
		kind  Kind
		value string
		want  string
	}{
		{KindZipcode, "10001", "zipcode:10001"},
		{KindZipcode, " 10001 ", "zipcode:10001"},
		{KindCity, "Beverly Hills", "city:beverly hills"},
		{KindCounty, "Los Angeles", "county:los angeles"},
		{KindState, "ca", "state:CA"},
		{KindState, " CA ", "state:CA"},
	}

	for _, tc := range tests {
		if got := Key(tc.kind, tc.value); got != tc.want {
			t.Errorf("Key(%q, %q) = %q, want %q", tc.kind, tc.value, got, tc.want)
		}
	}
}
