package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"us national format", "(312) 555-0175", "+13125550175"},
		{"already e164", "+13125550175", "+13125550175"},
		{"with whitespace", "  312-555-0175  ", "+13125550175"},
		{"empty", "", ""},
		{"unparseable kept verbatim", "not-a-number", "not-a-number"},
		{"invalid number kept verbatim", "123", "123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeE164(tt.input); got != tt.want {
				t.Errorf("NormalizeE164(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
