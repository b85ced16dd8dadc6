package carrier

import "testing"

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already normalized", "+15551230000", "+15551230000"},
		{"missing plus", "15551230000", "+15551230000"},
		{"spaces and dashes", "+1 555-123-0000", "+15551230000"},
		{"parentheses", "(555) 123.0000", "+5551230000"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeNumber(tt.input); got != tt.want {
				t.Errorf("NormalizeNumber(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
