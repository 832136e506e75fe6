package validation

import "testing"

func TestValidateAnswerOption(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"A", "B", "C", "D"} {
		if err := ValidateAnswerOption(valid); err != nil {
			t.Errorf("ValidateAnswerOption(%q) returned error: %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "a", "E", "AB"} {
		if err := ValidateAnswerOption(invalid); err == nil {
			t.Errorf("ValidateAnswerOption(%q): expected error, got nil", invalid)
		}
	}
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims whitespace", "  hello  ", "hello"},
		{"removes control characters", "he\x00llo", "hello"},
		{"keeps newlines and tabs", "a\n\tb", "a\n\tb"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
