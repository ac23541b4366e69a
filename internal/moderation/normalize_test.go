package moderation

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text unchanged",
			input:    "selling a barely used road bike",
			expected: "selling a barely used road bike",
		},
		{
			name:     "collapses whitespace runs",
			input:    "too   much\t\twhitespace\n\nhere",
			expected: "too much whitespace here",
		},
		{
			name:     "trims surrounding whitespace",
			input:    "   padded   ",
			expected: "padded",
		},
		{
			name:     "strips zero width characters",
			input:    "cl\u200bea\u200cn\u200d te\ufeffxt",
			expected: "clean text",
		},
		{
			name:     "removes tag-like substrings",
			input:    "hello <script>alert(1)</script> world",
			expected: "hello alert(1) world",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "whitespace only input",
			input:    " \t\n ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.input); got != tt.expected {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"plain message",
		"  <b>bold</b>   claim\u200b ",
		"multi\n\nline\twith   runs",
	}

	for _, input := range inputs {
		once := Sanitize(input)
		if twice := Sanitize(once); twice != once {
			t.Errorf("Sanitize not idempotent for %q: %q != %q", input, twice, once)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases",
			input:    "URGENT Offer",
			expected: "urgent offer",
		},
		{
			name:     "strips diacritics",
			input:    "fréé mönéy",
			expected: "free money",
		},
		{
			name:     "sanitizes before folding",
			input:    "  CAFÉ\u200b  deals  ",
			expected: "cafe deals",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
