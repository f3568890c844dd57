package decision

import "testing"

func TestShouldSkip(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    bool
	}{
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"greeting", "hi", true},
		{"thanks", "thanks!", true},
		{"question mark bypasses heuristic", "ok?", false},
		{"real question", "what's the refund window for annual plans?", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := shouldSkip(tc.message, 8, nil)
			if got != tc.want {
				t.Errorf("shouldSkip(%q) = %v, want %v", tc.message, got, tc.want)
			}
		})
	}
}
