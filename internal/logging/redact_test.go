package logging

import (
	"strings"
	"testing"
)

func TestMaskCredential(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "***"},
		{"abcdefg", "ab*****"},
		{"abcd1234wxyz", "abcd****wxyz"},
	}

	for _, tt := range tests {
		if got := MaskCredential(tt.in); got != tt.want {
			t.Errorf("MaskCredential(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedact(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		secret string
		keep   string
	}{
		{"header", "api-key: k3yABCDEFGH123", "k3yABCDEFGH123", "api-key: k3yA"},
		{"json body", `{"api_secret":"s3cretVALUE99","code":"bad"}`, "s3cretVALUE99", `"code":"bad"`},
		{"query", "GET /v2/orders?signature=deadbeefcafef00d&x=1", "deadbeefcafef00d", "x=1"},
		{"plain text", "insufficient_margin for product 101", "", "insufficient_margin for product 101"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(tt.in)
			if tt.secret != "" && strings.Contains(got, tt.secret) {
				t.Errorf("Redact(%q) = %q still contains the secret", tt.in, got)
			}
			if !strings.Contains(got, tt.keep) {
				t.Errorf("Redact(%q) = %q, want it to keep %q", tt.in, got, tt.keep)
			}
		})
	}
}
