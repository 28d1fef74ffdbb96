package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: signed P&L strings carry "+" for profits and "-" for losses.
func TestProperty_PnLSign(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("sign matches the P&L", prop.ForAll(
		func(pnl float64) bool {
			inr, usd := FormatPnL(pnl), FormatPnLUSD(pnl)
			switch {
			case pnl > 0:
				return strings.HasPrefix(inr, "+Rs.") && strings.HasPrefix(usd, "+$")
			case pnl < 0:
				return strings.HasPrefix(inr, "-Rs.") && strings.HasPrefix(usd, "-$")
			default:
				return inr == "Rs.0.00" && usd == "$0.00"
			}
		},
		gen.Float64Range(-1e7, 1e7),
	))

	properties.Property("padding never shortens and reaches the width", prop.ForAll(
		func(s string, width int) bool {
			right, left := PadRight(s, width), PadLeft(s, width)
			if len(right) < len(s) || len(left) < len(s) {
				return false
			}
			if len(s) < width {
				return len(right) == width && len(left) == width &&
					strings.HasPrefix(right, s) && strings.HasSuffix(left, s)
			}
			return right == s && left == s
		},
		gen.AlphaString(),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

func TestFormatHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"profit", FormatPnL(1092), "+Rs.1,092.00"},
		{"loss", FormatPnL(-1260), "-Rs.1,260.00"},
		{"usd loss", FormatPnLUSD(-15), "-$15.00"},
		{"premium", FormatPremium(6.5), "6.50"},
		{"no quote", FormatPremium(0), "-"},
		{"strike", FormatStrike(97000), "97000"},
		{"call distance", FormatDistance(14), "+14"},
		{"put distance", FormatDistance(-13), "-13"},
		{"atm", FormatDistance(0), "ATM"},
		{"truncate", TruncateString("C-BTC-97000-150325", 10), "C-BTC-9..."},
		{"short kept", TruncateString("ATM", 10), "ATM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
