package cli

import (
	"fmt"
	"strings"

	"delta-strangler/pkg/utils"
)

// FormatPnL formats rupee P&L with an explicit sign.
func FormatPnL(pnl float64) string {
	formatted := utils.FormatIndianCurrency(pnl)
	if pnl > 0 {
		return "+" + formatted
	}
	return formatted
}

// FormatPnLUSD formats dollar P&L with an explicit sign.
func FormatPnLUSD(pnl float64) string {
	formatted := utils.FormatUSD(pnl)
	if pnl > 0 {
		return "+" + formatted
	}
	return formatted
}

// FormatPremium formats an option premium in dollars, or "-" when there is no quote.
func FormatPremium(p float64) string {
	if p <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f", p)
}

// FormatStrike formats a strike price without decimals.
func FormatStrike(strike float64) string {
	return fmt.Sprintf("%.0f", strike)
}

// FormatDistance renders a strike distance from ATM, e.g. "+14" or "-13".
func FormatDistance(n int) string {
	switch {
	case n > 0:
		return fmt.Sprintf("+%d", n)
	case n < 0:
		return fmt.Sprintf("%d", n)
	default:
		return "ATM"
	}
}

// PadRight pads a string to the right with spaces.
func PadRight(s string, length int) string {
	if n := len(stripANSI(s)); n < length {
		return s + strings.Repeat(" ", length-n)
	}
	return s
}

// PadLeft pads a string to the left with spaces.
func PadLeft(s string, length int) string {
	if n := len(stripANSI(s)); n < length {
		return strings.Repeat(" ", length-n) + s
	}
	return s
}

// TruncateString truncates a string to maxLen characters with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
