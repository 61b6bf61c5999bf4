package compose

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatPrice renders a USD price with precision scaled to its magnitude.
func FormatPrice(v float64) string {
	switch {
	case v >= 1000:
		return printer.Sprintf("$%.0f", v)
	case v >= 1:
		return printer.Sprintf("$%.2f", v)
	case v >= 0.01:
		return fmt.Sprintf("$%.4f", v)
	default:
		return fmt.Sprintf("$%.8f", v)
	}
}

// FormatLargeUSD renders market caps and volumes as $1.23T, $45.6B, $7.8M.
func FormatLargeUSD(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e12:
		return fmt.Sprintf("$%.2fT", v/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	default:
		return printer.Sprintf("$%.0f", v)
	}
}

// FormatChange renders a signed percentage with a direction marker.
func FormatChange(pct float64) string {
	marker := "🟢"
	if pct < 0 {
		marker = "🔴"
	}
	return fmt.Sprintf("%s %+.2f%%", marker, pct)
}

// ChartURL links a symbol to its USDT chart.
func ChartURL(symbol string) string {
	return "https://www.tradingview.com/chart/?symbol=BINANCE:" + symbol + "USDT"
}
