package choropleth

import (
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/couchcryptid/indicator-grid-etl/internal/domain"
)

// Missing is shown in place of a non-finite number.
const Missing = "—"

var printer = message.NewPrinter(language.English)

var compactSuffixes = []struct {
	scale  float64
	suffix string
}{
	{1e12, "T"},
	{1e9, "B"},
	{1e6, "M"},
	{1e3, "K"},
}

// FormatNumber renders x for display. Percent units keep one decimal and a
// "%" suffix; everything else uses compact notation (K, M, B, T) with at most
// two decimals.
func FormatNumber(x float64, unit string) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Missing
	}
	if unit == "%" {
		return printer.Sprint(number.Decimal(x, number.MaxFractionDigits(1))) + "%"
	}
	return formatCompact(x)
}

// Formatter binds FormatNumber to a unit.
func Formatter(unit string) func(float64) string {
	return func(x float64) string { return FormatNumber(x, unit) }
}

func formatCompact(x float64) string {
	abs := math.Abs(x)
	for i, s := range compactSuffixes {
		if abs < s.scale {
			continue
		}
		scaled := round2(x / s.scale)
		// 999_999 rounds to 1000K; promote it to 1M.
		if math.Abs(scaled) >= 1000 && i > 0 {
			prev := compactSuffixes[i-1]
			scaled = round2(x / prev.scale)
			s = prev
		}
		return printer.Sprint(number.Decimal(scaled, number.MaxFractionDigits(2))) + s.suffix
	}

	scaled := round2(x)
	if math.Abs(scaled) >= 1000 {
		return formatCompact(scaled)
	}
	return printer.Sprint(number.Decimal(scaled, number.MaxFractionDigits(2)))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// DominantYear returns the most frequent observation year. Ties go to the
// most recent year. ok is false when values is empty.
func DominantYear(values domain.LatestValues) (year int, ok bool) {
	counts := make(map[int]int)
	for _, y := range values.Years() {
		counts[y]++
	}
	best := 0
	for y, n := range counts {
		if n > best || (n == best && y > year) {
			year, best = y, n
		}
	}
	return year, best > 0
}

// YearLabel returns "Latest (YYYY)" for the dominant year, or "Latest".
func YearLabel(values domain.LatestValues) string {
	year, ok := DominantYear(values)
	if !ok || year == 0 {
		return "Latest"
	}
	return "Latest (" + strconv.Itoa(year) + ")"
}
