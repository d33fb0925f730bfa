// Package choropleth classifies per-country values into the five color
// classes of a map tile and formats the numbers shown in its legend.
package choropleth

import (
	"math"
	"sort"

	"github.com/couchcryptid/indicator-grid-etl/internal/domain"
)

// Classes is the number of color classes; Breaks has one fewer entry.
const Classes = 5

// NoDataColor fills countries without a finite value.
const NoDataColor = "#eeeeee"

// Palette runs from the lowest class to the highest.
var Palette = [Classes]string{"#f7fbff", "#c6dbef", "#6baed6", "#2171b5", "#08306b"}

var quantiles = [Classes - 1]float64{0.2, 0.4, 0.6, 0.8}

// Breaks returns the 20/40/60/80% quantile breakpoints of values using the
// lower nearest-rank rule v[floor(p*(n-1))]. Non-finite values are ignored;
// with no finite values every break is zero.
func Breaks(values []float64) [Classes - 1]float64 {
	var breaks [Classes - 1]float64

	v := make([]float64, 0, len(values))
	for _, x := range values {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			v = append(v, x)
		}
	}
	if len(v) == 0 {
		return breaks
	}
	sort.Float64s(v)

	for i, p := range quantiles {
		breaks[i] = v[int(math.Floor(p*float64(len(v)-1)))]
	}
	return breaks
}

// BreaksOf computes the breaks of a metric's latest values.
func BreaksOf(values domain.LatestValues) [Classes - 1]float64 {
	return Breaks(values.Numbers())
}

// Class returns the 0-based class of value: the first break it does not
// exceed, or the top class.
func Class(value float64, breaks [Classes - 1]float64) int {
	for i, b := range breaks {
		if value <= b {
			return i
		}
	}
	return Classes - 1
}

// Fill returns the color for a country. ok reports whether the country has a
// value at all.
func Fill(value float64, ok bool, breaks [Classes - 1]float64) string {
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return NoDataColor
	}
	return Palette[Class(value, breaks)]
}

// LegendEntry pairs a color swatch with its label.
type LegendEntry struct {
	Color string `json:"color"`
	Label string `json:"label"`
}

// Legend returns the five class entries followed by the no-data entry.
func Legend(breaks [Classes - 1]float64, format func(float64) string) []LegendEntry {
	labels := LegendLabels(breaks, format)
	entries := make([]LegendEntry, 0, Classes+1)
	for i, label := range labels {
		entries = append(entries, LegendEntry{Color: Palette[i], Label: label})
	}
	return append(entries, LegendEntry{Color: NoDataColor, Label: "No data"})
}

// LegendLabels returns "≤ b0" … "≤ b3", "> b3".
func LegendLabels(breaks [Classes - 1]float64, format func(float64) string) [Classes]string {
	var labels [Classes]string
	for i, b := range breaks {
		labels[i] = "≤ " + format(b)
	}
	labels[Classes-1] = "> " + format(breaks[len(breaks)-1])
	return labels
}
