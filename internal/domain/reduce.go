package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// countryCodeRe matches a proper ISO-3166 alpha-3 code. Aggregate rows in the
// OWID dataset use longer pseudo-codes such as "OWID_WRL" and are rejected.
var countryCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// LatestValues maps an ISO-3166 alpha-3 code to its latest observation.
type LatestValues map[string]LatestValue

// Observe folds one observation into the reduction. The kept value is only
// replaced by a strictly newer year, so on duplicate years the first row
// seen wins.
func (l LatestValues) Observe(o Observation) {
	prev, ok := l[o.Country]
	if !ok || o.Year > prev.Year {
		l[o.Country] = LatestValue{Year: o.Year, Value: o.Value}
	}
}

// Reduce collapses observations into the latest value per country.
func Reduce(observations []Observation) LatestValues {
	out := make(LatestValues)
	for _, o := range observations {
		out.Observe(o)
	}
	return out
}

// Years returns the year of every entry, in no particular order.
func (l LatestValues) Years() []int {
	years := make([]int, 0, len(l))
	for _, v := range l {
		years = append(years, v.Year)
	}
	return years
}

// Numbers returns every finite value, in no particular order.
func (l LatestValues) Numbers() []float64 {
	vals := make([]float64, 0, len(l))
	for _, v := range l {
		if isFinite(v.Value) {
			vals = append(vals, v.Value)
		}
	}
	return vals
}

// IsCountryCode reports whether code is a strict three-uppercase-letter code.
func IsCountryCode(code string) bool {
	return countryCodeRe.MatchString(code)
}

// ParseYear parses a year cell. Surrounding whitespace is ignored; empty,
// non-numeric, fractional and out-of-range input is rejected. Integral
// floats such as "2019.0" are accepted.
func ParseYear(s string) (int, bool) {
	f, ok := ParseFinite(s)
	if !ok || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// ParseFinite parses a numeric cell and rejects empty, NaN and infinite input.
func ParseFinite(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(f) {
		return 0, false
	}
	return f, true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
