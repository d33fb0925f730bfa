package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduce(t *testing.T) {
	t.Run("greatest year wins regardless of order", func(t *testing.T) {
		got := Reduce([]Observation{
			{Country: "USA", Year: 2019, Value: 10},
			{Country: "USA", Year: 2021, Value: 12},
			{Country: "USA", Year: 2020, Value: 11},
		})

		assert.Equal(t, LatestValues{"USA": {Year: 2021, Value: 12}}, got)
	})

	t.Run("first row wins on equal years", func(t *testing.T) {
		got := Reduce([]Observation{
			{Country: "FRA", Year: 2020, Value: 1},
			{Country: "FRA", Year: 2020, Value: 2},
		})

		assert.Equal(t, 1.0, got["FRA"].Value)
	})

	t.Run("countries are independent", func(t *testing.T) {
		got := Reduce([]Observation{
			{Country: "DEU", Year: 2018, Value: 3},
			{Country: "ITA", Year: 2022, Value: 4},
			{Country: "DEU", Year: 2017, Value: 9},
		})

		require.Len(t, got, 2)
		assert.Equal(t, LatestValue{Year: 2018, Value: 3}, got["DEU"])
		assert.Equal(t, LatestValue{Year: 2022, Value: 4}, got["ITA"])
	})

	t.Run("empty input", func(t *testing.T) {
		got := Reduce(nil)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("deterministic", func(t *testing.T) {
		obs := []Observation{
			{Country: "BRA", Year: 2015, Value: 1},
			{Country: "BRA", Year: 2016, Value: 2},
			{Country: "ARG", Year: 2016, Value: 3},
		}
		assert.Equal(t, Reduce(obs), Reduce(obs))
	})
}

func TestLatestValues_Numbers(t *testing.T) {
	l := LatestValues{
		"AAA": {Year: 2020, Value: 1.5},
		"BBB": {Year: 2021, Value: math.NaN()},
		"CCC": {Year: 2019, Value: math.Inf(1)},
	}

	assert.Equal(t, []float64{1.5}, l.Numbers())
	assert.ElementsMatch(t, []int{2019, 2020, 2021}, l.Years())
}

func TestIsCountryCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"USA", true},
		{"OWID_WRL", false},
		{"usa", false},
		{"US", false},
		{"", false},
		{"US1", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCountryCode(tt.code))
		})
	}
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   int
		wantOK bool
	}{
		{"plain", "2019", 2019, true},
		{"whitespace", " 2020 ", 2020, true},
		{"empty", "", 0, false},
		{"quarter", "2019Q1", 0, false},
		{"nan", "NaN", 0, false},
		{"inf", "Inf", 0, false},
		{"integral float", "2019.0", 2019, true},
		{"fractional", "2019.5", 0, false},
		{"overflow", "1e300", 0, false},
		{"negative overflow", "-1e300", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseYear(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReduce_FractionalYearDiscarded(t *testing.T) {
	latest := LatestValues{}
	for _, row := range []struct{ year, value string }{{"2019", "1"}, {"2019.9", "2"}, {"1e300", "3"}} {
		year, ok := ParseYear(row.year)
		if !ok {
			continue
		}
		value, _ := ParseFinite(row.value)
		latest.Observe(Observation{Country: "FRA", Year: year, Value: value})
	}
	assert.Equal(t, LatestValues{"FRA": {Year: 2019, Value: 1}}, latest)
}

func TestParseFinite(t *testing.T) {
	v, ok := ParseFinite("12.5")
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)

	_, ok = ParseFinite("n/a")
	assert.False(t, ok)

	_, ok = ParseFinite("-Inf")
	assert.False(t, ok)
}

func TestMetricDescriptor_Validate(t *testing.T) {
	valid := MetricDescriptor{ID: "co2", Name: "CO₂", Unit: "million tonnes", Source: SourceOWID}
	require.NoError(t, valid.Validate())

	noID := valid
	noID.ID = ""
	assert.Error(t, noID.Validate())

	noName := valid
	noName.Name = ""
	assert.Error(t, noName.Validate())

	badSource := valid
	badSource.Source = "imf"
	err := badSource.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestArtifactJSON(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 6, 0, 0, 123456789, time.UTC)))
	defer SetClock(nil)

	a := NewArtifact("SP.POP.TOTL", BuildTimestamp(), LatestValues{"FRA": {Year: 2017, Value: 5}})
	data, err := json.Marshal(a)
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"metricId":"SP.POP.TOTL","updatedAt":"2024-05-01T06:00:00.123Z","values":{"FRA":{"year":2017,"value":5}}}`,
		string(data))
}

func TestNewArtifact_NilValues(t *testing.T) {
	a := NewArtifact("co2", time.Time{}, nil)
	data, err := json.Marshal(a.Values)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}
