package dashboard

import (
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/indicator-grid-etl/internal/adapter/geo"
	"github.com/couchcryptid/indicator-grid-etl/internal/choropleth"
	"github.com/couchcryptid/indicator-grid-etl/internal/domain"
)

// MaxFocusRows caps the ranked country list of the focus view.
const MaxFocusRows = 50

// CountryFill is one country drawn on a tile.
type CountryFill struct {
	ISO3  string   `json:"iso3,omitempty"`
	Name  string   `json:"name"`
	Year  int      `json:"year,omitempty"`
	Value *float64 `json:"value"`
	Fill  string   `json:"fill"`
}

// Tile is everything needed to draw one metric's mini map.
type Tile struct {
	Metric    domain.MetricDescriptor  `json:"metric"`
	UpdatedAt time.Time                `json:"updatedAt"`
	YearLabel string                   `json:"yearLabel"`
	Breaks    [4]float64               `json:"breaks"`
	Legend    []choropleth.LegendEntry `json:"legend"`
	Countries []CountryFill            `json:"countries"`
}

// BuildTile colors every boundary feature by the artifact's values.
// Features without a code or without a value get the no-data color.
func BuildTile(m domain.MetricDescriptor, a domain.MetricArtifact, b *geo.Boundaries) Tile {
	breaks := choropleth.BreaksOf(a.Values)
	t := Tile{
		Metric:    m,
		UpdatedAt: a.UpdatedAt,
		YearLabel: choropleth.YearLabel(a.Values),
		Breaks:    breaks,
		Legend:    choropleth.Legend(breaks, choropleth.Formatter(m.Unit)),
	}
	if b == nil {
		return t
	}

	t.Countries = make([]CountryFill, 0, len(b.Countries))
	for _, c := range b.Countries {
		cf := CountryFill{ISO3: c.ISO3, Name: c.Name}
		if cf.Name == "" {
			cf.Name = choropleth.Missing
		}
		v, ok := a.Values[c.ISO3]
		if c.ISO3 == "" {
			ok = false
		}
		if ok {
			value := v.Value
			cf.Year = v.Year
			cf.Value = &value
		}
		cf.Fill = choropleth.Fill(v.Value, ok, breaks)
		t.Countries = append(t.Countries, cf)
	}
	return t
}

// RankedCountry is one row of the focus view.
type RankedCountry struct {
	Rank    int     `json:"rank"`
	ISO3    string  `json:"iso3"`
	Name    string  `json:"name"`
	Year    int     `json:"year"`
	Value   float64 `json:"value"`
	Display string  `json:"display"`
}

// Focus is the enlarged view of one metric: its legend plus the countries
// ranked by value.
type Focus struct {
	Metric    domain.MetricDescriptor  `json:"metric"`
	UpdatedAt time.Time                `json:"updatedAt"`
	Breaks    [4]float64               `json:"breaks"`
	Legend    []choropleth.LegendEntry `json:"legend"`
	Top       []RankedCountry          `json:"top"`
}

// BuildFocus ranks the countries of an artifact by value, highest first,
// keeping the top MaxFocusRows. Names fall back to the ISO-3 code when the
// boundary file has none. Equal values are ordered by code.
func BuildFocus(m domain.MetricDescriptor, a domain.MetricArtifact, b *geo.Boundaries) Focus {
	format := choropleth.Formatter(m.Unit)
	breaks := choropleth.BreaksOf(a.Values)

	rows := make([]RankedCountry, 0, len(a.Values))
	for iso3, v := range a.Values {
		if !isFinite(v.Value) {
			continue
		}
		name := iso3
		if b != nil {
			if n, ok := b.Name(iso3); ok {
				name = n
			}
		}
		rows = append(rows, RankedCountry{ISO3: iso3, Name: name, Year: v.Year, Value: v.Value})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Value != rows[j].Value {
			return rows[i].Value > rows[j].Value
		}
		return rows[i].ISO3 < rows[j].ISO3
	})
	if len(rows) > MaxFocusRows {
		rows = rows[:MaxFocusRows]
	}
	for i := range rows {
		rows[i].Rank = i + 1
		rows[i].Display = format(rows[i].Value)
	}

	return Focus{
		Metric:    m,
		UpdatedAt: a.UpdatedAt,
		Breaks:    breaks,
		Legend:    choropleth.Legend(breaks, format),
		Top:       rows,
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
