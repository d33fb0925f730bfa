package worldbank

import (
	"math"

	"github.com/couchcryptid/indicator-grid-etl/internal/domain"
)

// LatestByISO3 reduces rows to the latest value per country. Rows without a
// country code, with an unparseable year, or with a null value are skipped.
func LatestByISO3(rows []Row) domain.LatestValues {
	values, _ := reduce(rows)
	return values
}

func reduce(rows []Row) (domain.LatestValues, int) {
	out := make(domain.LatestValues)
	discarded := 0
	for _, r := range rows {
		obs, ok := toObservation(r)
		if !ok {
			discarded++
			continue
		}
		out.Observe(obs)
	}
	return out, discarded
}

func toObservation(r Row) (domain.Observation, bool) {
	if r.CountryISO3 == "" || r.Value == nil {
		return domain.Observation{}, false
	}
	year, ok := domain.ParseYear(r.Date)
	if !ok {
		return domain.Observation{}, false
	}
	v := *r.Value
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return domain.Observation{}, false
	}
	return domain.Observation{Country: r.CountryISO3, Year: year, Value: v}, true
}
