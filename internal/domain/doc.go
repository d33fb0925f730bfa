// Package domain models country-level indicator data as it flows through the
// build: catalog descriptors, validated observations, the latest-value
// reduction, and the JSON artifacts the dashboard reads.
//
// # Data Sources
//
// World Bank indicators come from the v2 REST API
// (https://api.worldbank.org/v2/country/all/indicator/<code>), one JSON row
// per country and year:
//
//	{"countryiso3code": "FRA", "date": "2017", "value": 5.1, ...}
//
// The value is null when the bank has no figure for that year. Aggregates
// (regions, income groups) carry their own ISO-like codes and are kept.
//
// Our World in Data publishes a single CSV (owid-co2-data.csv) with one row
// per country and year and one numeric column per indicator:
//
//	iso_code,year,co2,co2_per_capita,...
//	USA,2021,5007.3,14.86,...
//
// Aggregate rows use pseudo-codes such as "OWID_WRL" or an empty iso_code and
// are dropped by the strict three-letter check in [IsCountryCode].
//
// # Latest-Value Reduction
//
// Each indicator is reduced to one [LatestValue] per ISO-3166 alpha-3 code:
// the observation with the greatest year wins. Equal years do not replace
// the kept value, so the first row encountered for a year is the one
// reported. See [LatestValues.Observe].
//
// # Artifacts
//
// A build writes latest/<metricId>.json ([MetricArtifact]) per metric and a
// meta.json ([Manifest]) last. Every file of one run shares the same
// updatedAt timestamp, taken once from [BuildTimestamp].
package domain
