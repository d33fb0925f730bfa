package owid

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/indicator-grid-etl/internal/domain"
)

const (
	isoColumn  = "iso_code"
	yearColumn = "year"
)

// ErrColumnNotFound is returned when a requested column is missing from the
// CSV header. It signals a catalog/schema mismatch and is never retried.
var ErrColumnNotFound = errors.New("owid column not found")

// Dataset is the parsed CSV: a header index plus the raw rows. It is parsed
// once per build and shared by every OWID metric.
type Dataset struct {
	index map[string]int
	rows  [][]string

	discarded prometheus.Counter
}

// ParseDataset reads a CSV payload with a header row. Blank lines are skipped
// and rows may have fewer cells than the header.
func ParseDataset(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("parse owid csv: empty payload")
	}
	if err != nil {
		return nil, fmt.Errorf("parse owid csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse owid csv: %w", err)
	}

	return &Dataset{index: index, rows: rows}, nil
}

// Len returns the number of data rows.
func (d *Dataset) Len() int { return len(d.rows) }

// Latest reduces one numeric column to the latest value per country. It fails
// before looking at any row when a required column is absent, so a partial
// mapping is never returned.
func (d *Dataset) Latest(column string) (domain.LatestValues, error) {
	isoI, err := d.column(isoColumn)
	if err != nil {
		return nil, err
	}
	yearI, err := d.column(yearColumn)
	if err != nil {
		return nil, err
	}
	colI, err := d.column(column)
	if err != nil {
		return nil, err
	}

	out := make(domain.LatestValues)
	discarded := 0
	for _, row := range d.rows {
		obs, ok := toObservation(cell(row, isoI), cell(row, yearI), cell(row, colI))
		if !ok {
			discarded++
			continue
		}
		out.Observe(obs)
	}

	if d.discarded != nil {
		d.discarded.Add(float64(discarded))
	}
	return out, nil
}

func (d *Dataset) column(name string) (int, error) {
	i, ok := d.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return i, nil
}

// toObservation applies the row filters: a strict three-letter country code
// (drops aggregates like OWID_WRL), a finite year, and a non-empty finite value.
func toObservation(iso, year, raw string) (domain.Observation, bool) {
	if !domain.IsCountryCode(iso) {
		return domain.Observation{}, false
	}
	y, ok := domain.ParseYear(year)
	if !ok {
		return domain.Observation{}, false
	}
	v, ok := domain.ParseFinite(raw)
	if !ok {
		return domain.Observation{}, false
	}
	return domain.Observation{Country: iso, Year: y, Value: v}, true
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
