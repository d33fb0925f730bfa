// Command validate performs integrity checks on a built data directory:
// the manifest, one artifact per listed metric, a single shared build
// timestamp, well-formed country values, and alignment with the catalog.
//
// Usage:
//
//	go run ./cmd/validate -data-dir public/data
//	go run ./cmd/validate -data-dir public/data -catalog internal/catalog/catalog.yaml
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/google/go-cmp/cmp"

	"github.com/couchcryptid/indicator-grid-etl/internal/adapter/filestore"
	"github.com/couchcryptid/indicator-grid-etl/internal/catalog"
	"github.com/couchcryptid/indicator-grid-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "public/data", "directory holding meta.json and latest/")
	catalogPath := flag.String("catalog", "", "catalog YAML to compare the manifest against (default: embedded catalog)")
	skipCatalog := flag.Bool("skip-catalog", false, "do not compare the manifest against a catalog")
	flag.Parse()

	if *dataDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	var cat *catalog.Catalog
	if !*skipCatalog {
		var err error
		cat, err = catalog.Load(*catalogPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(1)
		}
	}

	if code := run(os.Stdout, *dataDir, cat); code != 0 {
		os.Exit(code)
	}
}

func run(out io.Writer, dataDir string, cat *catalog.Catalog) int {
	fmt.Fprintln(out, "=== Indicator Data Integrity Validation ===")
	fmt.Fprintln(out)

	store := filestore.New(dataDir)
	manifest, err := store.ReadManifest()
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}

	artifacts := make(map[string]domain.MetricArtifact, len(manifest.Metrics))
	missing := make(map[string]error)
	for _, m := range manifest.Metrics {
		a, err := store.ReadArtifact(m.ID)
		if err != nil {
			missing[m.ID] = err
			continue
		}
		artifacts[m.ID] = a
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateManifest(manifest),
		validateArtifactPresence(manifest, artifacts, missing),
		validateTimestamps(manifest, artifacts),
		validateValues(artifacts),
	}
	if cat != nil {
		phases = append(phases, validateCatalogAlignment(manifest, cat))
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Metrics: %d in manifest, %d artifacts, %d country values\n",
		len(manifest.Metrics), len(artifacts), countValues(artifacts))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func countValues(artifacts map[string]domain.MetricArtifact) int {
	n := 0
	for _, a := range artifacts {
		n += len(a.Values)
	}
	return n
}

// ── Phases ──

func validateManifest(m domain.Manifest) *phase {
	p := &phase{name: "Manifest"}
	if m.UpdatedAt.IsZero() {
		p.errorf("updatedAt is missing")
	}
	if m.Notes == "" {
		p.errorf("notes is empty")
	}
	c := catalog.Catalog{Metrics: m.Metrics}
	if err := c.Validate(); err != nil {
		p.errorf("%v", err)
	}
	return p
}

func validateArtifactPresence(m domain.Manifest, artifacts map[string]domain.MetricArtifact, missing map[string]error) *phase {
	p := &phase{name: "Artifact presence"}
	for _, d := range m.Metrics {
		if err, ok := missing[d.ID]; ok {
			p.errorf("%s: %v", d.ID, err)
			continue
		}
		if a := artifacts[d.ID]; a.MetricID != d.ID {
			p.errorf("%s: artifact carries metricId %q", d.ID, a.MetricID)
		}
	}
	return p
}

func validateTimestamps(m domain.Manifest, artifacts map[string]domain.MetricArtifact) *phase {
	p := &phase{name: "Single build timestamp"}
	for _, d := range m.Metrics {
		a, ok := artifacts[d.ID]
		if !ok {
			continue
		}
		if !a.UpdatedAt.Equal(m.UpdatedAt) {
			p.errorf("%s: updatedAt %s, manifest %s", d.ID, a.UpdatedAt.Format("2006-01-02T15:04:05.000Z07:00"), m.UpdatedAt.Format("2006-01-02T15:04:05.000Z07:00"))
		}
	}
	return p
}

func validateValues(artifacts map[string]domain.MetricArtifact) *phase {
	p := &phase{name: "Country values"}
	for id, a := range artifacts {
		for code, v := range a.Values {
			if !domain.IsCountryCode(code) {
				p.errorf("%s: %q is not an ISO-3 country code", id, code)
			}
			if math.IsNaN(v.Value) || math.IsInf(v.Value, 0) {
				p.errorf("%s/%s: non-finite value", id, code)
			}
			if v.Year <= 0 {
				p.errorf("%s/%s: implausible year %d", id, code, v.Year)
			}
		}
	}
	return p
}

func validateCatalogAlignment(m domain.Manifest, cat *catalog.Catalog) *phase {
	p := &phase{name: "Catalog alignment"}
	if diff := cmp.Diff(cat.Metrics, m.Metrics); diff != "" {
		p.errorf("manifest metrics differ from catalog (-catalog +manifest):\n%s", diff)
	}
	return p
}
