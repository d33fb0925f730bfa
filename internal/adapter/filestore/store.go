// Package filestore writes and reads the build's JSON artifacts on disk:
// <dir>/latest/<metricId>.json and <dir>/meta.json.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/indicator-grid-etl/internal/domain"
)

const (
	latestDir    = "latest"
	manifestFile = "meta.json"
)

// ErrInvalidMetricID is returned for ids that cannot name a file inside latest/.
var ErrInvalidMetricID = errors.New("invalid metric id")

// Store is a directory of build artifacts.
type Store struct {
	dir string
}

// New returns a Store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Name identifies the sink in logs and metrics.
func (s *Store) Name() string { return "file" }

// ArtifactPath returns the path of a metric's artifact.
func (s *Store) ArtifactPath(metricID string) (string, error) {
	if metricID == "" || metricID != filepath.Base(metricID) || strings.HasPrefix(metricID, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidMetricID, metricID)
	}
	return filepath.Join(s.dir, latestDir, metricID+".json"), nil
}

// ManifestPath returns the path of meta.json.
func (s *Store) ManifestPath() string {
	return filepath.Join(s.dir, manifestFile)
}

// WriteArtifact replaces latest/<metricId>.json.
func (s *Store) WriteArtifact(_ context.Context, a domain.MetricArtifact) error {
	path, err := s.ArtifactPath(a.MetricID)
	if err != nil {
		return err
	}
	return writeJSON(path, a)
}

// WriteManifest replaces meta.json.
func (s *Store) WriteManifest(_ context.Context, m domain.Manifest) error {
	return writeJSON(s.ManifestPath(), m)
}

// ReadArtifact loads a previously written artifact.
func (s *Store) ReadArtifact(metricID string) (domain.MetricArtifact, error) {
	var a domain.MetricArtifact
	path, err := s.ArtifactPath(metricID)
	if err != nil {
		return a, err
	}
	err = readJSON(path, &a)
	return a, err
}

// ReadManifest loads meta.json.
func (s *Store) ReadManifest() (domain.Manifest, error) {
	var m domain.Manifest
	err := readJSON(s.ManifestPath(), &m)
	return m, err
}

// writeJSON pretty-prints v with two-space indentation and swaps it into
// place with a rename, so readers never observe a half-written file.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
