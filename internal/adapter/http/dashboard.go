package http

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/indicator-grid-etl/internal/adapter/geo"
	"github.com/couchcryptid/indicator-grid-etl/internal/catalog"
	"github.com/couchcryptid/indicator-grid-etl/internal/dashboard"
	"github.com/couchcryptid/indicator-grid-etl/internal/domain"
)

// ArtifactReader reads what the last build wrote.
type ArtifactReader interface {
	ReadManifest() (domain.Manifest, error)
	ReadArtifact(metricID string) (domain.MetricArtifact, error)
}

// DashboardOptions configures a Dashboard.
type DashboardOptions struct {
	// Fallback is listed until the first build has written a manifest.
	Fallback      []domain.MetricDescriptor
	GeoPath       string
	FavoritesPath string
}

// Dashboard serves the JSON API behind the map grid.
type Dashboard struct {
	store ArtifactReader
	favs  *dashboard.Favorites
	opts  DashboardOptions

	// saveMu serializes favorites writes.
	saveMu sync.Mutex

	geoMu      sync.Mutex
	geoModTime time.Time
	boundaries *geo.Boundaries

	logger *slog.Logger
}

// NewDashboard creates the API over store. favs is mutated by the favorites
// routes and persisted to opts.FavoritesPath when set.
func NewDashboard(store ArtifactReader, favs *dashboard.Favorites, opts DashboardOptions, logger *slog.Logger) *Dashboard {
	if favs == nil {
		favs = dashboard.NewFavorites()
	}
	return &Dashboard{store: store, favs: favs, opts: opts, logger: logger}
}

func (d *Dashboard) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/metrics", d.handleMetrics)
	mux.HandleFunc("GET /api/grid", d.handleGrid)
	mux.HandleFunc("GET /api/tiles/{id}", d.handleTile)
	mux.HandleFunc("GET /api/focus/{id}", d.handleFocus)
	mux.HandleFunc("GET /api/favorites", d.handleFavorites)
	mux.HandleFunc("PUT /api/favorites/{id}", d.handleAddFavorite)
	mux.HandleFunc("DELETE /api/favorites/{id}", d.handleRemoveFavorite)
	mux.HandleFunc("POST /api/favorites/{id}/toggle", d.handleToggleFavorite)
	mux.HandleFunc("DELETE /api/favorites", d.handleClearFavorites)
}

type metricEntry struct {
	domain.MetricDescriptor
	Favorite bool `json:"favorite"`
}

type metricsResponse struct {
	UpdatedAt *time.Time    `json:"updatedAt,omitempty"`
	Metrics   []metricEntry `json:"metrics"`
	Favorites int           `json:"favorites"`
}

func (d *Dashboard) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, updatedAt := d.metrics()
	filtered := dashboard.FilterMetrics(metrics, r.URL.Query().Get("q"))

	resp := metricsResponse{
		UpdatedAt: updatedAt,
		Metrics:   make([]metricEntry, 0, len(filtered)),
		Favorites: d.favs.Len(),
	}
	for _, m := range filtered {
		resp.Metrics = append(resp.Metrics, metricEntry{MetricDescriptor: m, Favorite: d.favs.Has(m.ID)})
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

func (d *Dashboard) handleGrid(w http.ResponseWriter, _ *http.Request) {
	metrics, _ := d.metrics()
	sharedobs.WriteJSON(w, http.StatusOK, dashboard.GridMetrics(metrics, d.favs))
}

func (d *Dashboard) handleTile(w http.ResponseWriter, r *http.Request) {
	m, a, ok := d.artifact(w, r.PathValue("id"))
	if !ok {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, dashboard.BuildTile(m, a, d.loadBoundaries()))
}

func (d *Dashboard) handleFocus(w http.ResponseWriter, r *http.Request) {
	m, a, ok := d.artifact(w, r.PathValue("id"))
	if !ok {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, dashboard.BuildFocus(m, a, d.loadBoundaries()))
}

type favoritesResponse struct {
	Favorites []string `json:"favorites"`
}

func (d *Dashboard) handleFavorites(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, favoritesResponse{Favorites: d.favs.IDs()})
}

func (d *Dashboard) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := d.lookup(id); !ok {
		writeError(w, http.StatusNotFound, "unknown metric "+id)
		return
	}
	d.updateFavorites(w, func() { d.favs.Add(id) })
}

func (d *Dashboard) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d.updateFavorites(w, func() { d.favs.Remove(id) })
}

func (d *Dashboard) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := d.lookup(id); !ok && !d.favs.Has(id) {
		writeError(w, http.StatusNotFound, "unknown metric "+id)
		return
	}
	d.updateFavorites(w, func() { d.favs.Toggle(id) })
}

func (d *Dashboard) handleClearFavorites(w http.ResponseWriter, _ *http.Request) {
	d.updateFavorites(w, d.favs.Clear)
}

// updateFavorites applies change and persists the result before answering.
func (d *Dashboard) updateFavorites(w http.ResponseWriter, change func()) {
	d.saveMu.Lock()
	defer d.saveMu.Unlock()

	change()
	if d.opts.FavoritesPath != "" {
		if err := dashboard.SaveFavorites(d.opts.FavoritesPath, d.favs); err != nil {
			d.logger.Error("save favorites failed", "path", d.opts.FavoritesPath, "error", err)
			writeError(w, http.StatusInternalServerError, "could not save favorites")
			return
		}
	}
	sharedobs.WriteJSON(w, http.StatusOK, favoritesResponse{Favorites: d.favs.IDs()})
}

// metrics lists the manifest's metrics, or the fallback before the first build.
func (d *Dashboard) metrics() ([]domain.MetricDescriptor, *time.Time) {
	manifest, err := d.store.ReadManifest()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn("read manifest failed", "error", err)
		}
		return d.opts.Fallback, nil
	}
	return manifest.Metrics, &manifest.UpdatedAt
}

func (d *Dashboard) lookup(id string) (domain.MetricDescriptor, bool) {
	metrics, _ := d.metrics()
	listed := catalog.Catalog{Metrics: metrics}
	return listed.Lookup(id)
}

// artifact resolves a metric and its artifact, answering 404 itself when
// either is missing.
func (d *Dashboard) artifact(w http.ResponseWriter, id string) (domain.MetricDescriptor, domain.MetricArtifact, bool) {
	m, ok := d.lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown metric "+id)
		return m, domain.MetricArtifact{}, false
	}
	a, err := d.store.ReadArtifact(id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "no data for "+id+" yet")
		} else {
			d.logger.Error("read artifact failed", "metric_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "could not read artifact")
		}
		return m, a, false
	}
	return m, a, true
}

// loadBoundaries returns the parsed boundary file, reloading it when the
// build has replaced it. A missing file yields nil.
func (d *Dashboard) loadBoundaries() *geo.Boundaries {
	if d.opts.GeoPath == "" {
		return nil
	}

	d.geoMu.Lock()
	defer d.geoMu.Unlock()

	info, err := os.Stat(d.opts.GeoPath)
	if err != nil {
		return d.boundaries
	}
	if d.boundaries != nil && info.ModTime().Equal(d.geoModTime) {
		return d.boundaries
	}

	b, err := geo.LoadBoundaries(d.opts.GeoPath)
	if err != nil {
		d.logger.Warn("load boundaries failed", "path", d.opts.GeoPath, "error", err)
		return d.boundaries
	}
	d.boundaries, d.geoModTime = b, info.ModTime()
	return b
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
