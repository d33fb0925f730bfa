package dashboard

import (
	"strings"

	"github.com/couchcryptid/indicator-grid-etl/internal/domain"
)

// MaxGridTiles caps the number of map tiles on the grid.
const MaxGridTiles = 27

// FilterMetrics returns the metrics whose name or id contains query,
// case-insensitively. A blank query returns metrics unchanged.
func FilterMetrics(metrics []domain.MetricDescriptor, query string) []domain.MetricDescriptor {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return metrics
	}
	out := make([]domain.MetricDescriptor, 0, len(metrics))
	for _, m := range metrics {
		if strings.Contains(strings.ToLower(m.Name), q) || strings.Contains(strings.ToLower(m.ID), q) {
			out = append(out, m)
		}
	}
	return out
}

// Grid is the selection of metrics shown as tiles.
type Grid struct {
	Metrics []domain.MetricDescriptor `json:"metrics"`
	// FromFavorites is false when the default set is shown.
	FromFavorites bool `json:"fromFavorites"`
}

// GridMetrics selects the favorites in catalog order, or the leading catalog
// entries when no favorite matches a known metric. Either way at most
// MaxGridTiles are returned.
func GridMetrics(metrics []domain.MetricDescriptor, favs *Favorites) Grid {
	selected := make([]domain.MetricDescriptor, 0, MaxGridTiles)
	for _, m := range metrics {
		if favs.Has(m.ID) {
			selected = append(selected, m)
		}
	}
	if len(selected) > 0 {
		return Grid{Metrics: capTiles(selected), FromFavorites: true}
	}
	return Grid{Metrics: capTiles(metrics)}
}

func capTiles(metrics []domain.MetricDescriptor) []domain.MetricDescriptor {
	if len(metrics) > MaxGridTiles {
		return metrics[:MaxGridTiles]
	}
	return metrics
}
