// Package stopindex keeps an in-memory R-tree of stops for radius lookups.
package stopindex

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tidwall/rtree"
	"shiftplanner.ebus.dev/gtfsdb"
	"shiftplanner.ebus.dev/internal/logging"
	"shiftplanner.ebus.dev/internal/models"
	"shiftplanner.ebus.dev/internal/utils"
)

// NearbyStop is a stop with its distance in meters from the query point.
type NearbyStop struct {
	models.Stop
	Distance float64 `json:"distance_m"`
}

type Index struct {
	mu   sync.RWMutex
	tree *rtree.RTreeG[models.Stop]
}

func New(stops []models.Stop) *Index {
	idx := &Index{}
	idx.Replace(stops)
	return idx
}

// Load builds an index from every stop in the database.
func Load(ctx context.Context, db *gtfsdb.Client, logger *slog.Logger) (*Index, error) {
	start := time.Now()
	rows, err := db.Queries.ListStops(ctx)
	if err != nil {
		return nil, err
	}
	stops := make([]models.Stop, len(rows))
	for i, row := range rows {
		stops[i] = models.StopFromRow(row)
	}
	idx := New(stops)
	if logger != nil {
		logging.LogOperation(logger, "stop_index_built",
			slog.Int("stops", len(stops)),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	}
	return idx, nil
}

// Replace swaps the indexed stop set.
func (i *Index) Replace(stops []models.Stop) {
	tree := &rtree.RTreeG[models.Stop]{}
	for _, s := range stops {
		pt := [2]float64{s.Lat, s.Lon}
		tree.Insert(pt, pt, s)
	}
	i.mu.Lock()
	i.tree = tree
	i.mu.Unlock()
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.tree.Len()
}

// Nearby returns stops within radius meters of (lat, lon), closest first.
// limit <= 0 means no limit.
func (i *Index) Nearby(lat, lon, radius float64, limit int) []NearbyStop {
	bounds := utils.CalculateBounds(lat, lon, radius)

	i.mu.RLock()
	tree := i.tree
	i.mu.RUnlock()

	out := make([]NearbyStop, 0)
	tree.Search([2]float64{bounds.MinLat, bounds.MinLon}, [2]float64{bounds.MaxLat, bounds.MaxLon},
		func(_, _ [2]float64, s models.Stop) bool {
			if d := utils.Distance(lat, lon, s.Lat, s.Lon); d <= radius {
				out = append(out, NearbyStop{Stop: s, Distance: d})
			}
			return true
		})

	sort.Slice(out, func(a, b int) bool {
		if out[a].Distance != out[b].Distance {
			return out[a].Distance < out[b].Distance
		}
		return out[a].ID < out[b].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
