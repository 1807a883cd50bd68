package stats

import (
	"sort"
	"time"

	"github.com/mhutchens/bikeshare-dashboard/internal/dataset"
)

// DefaultTopLimit is the ranking size used by the stations page.
const DefaultTopLimit = 20

// StationCount is one derived station aggregate: a start station and the
// number of trip records that begin there under the active filter.
type StationCount struct {
	Station string `json:"station"`
	Trips   int    `json:"trips"`
}

// Ranking is the result of one aggregation pass: the selected seasons, the
// top stations by trip count, and the total number of matching records.
type Ranking struct {
	Seasons     []string       `json:"seasons"`
	Stations    []StationCount `json:"stations"`
	TotalTrips  int            `json:"totalTrips"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// FilterBySeasons returns the records whose season is in the selection. The
// result is always a fresh slice owned by the caller; the shared table is
// never aliased or mutated. An empty selection matches nothing.
func FilterBySeasons(records []dataset.TripRecord, seasons []string) []dataset.TripRecord {
	if len(seasons) == 0 {
		return nil
	}
	selected := make(map[string]struct{}, len(seasons))
	for _, s := range seasons {
		selected[s] = struct{}{}
	}
	out := make([]dataset.TripRecord, 0, len(records))
	for _, rec := range records {
		if _, ok := selected[rec.Season]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// TopStations groups records by start station and returns up to limit
// (station, trip count) pairs sorted by count descending. Ties break by
// station name ascending so repeated calls over the same input are stable.
// The sum of returned counts across all stations equals len(records).
func TopStations(records []dataset.TripRecord, limit int) []StationCount {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.Station]++
	}
	out := make([]StationCount, 0, len(counts))
	for station, trips := range counts {
		out = append(out, StationCount{Station: station, Trips: trips})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Trips != out[j].Trips {
			return out[i].Trips > out[j].Trips
		}
		return out[i].Station < out[j].Station
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Rank filters records by the season selection and builds the ranking in one
// pass. An empty selection yields an empty ranking, not an error; the caller
// reports that case distinctly.
func Rank(records []dataset.TripRecord, seasons []string, limit int) Ranking {
	filtered := FilterBySeasons(records, seasons)
	return Ranking{
		Seasons:     append([]string(nil), seasons...),
		Stations:    TopStations(filtered, limit),
		TotalTrips:  len(filtered),
		GeneratedAt: time.Now().UTC(),
	}
}
