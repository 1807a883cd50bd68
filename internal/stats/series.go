package stats

import (
	"sort"
	"time"

	"github.com/mhutchens/bikeshare-dashboard/internal/dataset"
)

// DefaultCumulativeTempThreshold is the fallback cut-off above which a
// temperature series is assumed to be cumulative rather than daily.
const DefaultCumulativeTempThreshold = 100

// DailyPoint is one date of the rides-vs-temperature series.
type DailyPoint struct {
	Date    time.Time `json:"date"`
	Rides   float64   `json:"rides"`
	AvgTemp float64   `json:"avgTemp"`
}

// DailySeries builds the date-sorted rides and temperature series for the
// weather page. Records without a parsed date are skipped; duplicate dates
// are summed for rides and averaged for temperature. Temperatures are passed
// through NormalizeTemperatures with the given cumulative threshold.
func DailySeries(records []dataset.TripRecord, cumulativeThreshold float64) []DailyPoint {
	type bucket struct {
		rides float64
		temp  float64
		n     int
	}
	byDate := make(map[time.Time]*bucket)
	for _, rec := range records {
		if rec.Date.IsZero() {
			continue
		}
		b, ok := byDate[rec.Date]
		if !ok {
			b = &bucket{}
			byDate[rec.Date] = b
		}
		b.rides += rec.RidesDaily
		b.temp += rec.AvgTemp
		b.n++
	}
	out := make([]DailyPoint, 0, len(byDate))
	for d, b := range byDate {
		out = append(out, DailyPoint{Date: d, Rides: b.rides, AvgTemp: b.temp / float64(b.n)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	temps := make([]float64, len(out))
	for i := range out {
		temps[i] = out[i].AvgTemp
	}
	for i, v := range NormalizeTemperatures(temps, cumulativeThreshold) {
		out[i].AvgTemp = v
	}
	return out
}

// NormalizeTemperatures corrects a temperature series that looks cumulative:
// when the maximum value exceeds threshold, each value is replaced with its
// first difference and the first (undefined) delta is filled with the first
// raw value. A series already within threshold is returned as an unchanged
// copy, so the transform is idempotent on daily data. This is a best-effort
// heuristic, not a guaranteed-correct conversion.
func NormalizeTemperatures(values []float64, threshold float64) []float64 {
	if threshold <= 0 {
		threshold = DefaultCumulativeTempThreshold
	}
	out := append([]float64(nil), values...)
	if len(out) == 0 {
		return out
	}
	max := out[0]
	for _, v := range out[1:] {
		if v > max {
			max = v
		}
	}
	if max <= threshold {
		return out
	}
	prev := out[0]
	for i := 1; i < len(out); i++ {
		cur := out[i]
		out[i] = cur - prev
		prev = cur
	}
	return out
}
