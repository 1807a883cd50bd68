package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// PrecomputedStation is one row of the optional secondary top-20 CSV. The
// dashboard always recomputes rankings from the primary table; this file is
// only surfaced as reference detail, so loading it is best-effort.
type PrecomputedStation struct {
	Station string
	Trips   int
}

// LoadTop20 reads the optional precomputed top-20 CSV. Any failure (missing
// file, malformed rows, no usable columns) is returned for the caller to log
// as a warning; it never aborts the session.
func LoadTop20(path string) ([]PrecomputedStation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open top20 file: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read top20 header: %w", err)
	}
	stationIdx, _, err := resolveStationColumn(header, "")
	if err != nil {
		return nil, fmt.Errorf("top20: %w", ErrNoStationColumn)
	}
	countIdx := -1
	for i, h := range header {
		lower := strings.ToLower(strings.TrimSpace(h))
		if strings.Contains(lower, "value") || strings.Contains(lower, "trip") || strings.Contains(lower, "count") {
			countIdx = i
			break
		}
	}
	if countIdx < 0 {
		return nil, fmt.Errorf("top20: no trip-count column in header")
	}

	var out []PrecomputedStation
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read top20 row: %w", err)
		}
		station := field(row, stationIdx)
		if station == "" {
			continue
		}
		trips, _ := strconv.Atoi(field(row, countIdx))
		out = append(out, PrecomputedStation{Station: station, Trips: trips})
	}
	return out, nil
}
