package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrNoStationColumn is returned when no station-identifying column can be
// resolved from configuration or header heuristics.
var ErrNoStationColumn = errors.New("no station column: map dataset.columns.station or add a header containing \"station\"")

// ErrNoSeasonColumn is returned when no season column can be resolved.
var ErrNoSeasonColumn = errors.New("no season column: map dataset.columns.season or add a \"season\" header")

// ErrEmptyDataset is returned when the source file contains a header but no rows.
var ErrEmptyDataset = errors.New("dataset contains no rows")

// Columns maps semantic roles to source CSV header names. Empty fields fall
// back to header-name heuristics during Load.
type Columns struct {
	Station     string
	Season      string
	Date        string
	Rides       string
	Temperature string
}

// TripRecord is one row of the source dataset: aggregated daily ride,
// temperature and season data for a start station.
type TripRecord struct {
	Date       time.Time
	Season     string
	Station    string
	RidesDaily float64
	AvgTemp    float64
}

// Table is the session-scoped in-memory copy of the source dataset. Loaded
// once per process and treated as read-only afterwards; stages that need to
// narrow it operate on their own copies.
type Table struct {
	Records    []TripRecord
	SourcePath string

	stationColumn string
	seasonColumn  string
}

// StationColumn reports the resolved station header name.
func (t *Table) StationColumn() string { return t.stationColumn }

// SeasonColumn reports the resolved season header name.
func (t *Table) SeasonColumn() string { return t.seasonColumn }

// Len returns the number of trip records.
func (t *Table) Len() int { return len(t.Records) }

// Seasons returns the distinct season labels in first-observed order.
func (t *Table) Seasons() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, rec := range t.Records {
		if _, ok := seen[rec.Season]; ok {
			continue
		}
		seen[rec.Season] = struct{}{}
		out = append(out, rec.Season)
	}
	return out
}

// Stations returns the number of distinct start stations.
func (t *Table) Stations() int {
	seen := make(map[string]struct{})
	for _, rec := range t.Records {
		seen[rec.Station] = struct{}{}
	}
	return len(seen)
}

// DateRange returns the earliest and latest record dates. Zero times when no
// record carries a parsed date.
func (t *Table) DateRange() (first, last time.Time) {
	for _, rec := range t.Records {
		if rec.Date.IsZero() {
			continue
		}
		if first.IsZero() || rec.Date.Before(first) {
			first = rec.Date
		}
		if rec.Date.After(last) {
			last = rec.Date
		}
	}
	return first, last
}

// Load reads the primary dataset CSV at path into a Table. A missing file is
// fatal for the session and is returned as-is for the caller to report.
// Column roles come from cols; unmapped roles are resolved from the header by
// heuristic. An unresolvable station or season column is a configuration
// error, never a silent empty table.
func Load(path string, cols Columns) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("dataset file not found: %s", path)
		}
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	t, err := parse(f, cols)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", path, err)
	}
	t.SourcePath = path
	return t, nil
}

// parse reads CSV rows from r into a Table. Split from Load for tests.
func parse(r io.Reader, cols Columns) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyDataset
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	stationIdx, stationName, err := resolveStationColumn(header, cols.Station)
	if err != nil {
		return nil, ErrNoStationColumn
	}
	seasonIdx, seasonName, err := resolveColumn(header, cols.Season, isSeasonHeader)
	if err != nil {
		return nil, ErrNoSeasonColumn
	}
	dateIdx, _, _ := resolveColumn(header, cols.Date, func(h string) bool { return strings.Contains(h, "date") })
	ridesIdx, _, _ := resolveColumn(header, cols.Rides, func(h string) bool {
		return strings.Contains(h, "ride") || strings.Contains(h, "trip")
	})
	tempIdx, _, _ := resolveColumn(header, cols.Temperature, func(h string) bool { return strings.Contains(h, "temp") })

	t := &Table{stationColumn: stationName, seasonColumn: seasonName}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		rec := TripRecord{
			Season:  field(row, seasonIdx),
			Station: field(row, stationIdx),
		}
		if d, ok := parseDate(field(row, dateIdx)); ok {
			rec.Date = d
		}
		rec.RidesDaily = parseFloat(field(row, ridesIdx))
		rec.AvgTemp = parseFloat(field(row, tempIdx))
		t.Records = append(t.Records, rec)
	}
	if len(t.Records) == 0 {
		return nil, ErrEmptyDataset
	}
	return t, nil
}

// resolveColumn locates a column by explicit name first, then by the match
// heuristic. The first header is a row index when unnamed and is skipped.
func resolveColumn(header []string, explicit string, match func(string) bool) (int, string, error) {
	if explicit != "" {
		for i, h := range header {
			if strings.EqualFold(h, explicit) {
				return i, h, nil
			}
		}
		return -1, "", fmt.Errorf("column %q not in header", explicit)
	}
	for i, h := range header {
		if i == 0 && h == "" {
			continue
		}
		if match(strings.ToLower(h)) {
			return i, h, nil
		}
	}
	return -1, "", errors.New("no matching column")
}

// resolveStationColumn applies the start-station heuristic when no explicit
// mapping is set: prefer a header containing both "start" and "station", then
// fall back to any header containing "station" or "name".
func resolveStationColumn(header []string, explicit string) (int, string, error) {
	if explicit != "" {
		return resolveColumn(header, explicit, nil)
	}
	if i, name, err := resolveColumn(header, "", func(h string) bool {
		return strings.Contains(h, "start") && strings.Contains(h, "station")
	}); err == nil {
		return i, name, nil
	}
	return resolveColumn(header, "", func(h string) bool {
		return strings.Contains(h, "station") || strings.Contains(h, "name")
	})
}

func isSeasonHeader(h string) bool {
	return strings.Contains(h, "season")
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// dateLayouts are tried in order when parsing the date column.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
