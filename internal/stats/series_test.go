package stats

import (
	"testing"
	"time"

	"github.com/mhutchens/bikeshare-dashboard/internal/dataset"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

// TestNormalizeTemperatures_DailyIsIdempotent verifies that a series already
// within the threshold comes back unchanged.
func TestNormalizeTemperatures_DailyIsIdempotent(t *testing.T) {
	in := []float64{12.5, 14.0, 9.5, 21.0}
	got := NormalizeTemperatures(in, 100)
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], in[i])
		}
	}
	// And applying it again changes nothing.
	again := NormalizeTemperatures(got, 100)
	for i := range got {
		if again[i] != got[i] {
			t.Errorf("second pass changed got[%d]: %v vs %v", i, again[i], got[i])
		}
	}
}

// TestNormalizeTemperatures_CumulativeConverted verifies the first-difference
// conversion with the first delta filled from the first raw value.
func TestNormalizeTemperatures_CumulativeConverted(t *testing.T) {
	in := []float64{15, 32, 41, 150}
	got := NormalizeTemperatures(in, 100)
	want := []float64{15, 17, 9, 109}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNormalizeTemperatures_DoesNotMutateInput(t *testing.T) {
	in := []float64{15, 200}
	_ = NormalizeTemperatures(in, 100)
	if in[1] != 200 {
		t.Errorf("input mutated: %v", in)
	}
}

func TestNormalizeTemperatures_Empty(t *testing.T) {
	if got := NormalizeTemperatures(nil, 100); len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestDailySeries_SortedAndBucketed(t *testing.T) {
	recs := []dataset.TripRecord{
		{Date: day("2022-06-02"), Station: "B", RidesDaily: 50, AvgTemp: 22},
		{Date: day("2022-06-01"), Station: "A", RidesDaily: 30, AvgTemp: 20},
		{Date: day("2022-06-01"), Station: "B", RidesDaily: 10, AvgTemp: 22},
		{Station: "no date", RidesDaily: 99},
	}
	got := DailySeries(recs, 100)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got[0].Date.Equal(day("2022-06-01")) || !got[1].Date.Equal(day("2022-06-02")) {
		t.Errorf("dates not sorted: %v", got)
	}
	if got[0].Rides != 40 {
		t.Errorf("rides[0] = %v, want 40 (summed)", got[0].Rides)
	}
	if got[0].AvgTemp != 21 {
		t.Errorf("temp[0] = %v, want 21 (averaged)", got[0].AvgTemp)
	}
}
