package tripstats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"shiftplanner.ebus.dev/gtfsdb"
	"shiftplanner.ebus.dev/internal/models"
)

func stopRow(name string, lat, lon float64, arr, dep int64) gtfsdb.GetStopTimesForTripRow {
	return gtfsdb.GetStopTimesForTripRow{StopName: name, StopLat: lat, StopLon: lon, ArrivalTime: arr, DepartureTime: dep}
}

func profileOf(alts, dists []float64) *models.ElevationProfile {
	p := &models.ElevationProfile{ShapeID: "sh"}
	for i := range alts {
		p.Points = append(p.Points, models.ProfilePoint{PointNumber: i, Altitude: alts[i], CumulativeDistance: dists[i]})
	}
	return p
}

func TestComputeWithoutProfile(t *testing.T) {
	stops := []gtfsdb.GetStopTimesForTripRow{
		stopRow("Alpha", 0, 0, 8*3600, 8*3600),
		stopRow("Bravo", 0, 0.01, 8*3600+600, 8*3600+600),
	}

	s := Compute(models.TripKindScheduled, stops, nil)

	assert.Equal(t, 10.0, s.TotalDurationMinutes)
	assert.InDelta(t, 1112, s.TotalDistanceM, 1)
	assert.InDelta(t, 6.67, s.AverageSpeedKmh, 0.01)
	assert.Equal(t, 2, s.StopCount)
	assert.Equal(t, "08:00:00", s.StartTime)
	assert.Equal(t, "08:10:00", s.EndTime)
	assert.Equal(t, "Alpha", s.FirstStopName)
	assert.Equal(t, "Bravo", s.LastStopName)

	assert.False(t, s.HasElevationProfile)
	assert.Zero(t, s.ElevationRangeM)
	assert.Zero(t, s.ElevationMeanM)
	assert.Zero(t, s.TotalAscentM)
	assert.Zero(t, s.TotalDescentM)
	assert.Zero(t, s.MeanGradient)
	assert.Zero(t, s.NetElevationChangeM)
	require.NotNil(t, s.AscentDescentRatio)
	assert.Zero(t, *s.AscentDescentRatio)
	assert.Nil(t, s.ElevationProfileType)
}

func TestComputeMixedProfile(t *testing.T) {
	stops := []gtfsdb.GetStopTimesForTripRow{
		stopRow("A", 0, 0, 0, 0),
		stopRow("B", 0, 1, 600, 600),
	}
	p := profileOf([]float64{100, 150, 120, 160}, []float64{0, 1000, 2000, 3000})

	s := Compute(models.TripKindScheduled, stops, p)

	assert.Equal(t, 3000.0, s.TotalDistanceM, "profile distance wins over stop geometry")
	assert.Equal(t, 90.0, s.TotalAscentM)
	assert.Equal(t, 30.0, s.TotalDescentM)
	assert.Equal(t, 60.0, s.ElevationRangeM)
	assert.Equal(t, 60.0, s.NetElevationChangeM)
	assert.Equal(t, 100.0, s.ElevationMinM)
	assert.Equal(t, 160.0, s.ElevationMaxM)
	assert.Equal(t, 132.5, s.ElevationMeanM)
	assert.InDelta(t, 0.02, s.MeanGradient, 1e-12)
	require.NotNil(t, s.AscentDescentRatio)
	assert.Equal(t, 3.0, *s.AscentDescentRatio)
	require.NotNil(t, s.ElevationProfileType)
	assert.Equal(t, ProfileMixed, *s.ElevationProfileType)
	assert.InDelta(t, 18.0, s.AverageSpeedKmh, 1e-9)
}

func TestClassification(t *testing.T) {
	stops := []gtfsdb.GetStopTimesForTripRow{stopRow("A", 0, 0, 0, 0), stopRow("B", 0, 1, 60, 60)}
	dists := []float64{0, 10, 20}

	tests := []struct {
		name      string
		alts      []float64
		want      ProfileType
		wantRatio *float64
	}{
		{name: "flat", alts: []float64{100, 100.5, 100.2}, want: ProfileFlat, wantRatio: ptr(0.5 / 0.3)},
		{name: "level", alts: []float64{100, 100, 100}, want: ProfileFlat, wantRatio: ptr(0)},
		{name: "ascent only", alts: []float64{100, 105, 110}, want: ProfileAscentOnly, wantRatio: nil},
		{name: "descent only", alts: []float64{110, 105, 100}, want: ProfileDescentOnly, wantRatio: ptr(0)},
		{name: "mixed", alts: []float64{100, 110, 105}, want: ProfileMixed, wantRatio: ptr(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Compute(models.TripKindDepot, stops, profileOf(tt.alts, dists))
			require.NotNil(t, s.ElevationProfileType)
			assert.Equal(t, tt.want, *s.ElevationProfileType)
			if tt.wantRatio == nil {
				assert.Nil(t, s.AscentDescentRatio)
				return
			}
			require.NotNil(t, s.AscentDescentRatio)
			assert.InDelta(t, *tt.wantRatio, *s.AscentDescentRatio, 1e-9)
		})
	}
}

func TestDwellAndDrivingTime(t *testing.T) {
	stops := []gtfsdb.GetStopTimesForTripRow{
		stopRow("A", 0, 0, 23*3600+50*60, 23*3600+50*60),
		stopRow("B", 0, 0.01, 24*3600, 24*3600+120),
		stopRow("C", 0, 0.02, 24*3600+600, 24*3600+660),
		stopRow("D", 0, 0.03, 24*3600+1200, 24*3600+1200),
	}

	s := Compute(models.TripKindScheduled, stops, nil)

	assert.Equal(t, 30.0, s.TotalDurationMinutes, "times past midnight are not wrapped")
	assert.Equal(t, 3.0, s.DwellTimeMinutes)
	assert.Equal(t, 27.0, s.DrivingTimeMinutes)
	assert.Equal(t, "23:50:00", s.StartTime)
	assert.Equal(t, "24:20:00", s.EndTime)
}

func TestZeroDurationHasZeroSpeed(t *testing.T) {
	stops := []gtfsdb.GetStopTimesForTripRow{stopRow("A", 0, 0, 100, 100), stopRow("B", 0, 0.01, 100, 100)}
	s := Compute(models.TripKindTransfer, stops, nil)
	assert.Zero(t, s.AverageSpeedKmh)
	assert.Greater(t, s.TotalDistanceM, 0.0)
}

func TestSingleStopTrip(t *testing.T) {
	s := Compute(models.TripKindScheduled, []gtfsdb.GetStopTimesForTripRow{stopRow("A", 0, 0, 100, 160)}, nil)
	assert.Equal(t, 1.0, s.TotalDurationMinutes)
	assert.Zero(t, s.DwellTimeMinutes)
	assert.Zero(t, s.TotalDistanceM)
}

func ptr(f float64) *float64 { return &f }
