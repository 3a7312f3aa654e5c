package tripstats

import (
	"math"

	"shiftplanner.ebus.dev/gtfsdb"
	"shiftplanner.ebus.dev/internal/clock"
	"shiftplanner.ebus.dev/internal/models"
	"shiftplanner.ebus.dev/internal/utils"
)

type ProfileType string

const (
	ProfileFlat        ProfileType = "flat"
	ProfileAscentOnly  ProfileType = "ascent_only"
	ProfileDescentOnly ProfileType = "descent_only"
	ProfileMixed       ProfileType = "mixed"
)

const (
	// flatRangeMeters is the elevation range below which a profile is flat.
	flatRangeMeters = 1.0
	// elevationEpsilon treats smaller total ascent or descent as none.
	elevationEpsilon = 1e-9
)

// Statistics is the feature vector of one trip. Elevation fields are zero
// and ElevationProfileType is null when the trip has no elevation profile.
// AscentDescentRatio is null when the trip climbs but never descends.
type Statistics struct {
	Kind          models.TripKind `json:"kind"`
	StartTime     string          `json:"start_time"`
	EndTime       string          `json:"end_time"`
	FirstStopName string          `json:"first_stop_name"`
	LastStopName  string          `json:"last_stop_name"`

	TotalDurationMinutes float64 `json:"total_duration_minutes"`
	StopCount            int     `json:"stop_count"`
	TotalDistanceM       float64 `json:"total_distance_m"`
	AverageSpeedKmh      float64 `json:"average_speed_kmh"`
	DrivingTimeMinutes   float64 `json:"driving_time_minutes"`
	DwellTimeMinutes     float64 `json:"dwell_time_minutes"`

	HasElevationProfile  bool         `json:"has_elevation_profile"`
	ElevationRangeM      float64      `json:"elevation_range_m"`
	ElevationMeanM       float64      `json:"elevation_mean_m"`
	ElevationMinM        float64      `json:"elevation_min_m"`
	ElevationMaxM        float64      `json:"elevation_max_m"`
	TotalAscentM         float64      `json:"total_ascent_m"`
	TotalDescentM        float64      `json:"total_descent_m"`
	MeanGradient         float64      `json:"mean_gradient"`
	NetElevationChangeM  float64      `json:"net_elevation_change_m"`
	AscentDescentRatio   *float64     `json:"ascent_descent_ratio"`
	ElevationProfileType *ProfileType `json:"elevation_profile_type"`
}

// Compute derives the statistics of a trip from its ordered stop times and
// optional elevation profile. stops must not be empty.
func Compute(kind models.TripKind, stops []gtfsdb.GetStopTimesForTripRow, profile *models.ElevationProfile) Statistics {
	first, last := stops[0], stops[len(stops)-1]

	start := first.ArrivalTime
	end := last.DepartureTime
	if end < last.ArrivalTime {
		end = last.ArrivalTime
	}
	duration := end - start

	var dwell int64
	for i := 1; i < len(stops)-1; i++ {
		dwell += stops[i].DepartureTime - stops[i].ArrivalTime
	}

	s := Statistics{
		Kind:                 kind,
		StartTime:            clock.FormatServiceTime(start),
		EndTime:              clock.FormatServiceTime(end),
		FirstStopName:        first.StopName,
		LastStopName:         last.StopName,
		TotalDurationMinutes: float64(duration) / 60,
		StopCount:            len(stops),
		DwellTimeMinutes:     float64(dwell) / 60,
		DrivingTimeMinutes:   float64(duration-dwell) / 60,
	}

	if profile != nil && len(profile.Points) > 0 {
		s.TotalDistanceM = profile.TotalDistance()
	} else {
		for i := 1; i < len(stops); i++ {
			s.TotalDistanceM += utils.Distance(stops[i-1].StopLat, stops[i-1].StopLon, stops[i].StopLat, stops[i].StopLon)
		}
	}

	if duration > 0 {
		s.AverageSpeedKmh = (s.TotalDistanceM / 1000) / (s.TotalDurationMinutes / 60)
	}

	if profile != nil && len(profile.Points) > 0 {
		applyElevation(&s, profile.Altitudes())
	} else {
		zero := 0.0
		s.AscentDescentRatio = &zero
	}
	return s
}

func applyElevation(s *Statistics, alts []float64) {
	s.HasElevationProfile = true

	minAlt, maxAlt, sum := alts[0], alts[0], 0.0
	for i, a := range alts {
		sum += a
		minAlt = math.Min(minAlt, a)
		maxAlt = math.Max(maxAlt, a)
		if i == 0 {
			continue
		}
		if d := a - alts[i-1]; d > 0 {
			s.TotalAscentM += d
		} else {
			s.TotalDescentM -= d
		}
	}

	s.ElevationMinM = minAlt
	s.ElevationMaxM = maxAlt
	s.ElevationRangeM = maxAlt - minAlt
	s.ElevationMeanM = sum / float64(len(alts))
	s.NetElevationChangeM = alts[len(alts)-1] - alts[0]
	if s.TotalDistanceM > 0 {
		s.MeanGradient = s.NetElevationChangeM / s.TotalDistanceM
	}

	switch {
	case s.TotalDescentM > elevationEpsilon:
		ratio := s.TotalAscentM / s.TotalDescentM
		s.AscentDescentRatio = &ratio
	case s.TotalAscentM > elevationEpsilon:
		s.AscentDescentRatio = nil
	default:
		zero := 0.0
		s.AscentDescentRatio = &zero
	}

	t := classify(s.ElevationRangeM, s.TotalAscentM, s.TotalDescentM)
	s.ElevationProfileType = &t
}

func classify(rangeM, ascent, descent float64) ProfileType {
	switch {
	case rangeM < flatRangeMeters:
		return ProfileFlat
	case descent <= elevationEpsilon:
		return ProfileAscentOnly
	case ascent <= elevationEpsilon:
		return ProfileDescentOnly
	default:
		return ProfileMixed
	}
}
