package models

import (
	"errors"
	"fmt"
)

var (
	ErrProfileTooShort     = errors.New("elevation profile needs at least two points")
	ErrProfileNotMonotonic = errors.New("elevation profile cumulative distance must strictly increase")
	ErrProfileNumbering    = errors.New("elevation profile point numbers must be contiguous from 0")
)

// ProfilePoint is one sample along a route geometry. Distances are meters,
// coordinates decimal degrees.
type ProfilePoint struct {
	PointNumber        int     `json:"point_number"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	Altitude           float64 `json:"altitude"`
	CumulativeDistance float64 `json:"cumulative_distance"`
}

// ElevationProfile is the immutable artifact stored under a shape id.
type ElevationProfile struct {
	ShapeID string         `json:"shape_id"`
	Points  []ProfilePoint `json:"points"`
}

// Validate checks point numbering and strictly increasing cumulative distance.
func (p ElevationProfile) Validate() error {
	if len(p.Points) < 2 {
		return ErrProfileTooShort
	}
	for i, pt := range p.Points {
		if pt.PointNumber != i {
			return fmt.Errorf("%w: point %d has number %d", ErrProfileNumbering, i, pt.PointNumber)
		}
		if i == 0 {
			if pt.CumulativeDistance != 0 {
				return fmt.Errorf("%w: first point at %f", ErrProfileNotMonotonic, pt.CumulativeDistance)
			}
			continue
		}
		if pt.CumulativeDistance <= p.Points[i-1].CumulativeDistance {
			return fmt.Errorf("%w: point %d", ErrProfileNotMonotonic, i)
		}
	}
	return nil
}

// TotalDistance is the cumulative distance of the last point.
func (p ElevationProfile) TotalDistance() float64 {
	if len(p.Points) == 0 {
		return 0
	}
	return p.Points[len(p.Points)-1].CumulativeDistance
}

func (p ElevationProfile) Altitudes() []float64 {
	out := make([]float64, len(p.Points))
	for i, pt := range p.Points {
		out[i] = pt.Altitude
	}
	return out
}
