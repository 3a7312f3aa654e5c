package models

import (
	"fmt"
	"strings"

	"shiftplanner.ebus.dev/gtfsdb"
)

// TripKind tags a trip row. Scheduled trips come from the GTFS import;
// depot and transfer trips are synthesized.
type TripKind uint8

const (
	TripKindScheduled TripKind = iota + 1
	TripKindDepot
	TripKindTransfer
)

func (k TripKind) String() string {
	switch k {
	case TripKindScheduled:
		return "scheduled"
	case TripKindDepot:
		return "depot"
	case TripKindTransfer:
		return "transfer"
	default:
		return fmt.Sprintf("trip_kind(%d)", uint8(k))
	}
}

func ParseTripKind(s string) (TripKind, error) {
	switch strings.TrimSpace(s) {
	case "scheduled":
		return TripKindScheduled, nil
	case "depot":
		return TripKindDepot, nil
	case "transfer":
		return TripKindTransfer, nil
	default:
		return 0, fmt.Errorf("unknown trip kind %q", s)
	}
}

// IsAuxiliary reports whether trips of this kind are synthesized.
func (k TripKind) IsAuxiliary() bool {
	switch k {
	case TripKindDepot, TripKindTransfer:
		return true
	case TripKindScheduled:
		return false
	default:
		return false
	}
}

func (k TripKind) MarshalText() ([]byte, error) {
	switch k {
	case TripKindScheduled, TripKindDepot, TripKindTransfer:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("cannot marshal %s", k)
	}
}

func (k *TripKind) UnmarshalText(b []byte) error {
	parsed, err := ParseTripKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// LegKind is the role of a synthesized leg within a shift.
type LegKind uint8

const (
	LegDepotOut LegKind = iota + 1
	LegDepotReturn
	LegTransfer
)

func (k LegKind) String() string {
	switch k {
	case LegDepotOut:
		return "depot_out"
	case LegDepotReturn:
		return "depot_return"
	case LegTransfer:
		return "transfer"
	default:
		return fmt.Sprintf("leg_kind(%d)", uint8(k))
	}
}

func ParseLegKind(s string) (LegKind, error) {
	switch strings.TrimSpace(s) {
	case "depot_out":
		return LegDepotOut, nil
	case "depot_return":
		return LegDepotReturn, nil
	case "transfer":
		return LegTransfer, nil
	default:
		return 0, fmt.Errorf("unknown leg kind %q", s)
	}
}

// TripKind returns the trip tag written for a leg of this kind.
func (k LegKind) TripKind() (TripKind, error) {
	switch k {
	case LegDepotOut, LegDepotReturn:
		return TripKindDepot, nil
	case LegTransfer:
		return TripKindTransfer, nil
	default:
		return 0, fmt.Errorf("unknown leg kind %s", k)
	}
}

func (k LegKind) MarshalText() ([]byte, error) {
	switch k {
	case LegDepotOut, LegDepotReturn, LegTransfer:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("cannot marshal %s", k)
	}
}

func (k *LegKind) UnmarshalText(b []byte) error {
	parsed, err := ParseLegKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// TripSummary is the view of a trip the planner works with: its endpoints
// and times in seconds since service midnight.
type TripSummary struct {
	ID            string   `json:"id"`
	RouteID       string   `json:"route_id"`
	ServiceID     string   `json:"service_id"`
	Kind          TripKind `json:"kind"`
	StartStopID   string   `json:"start_stop_id,omitempty"`
	StartStopName string   `json:"start_stop_name"`
	EndStopID     string   `json:"end_stop_id,omitempty"`
	EndStopName   string   `json:"end_stop_name"`
	DepartureTime int64    `json:"departure_time"`
	ArrivalTime   int64    `json:"arrival_time"`
	ShapeID       string   `json:"shape_id,omitempty"`
}

// TripSummaryFromRow converts a database summary row. Rows with an unknown
// kind tag are rejected.
func TripSummaryFromRow(row gtfsdb.GetTripSummaryRow) (TripSummary, error) {
	kind, err := ParseTripKind(row.Kind)
	if err != nil {
		return TripSummary{}, fmt.Errorf("trip %q: %w", row.ID, err)
	}
	return TripSummary{
		ID:            row.ID,
		RouteID:       row.RouteID,
		ServiceID:     row.ServiceID,
		Kind:          kind,
		StartStopID:   row.StartStopID,
		StartStopName: row.StartStopName,
		EndStopID:     row.EndStopID,
		EndStopName:   row.EndStopName,
		DepartureTime: row.DepartureTime,
		ArrivalTime:   row.ArrivalTime,
		ShapeID:       row.ShapeID.String,
	}, nil
}

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Stop is a physical stop as exposed by the API.
type Stop struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

func (s Stop) Coordinate() Coordinate {
	return Coordinate{Lat: s.Lat, Lon: s.Lon}
}

func StopFromRow(row gtfsdb.Stop) Stop {
	return Stop{ID: row.ID, Name: row.Name, Lat: row.Lat, Lon: row.Lon}
}
