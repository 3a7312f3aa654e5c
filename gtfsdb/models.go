package gtfsdb

import (
	"database/sql"
)

type Route struct {
	ID        string
	AgencyID  string
	ShortName sql.NullString
	LongName  sql.NullString
	Type      int64
}

type Calendar struct {
	ID        string
	Monday    int64
	Tuesday   int64
	Wednesday int64
	Thursday  int64
	Friday    int64
	Saturday  int64
	Sunday    int64
	StartDate string
	EndDate   string
}

type Stop struct {
	ID   string
	Code sql.NullString
	Name string
	Lat  float64
	Lon  float64
}

type Depot struct {
	ID     string
	Name   string
	StopID string
}

type Trip struct {
	ID          string
	RouteID     string
	ServiceID   string
	Kind        string
	Headsign    sql.NullString
	BlockID     sql.NullString
	DirectionID sql.NullInt64
	ShapeID     sql.NullString
	CreatedAt   int64
}

type StopTime struct {
	TripID            string
	StopID            string
	StopSequence      int64
	ArrivalTime       int64
	DepartureTime     int64
	ShapeDistTraveled sql.NullFloat64
}

type Shape struct {
	ShapeID           string
	Lat               float64
	Lon               float64
	ShapePtSequence   int64
	ShapeDistTraveled sql.NullFloat64
}

type Shift struct {
	ID        string
	Name      string
	VehicleID string
	CreatedAt int64
}

type ShiftTrip struct {
	ShiftID  string
	Position int64
	TripID   string
}

type ImportMetadatum struct {
	ID         int64
	FileHash   string
	ImportTime int64
	FileSource string
}
