// Package shift assembles vehicle duties. A Draft is a plain value passed
// in by the caller on every transition; a rejected transition returns the
// draft unchanged together with a RejectionError naming the reason.
package shift

import (
	"fmt"
	"strings"

	"shiftplanner.ebus.dev/internal/clock"
	"shiftplanner.ebus.dev/internal/models"
)

type State uint8

const (
	StateEmpty State = iota
	StateDepotSet
	StateBuilding
	StateDepotReturned
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateDepotSet:
		return "depot_set"
	case StateBuilding:
		return "building"
	case StateDepotReturned:
		return "depot_returned"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DepotLeg is a depot visit at a service time.
type DepotLeg struct {
	DepotID  string `json:"depot_id"`
	StopID   string `json:"stop_id,omitempty"`
	StopName string `json:"stop_name,omitempty"`
	Time     int64  `json:"time"`
}

// TransferWindow is the time an empty bus spends moving between two
// non-contiguous trips.
type TransferWindow struct {
	DepartureTime int64 `json:"departure_time"`
	ArrivalTime   int64 `json:"arrival_time"`
}

type Leg struct {
	Transfer *TransferWindow    `json:"transfer,omitempty"`
	Trip     models.TripSummary `json:"trip"`
}

type Draft struct {
	LeaveDepot  *DepotLeg `json:"leave_depot,omitempty"`
	Legs        []Leg     `json:"legs,omitempty"`
	ReturnDepot *DepotLeg `json:"return_depot,omitempty"`
}

func (d Draft) State() State {
	switch {
	case d.ReturnDepot != nil:
		return StateDepotReturned
	case len(d.Legs) > 0:
		return StateBuilding
	case d.LeaveDepot != nil:
		return StateDepotSet
	default:
		return StateEmpty
	}
}

// LastTrip returns the most recently picked trip.
func (d Draft) LastTrip() (models.TripSummary, bool) {
	if len(d.Legs) == 0 {
		return models.TripSummary{}, false
	}
	return d.Legs[len(d.Legs)-1].Trip, true
}

func (d Draft) clone() Draft {
	out := Draft{Legs: make([]Leg, len(d.Legs))}
	if d.LeaveDepot != nil {
		leg := *d.LeaveDepot
		out.LeaveDepot = &leg
	}
	for i, l := range d.Legs {
		out.Legs[i] = l
		if l.Transfer != nil {
			w := *l.Transfer
			out.Legs[i].Transfer = &w
		}
	}
	if d.ReturnDepot != nil {
		leg := *d.ReturnDepot
		out.ReturnDepot = &leg
	}
	return out
}

func (d Draft) SetLeaveDepot(leg DepotLeg) (Draft, error) {
	if st := d.State(); st != StateEmpty {
		return d, illegal("set leave depot", st)
	}
	if strings.TrimSpace(leg.DepotID) == "" {
		return d, reject(ReasonDepotRequired, "depot id is required")
	}
	out := d.clone()
	out.LeaveDepot = &leg
	return out, nil
}

// PickTrip appends trip. Without a transfer the trip must start where the
// previous one ended; with one, the transfer must fit between the two trips.
func (d Draft) PickTrip(trip models.TripSummary, transfer *TransferWindow) (Draft, error) {
	st := d.State()
	switch st {
	case StateDepotSet:
		if transfer != nil {
			return d, reject(ReasonInvalidTransferWindow, "the first trip is reached by the leave-depot leg, not a transfer")
		}
		if trip.DepartureTime < d.LeaveDepot.Time {
			return d, reject(ReasonDepartsBeforeLeave, "trip %s departs at %s, before leaving the depot at %s",
				trip.ID, clock.FormatServiceTime(trip.DepartureTime), clock.FormatServiceTime(d.LeaveDepot.Time))
		}
	case StateBuilding:
		last, _ := d.LastTrip()
		if err := checkContinuation(last, trip, transfer); err != nil {
			return d, err
		}
	default:
		return d, illegal("pick trip", st)
	}

	out := d.clone()
	leg := Leg{Trip: trip}
	if transfer != nil {
		w := *transfer
		leg.Transfer = &w
	}
	out.Legs = append(out.Legs, leg)
	return out, nil
}

func checkContinuation(last, next models.TripSummary, transfer *TransferWindow) error {
	if transfer == nil {
		if normalizeStopName(next.StartStopName) != normalizeStopName(last.EndStopName) {
			return reject(ReasonInvalidContinuation, "trip %s starts at %q but the previous trip ends at %q",
				next.ID, next.StartStopName, last.EndStopName)
		}
		if next.DepartureTime < last.ArrivalTime {
			return reject(ReasonInvalidContinuation, "trip %s departs at %s, before the previous trip arrives at %s",
				next.ID, clock.FormatServiceTime(next.DepartureTime), clock.FormatServiceTime(last.ArrivalTime))
		}
		return nil
	}

	switch {
	case transfer.DepartureTime < last.ArrivalTime:
		return reject(ReasonInvalidTransferWindow, "transfer leaves at %s, before the previous trip arrives at %s",
			clock.FormatServiceTime(transfer.DepartureTime), clock.FormatServiceTime(last.ArrivalTime))
	case transfer.ArrivalTime < transfer.DepartureTime:
		return reject(ReasonInvalidTransferWindow, "transfer arrives at %s, before it leaves at %s",
			clock.FormatServiceTime(transfer.ArrivalTime), clock.FormatServiceTime(transfer.DepartureTime))
	case transfer.ArrivalTime > next.DepartureTime:
		return reject(ReasonInvalidTransferWindow, "transfer arrives at %s, after trip %s departs at %s",
			clock.FormatServiceTime(transfer.ArrivalTime), next.ID, clock.FormatServiceTime(next.DepartureTime))
	}
	return nil
}

// SetReturnDepot closes the draft. The return must be strictly later than
// the arrival of the last trip.
func (d Draft) SetReturnDepot(leg DepotLeg) (Draft, error) {
	if st := d.State(); st != StateBuilding {
		return d, illegal("set return depot", st)
	}
	if strings.TrimSpace(leg.DepotID) == "" {
		return d, reject(ReasonDepotRequired, "depot id is required")
	}
	last, _ := d.LastTrip()
	if leg.Time <= last.ArrivalTime {
		return d, reject(ReasonReturnTooEarly, "return at %s is not after the last arrival at %s",
			clock.FormatServiceTime(leg.Time), clock.FormatServiceTime(last.ArrivalTime))
	}
	out := d.clone()
	out.ReturnDepot = &leg
	return out, nil
}

// Undo reverts the latest transition: the return depot, then the last
// trip with its transfer, then the leave depot.
func (d Draft) Undo() (Draft, error) {
	out := d.clone()
	switch st := d.State(); st {
	case StateDepotReturned:
		out.ReturnDepot = nil
	case StateBuilding:
		out.Legs = out.Legs[:len(out.Legs)-1]
	case StateDepotSet:
		out.LeaveDepot = nil
	default:
		return d, illegal("undo", st)
	}
	return out, nil
}

// CheckShape rejects drafts no sequence of transitions could produce: legs
// without a leave depot, or a return depot without legs.
func (d Draft) CheckShape() error {
	switch {
	case d.LeaveDepot == nil && (len(d.Legs) > 0 || d.ReturnDepot != nil):
		return reject(ReasonIllegalTransition, "draft has trips or a return depot but no leave depot")
	case len(d.Legs) == 0 && d.ReturnDepot != nil:
		return reject(ReasonIllegalTransition, "draft returns to the depot without any trip")
	}
	return nil
}

func (d Draft) Reset() Draft {
	return Draft{}
}

// Replay rebuilds the draft transition by transition, returning the first
// rejection. Trips are taken from lookup so stale client data is rechecked.
func (d Draft) Replay(lookup func(models.TripSummary) (models.TripSummary, error)) (Draft, error) {
	var out Draft
	var err error
	if d.LeaveDepot == nil {
		return out, illegal("replay", StateEmpty)
	}
	if out, err = out.SetLeaveDepot(*d.LeaveDepot); err != nil {
		return out, err
	}
	for _, leg := range d.Legs {
		trip := leg.Trip
		if lookup != nil {
			if trip, err = lookup(leg.Trip); err != nil {
				return out, err
			}
		}
		if out, err = out.PickTrip(trip, leg.Transfer); err != nil {
			return out, err
		}
	}
	if d.ReturnDepot != nil {
		if out, err = out.SetReturnDepot(*d.ReturnDepot); err != nil {
			return out, err
		}
	}
	return out, nil
}

// normalizeStopName only trims surrounding whitespace; the comparison stays
// case-sensitive.
func normalizeStopName(s string) string {
	return strings.TrimSpace(s)
}
