package restapi

import (
	"context"
	"errors"
	"net/http"

	"shiftplanner.ebus.dev/internal/models"
	"shiftplanner.ebus.dev/internal/shift"
)

// Draft transition actions.
const (
	actionSetLeaveDepot  = "set_leave_depot"
	actionPickTrip       = "pick_trip"
	actionSetReturnDepot = "set_return_depot"
	actionUndo           = "undo"
	actionReset          = "reset"
)

type transferRequest struct {
	DepartureTime serviceTime `json:"departure_time"`
	ArrivalTime   serviceTime `json:"arrival_time"`
}

type draftTransitionRequest struct {
	Draft    shift.Draft      `json:"draft"`
	Action   string           `json:"action"`
	DepotID  string           `json:"depot_id,omitempty"`
	Time     *serviceTime     `json:"time,omitempty"`
	TripID   string           `json:"trip_id,omitempty"`
	Transfer *transferRequest `json:"transfer,omitempty"`
}

type draftResponse struct {
	Draft shift.Draft `json:"draft"`
	State shift.State `json:"state"`
}

// draftTransitionHandler applies one action to a caller-held draft. The
// incoming draft is first replayed against the database so trips the
// caller echoes back are never trusted as-is. Reset skips the replay and
// undo replays only what remains, so a trip deleted since the draft was
// built cannot block discarding it.
func (api *RestAPI) draftTransitionHandler(w http.ResponseWriter, r *http.Request) {
	var req draftTransitionRequest
	if !api.decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()

	draft := req.Draft
	switch req.Action {
	case actionReset:
		api.sendDraft(w, r, draft.Reset())
		return
	case actionUndo:
		if err := draft.CheckShape(); err != nil {
			api.rejectDraft(w, r, err)
			return
		}
		undone, err := draft.Undo()
		if err != nil {
			api.rejectDraft(w, r, err)
			return
		}
		if undone, err = api.replayDraft(ctx, undone); err != nil {
			api.rejectDraft(w, r, err)
			return
		}
		api.sendDraft(w, r, undone)
		return
	}

	draft, err := api.replayDraft(ctx, draft)
	if err != nil {
		api.rejectDraft(w, r, err)
		return
	}

	next, err := api.applyAction(ctx, draft, req)
	if errors.Is(err, errUnknownAction) || errors.Is(err, errTimeRequired) {
		api.badRequest(w, r, "%v", err)
		return
	}
	if err != nil {
		api.rejectDraft(w, r, err)
		return
	}

	api.sendDraft(w, r, next)
}

func (api *RestAPI) sendDraft(w http.ResponseWriter, r *http.Request, d shift.Draft) {
	api.sendResponse(w, r, models.NewEntryResponse(draftResponse{Draft: d, State: d.State()}, api.Clock))
}

var (
	errUnknownAction = errors.New("unknown action")
	errTimeRequired  = errors.New("time is required")
)

func (api *RestAPI) applyAction(ctx context.Context, draft shift.Draft, req draftTransitionRequest) (shift.Draft, error) {
	switch req.Action {
	case actionSetLeaveDepot, actionSetReturnDepot:
		if req.Time == nil {
			return draft, errTimeRequired
		}
		leg := shift.DepotLeg{DepotID: req.DepotID, Time: int64(*req.Time)}
		if leg.DepotID != "" {
			resolved, err := api.Committer.ResolveDepot(ctx, leg)
			if err != nil {
				return draft, err
			}
			leg = resolved
		}
		if req.Action == actionSetLeaveDepot {
			return draft.SetLeaveDepot(leg)
		}
		return draft.SetReturnDepot(leg)

	case actionPickTrip:
		trip, err := api.Committer.LookupTrip(ctx, req.TripID)
		if err != nil {
			return draft, err
		}
		var transfer *shift.TransferWindow
		if req.Transfer != nil {
			transfer = &shift.TransferWindow{
				DepartureTime: int64(req.Transfer.DepartureTime),
				ArrivalTime:   int64(req.Transfer.ArrivalTime),
			}
		}
		return draft.PickTrip(trip, transfer)

	}
	return draft, errUnknownAction
}

// replayDraft rebuilds a non-empty draft from authoritative trip and depot
// data.
func (api *RestAPI) replayDraft(ctx context.Context, d shift.Draft) (shift.Draft, error) {
	if d.State() == shift.StateEmpty {
		return d, nil
	}
	if d.LeaveDepot != nil {
		leave, err := api.Committer.ResolveDepot(ctx, *d.LeaveDepot)
		if err != nil {
			return d, err
		}
		d.LeaveDepot = &leave
	}
	if d.ReturnDepot != nil {
		ret, err := api.Committer.ResolveDepot(ctx, *d.ReturnDepot)
		if err != nil {
			return d, err
		}
		d.ReturnDepot = &ret
	}
	return d.Replay(func(t models.TripSummary) (models.TripSummary, error) {
		return api.Committer.LookupTrip(ctx, t.ID)
	})
}

// rejectDraft answers a failed transition. Rejections are 422 with their
// reason and counted; anything else goes through the generic mapping.
func (api *RestAPI) rejectDraft(w http.ResponseWriter, r *http.Request, err error) {
	var rej *shift.RejectionError
	if errors.As(err, &rej) {
		api.Metrics.IncDraftRejection(rej.Reason)
	}
	api.domainErrorResponse(w, r, err)
}
