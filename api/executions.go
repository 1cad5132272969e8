/*
executions.go - Execution transition and report handlers

PURPOSE:
  The shop-floor surface: start/pause/finish on a service, and the
  production report. Open to any authenticated operator; the engine applies
  the kind/role gate and the aggregator applies visibility rules.

OPERATOR UPSERT:
  Operators live in the external identity provider; this service persists
  them on first contact (from token claims) so ledger rows and report joins
  always resolve to a name and role set.

REPORT PERIODS:
  period=day     start of today (default)
  period=week    seven days back, start of day
  period=month   one month back, start of day
  period=all     unbounded past
  period=custom  explicit startDate/endDate (YYYY-MM-DD), inclusive days
*/
package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/production-engine/execution"
	"github.com/warp/production-engine/report"
)

// =============================================================================
// TRANSITIONS
// =============================================================================

func (h *Handler) startService(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())
	if err := h.upsertOperator(r, identity); err != nil {
		writeEngineError(w, err)
		return
	}

	id := execution.ServiceID(chi.URLParam(r, "id"))
	svc, err := h.machine.Start(r.Context(), id, identity.Actor())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.writeTransitionResult(w, r, svc, identity)
}

func (h *Handler) pauseService(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	req, err := decodeCloseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := execution.ServiceID(chi.URLParam(r, "id"))
	svc, err := h.machine.Pause(r.Context(), id, identity.Actor(), req.quantity(), req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.writeTransitionResult(w, r, svc, identity)
}

func (h *Handler) finishService(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	req, err := decodeCloseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := execution.ServiceID(chi.URLParam(r, "id"))
	svc, err := h.machine.Finish(r.Context(), id, identity.Actor(), req.quantity())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.writeTransitionResult(w, r, svc, identity)
}

// decodeCloseRequest parses a pause/finish body. An absent body is legal
// and means a zero-quantity close (the operator stepped away without
// completing any units).
func decodeCloseRequest(r *http.Request) (closeRequest, error) {
	var req closeRequest
	err := decodeBody(r, &req)
	if errors.Is(err, io.EOF) {
		return closeRequest{}, nil
	}
	return req, err
}

// upsertOperator persists the caller from token claims so ledger rows
// always join to a known operator.
func (h *Handler) upsertOperator(r *http.Request, identity Identity) error {
	return h.store.SaveUser(r.Context(), execution.Operator{
		ID:    identity.ID,
		Name:  identity.Name,
		Roles: identity.Roles,
	})
}

// writeTransitionResult serializes the post-transition service with its
// ledger, price-gated on the caller's roles.
func (h *Handler) writeTransitionResult(w http.ResponseWriter, r *http.Request, svc *execution.Service, identity Identity) {
	records, err := h.store.ListRecords(r.Context(), svc.ID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	includePrices := execution.IsAdmin(identity.Roles)
	writeJSON(w, http.StatusOK, toServiceDTO(*svc, records, nil, includePrices))
}

// =============================================================================
// REPORTS
// =============================================================================

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "day"
	}
	start, end, err := resolvePeriod(period,
		r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := report.Params{
		Period:         period,
		PeriodStart:    start,
		PeriodEnd:      end,
		RequesterID:    identity.ID,
		RequesterRoles: identity.Roles,
	}

	// "all" (or absent) means every operator; the aggregator still pins
	// non-admins to themselves.
	if userID := r.URL.Query().Get("userId"); userID != "" && userID != "all" {
		op := execution.OperatorID(userID)
		params.OperatorFilter = &op
	}

	rep, err := report.BuildReport(r.Context(), h.store, params)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// resolvePeriod turns the period preset (or a custom date pair) into
// window bounds. Nil bounds are unbounded.
func resolvePeriod(period, startDate, endDate string) (*time.Time, *time.Time, error) {
	now := time.Now()
	switch period {
	case "day":
		start := startOfDay(now)
		return &start, nil, nil
	case "week":
		start := startOfDay(now.AddDate(0, 0, -7))
		return &start, nil, nil
	case "month":
		start := startOfDay(now.AddDate(0, -1, 0))
		return &start, nil, nil
	case "all":
		return nil, nil, nil
	case "custom":
		if startDate == "" || endDate == "" {
			return nil, nil, errors.New("custom period requires startDate and endDate")
		}
		start, err := time.ParseInLocation("2006-01-02", startDate, time.Local)
		if err != nil {
			return nil, nil, errors.New("invalid startDate, expected YYYY-MM-DD")
		}
		end, err := time.ParseInLocation("2006-01-02", endDate, time.Local)
		if err != nil {
			return nil, nil, errors.New("invalid endDate, expected YYYY-MM-DD")
		}
		if end.Before(start) {
			return nil, nil, errors.New("startDate must not be after endDate")
		}
		endInclusive := endOfDay(end)
		return &start, &endInclusive, nil
	default:
		return nil, nil, errors.New("invalid period, expected day|week|month|all|custom")
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
