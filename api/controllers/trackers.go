package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/iskolarlink/iskolarlink-backend/api/middleware"
	"github.com/iskolarlink/iskolarlink-backend/api/responses"
	"github.com/iskolarlink/iskolarlink-backend/api/validators"
	"github.com/iskolarlink/iskolarlink-backend/internal/trackers"
	"github.com/iskolarlink/iskolarlink-backend/pkg/enums"
	pkgerrors "github.com/iskolarlink/iskolarlink-backend/pkg/errors"
	"github.com/iskolarlink/iskolarlink-backend/pkg/logger"
)

type trackerBudgetRequest struct {
	AllottedBudget *float64 `json:"allottedBudget" validate:"required"`
}

type trackerConsumeRequest struct {
	AddAmount *float64 `json:"addAmount" validate:"required"`
}

// TrackerList returns one row per verified scholar for the program, creating
// missing records first.
func TrackerList(svc trackers.Service, program enums.TrackerProgram, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tracker service unavailable"))
			return
		}
		ctx := withProgram(r, logg, program)

		rows, err := svc.ListSnapshot(ctx, program)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// TrackerSetBudget overwrites a scholar's allotted budget.
func TrackerSetBudget(svc trackers.Service, program enums.TrackerProgram, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tracker service unavailable"))
			return
		}
		ctx := withProgram(r, logg, program)

		scholarID, err := scholarIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body trackerBudgetRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		view, err := svc.SetBudget(ctx, program, scholarID, *body.AllottedBudget, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// TrackerConsume adds to a scholar's consumed total.
func TrackerConsume(svc trackers.Service, program enums.TrackerProgram, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tracker service unavailable"))
			return
		}
		ctx := withProgram(r, logg, program)

		scholarID, err := scholarIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body trackerConsumeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		view, err := svc.RecordConsumption(ctx, program, scholarID, *body.AddAmount, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// TrackerReset zeroes both the budget and the consumed total.
func TrackerReset(svc trackers.Service, program enums.TrackerProgram, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tracker service unavailable"))
			return
		}
		ctx := withProgram(r, logg, program)

		scholarID, err := scholarIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		view, err := svc.Reset(ctx, program, scholarID, middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// TrackerHistory returns the scholar's mutation log, newest first.
func TrackerHistory(svc trackers.Service, program enums.TrackerProgram, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tracker service unavailable"))
			return
		}
		ctx := withProgram(r, logg, program)

		scholarID, err := scholarIDParam(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		entries, err := svc.GetHistory(ctx, program, scholarID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

func withProgram(r *http.Request, logg *logger.Logger, program enums.TrackerProgram) context.Context {
	ctx := r.Context()
	if logg == nil {
		return ctx
	}
	ctx = logg.WithProgram(ctx, string(program))
	if raw := chi.URLParam(r, "scholarId"); raw != "" {
		ctx = logg.WithScholarID(ctx, raw)
	}
	return ctx
}

func scholarIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "scholarId"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scholar id").
			WithDetails(map[string]string{"scholarId": "must be a valid uuid"})
	}
	return id, nil
}
