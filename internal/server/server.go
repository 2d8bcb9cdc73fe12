// Package server exposes generation, sync and reports over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/nhle/lifeplan/internal/app"
	"github.com/nhle/lifeplan/internal/mirror"
	"github.com/nhle/lifeplan/internal/model"
	"github.com/nhle/lifeplan/internal/progress"
	"github.com/nhle/lifeplan/internal/recurrence"
	"github.com/nhle/lifeplan/internal/report"
	"github.com/nhle/lifeplan/internal/schedule"
	"github.com/nhle/lifeplan/internal/store"
	lpsync "github.com/nhle/lifeplan/internal/sync"
	"github.com/nhle/lifeplan/internal/timeline"
)

// Config for the HTTP API handler.
type Config struct {
	App *app.App

	// Workspace is used when a request names none.
	Workspace string

	// Watcher, when set, is reported by /health and driven by /sync/trigger.
	Watcher *lpsync.Watcher

	BasePath string
}

// New returns an HTTP handler exposing the lifeplan API.
func New(cfg Config) http.Handler {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("lifeplan API", "0.1.0")
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := &handlers{cfg: cfg}
	registerHealth(group, h)
	registerGenerate(group, h)
	registerSync(group, h)
	registerReport(group, h)
	return router
}

type handlers struct {
	cfg Config
}

func (h *handlers) workspace(ctx context.Context, name string) (model.Workspace, error) {
	if name == "" {
		name = h.cfg.Workspace
	}
	return h.cfg.App.Workspace(ctx, name)
}

// handleError maps domain errors to HTTP statuses.
func handleError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrParentNotFound):
		return huma.Error404NotFound(msg)
	case errors.Is(err, store.ErrAlreadyExists), errors.Is(err, store.ErrConcurrencyConflict),
		errors.Is(err, store.ErrInUse):
		return huma.Error409Conflict(msg)
	case errors.Is(err, model.ErrUnknownFilter), errors.Is(err, report.ErrInvalidBreakdown),
		errors.Is(err, schedule.ErrInvalidRecurrenceParameters), errors.Is(err, model.ErrInvalidName),
		errors.Is(err, model.ErrActionableAfterDue), errors.Is(err, model.ErrInvalidStatusTransition),
		errors.Is(err, app.ErrFeatureDisabled):
		return huma.Error422UnprocessableEntity(msg)
	case mirror.IsAuthError(err):
		return huma.Error502BadGateway(msg)
	case errors.Is(err, mirror.ErrUnavailable):
		return huma.Error503ServiceUnavailable(msg)
	}
	return huma.Error500InternalServerError(msg)
}

type syncStatus struct {
	State    string                  `json:"state" example:"idle"`
	LastSync *time.Time              `json:"last_sync,omitempty"`
	Error    string                  `json:"error,omitempty"`
	Stats    map[string]lpsync.Stats `json:"stats,omitempty"`
}

type healthOutput struct {
	Body struct {
		Status string      `json:"status" example:"ok"`
		Sync   *syncStatus `json:"sync,omitempty"`
	}
}

func registerHealth(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*healthOutput, error) {
		out := &healthOutput{}
		out.Body.Status = "ok"
		if h.cfg.Watcher != nil {
			st := h.cfg.Watcher.Status()
			out.Body.Sync = &syncStatus{State: st.State.String(), Stats: st.Stats}
			if !st.LastSync.IsZero() {
				out.Body.Sync.LastSync = &st.LastSync
			}
			if st.Error != nil {
				out.Body.Sync.Error = st.Error.Error()
			}
		}
		return out, nil
	})
}

type generateInput struct {
	Body struct {
		Workspace             string     `json:"workspace,omitempty"`
		RightNow              *time.Time `json:"right_now,omitempty"`
		Targets               []string   `json:"targets,omitempty"`
		Periods               []string   `json:"periods,omitempty"`
		ProjectKeys           []string   `json:"project_keys,omitempty"`
		RecurringTaskRefIDs   []string   `json:"recurring_task_ref_ids,omitempty"`
		MetricKeys            []string   `json:"metric_keys,omitempty"`
		PersonRefIDs          []string   `json:"person_ref_ids,omitempty"`
		SyncEvenIfNotModified bool       `json:"sync_even_if_not_modified,omitempty"`
	}
}

type generateOutput struct {
	Body struct {
		Result  recurrence.Result `json:"result"`
		Entries []progress.Entry  `json:"entries"`
	}
}

func registerGenerate(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "generate",
		Method:      http.MethodPost,
		Path:        "/generate",
		Summary:     "Generate inbox tasks from recurrences",
	}, func(ctx context.Context, in *generateInput) (*generateOutput, error) {
		ws, err := h.workspace(ctx, in.Body.Workspace)
		if err != nil {
			return nil, handleError(err)
		}
		req := recurrence.Request{
			Filters: recurrence.Filters{
				ProjectKeys:         in.Body.ProjectKeys,
				RecurringTaskRefIDs: in.Body.RecurringTaskRefIDs,
				MetricKeys:          in.Body.MetricKeys,
				PersonRefIDs:        in.Body.PersonRefIDs,
			},
			SyncEvenIfNotModified: in.Body.SyncEvenIfNotModified,
		}
		if in.Body.RightNow != nil {
			req.RightNow = *in.Body.RightNow
		}
		for _, s := range in.Body.Targets {
			t, err := recurrence.ParseTarget(s)
			if err != nil {
				return nil, handleError(err)
			}
			req.Targets = append(req.Targets, t)
		}
		if req.Periods, err = parsePeriods(in.Body.Periods); err != nil {
			return nil, handleError(err)
		}

		rec := &progress.Recorder{}
		res, err := h.cfg.App.Recurrence.Generate(ctx, ws, req, progress.New(rec))
		if err != nil {
			return nil, handleError(err)
		}
		out := &generateOutput{}
		out.Body.Result = res
		out.Body.Entries = rec.Entries()
		return out, nil
	})
}

type syncInput struct {
	Body struct {
		Workspace             string   `json:"workspace,omitempty"`
		Collections           []string `json:"collections,omitempty"`
		Preference            string   `json:"preference,omitempty" enum:"prefer_local,prefer_external"`
		SyncEvenIfNotModified bool     `json:"sync_even_if_not_modified,omitempty"`
		RefIDs                []string `json:"ref_ids,omitempty"`
		DropExternalSide      bool     `json:"drop_external_side,omitempty"`
	}
}

type syncOutput struct {
	Body struct {
		Stats   map[string]lpsync.Stats `json:"stats"`
		Entries []progress.Entry        `json:"entries"`
	}
}

type triggerOutput struct {
	Body struct {
		State string `json:"state"`
	}
}

func registerSync(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "sync",
		Method:      http.MethodPost,
		Path:        "/sync",
		Summary:     "Reconcile local entities with the mirror",
	}, func(ctx context.Context, in *syncInput) (*syncOutput, error) {
		ws, err := h.workspace(ctx, in.Body.Workspace)
		if err != nil {
			return nil, handleError(err)
		}
		pref, err := lpsync.ParsePreference(in.Body.Preference)
		if err != nil {
			return nil, handleError(err)
		}
		opts := lpsync.Options{
			Preference:            pref,
			SyncEvenIfNotModified: in.Body.SyncEvenIfNotModified,
			FilterRefIDs:          in.Body.RefIDs,
			DropExternalSide:      in.Body.DropExternalSide,
		}

		rec := &progress.Recorder{}
		stats, err := h.cfg.App.Reconciler.SyncAll(ctx, ws, in.Body.Collections, opts, progress.New(rec))
		if err != nil {
			return nil, handleError(err)
		}
		out := &syncOutput{}
		out.Body.Stats = stats
		out.Body.Entries = rec.Entries()
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "sync-trigger",
		Method:        http.MethodPost,
		Path:          "/sync/trigger",
		Summary:       "Ask the background sync to run now",
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, _ *struct{}) (*triggerOutput, error) {
		if h.cfg.Watcher == nil {
			return nil, huma.Error404NotFound("background sync is not running")
		}
		h.cfg.Watcher.Trigger()
		out := &triggerOutput{}
		out.Body.State = h.cfg.Watcher.Status().State.String()
		return out, nil
	})
}

type reportInput struct {
	Body struct {
		Workspace           string     `json:"workspace,omitempty"`
		RightNow            *time.Time `json:"right_now,omitempty"`
		Period              string     `json:"period" example:"weekly"`
		BreakdownPeriod     string     `json:"breakdown_period,omitempty"`
		Breakdowns          []string   `json:"breakdowns,omitempty"`
		Covers              []string   `json:"covers,omitempty"`
		ProjectKeys         []string   `json:"project_keys,omitempty"`
		Sources             []string   `json:"sources,omitempty"`
		BigPlanRefIDs       []string   `json:"big_plan_ref_ids,omitempty"`
		RecurringTaskRefIDs []string   `json:"recurring_task_ref_ids,omitempty"`
		MetricKeys          []string   `json:"metric_keys,omitempty"`
		PersonRefIDs        []string   `json:"person_ref_ids,omitempty"`
	}
}

type reportOutput struct {
	Body report.Report
}

func registerReport(api huma.API, h *handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "report",
		Method:      http.MethodPost,
		Path:        "/report",
		Summary:     "Summarize a period",
	}, func(ctx context.Context, in *reportInput) (*reportOutput, error) {
		ws, err := h.workspace(ctx, in.Body.Workspace)
		if err != nil {
			return nil, handleError(err)
		}
		period, err := parsePeriod(in.Body.Period)
		if err != nil {
			return nil, handleError(err)
		}
		req := report.Request{
			Period: period,
			Filters: report.Filters{
				ProjectKeys:         in.Body.ProjectKeys,
				BigPlanRefIDs:       in.Body.BigPlanRefIDs,
				RecurringTaskRefIDs: in.Body.RecurringTaskRefIDs,
				MetricKeys:          in.Body.MetricKeys,
				PersonRefIDs:        in.Body.PersonRefIDs,
			},
		}
		if in.Body.RightNow != nil {
			req.RightNow = *in.Body.RightNow
		}
		if in.Body.BreakdownPeriod != "" {
			bp, err := parsePeriod(in.Body.BreakdownPeriod)
			if err != nil {
				return nil, handleError(err)
			}
			req.BreakdownPeriod = &bp
		}
		for _, s := range in.Body.Sources {
			req.Sources = append(req.Sources, model.InboxTaskSource(s))
		}
		for _, b := range in.Body.Breakdowns {
			req.Breakdowns = append(req.Breakdowns, report.Breakdown(b))
		}
		for _, c := range in.Body.Covers {
			req.Covers = append(req.Covers, report.Cover(c))
		}

		rep, err := h.cfg.App.Reports.Run(ctx, ws, req)
		if err != nil {
			return nil, handleError(err)
		}
		return &reportOutput{Body: rep}, nil
	})
}

func parsePeriod(s string) (timeline.Period, error) {
	p, err := timeline.ParsePeriod(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrUnknownFilter, err)
	}
	return p, nil
}

func parsePeriods(in []string) ([]timeline.Period, error) {
	var out []timeline.Period
	for _, s := range in {
		p, err := parsePeriod(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
