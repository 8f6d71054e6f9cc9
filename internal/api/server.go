// Package api exposes scheduled tasks, users, locations and the event
// history over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"ada/internal/clock"
	"ada/internal/domain"
	"ada/internal/scheduler"
	"ada/internal/store"
	"ada/internal/workflow"
)

// Deps are the collaborators the handlers need.
type Deps struct {
	Repo     store.Repository
	Registry *workflow.Registry
	Runner   *scheduler.Runner
	Clock    clock.Clock
	// Location is the device timezone, used for next-run times.
	Location *time.Location
	Logger   zerolog.Logger
}

type Server struct {
	r    *chi.Mux
	deps Deps
}

func NewServer(d Deps) http.Handler {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Location == nil {
		d.Location = time.Local
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		hlog.NewHandler(d.Logger.With().Str("component", "api").Logger()),
		hlog.AccessHandler(accessLog),
		middleware.Recoverer,
	)

	s := &Server{r: r, deps: d}

	r.Get("/health", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/workflows", s.listWorkflows)

		r.Get("/scheduled_tasks", s.listTasks)
		r.Post("/scheduled_tasks", s.createTask)
		r.Route("/scheduled_tasks/{id}", func(r chi.Router) {
			r.Get("/", s.getTask)
			r.Put("/", s.updateTask)
			r.Delete("/", s.deleteTask)
			r.Get("/preview", s.previewTask)
			r.Get("/raw", s.rawTask)
			r.Post("/run", s.runTask)
		})

		r.Get("/users", s.listUsers)
		r.Post("/users", s.createUser)
		r.Get("/users/{id}", s.getUser)
		r.Delete("/users/{id}", s.deleteUser)

		r.Get("/locations", s.listLocations)
		r.Post("/locations", s.createLocation)
		r.Get("/locations/{id}", s.getLocation)
		r.Delete("/locations/{id}", s.deleteLocation)

		r.Get("/events", s.listEvents)
	})

	return r
}

func accessLog(r *http.Request, status, size int, d time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("req_id", middleware.GetReqID(r.Context())).
		Int("status", status).
		Int("size", size).
		Dur("duration", d).
		Msg("request")
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type workflowView struct {
	Name         string                `json:"name"`
	HumanName    string                `json:"human_name"`
	Requirements workflow.Requirements `json:"requirements"`
	Transports   []domain.Transport    `json:"transports"`
}

func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	all := s.deps.Registry.All()
	out := make([]workflowView, 0, len(all))
	for _, wf := range all {
		out = append(out, workflowView{
			Name: wf.Name(), HumanName: wf.HumanName(),
			Requirements: wf.Requirements(), Transports: wf.Transports(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type validationResp struct {
	Errors   domain.FieldErrors    `json:"errors"`
	Warnings []domain.FieldWarning `json:"warnings,omitempty"`
}

type executionResp struct {
	Stage  workflow.Stage `json:"stage"`
	Reason string         `json:"reason"`
}

// writeError maps err to a status code: execution 502, validation 422,
// missing 404, anything else 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, warnings []domain.FieldWarning) {
	var (
		fe domain.FieldErrors
		ee *workflow.ExecutionError
	)
	// An ExecutionError may wrap FieldErrors from param validation; it is
	// still an execution failure.
	switch {
	case errors.As(err, &ee):
		writeJSON(w, http.StatusBadGateway, executionResp{Stage: ee.Stage, Reason: ee.Err.Error()})
	case errors.As(err, &fe):
		writeJSON(w, http.StatusUnprocessableEntity, validationResp{Errors: fe, Warnings: warnings})
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
