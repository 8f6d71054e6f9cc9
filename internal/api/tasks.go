package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ada/internal/domain"
	"ada/internal/notify"
)

type taskView struct {
	domain.ScheduledTask
	Description string                `json:"description"`
	NextRun     *time.Time            `json:"next_run,omitempty"`
	Warnings    []domain.FieldWarning `json:"warnings,omitempty"`
}

func (s *Server) view(t domain.ScheduledTask, warnings []domain.FieldWarning) taskView {
	v := taskView{ScheduledTask: t, Description: t.Frequency.String(), Warnings: warnings}
	if next, err := t.Frequency.NextAfter(s.deps.Clock.Now().In(s.deps.Location)); err == nil {
		v.NextRun = &next
	}
	return v
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.deps.Repo.ListScheduledTasks(r.Context())
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	out := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, s.view(t, nil))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var attrs domain.TaskAttrs
	if err := decode(r, &attrs); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t, warnings, err := domain.ValidateTask(domain.ScheduledTask{}, attrs, s.deps.Registry)
	if err != nil {
		s.writeError(w, r, err, warnings)
		return
	}
	created, err := s.deps.Repo.CreateScheduledTask(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, s.view(created, warnings))
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Repo.GetScheduledTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.view(t, nil))
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	existing, err := s.deps.Repo.GetScheduledTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	var attrs domain.TaskAttrs
	if err := decode(r, &attrs); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t, warnings, err := domain.ValidateTask(existing, attrs, s.deps.Registry)
	if err != nil {
		s.writeError(w, r, err, warnings)
		return
	}
	updated, err := s.deps.Repo.UpdateScheduledTask(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.view(updated, warnings))
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Repo.DeleteScheduledTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) previewTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Repo.GetScheduledTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	payload, err := s.deps.Runner.Preview(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) rawTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Repo.GetScheduledTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	raw, err := s.deps.Runner.RawData(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

func (s *Server) runTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Repo.GetScheduledTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	payload, err := s.deps.Runner.Trigger(r.Context(), t, notify.TriggerManual, time.Time{})
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}
