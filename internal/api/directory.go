package api

import (
	"net/http"
	"strconv"
	"time"

	"ada/internal/domain"
	"ada/internal/notify"
	"ada/internal/store"
)

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Repo.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var u domain.User
	if err := decode(r, &u); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := u.Validate(); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	created, err := s.deps.Repo.CreateUser(r.Context(), u)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	u, err := s.deps.Repo.GetUser(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := s.deps.Repo.DeleteUser(r.Context(), id); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := s.deps.Repo.ListLocations(r.Context())
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

func (s *Server) createLocation(w http.ResponseWriter, r *http.Request) {
	var l domain.Location
	if err := decode(r, &l); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := l.Validate(); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	created, err := s.deps.Repo.CreateLocation(r.Context(), l)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	l, err := s.deps.Repo.GetLocation(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) deleteLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := s.deps.Repo.DeleteLocation(r.Context(), id); err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listEvents accepts task_id, status, since, until (RFC3339) and limit.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.EventFilter{TaskID: q.Get("task_id"), Status: notify.Status(q.Get("status"))}

	var errs domain.FieldErrors
	for key, dst := range map[string]*time.Time{"since": &f.Since, "until": &f.Until} {
		if v := q.Get(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				errs = append(errs, domain.FieldError{Field: key, Message: "must be an RFC3339 time"})
				continue
			}
			*dst = t
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, domain.FieldError{Field: "limit", Message: "must be a positive integer"})
		}
		f.Limit = n
	}
	if err := errs.OrNil(); err != nil {
		s.writeError(w, r, err, nil)
		return
	}

	events, err := s.deps.Repo.ListEvents(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
