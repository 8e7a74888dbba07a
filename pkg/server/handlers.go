package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/teddy"
	"github.com/vango-dev/teddy/pkg/engine"
	"github.com/vango-dev/teddy/pkg/path"
	"github.com/vango-dev/teddy/pkg/reactive"
)

type errorResponse struct {
	Error string `json:"error"`
}

type valueResponse struct {
	Value any `json:"value"`
}

type removedResponse struct {
	Removed bool `json:"removed"`
}

type resultResponse struct {
	Result any `json:"result"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("server: write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusOf maps operation errors to HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, teddy.ErrUnknownAction), errors.Is(err, teddy.ErrUnknownGetter):
		return http.StatusNotFound
	case errors.Is(err, path.ErrSyntax),
		errors.Is(err, engine.ErrInvalidVariable),
		errors.Is(err, engine.ErrNotContainer),
		errors.Is(err, engine.ErrNotArray),
		errors.Is(err, engine.ErrNoMatch),
		errors.Is(err, reactive.ErrReadOnly):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func definition(r *http.Request) teddy.Definition {
	return teddy.Def(chi.URLParam(r, "space"), chi.URLParam(r, "name"))
}

// accessOptions reads ?vars= as JSON.
func accessOptions(r *http.Request) ([]teddy.AccessOption, error) {
	opts := []teddy.AccessOption{teddy.WithContext(r.Context())}
	if raw := r.URL.Query().Get("vars"); raw != "" {
		var vars map[string]any
		if err := json.Unmarshal([]byte(raw), &vars); err != nil {
			return nil, errors.New("server: vars must be a JSON object")
		}
		opts = append(opts, teddy.WithVars(vars))
	}
	return opts, nil
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("server: empty body")
	}
	return json.Unmarshal(data, v)
}

func (s *Server) listStores(w http.ResponseWriter, r *http.Request) {
	var defs []teddy.Definition
	s.t.Exclusive(func() { defs = s.t.Stores() })
	if defs == nil {
		defs = []teddy.Definition{}
	}
	s.writeJSON(w, http.StatusOK, defs)
}

func (s *Server) getValue(w http.ResponseWriter, r *http.Request) {
	def := definition(r)
	opts, err := accessOptions(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	raw := r.URL.Query().Get("path")

	var (
		found bool
		value any
	)
	s.t.Exclusive(func() {
		if !s.t.Exists(def) {
			return
		}
		store := s.t.GetStore(def)
		if found = raw == "" || store.Has(raw, opts...); found {
			value = reactive.ToRaw(store.Get(raw, opts...))
		}
	})
	if !found {
		s.writeError(w, http.StatusNotFound, errors.New("server: not found"))
		return
	}
	s.writeJSON(w, http.StatusOK, valueResponse{Value: value})
}

func (s *Server) setValue(w http.ResponseWriter, r *http.Request) {
	def := definition(r)
	opts, err := accessOptions(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var body any
	if err := s.readBody(w, r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	raw := r.URL.Query().Get("path")

	var value any
	s.t.Exclusive(func() {
		store := s.t.GetStore(def)
		if err = store.Set(raw, body, opts...); err == nil {
			value = reactive.ToRaw(store.Get(raw, opts...))
		}
	})
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, valueResponse{Value: value})
}

func (s *Server) pushValue(w http.ResponseWriter, r *http.Request) {
	def := definition(r)
	opts, err := accessOptions(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var body any
	if err := s.readBody(w, r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	raw := r.URL.Query().Get("path")

	var value any
	s.t.Exclusive(func() {
		var v any
		if v, err = s.t.GetStore(def).Push(raw, body, opts...); err == nil {
			value = reactive.ToRaw(v)
		}
	})
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, valueResponse{Value: value})
}

func (s *Server) removeValue(w http.ResponseWriter, r *http.Request) {
	def := definition(r)
	opts, err := accessOptions(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	raw := r.URL.Query().Get("path")

	var removed bool
	s.t.Exclusive(func() {
		if s.t.Exists(def) {
			removed, err = s.t.GetStore(def).Remove(raw, opts...)
		}
	})
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, removedResponse{Removed: removed})
}

func (s *Server) runAction(w http.ResponseWriter, r *http.Request) {
	def := definition(r)
	var args []any
	if r.ContentLength != 0 {
		if err := s.readBody(w, r, &args); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	var (
		result any
		err    error
	)
	s.t.Exclusive(func() {
		if !s.t.Exists(def) {
			err = &teddy.MissingStoreError{Definition: def}
			return
		}
		result, err = s.t.GetStore(def).RunContext(r.Context(), chi.URLParam(r, "action"), args...)
		result = reactive.ToRaw(result)
	})
	if errors.Is(err, teddy.ErrMissingStore) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, resultResponse{Result: result})
}

func (s *Server) resolveGetter(w http.ResponseWriter, r *http.Request) {
	def := definition(r)
	var args []any
	if raw := r.URL.Query().Get("args"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			s.writeError(w, http.StatusBadRequest, errors.New("server: args must be a JSON array"))
			return
		}
	}

	var (
		value any
		err   error
	)
	s.t.Exclusive(func() {
		if !s.t.Exists(def) {
			err = &teddy.MissingStoreError{Definition: def}
			return
		}
		value, err = s.t.GetStore(def).ResolveContext(r.Context(), chi.URLParam(r, "getter"), args...)
		value = reactive.ToRaw(value)
	})
	if errors.Is(err, teddy.ErrMissingStore) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, valueResponse{Value: value})
}
