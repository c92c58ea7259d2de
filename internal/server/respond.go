package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"leagueserver/internal/standings"
)

const requestIDHeader = "X-Request-ID"

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// writeError maps the league error taxonomy onto HTTP statuses. Anything
// else is logged and reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, standings.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, standings.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, standings.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, standings.ErrPreconditionFailed):
		status = http.StatusPreconditionFailed
	}
	if status == http.StatusInternalServerError {
		log.Printf("Request %s %s failed [%s]: %v", r.Method, r.URL.Path, w.Header().Get(requestIDHeader), err)
		writeJSON(w, status, errorBody{Error: "internal server error"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: bad id %q", standings.ErrInvalidInput, mux.Vars(r)["id"])
	}
	return uint(id), nil
}

// decode reads a JSON body into dst and validates its tags.
func (s *Server) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed body: %v", standings.ErrInvalidInput, err)
	}
	if err := s.validator.StructCtx(r.Context(), dst); err != nil {
		return fmt.Errorf("%w: validation failed: %v", standings.ErrInvalidInput, err)
	}
	return nil
}

// asOf parses the optional date query parameter; it defaults to today.
func asOf(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return standings.Day(time.Now()), nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must look like 2006-01-02", standings.ErrInvalidInput)
	}
	return d, nil
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
