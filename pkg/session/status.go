package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Status is a point-in-time view of a session.
type Status struct {
	ID         string        `json:"id"`
	Active     bool          `json:"active"`
	StartedAt  time.Time     `json:"started_at"`
	LastPulse  time.Time     `json:"last_pulse"`
	LastExport time.Time     `json:"last_export"`
	Pulses     int           `json:"pulses"`
	Queued     int           `json:"queued"`  // Records not yet drained
	Pending    []string      `json:"pending"` // Pending export set, insertion order
	Window     time.Duration `json:"window_ns"`
	Batched    bool          `json:"batched"`
	Exported   int           `json:"exported"`
	Removed    int           `json:"removed"`
	Failed     int           `json:"failed"`
	Warnings   int           `json:"warnings"`
	Indexed    int           `json:"indexed"`
	Error      string        `json:"error,omitempty"`
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.RLock()
	st := s.status
	st.Pending = append([]string{}, s.status.Pending...)
	s.mu.RUnlock()

	st.Queued = s.monitor.Pending()
	if s.coord != nil {
		st.Indexed = s.coord.Len()
	}
	return st
}

// Handler returns a router serving the session's health and status.
//
//	GET /healthz  200 "ok" while the session is usable, 503 after a fatal error
//	GET /status   Status as JSON
func (s *Session) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if st := s.Status(); st.Error != "" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(st.Error + "\n"))
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s.Status()); err != nil {
			s.logger.Warn("encode status", "error", err)
		}
	})
	return r
}
