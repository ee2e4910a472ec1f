package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"hashhost/internal/util"
)

// responseTracker remembers whether anything reached the client so the
// recover stage never sends a second response.
type responseTracker struct {
	http.ResponseWriter
	started bool
}

func (t *responseTracker) WriteHeader(code int) {
	t.started = true
	t.ResponseWriter.WriteHeader(code)
}

func (t *responseTracker) Write(b []byte) (int, error) {
	t.started = true
	return t.ResponseWriter.Write(b)
}

func (t *responseTracker) Flush() {
	if err := http.NewResponseController(t.ResponseWriter).Flush(); err == nil {
		t.started = true
	}
}

func (t *responseTracker) Unwrap() http.ResponseWriter { return t.ResponseWriter }

// Recover is the terminal error stage. A panic becomes a JSON error whose
// status comes from the panic value when it carries one.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := &responseTracker{ResponseWriter: w}
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			err, ok := v.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", v)
			}
			slog.ErrorContext(r.Context(), "panic recovered",
				"err", err,
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", RequestID(r.Context()),
				"response_started", tw.started,
			)
			if tw.started {
				return
			}
			Fail(tw, r, err)
		}()
		next.ServeHTTP(tw, r)
	})
}

// Fail writes err as the JSON error body. Server errors are logged and
// reported to the client generically.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := util.ErrorBody(err, RequestID(r.Context()))
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"err", err,
			"status", status,
			"path", r.URL.Path,
			"request_id", body.RequestID,
		)
	}
	util.WriteJSON(w, status, body)
}
