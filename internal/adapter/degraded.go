package adapter

import (
	"net/http"
	"strings"

	"hashhost/internal/middleware"
	"hashhost/internal/util"
)

// DegradedHandler answers every API request with a 500 configuration error.
// Messages point the operator at the fix without exposing internals.
func DegradedHandler(cause Cause, ce *ConfigError) http.Handler {
	msg := "The API failed to initialize. Check the server logs for details."
	if cause == CauseMissingConfig {
		vars := "DATABASE_URL"
		if ce != nil && len(ce.Vars) > 0 {
			vars = strings.Join(ce.Vars, ", ")
		}
		msg = "Server configuration is incomplete: " + vars + " is not set. Configure it in the deployment environment."
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		util.WriteError(w, http.StatusInternalServerError, "configuration_error", msg, middleware.RequestID(r.Context()))
	})
}
