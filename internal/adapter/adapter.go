package adapter

import (
	"log/slog"
	"net/http"
	"strings"

	"hashhost/internal/middleware"
	"hashhost/internal/util"
)

// Adapter is the single entry point for every request the function
// receives: API calls go to the lazily built route table, everything else to
// the static build.
type Adapter struct {
	coord  *Coordinator
	static Static
}

func New(coord *Coordinator, static Static) *Adapter {
	return &Adapter{coord: coord, static: static}
}

// Handler wraps the adapter in the outer request chain.
func (a *Adapter) Handler(trustProxy bool) http.Handler {
	var h http.Handler = a
	h = middleware.Recover(h)
	h = middleware.SecurityHeaders(h)
	h = middleware.RequestLogger(trustProxy)(h)
	h = middleware.RequestIDMiddleware(h)
	return h
}

func isAPI(p string) bool {
	return p == "/api" || strings.HasPrefix(p, "/api/")
}

func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt := a.coord.EnsureInitialized()
	rid := middleware.RequestID(r.Context())

	if isAPI(r.URL.Path) {
		if rt.Handler == nil {
			util.WriteError(w, http.StatusInternalServerError, "initialization_error",
				"The API is unavailable. Inspect the server logs and the database configuration.", rid)
			return
		}
		rt.Handler.ServeHTTP(w, r)
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		util.WriteError(w, http.StatusNotFound, "not_found", "no such resource", rid)
		return
	}

	res := a.static.ServeAsset(w, r)
	if res.Kind == NotFound {
		res = a.static.ServeIndex(w, r)
		if res.Kind == NotFound {
			slog.ErrorContext(r.Context(), "spa document missing", "root", a.static.Root, "index", a.static.Index)
			util.WriteError(w, http.StatusInternalServerError, "not_built",
				"The application was not built correctly: the site bundle is missing. Rebuild and redeploy.", rid)
			return
		}
	}
	if res.Kind == IOError {
		slog.ErrorContext(r.Context(), "static file read failed", "path", r.URL.Path, "err", res.Err)
		util.WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error", rid)
	}
}
