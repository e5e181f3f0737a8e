// SPDX-License-Identifier: Apache-2.0

package serverref

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the reference server's router, grounded on go-pass-keeper's
// routes.go: a Recoverer first, a logging middleware, route groups under
// /api, and CheckHTTPMethod-style 404-over-405 for unmatched methods.
func (h *Handler) Routes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withLogging)

	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/key-params", h.keyParams)
			r.Post("/register", h.register)
			r.Post("/sign-in", h.signIn)
			r.With(h.authMiddleware).Post("/change-password", h.changePassword)
		})

		r.With(h.authMiddleware).Post("/sync", h.sync)
	})

	router.MethodNotAllowed(checkHTTPMethod(router))

	return router
}

// withLogging records one structured access-log entry per request,
// grounded on go-pass-keeper's middleware_logging.go, trimmed to this
// package's plain *logger.Logger (no per-request trace-ID child logger).
func (h *Handler) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.log.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Int("size", ww.BytesWritten()).
			Send()
	})
}

// checkHTTPMethod overrides chi's default 405 with a 404 for a matched
// path whose method isn't registered, so an unsupported verb doesn't leak
// route existence (grounded verbatim on go-pass-keeper's
// middleware_check_method.go).
func checkHTTPMethod(router *chi.Mux) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var found chi.Route
		for _, route := range router.Routes() {
			if route.Pattern == r.URL.Path {
				found = route
				break
			}
		}

		if _, ok := found.Handlers[r.Method]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		router.ServeHTTP(w, r)
	}
}
