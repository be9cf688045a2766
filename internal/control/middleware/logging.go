// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"time"

	"github.com/ManuGH/hubcore/internal/log"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// AccessLog writes one structured line per request once it has completed.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger := log.WithComponentFromContext(r.Context(), "control")
		ev := logger.Info()
		if ww.Status() >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		if traceID, _ := ExtractTraceContext(r); traceID != "" {
			ev = ev.Str("trace_id", traceID)
		}
		ev.Str(log.FieldEvent, "http.request").
			Str("method", r.Method).
			Str("route", routePattern(r)).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Msg("request served")
	})
}
