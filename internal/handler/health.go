package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Pinger is anything whose reachability can be checked; *store.Store is
// the production implementation.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandleHealth reports 200 when the store answers and 503 otherwise.
//
// HTTP: GET /healthz
func HandleHealth(p Pinger, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			logger.WithError(err).Warn("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
