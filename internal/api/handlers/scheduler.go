package handlers

import (
	"context"
	"net/http"

	"github.com/pysugar/postpilot/internal/scheduler"
)

type ticker interface {
	Tick(ctx context.Context) scheduler.Report
}

// RunSchedulerHandler handles POST /api/scheduler/run. It waits for any
// running tick, runs one more and returns its report.
func RunSchedulerHandler(s ticker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Tick(r.Context()))
	}
}
