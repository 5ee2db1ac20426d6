package controllers

import (
	"net/http"

	"github.com/utilitrack/utilitrack-backend/api/responses"
	"github.com/utilitrack/utilitrack-backend/internal/scheduler"
)

// StatusProvider exposes the scheduler's current state.
type StatusProvider interface {
	Snapshot() scheduler.Status
}

// BillingStatus reports whether a billing run is in flight, its progress,
// and the next and last run timestamps.
func BillingStatus(provider StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, provider.Snapshot())
	}
}
