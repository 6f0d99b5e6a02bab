package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"finboard/internal/dashboard"
	"finboard/internal/fetch"
	"finboard/internal/log"
)

// statusClientClosedRequest is the nginx convention for a caller that went
// away before the response was ready.
const statusClientClosedRequest = 499

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// Headers are already sent, so an encode error has nowhere to go.
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a read failure to the HTTP status the client sees.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, dashboard.ErrInvalidUser), isBadRequest(err):
		return http.StatusBadRequest
	case fetch.IsSuperseded(err):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// writeError logs err and sends it as JSON. Upstream failures are not echoed
// verbatim since they may carry source details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ctx := r.Context()
	logger := log.FromContext(ctx)

	msg := err.Error()
	switch status {
	case http.StatusBadGateway:
		logger.LogError(ctx, "Upstream read failed", log.OpLoad, err)
		msg = "upstream data source unavailable"
	case http.StatusGatewayTimeout:
		logger.LogError(ctx, "Upstream read timed out", log.OpLoad, err)
		msg = "upstream data source timed out"
	case http.StatusConflict:
		logger.DebugContext(ctx, "Request superseded by a newer one", log.FieldError, err)
		msg = "superseded by a newer request"
	default:
		logger.DebugContext(ctx, "Request rejected", log.FieldStatusCode, status, log.FieldError, err)
	}

	writeJSON(w, status, errorResponse{Error: msg, RequestID: requestIDFrom(ctx)})
}
