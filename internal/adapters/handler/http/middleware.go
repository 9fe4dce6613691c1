package http

import (
	"context"
	"net/http"

	"agentmarket.ledger/internal/core/domain"
)

// CallerHeader carries the verified wallet address of the requester. Signature
// verification happens at the gateway in front of this service; by the time a
// request lands here the header is trusted.
const CallerHeader = "X-Caller-Address"

type contextKey string

const callerKey contextKey = "caller_address"

// CallerAddress lifts the caller header into the request context. Requests
// without the header pass through; write handlers reject them when they ask
// for the caller.
func CallerAddress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if caller := r.Header.Get(CallerHeader); caller != "" {
			ctx := context.WithValue(r.Context(), callerKey, caller)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// CallerFromContext returns the caller address attached by the middleware.
func CallerFromContext(ctx context.Context) (string, error) {
	caller, ok := ctx.Value(callerKey).(string)
	if !ok || caller == "" {
		return "", domain.ErrUnauthorized
	}
	return caller, nil
}
