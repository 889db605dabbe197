package testutil

import (
	"net/http"

	"twubi/pkg/requestcontext"
)

// WithWallet places an authenticated wallet in the request context, as the
// auth middleware does after validating a bearer token.
func WithWallet(req *http.Request, wallet string) *http.Request {
	ctx := requestcontext.WithWallet(req.Context(), wallet)
	ctx = requestcontext.WithActorID(ctx, wallet)
	return req.WithContext(ctx)
}

// WithBearer sets the Authorization header.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// WithAdminToken sets the operator token header.
func WithAdminToken(req *http.Request, token string) *http.Request {
	req.Header.Set("X-Admin-Token", token)
	return req
}
