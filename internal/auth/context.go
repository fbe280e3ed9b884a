package auth

import "github.com/bolchaal/bolchaal-backend/internal/auth/authctx"

// The identity context helpers live in the leaf package authctx so that
// packages auth depends on (e.g. users) can read the identity without an
// import cycle; they are re-exported here for all other callers.
var (
	// WithIdentity attaches the verified caller identity to the context.
	WithIdentity = authctx.WithIdentity
	// UserID returns the authenticated user's id from the context.
	UserID = authctx.UserID
	// PhoneNumber returns the authenticated user's phone number from the context.
	PhoneNumber = authctx.PhoneNumber
)
