// Package authctx carries the verified caller identity through a request
// context. It is a leaf package so handler packages can read the identity
// without importing the auth service itself.
package authctx

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxPhoneNumber
)

// WithIdentity attaches the verified caller identity to the context.
func WithIdentity(ctx context.Context, userID uuid.UUID, phoneNumber string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxPhoneNumber, phoneNumber)
	return ctx
}

// UserID returns the authenticated user's id from the context.
func UserID(ctx context.Context) (uuid.UUID, error) {
	if id, ok := ctx.Value(ctxUserID).(uuid.UUID); ok && id != uuid.Nil {
		return id, nil
	}
	return uuid.Nil, errors.New("auth: user_id not in context")
}

// PhoneNumber returns the authenticated user's phone number from the context.
func PhoneNumber(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxPhoneNumber).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("auth: phone_number not in context")
}
