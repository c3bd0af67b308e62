// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxutil carries request-scoped values through [context.Context]:
// the correlation id, the per-request logger and the caller's claims.
//
// Keys are unexported, so only this package can set or read them.
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/taibuivan/folio/internal/platform/sec"
)

type key uint8

const (
	requestIDKey key = iota + 1
	loggerKey
	claimsKey
)

// lookup returns the value stored under k when it has type T and is not the zero value.
func lookup[T comparable](ctx context.Context, k key) (T, bool) {
	var zero T
	value, ok := ctx.Value(k).(T)
	if !ok || value == zero {
		return zero, false
	}
	return value, true
}

// # Request Tracing

// WithRequestID attaches the X-Request-ID correlation value.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the correlation value, or "" outside a request.
func GetRequestID(ctx context.Context) string {
	id, _ := lookup[string](ctx, requestIDKey)
	return id
}

// # Structured Logging

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// GetLogger returns the per-request logger, falling back to [slog.Default].
func GetLogger(ctx context.Context) *slog.Logger {
	if logger, ok := lookup[*slog.Logger](ctx, loggerKey); ok {
		return logger
	}
	return slog.Default()
}

// # Identity & Access

// WithAuthUser attaches verified claims. A nil user marks the request anonymous.
func WithAuthUser(ctx context.Context, user *sec.AuthClaims) context.Context {
	return context.WithValue(ctx, claimsKey, user)
}

// GetAuthUser returns the caller's claims, or nil for anonymous requests.
func GetAuthUser(ctx context.Context) *sec.AuthClaims {
	claims, _ := lookup[*sec.AuthClaims](ctx, claimsKey)
	return claims
}
