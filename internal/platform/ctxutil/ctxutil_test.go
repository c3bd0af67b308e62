// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ctxutil_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/folio/internal/platform/ctxutil"
	"github.com/taibuivan/folio/internal/platform/sec"
)

/*
TestContext_RequestScope verifies request-scoped values round-trip and
fall back when absent.
*/
func TestContext_RequestScope(t *testing.T) {
	empty := context.Background()

	assert.Empty(t, ctxutil.GetRequestID(empty))
	assert.Equal(t, slog.Default(), ctxutil.GetLogger(empty))
	assert.Nil(t, ctxutil.GetAuthUser(empty))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	claims := &sec.AuthClaims{UserID: "owner-1", Role: string(sec.RoleAuthor)}

	ctx := ctxutil.WithRequestID(empty, "req-42")
	ctx = ctxutil.WithLogger(ctx, logger)
	ctx = ctxutil.WithAuthUser(ctx, claims)

	assert.Equal(t, "req-42", ctxutil.GetRequestID(ctx))
	assert.Same(t, logger, ctxutil.GetLogger(ctx))

	retrieved := ctxutil.GetAuthUser(ctx)
	if assert.NotNil(t, retrieved) {
		assert.Equal(t, "owner-1", retrieved.UserID)
		assert.False(t, retrieved.IsAdmin())
	}
}

/*
TestContext_NilClaims verifies an explicitly anonymous request reads as nil.
*/
func TestContext_NilClaims(t *testing.T) {
	ctx := ctxutil.WithAuthUser(context.Background(), nil)
	assert.Nil(t, ctxutil.GetAuthUser(ctx))
}
