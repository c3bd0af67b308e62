// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/folio/internal/api"
)

/*
TestReadiness reports degraded when any configured dependency fails.
*/
func TestReadiness(t *testing.T) {
	healthy := func() error { return nil }
	broken := func() error { return errors.New("disk read-only") }

	tests := []struct {
		name   string
		deps   api.HealthDependencies
		status int
		state  string
		checks int
	}{
		{"All healthy", api.HealthDependencies{CheckDatabase: healthy, CheckStorage: healthy}, http.StatusOK, "ready", 2},
		{"Storage down", api.HealthDependencies{CheckDatabase: healthy, CheckCache: healthy, CheckStorage: broken}, http.StatusServiceUnavailable, "degraded", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, readiness := api.NewHealthHandlers(tt.deps, slog.New(slog.NewTextHandler(io.Discard, nil)))

			recorder := httptest.NewRecorder()
			readiness(recorder, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, tt.status, recorder.Code)

			var envelope struct {
				Data struct {
					Status string            `json:"status"`
					Checks []json.RawMessage `json:"checks"`
				} `json:"data"`
			}
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
			assert.Equal(t, tt.state, envelope.Data.Status)
			assert.Len(t, envelope.Data.Checks, tt.checks)
		})
	}
}
