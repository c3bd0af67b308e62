// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pagination_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/folio/pkg/pagination"
)

/*
TestFromRequest verifies defaults and clamping of query parameters.
*/
func TestFromRequest(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected pagination.Params
		offset   int
	}{
		{"Defaults", "", pagination.Params{Page: 1, Limit: 20}, 0},
		{"Explicit", "?page=3&limit=10", pagination.Params{Page: 3, Limit: 10}, 20},
		{"Clamped limit", "?limit=1000", pagination.Params{Page: 1, Limit: 100}, 0},
		{"Garbage", "?page=-2&limit=abc", pagination.Params{Page: 1, Limit: 20}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := pagination.FromRequest(httptest.NewRequest("GET", "/books"+tt.query, nil))
			assert.Equal(t, tt.expected, params)
			assert.Equal(t, tt.offset, params.Offset())
		})
	}
}

func TestNewMeta(t *testing.T) {
	meta := pagination.NewMeta(2, 10, 25)

	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.False(t, pagination.NewMeta(3, 10, 25).HasNext)
}
