// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validate_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/folio/internal/platform/apperr"
	"github.com/taibuivan/folio/internal/platform/validate"
)

/*
TestValidator_Required tests the mandatory field validation logic.
*/
func TestValidator_Required(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		value    string
		hasError bool
	}{
		{"valid_string", "title", "Folio", false},
		{"empty_string", "title", "", true},
		{"whitespace_only", "title", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Required(tt.field, tt.value)

			if tt.hasError {
				assert.True(t, v.HasErrors())
				err := v.Err()
				require.NotNil(t, err)

				ae := apperr.As(err)
				require.NotNil(t, ae)
				assert.Equal(t, "VALIDATION_ERROR", ae.Code)
				assert.Equal(t, tt.field, ae.Details[0].Field)
			} else {
				assert.False(t, v.HasErrors())
				assert.Nil(t, v.Err())
			}
		})
	}
}

/*
TestValidator_HTTPURL checks the absolute link rule used for video links.
*/
func TestValidator_HTTPURL(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		isValid bool
	}{
		{"https", "https://www.youtube.com/watch?v=abc", true},
		{"http", "http://youtu.be/abc", true},
		{"relative", "/watch?v=abc", false},
		{"javascript", "javascript:alert(1)", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.HTTPURL("link", tt.link)

			assert.Equal(t, !tt.isValid, v.HasErrors())
		})
	}
}

/*
TestValidator_Chain tests the fluent API (chaining multiple rules).
*/
func TestValidator_Chain(t *testing.T) {
	v := &validate.Validator{}

	err := v.
		Required("title", "Demo").
		MinLen("title", "Demo", 1).
		MaxLen("title", "Demo", 10).
		OneOf("book_type", "created", "created", "uploaded").
		Err()

	assert.NoError(t, err)
	assert.False(t, v.HasErrors())
}

/*
TestValidator_Chain_Failure tests error accumulation in the chain.
*/
func TestValidator_Chain_Failure(t *testing.T) {
	v := &validate.Validator{}

	err := v.
		Required("title", "").               // Fails
		MaxBytes("content", "ééé", 4).       // Fails
		UUID("owner_id", "not-a-uuid").      // Fails
		Range("pages", 3, 0, 2).             // Fails
		Custom("author", false, "ignored"). // Passes
		Err()

	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)

	assert.Len(t, ae.Details, 4)
}

/*
TestFieldError verifies a standalone single-field validation error.
*/
func TestFieldError(t *testing.T) {
	err := validate.FieldError("audio_items[0].file_url", "Must reference one of this book's existing files")

	assert.Equal(t, apperr.CodeValidation, err.Code)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	require.Len(t, err.Details, 1)
	assert.Equal(t, "audio_items[0].file_url", err.Details[0].Field)
}
