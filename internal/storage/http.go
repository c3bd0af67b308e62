// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package storage

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/folio/internal/platform/apperr"
	"github.com/taibuivan/folio/internal/platform/constants"
	"github.com/taibuivan/folio/internal/platform/respond"
)

// Handler serves committed companion assets (covers, media) by ref. EPUB
// archives are never served here; they go through the book endpoints, which
// apply visibility rules.
type Handler struct {
	store *FileStore
}

// NewHandler returns the static asset handler for store.
func NewHandler(store *FileStore) *Handler {
	return &Handler{store: store}
}

// Prefix is the path the handler must be mounted at.
func (handler *Handler) Prefix() string {
	return handler.store.PublicPrefix()
}

// Routes returns the router to be mounted at the store's public prefix.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/*", handler.serve)
	router.Head("/*", handler.serve)
	return router
}

/*
GET {prefix}/{key}

Description: Streams one artifact with its sniffed content type. Range and
conditional requests are honoured.

Response:
  - 200: Raw file bytes
  - 404: Unknown or foreign key, or an EPUB archive
*/
func (handler *Handler) serve(writer http.ResponseWriter, request *http.Request) {
	key := chi.URLParam(request, "*")
	if strings.HasSuffix(strings.ToLower(key), constants.EbookSuffix) {
		respond.Error(writer, request, apperr.NotFound("File"))
		return
	}

	ref := handler.store.Ref(key)

	object, err := handler.store.Open(request.Context(), ref)
	if errors.Is(err, ErrNotExist) || errors.Is(err, ErrInvalidRef) {
		respond.Error(writer, request, apperr.NotFound("File"))
		return
	}
	if err != nil {
		respond.Error(writer, request, apperr.Storage(err))
		return
	}
	defer object.Reader.Close()

	respond.Stream(writer, request, object.Reader, object.ContentType, "", "", object.ModTime)
}
