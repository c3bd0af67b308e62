// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package book

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/folio/internal/platform/apperr"
	"github.com/taibuivan/folio/internal/platform/constants"
	"github.com/taibuivan/folio/internal/platform/middleware"
	requestutil "github.com/taibuivan/folio/internal/platform/request"
	"github.com/taibuivan/folio/internal/platform/respond"
	"github.com/taibuivan/folio/internal/platform/sec"
	"github.com/taibuivan/folio/pkg/pagination"
	"github.com/taibuivan/folio/pkg/slug"
)

// # Handler Implementation

// Handler implements the HTTP layer for books.
type Handler struct {
	service        *Service
	maxUploadBytes int64
}

// NewHandler constructs a new book [Handler]. maxUploadBytes bounds every
// single uploaded file.
func NewHandler(service *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = constants.DefaultMaxUploadBytes
	}
	return &Handler{service: service, maxUploadBytes: maxUploadBytes}
}

// Routes returns a [chi.Router] configured with the book endpoints.
//
// # Routing Strategy
//
//   - Reading (Public): Public books are visible to everyone, private ones
//     only to their owner and admins.
//   - Authoring (Authenticated): Create, upload, update and delete.
//   - Catalogue (Admin): Unfiltered listing.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// ## Reading
	router.Get("/public", handler.listPublic)
	router.Get("/{id}", handler.getBook)
	router.Get("/{id}/content", handler.getContent)
	router.Get("/{id}/download", handler.download)
	router.Get("/{id}/watermark", handler.downloadWatermarked)

	// ## Authoring
	router.Group(func(author chi.Router) {
		author.Use(middleware.RequireAuth)

		author.Post("/", handler.createBook)
		author.Post("/upload", handler.uploadBook)
		author.Get("/mine", handler.listMine)
		author.Put("/{id}", handler.updateBook)
		author.Put("/{id}/visibility", handler.toggleVisibility)
		author.Delete("/{id}", handler.deleteBook)
	})

	// ## Catalogue (Admin Protected)
	router.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireRole(sec.RoleAdmin))
		admin.Get("/", handler.listAll)
	})

	return router
}

// # Read Endpoints

/*
GET /api/v1/books/public.

Description: Lists public books, newest first.

Request:
  - page: int
  - limit: int

Response:
  - 200: []Book: Paginated list
*/
func (handler *Handler) listPublic(writer http.ResponseWriter, request *http.Request) {
	handler.list(writer, request, Filter{PublicOnly: true})
}

/*
GET /api/v1/books/mine.

Response:
  - 200: []Book: The caller's books, private ones included
  - 401: Unauthorized
*/
func (handler *Handler) listMine(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	handler.list(writer, request, Filter{OwnerID: claims.UserID})
}

// GET /api/v1/books (admin).
func (handler *Handler) listAll(writer http.ResponseWriter, request *http.Request) {
	handler.list(writer, request, Filter{})
}

func (handler *Handler) list(writer http.ResponseWriter, request *http.Request, filter Filter) {
	paginationParams := pagination.FromRequest(request)

	books, total, err := handler.service.ListBooks(request.Context(), filter, paginationParams.Limit, paginationParams.Offset())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, books, pagination.NewMeta(paginationParams.Page, paginationParams.Limit, total))
}

/*
GET /api/v1/books/{id}.

Response:
  - 200: Book: Success
  - 404: ErrNotFound: Missing, or private and not the caller's
*/
func (handler *Handler) getBook(writer http.ResponseWriter, request *http.Request) {
	book, err := handler.service.GetBook(request.Context(), requestutil.Claims(request), requestutil.ID(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, book)
}

/*
GET /api/v1/books/{id}/content.

Description: Streams the plain archive inline for in-browser readers.
Range requests are honoured.

Response:
  - 200: application/epub+zip
  - 404: ErrNotFound: Book hidden, or archive missing
*/
func (handler *Handler) getContent(writer http.ResponseWriter, request *http.Request) {
	_, object, err := handler.service.OpenEbook(request.Context(), requestutil.Claims(request), requestutil.ID(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	defer object.Reader.Close()

	respond.Stream(writer, request, object.Reader, constants.MediaTypeEPUB, "", "", object.ModTime)
}

/*
GET /api/v1/books/{id}/download.

Description: Streams the plain archive as an attachment named after the title.

Response:
  - 200: application/epub+zip with Content-Disposition
  - 404: ErrNotFound
*/
func (handler *Handler) download(writer http.ResponseWriter, request *http.Request) {
	book, object, err := handler.service.OpenEbook(request.Context(), requestutil.Claims(request), requestutil.ID(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	defer object.Reader.Close()

	filename, fallback := downloadNames(book.Title)
	respond.Stream(writer, request, object.Reader, constants.MediaTypeEPUB, filename, fallback, object.ModTime)
}

/*
GET /api/v1/books/{id}/watermark.

Description: Streams the watermarked archive as an attachment. Visibility
rules are the same as for the plain download.

Response:
  - 200: application/epub+zip with Content-Disposition
  - 404: ErrNotFound: Book hidden, uploaded (no watermarked variant), or archive missing
*/
func (handler *Handler) downloadWatermarked(writer http.ResponseWriter, request *http.Request) {
	book, object, err := handler.service.OpenWatermarked(request.Context(), requestutil.Claims(request), requestutil.ID(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	defer object.Reader.Close()

	filename, fallback := downloadNames(book.Title)
	respond.Stream(writer, request, object.Reader, constants.MediaTypeEPUB, filename, fallback, object.ModTime)
}

var filenameReplacer = strings.NewReplacer("/", "_", "\\", "_", "\"", "'")

// downloadNames returns the display filename and its ASCII fallback.
func downloadNames(title string) (string, string) {
	filename := filenameReplacer.Replace(strings.TrimSpace(title))
	if filename == "" {
		filename = "book"
	}

	fallback := slug.From(title)
	if fallback == "" {
		fallback = "book"
	}

	return filename + constants.EbookSuffix, fallback + constants.EbookSuffix
}

// # Mutation Endpoints

/*
POST /api/v1/books.

Description: Creates a book from pages and optional media, then generates
its plain and watermarked archives. Accepts multipart/form-data (with
files) or JSON (without).

Request (multipart):
  - title, author: string
  - pages, audioItems, videoItems, youtubeItems: JSON arrays
  - isPrivate: bool
  - coverImage: file
  - audioFiles, videoFiles: files, paired in order with items lacking file_url

Response:
  - 201: Book: Created
  - 400: ErrValidation
  - 413: ErrPayloadTooLarge
  - 422: ErrGenerationFailed: Content could not be assembled into an archive
  - 500: ErrStorage
*/
func (handler *Handler) createBook(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input *CreateBookRequest
	if requestutil.IsMultipart(request) {
		form, err := parseForm(writer, request, handler.maxUploadBytes)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}
		defer form.cleanup()

		if input, err = form.createRequest(); err != nil {
			respond.Error(writer, request, err)
			return
		}
	} else {
		input = &CreateBookRequest{}
		if err := requestutil.DecodeJSON(request, input); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	book, err := handler.service.CreateBook(request.Context(), claims, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, book)
}

/*
POST /api/v1/books/upload.

Description: Stores a ready-made EPUB without generation.

Request (multipart):
  - title, author: string
  - isPrivate: bool
  - bookFile: file (application/epub+zip)
  - coverImage: file

Response:
  - 201: Book: Created with book_type "uploaded"
  - 400: ErrValidation
  - 413: ErrPayloadTooLarge
*/
func (handler *Handler) uploadBook(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if !requestutil.IsMultipart(request) {
		respond.Error(writer, request, apperr.ValidationError("Expected multipart/form-data"))
		return
	}

	form, err := parseForm(writer, request, handler.maxUploadBytes)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	defer form.cleanup()

	input, err := form.uploadRequest()
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	book, err := handler.service.UploadBook(request.Context(), claims, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, book)
}

/*
PUT /api/v1/books/{id}.

Description: Replaces the supplied fields and regenerates the archives.
Omitted fields keep their stored values. Media items that keep a file send
its existing file_url.

Request: same fields as create, plus:
  - version: int (optional; must equal the stored version)

Response:
  - 200: Book: Updated
  - 403: ErrForbidden: Not the owner
  - 404: ErrNotFound
  - 409: ErrConflict: Stale version or concurrent update
  - 422: ErrGenerationFailed
*/
func (handler *Handler) updateBook(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input *UpdateBookRequest
	if requestutil.IsMultipart(request) {
		form, err := parseForm(writer, request, handler.maxUploadBytes)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}
		defer form.cleanup()

		if input, err = form.updateRequest(); err != nil {
			respond.Error(writer, request, err)
			return
		}
	} else {
		input = &UpdateBookRequest{}
		if err := requestutil.DecodeJSON(request, input); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	book, err := handler.service.UpdateBook(request.Context(), claims, requestutil.ID(request, "id"), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, book)
}

// visibilityResponse reports the state after a toggle.
type visibilityResponse struct {
	ID         string `json:"id"`
	IsPrivate  bool   `json:"is_private"`
	Visibility string `json:"visibility"`
	Version    int    `json:"version"`
}

/*
PUT /api/v1/books/{id}/visibility.

Description: Flips the book between private and public.

Response:
  - 200: visibilityResponse
  - 403: ErrForbidden
  - 404: ErrNotFound
*/
func (handler *Handler) toggleVisibility(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	book, err := handler.service.ToggleVisibility(request.Context(), claims, requestutil.ID(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	visibility := "public"
	if book.IsPrivate {
		visibility = "private"
	}

	respond.OK(writer, visibilityResponse{
		ID:         book.ID,
		IsPrivate:  book.IsPrivate,
		Visibility: visibility,
		Version:    book.Version,
	})
}

/*
DELETE /api/v1/books/{id}.

Response:
  - 204: Deleted along with every stored file
  - 403: ErrForbidden
  - 404: ErrNotFound
*/
func (handler *Handler) deleteBook(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.DeleteBook(request.Context(), claims, requestutil.ID(request, "id")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
