// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package book

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/taibuivan/folio/internal/platform/apperr"
	"github.com/taibuivan/folio/internal/platform/constants"
)

// # Multipart Decoding

// form reads book fields from a parsed multipart body. Structured fields
// (pages, media items) travel as JSON strings.
type form struct {
	multipart *multipart.Form
	maxBytes  int64
	details   []apperr.FieldError
}

/*
parseForm parses a multipart body bounded by the per-file ceiling.

Parameters:
  - writer: http.ResponseWriter
  - request: *http.Request
  - maxBytes: int64 (per-file ceiling)

Returns:
  - *form: Field reader; the caller must call cleanup
  - error: PAYLOAD_TOO_LARGE or VALIDATION_ERROR
*/
func parseForm(writer http.ResponseWriter, request *http.Request, maxBytes int64) (*form, error) {

	// Every file field may be at the ceiling; one extra unit covers text fields
	bodyLimit := maxBytes * int64(constants.MaxAudioFiles+constants.MaxVideoFiles+3)
	request.Body = http.MaxBytesReader(writer, request.Body, bodyLimit)

	if err := request.ParseMultipartForm(constants.MultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.PayloadTooLarge(maxBytes)
		}
		return nil, apperr.ValidationError("Invalid multipart body")
	}

	return &form{multipart: request.MultipartForm, maxBytes: maxBytes}, nil
}

func (form *form) cleanup() {
	_ = form.multipart.RemoveAll()
}

func (form *form) fail(field, message string) {
	form.details = append(form.details, apperr.FieldError{Field: field, Message: message})
}

// err reports every field that could not be decoded.
func (form *form) err() error {
	if len(form.details) == 0 {
		return nil
	}
	return apperr.ValidationError("Validation failed", form.details...)
}

// text returns the first value of name and whether it was sent at all.
func (form *form) text(name string) (string, bool) {
	values, ok := form.multipart.Value[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (form *form) boolean(name string) bool {
	value, ok := form.text(name)
	if !ok || strings.TrimSpace(value) == "" {
		return false
	}

	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		form.fail(name, "Must be true or false")
	}
	return parsed
}

func (form *form) integer(name string) *int {
	value, ok := form.text(name)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		form.fail(name, "Must be an integer")
		return nil
	}
	return &parsed
}

// document decodes a JSON-encoded field into target. It reports whether
// the field was present and valid.
func (form *form) document(name string, target any) bool {
	value, ok := form.text(name)
	if !ok {
		return false
	}

	if err := json.Unmarshal([]byte(value), target); err != nil {
		form.fail(name, "Must be a JSON array")
		return false
	}
	return true
}

// files reads every upload sent under name.
func (form *form) files(name string) ([]*Upload, error) {
	headers := form.multipart.File[name]
	uploads := make([]*Upload, 0, len(headers))

	for _, header := range headers {
		if header.Size > form.maxBytes {
			return nil, apperr.PayloadTooLarge(form.maxBytes)
		}

		file, err := header.Open()
		if err != nil {
			return nil, apperr.Internal(err)
		}

		data, err := io.ReadAll(io.LimitReader(file, form.maxBytes+1))
		file.Close()
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if int64(len(data)) > form.maxBytes {
			return nil, apperr.PayloadTooLarge(form.maxBytes)
		}

		uploads = append(uploads, NewUpload(header.Filename, data))
	}

	return uploads, nil
}

// file reads the single upload sent under name, if any.
func (form *form) file(name string) (*Upload, error) {
	uploads, err := form.files(name)
	if err != nil || len(uploads) == 0 {
		return nil, err
	}
	if len(uploads) > 1 {
		form.fail(name, "Only one file is accepted")
	}
	return uploads[0], nil
}

// # Request Assembly

func (form *form) createRequest() (*CreateBookRequest, error) {
	request := &CreateBookRequest{}
	request.Title, _ = form.text(FormTitle)
	request.Author, _ = form.text(FormAuthor)
	request.IsPrivate = form.boolean(FormIsPrivate)

	form.document(FormPages, &request.Pages)
	form.document(FormAudioItems, &request.AudioItems)
	form.document(FormVideoItems, &request.VideoItems)
	form.document(FormYoutubeItems, &request.YoutubeItems)

	if err := form.attach(&request.CoverImage, &request.AudioFiles, &request.VideoFiles); err != nil {
		return nil, err
	}
	return request, form.err()
}

func (form *form) updateRequest() (*UpdateBookRequest, error) {
	request := &UpdateBookRequest{}

	if title, ok := form.text(FormTitle); ok {
		request.Title = &title
	}
	if author, ok := form.text(FormAuthor); ok {
		request.Author = &author
	}
	request.Version = form.integer(FormVersion)

	var (
		pages   []Page
		audio   []MediaItem
		video   []MediaItem
		youtube []YoutubeItem
	)
	if form.document(FormPages, &pages) {
		request.Pages = &pages
	}
	if form.document(FormAudioItems, &audio) {
		request.AudioItems = &audio
	}
	if form.document(FormVideoItems, &video) {
		request.VideoItems = &video
	}
	if form.document(FormYoutubeItems, &youtube) {
		request.YoutubeItems = &youtube
	}

	if err := form.attach(&request.CoverImage, &request.AudioFiles, &request.VideoFiles); err != nil {
		return nil, err
	}
	return request, form.err()
}

func (form *form) uploadRequest() (*UploadBookRequest, error) {
	request := &UploadBookRequest{}
	request.Title, _ = form.text(FormTitle)
	request.Author, _ = form.text(FormAuthor)
	request.IsPrivate = form.boolean(FormIsPrivate)

	var err error
	if request.BookFile, err = form.file(FormBookFile); err != nil {
		return nil, err
	}
	if request.CoverImage, err = form.file(FormCoverImage); err != nil {
		return nil, err
	}
	return request, form.err()
}

func (form *form) attach(cover **Upload, audio, video *[]*Upload) error {
	var err error
	if *cover, err = form.file(FormCoverImage); err != nil {
		return err
	}
	if *audio, err = form.files(FormAudioFiles); err != nil {
		return err
	}
	*video, err = form.files(FormVideoFiles)
	return err
}
