// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package book

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/taibuivan/folio/internal/platform/constants"
	"github.com/taibuivan/folio/internal/platform/validate"
)

const (
	maxTitleLength  = 500
	maxAuthorLength = 300
	maxItemTitle    = 300
	maxPageName     = 500
)

// # Uploaded Files

// Upload is one file received with a request, held in memory.
type Upload struct {
	Filename string
	Data     []byte

	detected *mimetype.MIME
}

// NewUpload wraps received bytes.
func NewUpload(filename string, data []byte) *Upload {
	return &Upload{Filename: filename, Data: data}
}

// MIME returns the content type sniffed from the bytes, never from the name.
func (upload *Upload) MIME() *mimetype.MIME {
	if upload.detected == nil {
		upload.detected = mimetype.Detect(upload.Data)
	}
	return upload.detected
}

var extensionRegex = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// Extension returns the file extension used for the stored key.
func (upload *Upload) Extension() string {
	extension := upload.MIME().Extension()
	if extension == "" {
		extension = strings.ToLower(filepath.Ext(upload.Filename))
	}
	if !extensionRegex.MatchString(extension) {
		return ""
	}
	return extension
}

// hasKind reports whether the sniffed type is under the top-level kind ("image/").
func (upload *Upload) hasKind(kind string) bool {
	for detected := upload.MIME(); detected != nil; detected = detected.Parent() {
		if strings.HasPrefix(detected.String(), kind) {
			return true
		}
	}
	return false
}

// # Create

// CreateBookRequest carries a new book written in the platform.
type CreateBookRequest struct {
	Title        string        `json:"title"`
	Author       string        `json:"author"`
	Pages        []Page        `json:"pages"`
	AudioItems   []MediaItem   `json:"audio_items"`
	VideoItems   []MediaItem   `json:"video_items"`
	YoutubeItems []YoutubeItem `json:"youtube_items"`
	IsPrivate    bool          `json:"is_private"`

	CoverImage *Upload   `json:"-"`
	AudioFiles []*Upload `json:"-"`
	VideoFiles []*Upload `json:"-"`
}

/*
Validate checks the request shape before any generation work.

Parameters:
  - maxPages: int (upper bound on len(Pages))

Returns:
  - error: VALIDATION_ERROR with one detail per failed rule
*/
func (request *CreateBookRequest) Validate(maxPages int) error {
	validator := &validate.Validator{}

	validator.Required(FieldTitle, request.Title).MaxLen(FieldTitle, request.Title, maxTitleLength)
	validator.Required(FieldAuthor, request.Author).MaxLen(FieldAuthor, request.Author, maxAuthorLength)

	validatePages(validator, request.Pages, maxPages)
	validateYoutube(validator, request.YoutubeItems)
	validateCover(validator, request.CoverImage)

	// New books have no stored media yet, so every item must bring a file
	for index, item := range request.AudioItems {
		validator.Custom(itemField(FieldAudioItems, index, "file_url"), item.FileURL != "", "Must be empty; attach a file instead")
	}
	for index, item := range request.VideoItems {
		validator.Custom(itemField(FieldVideoItems, index, "file_url"), item.FileURL != "", "Must be empty; attach a file instead")
	}

	validateMedia(validator, FieldAudioItems, FieldAudioFiles, request.AudioItems, request.AudioFiles, "audio/", constants.MaxAudioFiles)
	validateMedia(validator, FieldVideoItems, FieldVideoFiles, request.VideoItems, request.VideoFiles, "video/", constants.MaxVideoFiles)

	return validator.Err()
}

// # Update

// UpdateBookRequest replaces any supplied subset of a book's fields.
// Nil fields keep their stored value.
type UpdateBookRequest struct {
	Title        *string        `json:"title"`
	Author       *string        `json:"author"`
	Pages        *[]Page        `json:"pages"`
	AudioItems   *[]MediaItem   `json:"audio_items"`
	VideoItems   *[]MediaItem   `json:"video_items"`
	YoutubeItems *[]YoutubeItem `json:"youtube_items"`

	// Version, when set, must equal the stored version.
	Version *int `json:"version"`

	CoverImage *Upload   `json:"-"`
	AudioFiles []*Upload `json:"-"`
	VideoFiles []*Upload `json:"-"`
}

// Validate checks the request shape. References to stored media are
// checked by the service against the current record.
func (request *UpdateBookRequest) Validate(maxPages int) error {
	validator := &validate.Validator{}

	if request.Title != nil {
		validator.Required(FieldTitle, *request.Title).MaxLen(FieldTitle, *request.Title, maxTitleLength)
	}
	if request.Author != nil {
		validator.Required(FieldAuthor, *request.Author).MaxLen(FieldAuthor, *request.Author, maxAuthorLength)
	}
	if request.Pages != nil {
		validatePages(validator, *request.Pages, maxPages)
	}
	if request.YoutubeItems != nil {
		validateYoutube(validator, *request.YoutubeItems)
	}
	if request.Version != nil {
		validator.Custom(FieldVersion, *request.Version < 1, "Must be a positive integer")
	}

	validateCover(validator, request.CoverImage)

	if request.AudioItems != nil {
		validateMedia(validator, FieldAudioItems, FieldAudioFiles, *request.AudioItems, request.AudioFiles, "audio/", constants.MaxAudioFiles)
	} else {
		validator.Custom(FieldAudioFiles, len(request.AudioFiles) > 0, "Files require audio_items")
	}

	if request.VideoItems != nil {
		validateMedia(validator, FieldVideoItems, FieldVideoFiles, *request.VideoItems, request.VideoFiles, "video/", constants.MaxVideoFiles)
	} else {
		validator.Custom(FieldVideoFiles, len(request.VideoFiles) > 0, "Files require video_items")
	}

	return validator.Err()
}

// # Upload

// UploadBookRequest carries a ready-made EPUB.
type UploadBookRequest struct {
	Title      string
	Author     string
	IsPrivate  bool
	BookFile   *Upload
	CoverImage *Upload
}

// Validate checks the uploaded archive and metadata.
func (request *UploadBookRequest) Validate() error {
	validator := &validate.Validator{}

	validator.Required(FieldTitle, request.Title).MaxLen(FieldTitle, request.Title, maxTitleLength)
	validator.Required(FieldAuthor, request.Author).MaxLen(FieldAuthor, request.Author, maxAuthorLength)

	if request.BookFile == nil {
		validator.Custom(FieldBookFile, true, "This field is required")
	} else {
		validator.Custom(FieldBookFile, !request.BookFile.MIME().Is(constants.MediaTypeEPUB), "Must be an EPUB archive")
	}

	validateCover(validator, request.CoverImage)

	return validator.Err()
}

// # Shared Rules

func itemField(field string, index int, name string) string {
	return fmt.Sprintf("%s[%d].%s", field, index, name)
}

func validatePages(validator *validate.Validator, pages []Page, maxPages int) {
	validator.Custom(FieldPages, len(pages) > maxPages, fmt.Sprintf("Maximum %d pages", maxPages))

	for index, page := range pages {
		validator.MaxLen(itemField(FieldPages, index, "name"), page.Name, maxPageName)
	}
}

func validateYoutube(validator *validate.Validator, items []YoutubeItem) {
	for index, item := range items {
		validator.MaxLen(itemField(FieldYoutubeItems, index, "title"), item.Title, maxItemTitle)
		validator.HTTPURL(itemField(FieldYoutubeItems, index, "link"), item.Link)
	}
}

func validateCover(validator *validate.Validator, cover *Upload) {
	if cover != nil {
		validator.Custom(FieldCoverImage, !cover.hasKind("image/"), "Must be an image")
	}
}

// validateMedia checks that files pair one-to-one, in order, with the items
// whose file_url is empty.
func validateMedia(validator *validate.Validator, itemsField, filesField string, items []MediaItem, files []*Upload, kind string, maxFiles int) {
	awaiting := 0
	for index, item := range items {
		validator.MaxLen(itemField(itemsField, index, "title"), item.Title, maxItemTitle)
		if item.FileURL == "" {
			awaiting++
		}
	}

	validator.Custom(filesField, len(files) > maxFiles, fmt.Sprintf("Maximum %d files", maxFiles))
	validator.Custom(filesField, len(files) != awaiting,
		fmt.Sprintf("Expected %d files for items without file_url, got %d", awaiting, len(files)))

	for index, file := range files {
		validator.Custom(fmt.Sprintf("%s[%d]", filesField, index), !file.hasKind(kind), "Unsupported file type")
	}
}
