// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package book manages book records and their generated EPUB artifacts.

A book is either written in the platform (pages of HTML, type "created") or
uploaded as a ready EPUB (type "uploaded"). Created books carry two archives,
plain and watermarked, which are regenerated from the pages on every change.

# Core Responsibility

  - Record: Defines the [Book] entity and its persistence contract.
  - Generation: Drives the ebook pipeline and the two-phase artifact commit.
  - Access: Owner/admin mutation and private-book visibility rules.

Archives are never patched in place; each change stages fresh files, writes
the record, then publishes the files.
*/
package book

import "time"

// # Book Enums

// Type distinguishes generated books from uploaded ones.
type Type string

const (
	TypeCreated  Type = "created"
	TypeUploaded Type = "uploaded"
)

// IsValid reports whether t is a known book type.
func (t Type) IsValid() bool {
	return t == TypeCreated || t == TypeUploaded
}

// GenerationStatus tracks whether the published archives match the pages.
type GenerationStatus string

const (
	// GenerationNone is used for uploaded books, which are never generated.
	GenerationNone GenerationStatus = "none"

	// GenerationReady means both archives were built from the current pages.
	GenerationReady GenerationStatus = "ready"

	// GenerationFailed means the record was saved but publishing its archives
	// did not complete. The next successful update repairs it.
	GenerationFailed GenerationStatus = "failed"
)

// IsValid reports whether s is a known generation status.
func (s GenerationStatus) IsValid() bool {
	switch s {
	case GenerationNone, GenerationReady, GenerationFailed:
		return true
	}
	return false
}

// # Core Entities

// Page is one chapter of a created book. Content is author HTML.
type Page struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// MediaItem is an audio or video attachment stored in the artifact store.
type MediaItem struct {
	Title   string `json:"title"`
	FileURL string `json:"file_url"`
}

// YoutubeItem links an external video.
type YoutubeItem struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Book is the persistent record of a book and its artifact references.
type Book struct {
	ID               string           `json:"id"` // UUIDv7
	OwnerID          string           `json:"owner_id"`
	Title            string           `json:"title"`
	Author           string           `json:"author"`
	CoverImage       *string          `json:"cover_image,omitempty"`
	Pages            []Page           `json:"pages"`
	AudioItems       []MediaItem      `json:"audio_items"`
	VideoItems       []MediaItem      `json:"video_items"`
	YoutubeItems     []YoutubeItem    `json:"youtube_items"`
	EbookFile        *string          `json:"ebook_file,omitempty"`
	WatermarkFile    *string          `json:"watermark_file,omitempty"`
	BookType         Type             `json:"book_type"`
	IsPrivate        bool             `json:"is_private"`
	GenerationStatus GenerationStatus `json:"generation_status"`
	Version          int              `json:"version"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// artifactRefs lists every store reference the book owns.
func (book *Book) artifactRefs() []string {
	var refs []string
	for _, ref := range []*string{book.EbookFile, book.WatermarkFile, book.CoverImage} {
		if ref != nil && *ref != "" {
			refs = append(refs, *ref)
		}
	}
	refs = append(refs, mediaRefs(book.AudioItems)...)
	refs = append(refs, mediaRefs(book.VideoItems)...)
	return refs
}

func mediaRefs(items []MediaItem) []string {
	refs := make([]string, 0, len(items))
	for _, item := range items {
		if item.FileURL != "" {
			refs = append(refs, item.FileURL)
		}
	}
	return refs
}

// # Search & Filtering

// Filter narrows book listings.
type Filter struct {
	// OwnerID limits results to one owner's books.
	OwnerID string

	// PublicOnly hides private books.
	PublicOnly bool
}

// # Field Identifiers

const (
	FieldTitle        = "title"
	FieldAuthor       = "author"
	FieldPages        = "pages"
	FieldAudioItems   = "audio_items"
	FieldVideoItems   = "video_items"
	FieldYoutubeItems = "youtube_items"
	FieldCoverImage   = "cover_image"
	FieldAudioFiles   = "audio_files"
	FieldVideoFiles   = "video_files"
	FieldBookFile     = "book_file"
	FieldVersion      = "version"
)

// Multipart form names, as sent by the web client.
const (
	FormTitle        = "title"
	FormAuthor       = "author"
	FormPages        = "pages"
	FormAudioItems   = "audioItems"
	FormVideoItems   = "videoItems"
	FormYoutubeItems = "youtubeItems"
	FormIsPrivate    = "isPrivate"
	FormVersion      = "version"
	FormCoverImage   = "coverImage"
	FormAudioFiles   = "audioFiles"
	FormVideoFiles   = "videoFiles"
	FormBookFile     = "bookFile"
)
