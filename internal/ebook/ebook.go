// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package ebook assembles EPUB archives from a book's ordered pages.

Pipeline:

  - Sanitizer: author HTML fragments become well-formed XHTML.
  - Builder: one configuration renders the package documents and chapters
    and serializes them into a single archive buffer.
  - Generator: sanitizes every page once and produces the plain and the
    watermarked archive for the same book.

Everything happens in memory; the package performs no disk I/O. Output is
deterministic: identical input yields identical archive bytes.

Archive layout:

	mimetype                   (first, stored, "application/epub+zip")
	META-INF/container.xml
	OEBPS/content.opf
	OEBPS/toc.ncx
	OEBPS/chapter0.xhtml ... chapter{N-1}.xhtml
	OEBPS/logo.png             (watermarked variant only)

Chapter files are named by position, never by page name, so reordering pages
renames their chapters on the next build.
*/
package ebook

import (
	"errors"
	"time"
)

// ErrBuild marks failures to assemble an archive (ill-formed XHTML, serializer
// errors). They are not transient; retrying the same input fails again.
var ErrBuild = errors.New("ebook: build failed")

// Manuscript is the input of a single archive build.
type Manuscript struct {
	// ID is the book identity, used in dc:identifier and dtb:uid.
	ID       string
	Title    string
	Author   string
	Modified time.Time

	// Chapters in reading order.
	Chapters []Chapter
}

// Chapter is one page of a book. Body is sanitized XHTML.
type Chapter struct {
	Name string
	Body string
}

// Page is one page of a book as the author wrote it.
type Page struct {
	Name    string
	Content string
}
