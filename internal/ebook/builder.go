// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ebook

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// # Archive Builder

// DefaultLanguage is used when [Options.Language] is empty.
const DefaultLanguage = "en"

// Options configures a [Builder].
type Options struct {
	// Language is written to dc:language and to every chapter's xml:lang.
	Language string

	// Watermark switches the builder to the watermarked variant when non-nil.
	Watermark *Watermark
}

// Builder renders a [Manuscript] into an EPUB archive buffer.
//
// A Builder holds configuration only and is safe for concurrent use.
type Builder struct {
	language  string
	watermark *Watermark
}

// NewBuilder returns a Builder for the given configuration.
func NewBuilder(options Options) *Builder {
	language := options.Language
	if language == "" {
		language = DefaultLanguage
	}
	return &Builder{language: language, watermark: options.Watermark}
}

// entry is a single file of the archive.
type entry struct {
	name string
	data []byte
}

/*
Build renders manuscript into a complete archive.

Every XML document is checked for well-formedness before it is zipped, so a
page that would break an e-reader fails the build with [ErrBuild] instead of
producing a corrupt archive.

Returns:
  - []byte: The archive bytes
  - error: ErrBuild wrapped with the offending entry
*/
func (builder *Builder) Build(manuscript Manuscript) ([]byte, error) {
	withLogo := builder.watermark != nil

	opf, err := renderPackage(manuscript, builder.language, withLogo)
	if err != nil {
		return nil, err
	}

	ncx, err := renderNCX(manuscript)
	if err != nil {
		return nil, err
	}

	entries := make([]entry, 0, len(manuscript.Chapters)+4)
	entries = append(entries,
		entry{name: containerPath, data: []byte(containerDocument)},
		entry{name: packagePath, data: opf},
		entry{name: contentDir + ncxHref, data: ncx},
	)

	for index, chapter := range manuscript.Chapters {
		entries = append(entries, entry{
			name: contentDir + ChapterHref(index),
			data: renderChapter(chapter, builder.language, builder.watermark),
		})
	}

	for _, file := range entries {
		if err := checkWellFormed(file.data); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBuild, file.name, err)
		}
	}

	if withLogo {
		entries = append(entries, entry{name: contentDir + logoHref, data: builder.watermark.Image})
	}

	return writeArchive(entries)
}

// writeArchive zips entries behind a stored mimetype entry.
//
// The mimetype header is written raw: no compression, no extra field and no
// data descriptor, so its name and content sit at fixed offsets 30 and 38.
func writeArchive(entries []entry) ([]byte, error) {
	var buffer bytes.Buffer
	archive := zip.NewWriter(&buffer)

	mimetype := []byte(MediaType)
	writer, err := archive.CreateRaw(&zip.FileHeader{
		Name:               mimetypePath,
		Method:             zip.Store,
		CRC32:              crc32.ChecksumIEEE(mimetype),
		CompressedSize64:   uint64(len(mimetype)),
		UncompressedSize64: uint64(len(mimetype)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: mimetype header: %v", ErrBuild, err)
	}
	if _, err := writer.Write(mimetype); err != nil {
		return nil, fmt.Errorf("%w: mimetype: %v", ErrBuild, err)
	}

	for _, file := range entries {
		writer, err := archive.CreateHeader(&zip.FileHeader{Name: file.name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("%w: %s header: %v", ErrBuild, file.name, err)
		}
		if _, err := writer.Write(file.data); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBuild, file.name, err)
		}
	}

	if err := archive.Close(); err != nil {
		return nil, fmt.Errorf("%w: finalize archive: %v", ErrBuild, err)
	}

	return buffer.Bytes(), nil
}

// checkWellFormed runs a strict XML decoder over document.
func checkWellFormed(document []byte) error {
	decoder := xml.NewDecoder(bytes.NewReader(document))
	decoder.Strict = true

	for {
		_, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
