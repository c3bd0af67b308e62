// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ebook

import (
	"context"
	"fmt"
	"time"
)

// Source is everything needed to generate a book's archives.
type Source struct {
	ID       string
	Title    string
	Author   string
	Modified time.Time
	Pages    []Page
}

// Bundle holds both variants of one book, built from the same sanitized pages.
type Bundle struct {
	Plain       []byte
	Watermarked []byte
}

// Generator produces the plain and watermarked archives of a book.
type Generator struct {
	sanitizer   *Sanitizer
	plain       *Builder
	watermarked *Builder
}

// NewGenerator wires a sanitizer and the two builder configurations.
func NewGenerator(sanitizer *Sanitizer, language string, watermark Watermark) *Generator {
	if watermark.Stylesheet == "" {
		watermark.Stylesheet = DefaultWatermarkStylesheet
	}

	return &Generator{
		sanitizer:   sanitizer,
		plain:       NewBuilder(Options{Language: language}),
		watermarked: NewBuilder(Options{Language: language, Watermark: &watermark}),
	}
}

/*
Generate sanitizes every page and builds both archives.

Nothing is written anywhere; a caller persists the bundle only when both
variants were produced.

Parameters:
  - context: context.Context (checked between pages)
  - source: Source

Returns:
  - *Bundle: Plain and watermarked archive bytes
  - error: ErrBuild on any generation failure, or the context error
*/
func (generator *Generator) Generate(context context.Context, source Source) (*Bundle, error) {
	manuscript := Manuscript{
		ID:       source.ID,
		Title:    source.Title,
		Author:   source.Author,
		Modified: source.Modified,
		Chapters: make([]Chapter, 0, len(source.Pages)),
	}

	for index, page := range source.Pages {
		if err := context.Err(); err != nil {
			return nil, err
		}

		body, err := generator.sanitizer.Sanitize(page.Content)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrBuild, index, err)
		}
		manuscript.Chapters = append(manuscript.Chapters, Chapter{Name: page.Name, Body: body})
	}

	plain, err := generator.plain.Build(manuscript)
	if err != nil {
		return nil, err
	}

	if err := context.Err(); err != nil {
		return nil, err
	}

	watermarked, err := generator.watermarked.Build(manuscript)
	if err != nil {
		return nil, err
	}

	return &Bundle{Plain: plain, Watermarked: watermarked}, nil
}
