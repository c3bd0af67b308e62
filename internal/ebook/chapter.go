// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ebook

import "strings"

// # Watermark

// DefaultWatermarkStylesheet layers logo.png behind the chapter text.
const DefaultWatermarkStylesheet = `body{position:relative;font-family:Arial,sans-serif}` +
	`.watermark{position:absolute;top:0;left:0;right:0;bottom:0;z-index:-1;opacity:0.1;` +
	`background-image:url('logo.png');background-repeat:no-repeat;background-position:center;background-size:200px}`

// Watermark configures the overlay of the watermarked variant.
type Watermark struct {
	// Image is stored as OEBPS/logo.png. It must be a PNG.
	Image []byte

	// Stylesheet is injected into every chapter's <style> block.
	// It should style the div.watermark marker.
	Stylesheet string
}

// # Chapter documents

// renderChapter builds OEBPS/chapter{N}.xhtml. body must already be sanitized.
func renderChapter(chapter Chapter, language string, watermark *Watermark) []byte {
	name := escapeText(chapter.Name)
	lang := escapeAttribute(language)

	var document strings.Builder
	document.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="no"?>` + "\n")
	document.WriteString("<!DOCTYPE html>\n")
	document.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" xml:lang="` + lang + `" lang="` + lang + `">` + "\n")
	document.WriteString("<head>\n<title>" + name + "</title>\n")

	if watermark != nil {
		document.WriteString("<style>" + escapeText(watermark.Stylesheet) + "</style>\n")
	}

	document.WriteString("</head>\n<body>\n")

	if watermark != nil {
		document.WriteString(`<div class="watermark"></div>` + "\n")
	}

	document.WriteString("<section><h1>" + name + "</h1>" + chapter.Body + "</section>\n")
	document.WriteString("</body>\n</html>\n")

	return []byte(document.String())
}
