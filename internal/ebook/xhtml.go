// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ebook

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// xhtmlWriter accumulates XHTML output.
type xhtmlWriter struct {
	strings.Builder
}

var xmlNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9._-]*$`)

// isXMLName reports whether name can be written as an unprefixed XML name.
func isXMLName(name string) bool {
	return xmlNameRegex.MatchString(name)
}

// attributeName returns the name to write for attr, or "" to drop it.
//
// Only the xml: and epub: prefixes are declared in chapter documents, and
// xmlns declarations from author content are never copied.
func attributeName(attr html.Attribute) string {
	name := attr.Key
	if attr.Namespace == "xml" {
		name = "xml:" + attr.Key
	} else if attr.Namespace != "" {
		return ""
	}

	if name == "xmlns" || strings.HasPrefix(name, "xmlns:") {
		return ""
	}

	if prefix, local, found := strings.Cut(name, ":"); found {
		if (prefix == "xml" || prefix == "epub") && isXMLName(local) {
			return name
		}
		return ""
	}

	if !isXMLName(name) {
		return ""
	}
	return name
}

func (writer *xhtmlWriter) writeAttributes(attrs []html.Attribute) {
	seen := make(map[string]bool, len(attrs))
	for _, attr := range attrs {
		name := attributeName(attr)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		writer.WriteString(" " + name + `="` + escapeAttribute(attr.Val) + `"`)
	}
}

func (writer *xhtmlWriter) writeText(text string) {
	writer.WriteString(escapeText(text))
}

var (
	textEscaper      = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attributeEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// escapeText escapes character data and drops code points XML 1.0 forbids.
func escapeText(text string) string {
	return textEscaper.Replace(stripInvalidXML(text))
}

// escapeAttribute escapes a double-quoted attribute value.
func escapeAttribute(value string) string {
	return attributeEscaper.Replace(stripInvalidXML(value))
}

func stripInvalidXML(text string) string {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}

	valid := func(r rune) bool {
		return r == 0x09 || r == 0x0A || r == 0x0D ||
			(r >= 0x20 && r <= 0xD7FF) ||
			(r >= 0xE000 && r <= 0xFFFD) ||
			(r >= 0x10000 && r <= 0x10FFFF)
	}

	for _, r := range text {
		if !valid(r) {
			return strings.Map(func(r rune) rune {
				if valid(r) {
					return r
				}
				return -1
			}, text)
		}
	}
	return text
}
