// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ebook

import (
	"encoding/xml"
	"fmt"
	"time"
)

// # Archive layout

const (
	// MediaType is the content of the mimetype entry and the HTTP content type of every archive.
	MediaType = "application/epub+zip"

	mimetypePath  = "mimetype"
	containerPath = "META-INF/container.xml"
	contentDir    = "OEBPS/"
	packagePath   = contentDir + "content.opf"
	ncxHref       = "toc.ncx"
	logoHref      = "logo.png"

	mediaTypeXHTML   = "application/xhtml+xml"
	mediaTypeNCX     = "application/x-dtbncx+xml"
	mediaTypePNG     = "image/png"
	mediaTypePackage = "application/oebps-package+xml"

	namespaceOPF = "http://www.idpf.org/2007/opf"
	namespaceDC  = "http://purl.org/dc/elements/1.1/"
	namespaceNCX = "http://www.daisy.org/z3986/2005/ncx/"

	bookIDRef = "book-id"
	tocID     = "toc"
	logoID    = "logo"
)

// ChapterHref returns the positional file name of the page at index.
func ChapterHref(index int) string {
	return fmt.Sprintf("chapter%d.xhtml", index)
}

func chapterID(index int) string {
	return fmt.Sprintf("chapter%d", index)
}

// # container.xml

const containerDocument = xml.Header + `<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="` + packagePath + `" media-type="` + mediaTypePackage + `"/>
  </rootfiles>
</container>
`

// # content.opf

type opfPackage struct {
	XMLName          xml.Name    `xml:"package"`
	Xmlns            string      `xml:"xmlns,attr"`
	Version          string      `xml:"version,attr"`
	UniqueIdentifier string      `xml:"unique-identifier,attr"`
	Lang             string      `xml:"xml:lang,attr"`
	Metadata         opfMetadata `xml:"metadata"`
	Manifest         opfManifest `xml:"manifest"`
	Spine            opfSpine    `xml:"spine"`
}

type opfMetadata struct {
	XmlnsDC    string        `xml:"xmlns:dc,attr"`
	Identifier opfIdentifier `xml:"dc:identifier"`
	Title      string        `xml:"dc:title"`
	Creator    string        `xml:"dc:creator"`
	Language   string        `xml:"dc:language"`
	Meta       []opfMeta     `xml:"meta"`
}

type opfIdentifier struct {
	ID    string `xml:"id,attr"`
	Value string `xml:",chardata"`
}

type opfMeta struct {
	Property string `xml:"property,attr"`
	Value    string `xml:",chardata"`
}

type opfManifest struct {
	Items []opfItem `xml:"item"`
}

type opfItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

type opfSpine struct {
	Toc      string       `xml:"toc,attr"`
	ItemRefs []opfItemRef `xml:"itemref"`
}

type opfItemRef struct {
	IDRef string `xml:"idref,attr"`
}

// renderPackage builds OEBPS/content.opf.
func renderPackage(manuscript Manuscript, language string, withLogo bool) ([]byte, error) {
	document := opfPackage{
		Xmlns:            namespaceOPF,
		Version:          "3.0",
		UniqueIdentifier: bookIDRef,
		Lang:             language,
		Metadata: opfMetadata{
			XmlnsDC:    namespaceDC,
			Identifier: opfIdentifier{ID: bookIDRef, Value: "urn:uuid:" + manuscript.ID},
			Title:      stripInvalidXML(manuscript.Title),
			Creator:    stripInvalidXML(manuscript.Author),
			Language:   language,
		},
		Spine: opfSpine{Toc: tocID},
	}

	if !manuscript.Modified.IsZero() {
		document.Metadata.Meta = append(document.Metadata.Meta, opfMeta{
			Property: "dcterms:modified",
			Value:    manuscript.Modified.UTC().Format(time.RFC3339),
		})
	}

	for index := range manuscript.Chapters {
		document.Manifest.Items = append(document.Manifest.Items, opfItem{
			ID:        chapterID(index),
			Href:      ChapterHref(index),
			MediaType: mediaTypeXHTML,
		})
		document.Spine.ItemRefs = append(document.Spine.ItemRefs, opfItemRef{IDRef: chapterID(index)})
	}

	document.Manifest.Items = append(document.Manifest.Items, opfItem{ID: tocID, Href: ncxHref, MediaType: mediaTypeNCX})
	if withLogo {
		document.Manifest.Items = append(document.Manifest.Items, opfItem{ID: logoID, Href: logoHref, MediaType: mediaTypePNG})
	}

	return marshalDocument(document)
}

// # toc.ncx

type ncxDocument struct {
	XMLName  xml.Name  `xml:"ncx"`
	Xmlns    string    `xml:"xmlns,attr"`
	Version  string    `xml:"version,attr"`
	Head     []ncxMeta `xml:"head>meta"`
	DocTitle string    `xml:"docTitle>text"`
	NavMap   ncxNavMap `xml:"navMap"`
}

type ncxMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type ncxNavMap struct {
	NavPoints []ncxNavPoint `xml:"navPoint"`
}

type ncxNavPoint struct {
	ID        string     `xml:"id,attr"`
	PlayOrder int        `xml:"playOrder,attr"`
	Label     string     `xml:"navLabel>text"`
	Content   ncxContent `xml:"content"`
}

type ncxContent struct {
	Src string `xml:"src,attr"`
}

// renderNCX builds OEBPS/toc.ncx with one navPoint per chapter, playOrder 1..N.
func renderNCX(manuscript Manuscript) ([]byte, error) {
	document := ncxDocument{
		Xmlns:   namespaceNCX,
		Version: "2005-1",
		Head: []ncxMeta{
			{Name: "dtb:uid", Content: "urn:uuid:" + manuscript.ID},
			{Name: "dtb:depth", Content: "1"},
			{Name: "dtb:totalPageCount", Content: "0"},
			{Name: "dtb:maxPageNumber", Content: "0"},
		},
		DocTitle: stripInvalidXML(manuscript.Title),
	}

	for index, chapter := range manuscript.Chapters {
		document.NavMap.NavPoints = append(document.NavMap.NavPoints, ncxNavPoint{
			ID:        fmt.Sprintf("navpoint-%d", index+1),
			PlayOrder: index + 1,
			Label:     stripInvalidXML(chapter.Name),
			Content:   ncxContent{Src: ChapterHref(index)},
		})
	}

	return marshalDocument(document)
}

func marshalDocument(document any) ([]byte, error) {
	body, err := xml.MarshalIndent(document, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: marshal xml: %v", ErrBuild, err)
	}
	return append([]byte(xml.Header), body...), nil
}
