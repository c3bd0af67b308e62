// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ebook

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// # Content Sanitizer

// Sanitizer converts author-supplied HTML fragments into XHTML markup that can
// be placed inside a chapter's <section>.
//
// The fragment is parsed with an HTML5 parser, so unclosed and misnested
// tags are repaired the same way a browser would repair them, and is then
// written back out as XHTML:
//
//   - void elements are self-closed (<br />, <img ... />)
//   - images inside a <p> are moved directly after the paragraph, in order
//   - named entities such as &nbsp; become literal characters
//   - every opened element is closed and stray end tags are dropped
//   - scripts, styles and embedded frames are removed
//   - top-level inline runs are wrapped in <p>
//
// Sanitize is idempotent: its output is a fixed point.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer returns a Sanitizer. When policy is non-nil it is applied
// before parsing to strip active content such as scripts and event handlers.
func NewSanitizer(policy *bluemonday.Policy) *Sanitizer {
	return &Sanitizer{policy: policy}
}

// DefaultPolicy is the active-content policy applied to page content.
//
// It is the bluemonday UGC policy plus inline data: images and class
// attributes, which rich-text editors rely on.
func DefaultPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowDataURIImages()
	policy.AllowAttrs("class").Globally()
	return policy
}

// bodyContext is the parsing context for page fragments.
var bodyContext = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

// Sanitize rewrites raw into well-formed XHTML.
func (sanitizer *Sanitizer) Sanitize(raw string) (string, error) {
	if sanitizer.policy != nil {
		raw = sanitizer.policy.Sanitize(raw)
	}

	nodes, err := html.ParseFragment(strings.NewReader(raw), bodyContext)
	if err != nil {
		return "", fmt.Errorf("ebook: parse page content: %w", err)
	}

	writer := &xhtmlWriter{}
	writer.writeFragment(nodes)
	return writer.String(), nil
}

// # Fragment layout

// writeFragment emits top-level nodes. Block elements and images are written
// as they are; consecutive inline nodes are grouped into a paragraph.
func (writer *xhtmlWriter) writeFragment(nodes []*html.Node) {
	var run []*html.Node

	flush := func() {
		if len(run) == 0 {
			return
		}
		if hasVisibleContent(run) {
			writer.writeParagraph(nil, run, nil)
		} else {
			for _, node := range run {
				writer.writeNode(node, nil)
			}
		}
		run = run[:0]
	}

	for _, node := range nodes {
		switch {
		case node.Type == html.CommentNode || node.Type == html.DoctypeNode || isDropped(node):
			continue
		case isImage(node) || isBlock(node):
			flush()
			writer.writeNode(node, nil)
		default:
			run = append(run, node)
		}
	}

	flush()
}

// writeParagraph writes a <p> and then every image found inside it. A
// paragraph nested in another one (the parser allows <p> inside <button>)
// hands its images to the outermost paragraph, so they all land after it.
func (writer *xhtmlWriter) writeParagraph(attrs []html.Attribute, children []*html.Node, outer *[]*html.Node) {
	images := outer
	if images == nil {
		images = &[]*html.Node{}
	}

	writer.WriteString("<p")
	writer.writeAttributes(attrs)
	writer.WriteString(">")
	for _, child := range children {
		writer.writeNode(child, images)
	}
	writer.WriteString("</p>")

	if outer != nil {
		return
	}
	for _, image := range *images {
		writer.writeNode(image, nil)
	}
}

// writeNode serializes node. A non-nil images slice means node sits inside a
// paragraph; images are collected there instead of being written.
func (writer *xhtmlWriter) writeNode(node *html.Node, images *[]*html.Node) {
	switch node.Type {
	case html.TextNode:
		writer.writeText(node.Data)

	case html.ElementNode:
		if isDropped(node) {
			return
		}

		if images != nil && isImage(node) {
			*images = append(*images, node)
			return
		}

		if node.DataAtom == atom.P && node.Namespace == "" {
			writer.writeParagraph(node.Attr, childNodes(node), images)
			return
		}

		if !isXMLName(node.Data) {
			// Unknown markup (e.g. <o:p> from office paste) is unwrapped.
			for child := node.FirstChild; child != nil; child = child.NextSibling {
				writer.writeNode(child, images)
			}
			return
		}

		writer.WriteString("<" + node.Data)
		if namespace := foreignNamespace(node); namespace != "" {
			writer.WriteString(` xmlns="` + namespace + `"`)
		}
		writer.writeAttributes(node.Attr)

		if isVoid(node) || (node.Namespace != "" && node.FirstChild == nil) {
			writer.WriteString(" />")
			return
		}

		writer.WriteString(">")
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			writer.writeNode(child, images)
		}
		writer.WriteString("</" + node.Data + ">")
	}
}

// # Classification

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Details: true, atom.Dialog: true, atom.Dd: true, atom.Div: true, atom.Dl: true,
	atom.Dt: true, atom.Fieldset: true, atom.Figcaption: true, atom.Figure: true,
	atom.Footer: true, atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Header: true, atom.Hgroup: true,
	atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true, atom.Ol: true,
	atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true, atom.Ul: true,
}

// droppedElements hold raw text or active content. They are removed with
// their children.
var droppedElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Template: true, atom.Noscript: true,
	atom.Iframe: true, atom.Noembed: true, atom.Noframes: true, atom.Xmp: true,
	atom.Plaintext: true, atom.Object: true,
}

var voidElements = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true, atom.Embed: true,
	atom.Hr: true, atom.Img: true, atom.Input: true, atom.Keygen: true, atom.Link: true,
	atom.Meta: true, atom.Param: true, atom.Source: true, atom.Track: true, atom.Wbr: true,
}

func isImage(node *html.Node) bool {
	return node.Type == html.ElementNode && node.DataAtom == atom.Img && node.Namespace == ""
}

func isDropped(node *html.Node) bool {
	return node.Type == html.ElementNode && node.Namespace == "" && droppedElements[node.DataAtom]
}

func isVoid(node *html.Node) bool {
	return node.Namespace == "" && voidElements[node.DataAtom]
}

// isBlock reports whether node is a block element or contains one. Inline
// wrappers around blocks (<a><div>…</div></a>) must not be put in a <p>.
func isBlock(node *html.Node) bool {
	if node.Type != html.ElementNode {
		return false
	}
	if node.Namespace == "" && blockElements[node.DataAtom] {
		return true
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if isBlock(child) {
			return true
		}
	}
	return false
}

func hasVisibleContent(nodes []*html.Node) bool {
	for _, node := range nodes {
		if node.Type == html.ElementNode {
			return true
		}
		if node.Type == html.TextNode && strings.TrimSpace(node.Data) != "" {
			return true
		}
	}
	return false
}

func childNodes(node *html.Node) []*html.Node {
	var children []*html.Node
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		children = append(children, child)
	}
	return children
}

// foreignNamespace returns the namespace URI to declare on the outermost
// <svg> or <math> element, or "" when none is needed.
func foreignNamespace(node *html.Node) string {
	if node.Namespace == "" || (node.Parent != nil && node.Parent.Namespace == node.Namespace) {
		return ""
	}
	switch node.Namespace {
	case "svg":
		return "http://www.w3.org/2000/svg"
	case "math":
		return "http://www.w3.org/1998/Math/MathML"
	}
	return ""
}
