package reader

import (
	"bytes"
	"context"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hmi-forge/backend/internal/models"
)

type htmlReader struct{}

func (htmlReader) Name() string                  { return "html" }
func (htmlReader) Format() models.DocumentFormat { return models.FormatHTML }

func (htmlReader) CanRead(path string, head []byte) bool {
	if hasExt(path, ".html", ".htm", ".xhtml") {
		return true
	}
	lower := bytes.ToLower(bytes.TrimSpace(head))
	return bytes.HasPrefix(lower, []byte("<!doctype html")) || bytes.HasPrefix(lower, []byte("<html"))
}

// Read emits one line per block element. h1-h6 become markdown headings.
func (htmlReader) Read(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	var out strings.Builder
	walkHTML(doc, &out)
	return out.String(), nil
}

func walkHTML(n *html.Node, out *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Head:
			return
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			writeBlock(out, collectText(n), int(n.Data[1]-'0'))
			return
		case atom.P, atom.Li, atom.Dt, atom.Dd, atom.Caption, atom.Pre, atom.Blockquote:
			writeBlock(out, collectText(n), 0)
			return
		case atom.Tr:
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
					cells = append(cells, collectText(c))
				}
			}
			writeBlock(out, strings.Join(cells, " | "), 0)
			return
		}
	}
	if n.Type == html.TextNode && n.Parent != nil && isContainer(n.Parent) {
		writeBlock(out, strings.Join(strings.Fields(n.Data), " "), 0)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTML(c, out)
	}
}

// isContainer reports elements whose loose text children should be kept.
func isContainer(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Body, atom.Div, atom.Section, atom.Article, atom.Main, atom.Td, atom.Th:
		return true
	}
	return false
}

func collectText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		if n.Type == html.TextNode {
			parts = append(parts, strings.Fields(n.Data)...)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}
