package reader

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hmi-forge/backend/internal/models"
)

var zipMagic = []byte("PK\x03\x04")

type docxReader struct{}

func (docxReader) Name() string                  { return "docx" }
func (docxReader) Format() models.DocumentFormat { return models.FormatDocx }

func (docxReader) CanRead(path string, head []byte) bool {
	if hasExt(path, ".docx") {
		return true
	}
	return bytes.HasPrefix(head, zipMagic) &&
		(bytes.Contains(head, []byte("word/")) || bytes.Contains(head, []byte("[Content_Types].xml")))
}

// Read walks word/document.xml paragraph by paragraph. Heading styles are
// rendered as markdown headings so the segmenter sees them.
func (docxReader) Read(ctx context.Context, path string) (string, error) {
	rc, closeZip, err := openZipEntry(path, "word/document.xml")
	if err != nil {
		return "", err
	}
	defer closeZip()
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var out strings.Builder
	var para strings.Builder
	var inParagraph, inText bool
	var style string

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				para.Reset()
				style = ""
			case "pStyle":
				style = attrValue(t, "val")
			case "t":
				inText = inParagraph
			case "tab":
				if inParagraph {
					para.WriteByte('\t')
				}
			case "br":
				if inParagraph {
					para.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				inParagraph = false
				writeBlock(&out, strings.TrimSpace(para.String()), docxHeadingLevel(style))
			}
		}
	}
	return out.String(), nil
}

// docxHeadingLevel maps paragraph style names such as "Heading2" or
// "Title" onto a heading level; 0 means body text.
func docxHeadingLevel(style string) int {
	lower := strings.ToLower(style)
	switch lower {
	case "title":
		return 1
	case "subtitle":
		return 2
	}
	for _, prefix := range []string{"heading", "titre", "überschrift"} {
		if rest, ok := strings.CutPrefix(lower, prefix); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil && n >= 1 && n <= 6 {
				return n
			}
		}
	}
	return 0
}

func writeBlock(out *strings.Builder, text string, level int) {
	if text == "" {
		return
	}
	if level > 0 {
		out.WriteString(strings.Repeat("#", level))
		out.WriteByte(' ')
	}
	out.WriteString(text)
	out.WriteByte('\n')
}

func attrValue(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// openZipEntry opens one member of a zip archive. The returned func
// closes the archive.
func openZipEntry(path, name string) (io.ReadCloser, func(), error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open zip: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			zr.Close()
			return nil, nil, fmt.Errorf("open %s: %w", name, err)
		}
		return rc, func() { zr.Close() }, nil
	}
	zr.Close()
	return nil, nil, fmt.Errorf("%s not found in archive", name)
}
