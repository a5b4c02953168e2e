package reader

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hmi-forge/backend/internal/models"
)

type odtReader struct{}

func (odtReader) Name() string                  { return "odt" }
func (odtReader) Format() models.DocumentFormat { return models.FormatODT }

func (odtReader) CanRead(path string, head []byte) bool {
	if hasExt(path, ".odt") {
		return true
	}
	return bytes.HasPrefix(head, zipMagic) &&
		bytes.Contains(head, []byte("application/vnd.oasis.opendocument.text"))
}

// Read walks content.xml; text:h elements become markdown headings at
// their outline level.
func (odtReader) Read(ctx context.Context, path string) (string, error) {
	rc, closeZip, err := openZipEntry(path, "content.xml")
	if err != nil {
		return "", err
	}
	defer closeZip()
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var out strings.Builder
	var block strings.Builder
	depth := 0
	level := 0

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode content.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "h":
				depth++
				block.Reset()
				level = 1
				if n, err := strconv.Atoi(attrValue(t, "outline-level")); err == nil && n > 0 {
					level = n
				}
			case "p":
				if depth == 0 {
					block.Reset()
					level = 0
				}
				depth++
			case "tab":
				if depth > 0 {
					block.WriteByte('\t')
				}
			case "s":
				if depth > 0 {
					block.WriteByte(' ')
				}
			case "line-break":
				if depth > 0 {
					block.WriteByte('\n')
				}
			}
		case xml.CharData:
			if depth > 0 {
				block.Write(t)
			}
		case xml.EndElement:
			if (t.Name.Local == "h" || t.Name.Local == "p") && depth > 0 {
				depth--
				if depth == 0 {
					writeBlock(&out, strings.TrimSpace(block.String()), level)
				}
			}
		}
	}
	return out.String(), nil
}
