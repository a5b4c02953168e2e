package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/hmi-forge/backend/internal/models"
)

type pdfReader struct{}

func (pdfReader) Name() string                  { return "pdf" }
func (pdfReader) Format() models.DocumentFormat { return models.FormatPDF }

func (pdfReader) CanRead(path string, head []byte) bool {
	return hasExt(path, ".pdf") || bytes.HasPrefix(head, []byte("%PDF-"))
}

// Read extracts the text operators of every page content stream. Line
// structure is kept so headings survive segmentation.
func (pdfReader) Read(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pdfCtx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return "", fmt.Errorf("pdfcpu read: %w", err)
	}

	var out strings.Builder
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
		if err != nil || r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil || len(data) == 0 {
			continue
		}
		if page := textFromContentStream(data); page != "" {
			out.WriteString(page)
			out.WriteByte('\n')
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("no text content found in PDF")
	}
	return out.String(), nil
}

// textFromContentStream interprets the Tj, TJ, ' and " show operators of
// a page content stream. Line moves (Td, TD, T*, Tm, ET) end the current
// output line.
func textFromContentStream(data []byte) string {
	var lines []string
	var cur strings.Builder
	var operands []string

	flush := func() {
		if s := strings.Join(strings.Fields(cur.String()), " "); s != "" {
			lines = append(lines, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case isPDFSpace(c) || c == '[' || c == ']':
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			raw, n := readPDFLiteral(data[i:])
			operands = append(operands, decodePDFString(raw))
			i += n
		case c == '<' && i+1 < len(data) && data[i+1] == '<', c == '>' && i+1 < len(data) && data[i+1] == '>':
			i += 2
		case c == '<':
			end := bytes.IndexByte(data[i:], '>')
			if end < 0 {
				i = len(data)
				break
			}
			operands = append(operands, decodePDFHex(data[i+1:i+end]))
			i += end + 1
		default:
			start := i
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelimiter(data[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			switch string(data[start:i]) {
			case "Tj", "TJ":
				cur.WriteString(strings.Join(operands, ""))
			case "'", "\"":
				flush()
				cur.WriteString(strings.Join(operands, ""))
			case "Td", "TD", "T*", "Tm", "ET":
				flush()
			default:
				if !isPDFOperator(data[start:i]) {
					continue
				}
			}
			operands = operands[:0]
		}
	}
	flush()
	return strings.Join(lines, "\n")
}

// readPDFLiteral returns the bytes inside a balanced (...) string and the
// number of bytes consumed, parentheses included.
func readPDFLiteral(data []byte) ([]byte, int) {
	depth := 0
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return data[1:i], i + 1
			}
		}
	}
	return data[1:], len(data)
}

func decodePDFHex(hex []byte) string {
	var digits []byte
	for _, c := range hex {
		if !isPDFSpace(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		hi, ok1 := hexNibble(digits[i])
		lo, ok2 := hexNibble(digits[i+1])
		if !ok1 || !ok2 {
			return ""
		}
		out = append(out, hi<<4|lo)
	}
	return string(out)
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func isPDFSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isPDFDelimiter(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

// isPDFOperator reports whether a bare token is an operator rather than a
// number or boolean operand.
func isPDFOperator(tok []byte) bool {
	if len(tok) == 0 {
		return false
	}
	c := tok[0]
	if c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9') {
		return false
	}
	return string(tok) != "true" && string(tok) != "false" && string(tok) != "null"
}

// decodePDFString resolves backslash escapes including octal codes.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch c := raw[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(c)
		default:
			if c < '0' || c > '7' {
				sb.WriteByte(c)
				continue
			}
			val := int(c - '0')
			for j := 0; j < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; j++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}
