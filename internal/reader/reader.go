// Package reader turns uploaded FDS documents into plain text. Reading never
// fails past this boundary: extraction errors degrade to a raw byte read and
// finally to a placeholder string.
package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hmi-forge/backend/internal/models"
)

// DefaultMaxBytes is the largest document the registry will open.
const DefaultMaxBytes = 100 * 1024 * 1024

const sniffLen = 512

// Reader extracts text from one document format.
type Reader interface {
	Name() string
	Format() models.DocumentFormat
	// CanRead decides from the file name and its first bytes.
	CanRead(path string, head []byte) bool
	Read(ctx context.Context, path string) (string, error)
}

// Registry holds the available readers in detection order.
type Registry struct {
	readers  []Reader
	maxBytes int64
	logger   *slog.Logger
}

// NewRegistry creates a registry with every built-in reader.
func NewRegistry(maxBytes int64, logger *slog.Logger) *Registry {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		readers: []Reader{
			docxReader{},
			odtReader{},
			pdfReader{},
			htmlReader{},
			markdownReader{},
			textReader{},
		},
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Register adds a reader ahead of the built-ins.
func (r *Registry) Register(rd Reader) {
	r.readers = append([]Reader{rd}, r.readers...)
}

// FindReader detects the reader for a file.
func (r *Registry) FindReader(path string, head []byte) (Reader, error) {
	for _, rd := range r.readers {
		if rd.CanRead(path, head) {
			return rd, nil
		}
	}
	return nil, fmt.Errorf("no suitable reader found for file: %s", filepath.Base(path))
}

// Read returns the document at path. The returned document is marked
// Degraded when its text came from a fallback.
func (r *Registry) Read(ctx context.Context, path string) models.Document {
	doc := models.Document{Path: path, Name: filepath.Base(path)}

	info, err := os.Stat(path)
	if err != nil {
		return placeholder(doc, fmt.Sprintf("stat: %v", err))
	}
	if info.Size() > r.maxBytes {
		return placeholder(doc, fmt.Sprintf("document is %d bytes, limit is %d", info.Size(), r.maxBytes))
	}

	head, err := readHead(path)
	if err != nil {
		return placeholder(doc, fmt.Sprintf("open: %v", err))
	}

	rd, err := r.FindReader(path, head)
	if err == nil {
		text, readErr := rd.Read(ctx, path)
		if readErr == nil && strings.TrimSpace(text) != "" {
			doc.Format = rd.Format()
			doc.Text = normalizeNewlines(text)
			r.logger.Debug("document read", "name", doc.Name, "reader", rd.Name(), "chars", len(doc.Text))
			return doc
		}
		if readErr == nil {
			readErr = fmt.Errorf("no text extracted")
		}
		err = fmt.Errorf("%s reader: %w", rd.Name(), readErr)
	}
	if ctx.Err() != nil {
		return placeholder(doc, ctx.Err().Error())
	}

	r.logger.Warn("document extraction failed, falling back to raw read", "name", doc.Name, "error", err)
	raw, rawErr := readRaw(path)
	if rawErr != nil || strings.TrimSpace(raw) == "" {
		return placeholder(doc, err.Error())
	}
	doc.Format = models.FormatRaw
	doc.Text = raw
	doc.Degraded = true
	doc.DegradedReason = err.Error()
	return doc
}

// Placeholder is the text used when nothing could be read from a document.
func Placeholder(name string) string {
	return fmt.Sprintf("[document could not be read: %s]", name)
}

func placeholder(doc models.Document, reason string) models.Document {
	doc.Format = models.FormatRaw
	doc.Text = Placeholder(doc.Name)
	doc.Degraded = true
	doc.DegradedReason = reason
	return doc
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// readRaw keeps printable runes and line structure from arbitrary bytes.
func readRaw(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		switch {
		case r == '\n' || r == '\t':
			sb.WriteRune(r)
		case r == '\r':
		case r == utf8.RuneError:
			sb.WriteByte(' ')
		case unicode.IsPrint(r):
			sb.WriteRune(r)
		default:
			sb.WriteByte(' ')
		}
	}
	return sb.String(), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func hasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func looksLikeText(head []byte) bool {
	return len(head) > 0 && !bytes.ContainsRune(head, 0) && utf8.Valid(trimPartialRune(head))
}

// trimPartialRune drops a rune cut in half by the sniff window.
func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		if utf8.Valid(b) {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}
