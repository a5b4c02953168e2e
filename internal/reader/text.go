package reader

import (
	"context"
	"os"

	"github.com/hmi-forge/backend/internal/models"
)

type textReader struct{}

func (textReader) Name() string                  { return "text" }
func (textReader) Format() models.DocumentFormat { return models.FormatText }

func (textReader) CanRead(path string, head []byte) bool {
	return hasExt(path, ".txt", ".text", ".log") || looksLikeText(head)
}

func (textReader) Read(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type markdownReader struct{}

func (markdownReader) Name() string                  { return "markdown" }
func (markdownReader) Format() models.DocumentFormat { return models.FormatMarkdown }

func (markdownReader) CanRead(path string, _ []byte) bool {
	return hasExt(path, ".md", ".markdown")
}

func (markdownReader) Read(ctx context.Context, path string) (string, error) {
	return textReader{}.Read(ctx, path)
}
