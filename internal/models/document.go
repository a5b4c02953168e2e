// Package models contains domain types for the HMI screen generator.
package models

import "strings"

// DocumentFormat identifies how a document's text was extracted.
type DocumentFormat string

const (
	FormatText     DocumentFormat = "text"
	FormatMarkdown DocumentFormat = "markdown"
	FormatDocx     DocumentFormat = "docx"
	FormatODT      DocumentFormat = "odt"
	FormatPDF      DocumentFormat = "pdf"
	FormatHTML     DocumentFormat = "html"
	FormatRaw      DocumentFormat = "raw"
)

// SystemTypeIndustrialControl is the system type used when no catalog
// category scores high enough.
const SystemTypeIndustrialControl = "industrial_control"

// Document is the text of an uploaded FDS plus its keyword profile.
type Document struct {
	Path           string         `json:"path"`
	Name           string         `json:"name"`
	Format         DocumentFormat `json:"format"`
	Text           string         `json:"-"`
	Degraded       bool           `json:"degraded"`
	DegradedReason string         `json:"degradedReason,omitempty"`
	Profile        KeywordProfile `json:"profile"`
}

// KeywordProfile is the coarse classification derived from document text.
type KeywordProfile struct {
	SystemType string         `json:"systemType"`
	Components []string       `json:"components"`
	Operations []string       `json:"operations"`
	Controls   []string       `json:"controls"`
	Scores     map[string]int `json:"scores,omitempty"`
}

// Section is a heuristically detected block of document lines.
type Section struct {
	Heading string   `json:"heading"`
	Content []string `json:"content"`
}

// Text joins the section content with newlines.
func (s Section) Text() string {
	return strings.Join(s.Content, "\n")
}
