// Package export renders a page snapshot as a standalone HTML document or
// a PDF printed by headless Chrome.
package export

import (
	"errors"
	"strings"
)

type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// ParseFormat defaults to HTML.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrPDFDependencyMissing indicates no Chrome or Chromium binary was found.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
