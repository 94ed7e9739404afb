// Package markup renders the one inline style the course summary supports:
// text wrapped in double asterisks is emphasized. Everything else is
// literal, including line breaks and unpaired markers.
package markup

import (
	"html/template"
	"regexp"
	"strings"
)

var boldRun = regexp.MustCompile(`\*\*.*?\*\*`)

const marker = "**"

type Segment struct {
	Text       string `json:"text"`
	Emphasized bool   `json:"emphasized"`
}

// Segments splits text into plain and emphasized runs in source order.
// A run never spans a line break. Empty plain pieces are omitted.
func Segments(text string) []Segment {
	segments := make([]Segment, 0, 1)
	last := 0
	for _, loc := range boldRun.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			segments = append(segments, Segment{Text: text[last:loc[0]]})
		}
		run := text[loc[0]:loc[1]]
		segments = append(segments, Segment{
			Text:       run[len(marker) : len(run)-len(marker)],
			Emphasized: true,
		})
		last = loc[1]
	}
	if last < len(text) {
		segments = append(segments, Segment{Text: text[last:]})
	}
	return segments
}

// Plain joins segment text, dropping emphasis.
func Plain(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// HTML renders text with emphasized runs as <strong>. All text is escaped.
func HTML(text string) template.HTML {
	var b strings.Builder
	for _, s := range Segments(text) {
		if s.Emphasized {
			b.WriteString("<strong>")
			b.WriteString(template.HTMLEscapeString(s.Text))
			b.WriteString("</strong>")
			continue
		}
		b.WriteString(template.HTMLEscapeString(s.Text))
	}
	return template.HTML(b.String())
}
