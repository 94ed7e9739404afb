package export

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"coursepage/site/internal/page"
	"coursepage/site/internal/panels"
)

const (
	documentTitle   = "Ri's BGF Showcase"
	documentHeading = "Introductory Physics Laboratory"
)

// Service renders page snapshots.
type Service struct {
	logger     zerolog.Logger
	pdfTimeout time.Duration
	printPDF   func(ctx context.Context, html string) ([]byte, error)
	now        func() time.Time
}

func NewService(logger zerolog.Logger) *Service {
	return &Service{
		logger:     logger.With().Str("component", "export").Logger(),
		pdfTimeout: 30 * time.Second,
		printPDF:   printPDF,
		now:        time.Now,
	}
}

// Export renders state in the requested format. Edits and comments are
// exported as the page currently shows them.
func (s *Service) Export(ctx context.Context, state page.State, format Format) (*Result, error) {
	html, err := RenderPageHTML(s.templateData(state))
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	filename := sanitizeFilename(documentTitle + " " + state.ID)
	switch format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: filename + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		ctx, cancel := context.WithTimeout(ctx, s.pdfTimeout)
		defer cancel()
		data, err := s.printPDF(ctx, html)
		if err != nil {
			s.logger.Warn().Err(err).Str("page", state.ID).Msg("pdf export failed")
			return nil, err
		}
		return &Result{
			Data:     data,
			Filename: filename + ".pdf",
			MimeType: "application/pdf",
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func (s *Service) templateData(state page.State) TemplateData {
	data := TemplateData{
		Title:       documentTitle,
		Heading:     documentHeading,
		Identity:    state.Session.Identity,
		GeneratedAt: s.now(),
	}
	for _, p := range state.Panels {
		tp := TemplatePanel{Title: p.Title, Body: p.Body, SubGoals: p.SubGoals}
		if p.Key == panels.Summary {
			data.Summary = tp
		} else {
			data.Panels = append(data.Panels, tp)
		}
		if chars, ok := state.Stats[p.Key]; ok {
			data.Stats = append(data.Stats, TemplateStat{Title: p.Title, Chars: chars})
		}
	}
	for _, c := range state.Comments {
		data.Comments = append(data.Comments, TemplateComment{
			AuthorName: c.AuthorName,
			Text:       c.Text,
			Timestamp:  c.Timestamp,
		})
	}
	return data
}
