package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"coursepage/site/internal/page"
	"coursepage/site/internal/panels"
)

func testState() page.State {
	board := panels.NewBoard()
	_ = board.Edit(panels.Summary, "Intro with **bold** and <script>x</script>")
	return page.State{
		ID:      "page_abc",
		Session: page.Session{Identity: "anon_1", Ready: true},
		Panels:  board.Panels(),
		Stats:   board.Stats(),
		Comments: []page.Comment{
			{ID: "c1", AuthorName: "anon_2", Text: "Love <the> labs", Timestamp: page.PendingLabel},
		},
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Ri's BGF Showcase page_abc", "Ris-BGF-Showcase-page_abc"},
		{"", "course-page"},
		{"!!!", "course-page"},
		{strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := sanitizeFilename(tt.input); result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"normal-text.txt", "normal-text.txt"},
		{"é", "%C3%A9"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := percentEncodeForDataURL(tt.input); result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatHTML {
		t.Errorf("expected html default, got %q %v", f, err)
	}
	if f, err := ParseFormat(" PDF "); err != nil || f != FormatPDF {
		t.Errorf("expected pdf, got %q %v", f, err)
	}
	if _, err := ParseFormat("docx"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExportHTML(t *testing.T) {
	svc := NewService(zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	result, err := svc.Export(context.Background(), testState(), FormatHTML)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	html := string(result.Data)

	if result.Filename != "Ris-BGF-Showcase-page_abc.html" || !strings.HasPrefix(result.MimeType, "text/html") {
		t.Errorf("unexpected result metadata %q %q", result.Filename, result.MimeType)
	}
	for _, want := range []string{
		"Summary of Ri&#39;s Project",
		"<strong>bold</strong>",
		"&lt;script&gt;x&lt;/script&gt;",
		"Scientific Communication",
		"Learning Goals:",
		"Love &lt;the&gt; labs",
		"Just now",
		"Exported Jun 1, 2025 12:00 UTC by anon_1",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if strings.Contains(html, "<script>") {
		t.Error("user text rendered unescaped")
	}
}

func TestExportPDFUsesPrinter(t *testing.T) {
	svc := NewService(zerolog.Nop())
	var printed string
	svc.printPDF = func(_ context.Context, html string) ([]byte, error) {
		printed = html
		return []byte("%PDF-1.7"), nil
	}

	result, err := svc.Export(context.Background(), testState(), FormatPDF)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.MimeType != "application/pdf" || string(result.Data) != "%PDF-1.7" {
		t.Fatalf("unexpected result %+v", result)
	}
	if !strings.Contains(printed, "Course Description") {
		t.Error("printer did not receive the rendered page")
	}
}

func TestExportPDFMissingChrome(t *testing.T) {
	svc := NewService(zerolog.Nop())
	svc.printPDF = func(context.Context, string) ([]byte, error) {
		return nil, ErrPDFDependencyMissing
	}
	if _, err := svc.Export(context.Background(), testState(), FormatPDF); !errors.Is(err, ErrPDFDependencyMissing) {
		t.Fatalf("expected ErrPDFDependencyMissing, got %v", err)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	if _, err := NewService(zerolog.Nop()).Export(context.Background(), testState(), Format("docx")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
