package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"coursepage/site/internal/markup"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"bold": markup.HTML,
		"formatDate": func(t time.Time, layout string) string {
			return t.UTC().Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/page.html")
	if err != nil {
		pageTemplate = template.Must(template.New("page").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}
	pageTemplate = template.Must(template.New("page").Funcs(funcMap).Parse(string(templateContent)))
}

type TemplatePanel struct {
	Title    string
	Body     string
	SubGoals []string
}

type TemplateComment struct {
	AuthorName string
	Text       string
	Timestamp  string
}

type TemplateStat struct {
	Title string
	Chars int
}

// TemplateData holds data for page template rendering
type TemplateData struct {
	Title       string
	Heading     string
	Identity    string
	GeneratedAt time.Time
	Summary     TemplatePanel
	Panels      []TemplatePanel
	Comments    []TemplateComment
	Stats       []TemplateStat
}

func RenderPageHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
</head>
<body>
  <h1>{{.Title}}</h1>
  <h2>{{.Summary.Title}}</h2>
  <div style="white-space: pre-wrap">{{bold .Summary.Body}}</div>
  <h2>{{.Heading}}</h2>
  {{range .Panels}}<h3>{{.Title}}</h3><div style="white-space: pre-wrap">{{.Body}}</div>{{end}}
  {{if .Comments}}<h2>Comments</h2>{{range .Comments}}<p><b>{{.AuthorName}}</b> {{.Timestamp}}<br>{{.Text}}</p>{{end}}{{end}}
</body>
</html>`
