package app

import (
	"bytes"
	"embed"
	"html/template"

	"coursepage/site/internal/markup"
	"coursepage/site/internal/page"
	"coursepage/site/internal/panels"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(
	template.New("index.html").
		Funcs(template.FuncMap{"bold": markup.HTML}).
		ParseFS(templateFS, "templates/index.html"),
)

const (
	siteTitle   = "Ri's BGF Showcase"
	siteHeading = "Introductory Physics Laboratory"
)

var statLabels = map[string]string{
	panels.Summary:       "Summary",
	panels.Description:   "Description",
	panels.Experiment:    "Experiment",
	panels.Statistics:    "Statistics",
	panels.Code:          "Code",
	panels.Communication: "Communication",
}

type indexStat struct {
	Key   string
	Label string
	Chars int
}

type indexData struct {
	Title   string
	Heading string
	State   page.State
	Summary panels.Panel
	Panels  []panels.Panel
	Stats   []indexStat
}

func renderIndex(state page.State) ([]byte, error) {
	data := indexData{
		Title:   siteTitle,
		Heading: siteHeading,
		State:   state,
	}
	for _, p := range state.Panels {
		if p.Key == panels.Summary {
			data.Summary = p
		} else {
			data.Panels = append(data.Panels, p)
		}
	}
	for _, key := range panels.Order {
		data.Stats = append(data.Stats, indexStat{Key: key, Label: statLabels[key], Chars: state.Stats[key]})
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
