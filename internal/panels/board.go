// Package panels holds the editable text blocks of the course page. Edits
// live only as long as the Board that received them.
package panels

import (
	"errors"
	"sync"
	"unicode/utf8"

	"coursepage/site/internal/markup"
)

const (
	Summary       = "summary"
	Description   = "description"
	Experiment    = "experiment"
	Statistics    = "statistics"
	Code          = "code"
	Communication = "communication"
)

var ErrUnknownPanel = errors.New("unknown panel")

// Order is the display order of the panels.
var Order = []string{Summary, Description, Experiment, Statistics, Code, Communication}

// Categories are the panels rendered with learning goals.
var Categories = []string{Experiment, Statistics, Code, Communication}

var titles = map[string]string{
	Summary:       "Summary of Ri's Project",
	Description:   "Course Description",
	Experiment:    "Experiment",
	Statistics:    "Statistics",
	Code:          "Code",
	Communication: "Scientific Communication",
}

var defaults = map[string]string{
	Summary:       SummaryBody,
	Description:   DescriptionBody,
	Experiment:    ExperimentBody,
	Statistics:    StatisticsBody,
	Code:          CodeBody,
	Communication: CommunicationBody,
}

type Panel struct {
	Key      string   `json:"key"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	SubGoals []string `json:"subGoals,omitempty"`
}

// SummaryView is what the summary panel currently shows: the raw source
// while editing, otherwise the formatted segments.
type SummaryView struct {
	Editing  bool             `json:"editing"`
	Source   string           `json:"source"`
	Segments []markup.Segment `json:"segments,omitempty"`
}

// Board is the set of six panels for one page.
type Board struct {
	mu             sync.RWMutex
	bodies         map[string]string
	editingSummary bool
}

func NewBoard() *Board {
	bodies := make(map[string]string, len(defaults))
	for key, body := range defaults {
		bodies[key] = body
	}
	return &Board{bodies: bodies}
}

// Edit replaces a panel body. Any text is accepted.
func (b *Board) Edit(key, body string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.bodies[key]; !ok {
		return ErrUnknownPanel
	}
	b.bodies[key] = body
	return nil
}

func (b *Board) Get(key string) (Panel, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	body, ok := b.bodies[key]
	if !ok {
		return Panel{}, ErrUnknownPanel
	}
	return panel(key, body), nil
}

// Panels returns every panel in display order.
func (b *Board) Panels() []Panel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Panel, 0, len(Order))
	for _, key := range Order {
		out = append(out, panel(key, b.bodies[key]))
	}
	return out
}

// ToggleSummary flips the summary between editing and formatted view and
// reports whether it is now in editing mode.
func (b *Board) ToggleSummary() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.editingSummary = !b.editingSummary
	return b.editingSummary
}

func (b *Board) SummaryView() SummaryView {
	b.mu.RLock()
	defer b.mu.RUnlock()
	view := SummaryView{Editing: b.editingSummary, Source: b.bodies[Summary]}
	if !view.Editing {
		view.Segments = markup.Segments(view.Source)
	}
	return view
}

// Stats counts the characters of each panel body.
func (b *Board) Stats() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	stats := make(map[string]int, len(b.bodies))
	for key, body := range b.bodies {
		stats[key] = utf8.RuneCountInString(body)
	}
	return stats
}

func panel(key, body string) Panel {
	p := Panel{Key: key, Title: titles[key], Body: body}
	if goals := learningGoals[key]; len(goals) > 0 {
		p.SubGoals = append([]string(nil), goals...)
	}
	return p
}
