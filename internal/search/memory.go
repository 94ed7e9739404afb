package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"coursepage/site/internal/comments"
)

// RecordSource lists a collection in store order.
type RecordSource interface {
	Records(path string) []comments.Record
}

// MemorySearcher scans a collection for comments containing every query
// term, case-insensitively. Used when comments live in process.
type MemorySearcher struct {
	source RecordSource
}

func NewMemorySearcher(source RecordSource) *MemorySearcher {
	return &MemorySearcher{source: source}
}

func (m *MemorySearcher) Healthy() bool {
	return m.source != nil
}

func (m *MemorySearcher) Search(_ context.Context, q Query) ([]Result, int, error) {
	terms := strings.Fields(strings.ToLower(q.Text))
	if len(terms) == 0 || m.source == nil {
		return nil, 0, nil
	}

	var matches []comments.Record
	for _, record := range m.source.Records(q.Path) {
		text := strings.ToLower(record.Text)
		all := true
		for _, term := range terms {
			if !strings.Contains(text, term) {
				all = false
				break
			}
		}
		if all {
			matches = append(matches, record)
		}
	}

	newest := func(r comments.Record) time.Time {
		if r.CreatedAt == nil {
			return time.Now()
		}
		return *r.CreatedAt
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return newest(matches[i]).After(newest(matches[j]))
	})

	total := len(matches)
	start := min(q.offset(), total)
	end := min(start+q.limit(), total)

	results := make([]Result, 0, end-start)
	for _, record := range matches[start:end] {
		results = append(results, Result{
			ID:         record.ID,
			AuthorName: record.AuthorName,
			Snippet:    record.Text,
			CreatedAt:  record.CreatedAt,
		})
	}
	return results, total, nil
}
