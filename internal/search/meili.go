package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog"
)

const idxComments = "coursepage_comments"

// Meili implements Searcher over a single comments index.
type Meili struct {
	client  meili.ServiceManager
	logger  zerolog.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the index. The
// returned value is usable while Meilisearch is down; Healthy reports it.
func NewMeili(url, apiKey string, logger zerolog.Logger) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		logger: logger.With().Str("component", "search").Logger(),
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		m.logger.Warn().Err(err).Str("url", url).Msg("meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxComments,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug().Err(err).Msg("create comments index (may already exist)")
	}

	index := m.client.Index(idxComments)
	filterable := []interface{}{"collectionPath", "authorId"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn().Err(err).Msg("update filterable attributes")
	}
	searchable := []string{"text", "authorName"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn().Err(err).Msg("update searchable attributes")
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info().Msg("meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(_ context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	request := &meili.SearchRequest{
		IndexUID:              idxComments,
		Query:                 q.Text,
		Limit:                 int64(q.limit()),
		Offset:                int64(q.offset()),
		AttributesToHighlight: []string{"text"},
		HighlightPreTag:       highlightPre,
		HighlightPostTag:      highlightPost,
	}
	if q.Path != "" {
		request.Filter = []string{fmt.Sprintf("collectionPath = %q", q.Path)}
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{request},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

func hitToResult(hit meili.Hit) Result {
	r := Result{
		ID:         decodeString(hit, "id"),
		AuthorName: decodeString(hit, "authorName"),
		Snippet:    firstNonBlank(decodeFormattedString(hit, "text"), decodeString(hit, "text")),
	}
	if raw, ok := hit["createdAt"]; ok {
		var unix int64
		if err := json.Unmarshal(raw, &unix); err == nil && unix > 0 {
			at := time.Unix(unix, 0).UTC()
			r.CreatedAt = &at
		}
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]any
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	value, _ := formatted[key].(string)
	return strings.TrimSpace(value)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexComment adds or updates a comment in the index.
func (m *Meili) IndexComment(record CommentRecord) error {
	_, err := m.client.Index(idxComments).AddDocuments([]CommentRecord{record}, nil)
	return err
}

// IndexComments bulk-indexes comments.
func (m *Meili) IndexComments(records []CommentRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxComments).AddDocuments(records, nil)
	return err
}
