package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coursepage/site/internal/page"
)

func serve(t *testing.T, server *HTTPServer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
}

func createPage(t *testing.T, env *testEnv, server *HTTPServer) page.State {
	t.Helper()
	rr := serve(t, server, http.MethodPost, "/api/pages", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var state page.State
	decodeJSON(t, rr, &state)
	p, err := env.service.Page(state.ID)
	if err != nil {
		t.Fatalf("page lookup: %v", err)
	}
	waitFor(t, "session ready", func() bool { return p.Session().Ready })
	return state
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	server := NewHTTPServer(env.service, "*")

	rr := serve(t, server, http.MethodGet, "/api/health", "")
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	var response map[string]any
	decodeJSON(t, rr, &response)
	if ok, exists := response["ok"]; !exists || ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestReadyEndpoint_Success(t *testing.T) {
	env := newTestEnv(t, nil)
	server := NewHTTPServer(env.service, "*")

	rr := serve(t, server, http.MethodGet, "/api/ready", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var response struct {
		OK     bool                      `json:"ok"`
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	decodeJSON(t, rr, &response)
	if !response.OK || response.Status != "ready" {
		t.Errorf("expected ready, got %+v", response)
	}
	for _, name := range []string{"comments", "identity"} {
		if response.Checks[name]["status"] != "ok" {
			t.Errorf("expected %s check ok, got %v", name, response.Checks[name])
		}
	}
}

func TestReadyEndpoint_StoreDown(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.pingFn = func(context.Context) error { return errors.New("connection refused") }
	server := NewHTTPServer(env.service, "*")

	rr := serve(t, server, http.MethodGet, "/api/ready", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	var response struct {
		OK     bool                      `json:"ok"`
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	decodeJSON(t, rr, &response)
	if response.OK || response.Status != "not_ready" {
		t.Errorf("expected not_ready, got %+v", response)
	}
	if response.Checks["comments"]["error"] != "connection refused" {
		t.Errorf("expected store error in checks, got %v", response.Checks["comments"])
	}
}

func TestOptionsPreflight(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := serve(t, NewHTTPServer(env.service, "https://course.example"), http.MethodOptions, "/api/pages/x/draft", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://course.example" {
		t.Errorf("unexpected allow origin %q", got)
	}
}

func TestIndexMountsPage(t *testing.T) {
	env := newTestEnv(t, nil)
	server := NewHTTPServer(env.service, "*")

	rr := serve(t, server, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("unexpected content type %q", ct)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"Ri&#39;s BGF Showcase",
		"Summary of Ri&#39;s Project",
		"Scientific Communication",
		"Learning Goals:",
		"Comments &amp; Feedback",
		"Input Stats",
		"new EventSource",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
	if env.service.PageCount() != 1 {
		t.Fatalf("expected one mounted page, got %d", env.service.PageCount())
	}

	serve(t, server, http.MethodGet, "/", "")
	if env.service.PageCount() != 2 {
		t.Fatalf("expected a fresh page per load, got %d", env.service.PageCount())
	}
}

func TestFormatEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := serve(t, NewHTTPServer(env.service, "*"), http.MethodPost, "/api/format", `{"text":"a **b** c"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var response struct {
		Segments []struct {
			Text       string `json:"text"`
			Emphasized bool   `json:"emphasized"`
		} `json:"segments"`
	}
	decodeJSON(t, rr, &response)
	if len(response.Segments) != 3 || response.Segments[1].Text != "b" || !response.Segments[1].Emphasized {
		t.Fatalf("unexpected segments %+v", response.Segments)
	}
}

func TestFormatEndpointRejectsBadJSON(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := serve(t, NewHTTPServer(env.service, "*"), http.MethodPost, "/api/format", `{"text":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestSubmitCommentFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	server := NewHTTPServer(env.service, "*")
	state := createPage(t, env, server)
	base := "/api/pages/" + state.ID

	rr := serve(t, server, http.MethodPut, base+"/draft", `{"text":"   "}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("draft: expected 200, got %d", rr.Code)
	}
	rr = serve(t, server, http.MethodPost, base+"/comments", "")
	var submit struct {
		Posted bool `json:"posted"`
	}
	decodeJSON(t, rr, &submit)
	if rr.Code != http.StatusOK || submit.Posted {
		t.Fatalf("whitespace submit should be a no-op, got %d %+v", rr.Code, submit)
	}

	rr = serve(t, server, http.MethodPost, base+"/comments", `{"text":"  Great labs  "}`)
	decodeJSON(t, rr, &submit)
	if !submit.Posted {
		t.Fatalf("expected comment posted, got %s", rr.Body.String())
	}

	p, _ := env.service.Page(state.ID)
	waitFor(t, "comment in feed", func() bool { return len(p.State().Comments) == 1 })
	got := p.State()
	if got.Comments[0].Text != "Great labs" || got.Comments[0].AuthorID != got.Session.Identity {
		t.Fatalf("unexpected comment %+v for session %+v", got.Comments[0], got.Session)
	}
	if got.Draft != "" {
		t.Fatalf("expected draft cleared, got %q", got.Draft)
	}

	other := createPage(t, env, server)
	op, _ := env.service.Page(other.ID)
	waitFor(t, "comment visible on another page", func() bool { return len(op.State().Comments) == 1 })

	rr = serve(t, server, http.MethodGet, "/api/comments/search?q=labs", "")
	var results struct {
		Results []map[string]any `json:"results"`
		Total   int              `json:"total"`
	}
	decodeJSON(t, rr, &results)
	if results.Total != 1 || len(results.Results) != 1 {
		t.Fatalf("expected one search hit, got %s", rr.Body.String())
	}
}

func TestPanelEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	server := NewHTTPServer(env.service, "*")
	state := createPage(t, env, server)
	base := "/api/pages/" + state.ID

	rr := serve(t, server, http.MethodPut, base+"/panels/summary", `{"body":"Now **bold**"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("edit: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var edited page.State
	decodeJSON(t, rr, &edited)
	if edited.Summary.Source != "Now **bold**" || edited.Stats["summary"] != len("Now **bold**") {
		t.Fatalf("unexpected summary after edit %+v", edited.Summary)
	}

	rr = serve(t, server, http.MethodPut, base+"/panels/nope", `{"body":"x"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown panel: expected 404, got %d", rr.Code)
	}
	var errBody map[string]any
	decodeJSON(t, rr, &errBody)
	if errBody["code"] != "PANEL_NOT_FOUND" {
		t.Errorf("unexpected error body %v", errBody)
	}

	rr = serve(t, server, http.MethodPost, base+"/summary/toggle", "")
	var toggled struct {
		Editing bool `json:"editing"`
	}
	decodeJSON(t, rr, &toggled)
	if !toggled.Editing {
		t.Fatal("expected editing after first toggle")
	}
	rr = serve(t, server, http.MethodPost, base+"/summary/toggle", "")
	decodeJSON(t, rr, &toggled)
	if toggled.Editing {
		t.Fatal("expected formatted view after second toggle")
	}
}

func TestUnknownPageAndUnmount(t *testing.T) {
	env := newTestEnv(t, nil)
	server := NewHTTPServer(env.service, "*")

	rr := serve(t, server, http.MethodGet, "/api/pages/page_missing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	state := createPage(t, env, server)
	rr = serve(t, server, http.MethodDelete, "/api/pages/"+state.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rr.Code)
	}
	rr = serve(t, server, http.MethodPut, "/api/pages/"+state.ID+"/draft", `{"text":"late"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after unmount, got %d", rr.Code)
	}
}

func TestExportEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	server := NewHTTPServer(env.service, "*")
	state := createPage(t, env, server)

	rr := serve(t, server, http.MethodGet, "/api/pages/"+state.ID+"/export?format=html", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html") {
		t.Errorf("unexpected content type %q", rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), ".html") {
		t.Errorf("unexpected disposition %q", rr.Header().Get("Content-Disposition"))
	}

	rr = serve(t, server, http.MethodGet, "/api/pages/"+state.ID+"/export?format=docx", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := serve(t, NewHTTPServer(env.service, "*"), http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t, nil)
	server := NewHTTPServer(env.service, "*")
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	state := createPage(t, env, server)
	resp, err := http.Get(ts.URL + "/api/pages/" + state.ID + "/events")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := make(chan string, 16)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			events <- scanner.Text()
		}
	}()

	next := func(prefix string) string {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-events:
				if !ok {
					t.Fatalf("stream ended waiting for %q", prefix)
				}
				if strings.HasPrefix(line, prefix) {
					return line
				}
			case <-timeout:
				t.Fatalf("timed out waiting for %q", prefix)
			}
		}
	}

	next("event: state")
	next("data: ")

	serve(t, server, http.MethodPut, "/api/pages/"+state.ID+"/draft", `{"text":"streamed"}`)
	for {
		line := next("data: ")
		var streamed page.State
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &streamed); err != nil {
			t.Fatalf("bad event payload: %v", err)
		}
		if streamed.Draft == "streamed" {
			break
		}
	}

	serve(t, server, http.MethodDelete, "/api/pages/"+state.ID, "")
	next("event: closed")
}

func TestRouteLabel(t *testing.T) {
	tests := map[string]string{
		"/":                                "/",
		"/api/health":                      "/api/health",
		"/api/pages/page_1":                "/api/pages/:id",
		"/api/pages/page_1/events":         "/api/pages/:id/events",
		"/api/pages/page_1/panels/summary": "/api/pages/:id/panels/:key",
		"/api/pages/page_1/summary/toggle": "/api/pages/:id/summary/toggle",
	}
	for path, want := range tests {
		if got := routeLabel(path); got != want {
			t.Errorf("routeLabel(%q) = %q, want %q", path, got, want)
		}
	}
}
