package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"coursepage/site/internal/auth"
	"coursepage/site/internal/export"
	"coursepage/site/internal/observability"
	"coursepage/site/internal/page"
	"coursepage/site/internal/panels"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     zerolog.Logger
	keepAlive  time.Duration
	metrics    http.Handler
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		logger:     service.logger,
		keepAlive:  15 * time.Second,
		metrics:    promhttp.Handler(),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/" {
		s.handleIndex(w, r)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{}
		for name, err := range s.service.Checks(ctx) {
			if err != nil {
				status = "not_ready"
				statusCode = http.StatusServiceUnavailable
				checks[name] = map[string]any{
					"status": "error",
					"error":  err.Error(),
				}
				continue
			}
			checks[name] = map[string]any{"status": "ok"}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
			"pages":  s.service.PageCount(),
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" {
		s.metrics.ServeHTTP(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/format" {
		var body struct {
			Text string `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"segments": s.service.Format(body.Text),
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/comments/search" {
		query := r.URL.Query()
		limit, _ := strconv.Atoi(query.Get("limit"))
		offset, _ := strconv.Atoi(query.Get("offset"))
		response, err := s.service.SearchComments(r.Context(), query.Get("q"), limit, offset)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/pages" {
		p, err := s.service.MountPage()
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p.State())
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "pages" {
		s.handlePage(w, r, parts[2], parts[3:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.MountPage()
	if err != nil {
		writeMappedError(w, err)
		return
	}
	body, err := renderIndex(p.State())
	if err != nil {
		s.logger.Error().Err(err).Str("page", p.ID()).Msg("render index")
		_ = s.service.UnmountPage(p.ID())
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
}

func (s *HTTPServer) handlePage(w http.ResponseWriter, r *http.Request, pageID string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			p, err := s.service.Page(pageID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, p.State())
		case http.MethodDelete:
			if err := s.service.UnmountPage(pageID); err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "events" {
		s.handleEvents(w, r, pageID)
		return
	}

	if r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "export" {
		result, err := s.service.Export(r.Context(), pageID, r.URL.Query().Get("format"))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
		return
	}

	p, err := s.service.Page(pageID)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	if r.Method == http.MethodPut && len(rest) == 2 && rest[0] == "panels" {
		var body struct {
			Body string `json:"body"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := p.EditPanel(rest[1], body.Body); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p.State())
		return
	}

	if r.Method == http.MethodPost && len(rest) == 2 && rest[0] == "summary" && rest[1] == "toggle" {
		editing, err := p.ToggleSummary()
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"editing": editing,
			"summary": p.State().Summary,
		})
		return
	}

	if r.Method == http.MethodPut && len(rest) == 1 && rest[0] == "draft" {
		var body struct {
			Text string `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := p.SetDraft(body.Text); err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"draft":     body.Text,
			"canSubmit": p.State().CanSubmit,
		})
		return
	}

	if r.Method == http.MethodPost && len(rest) == 1 && rest[0] == "comments" {
		var body struct {
			Text *string `json:"text"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.Text != nil {
			if err := p.SetDraft(*body.Text); err != nil {
				writeMappedError(w, err)
				return
			}
		}
		posted, err := p.Submit(r.Context())
		if errors.Is(err, page.ErrClosed) {
			writeMappedError(w, err)
			return
		}
		if err != nil {
			// The draft is kept and the visitor sees no error.
			s.logger.Warn().Err(err).Str("page", pageID).Msg("comment submit failed")
		}
		writeJSON(w, http.StatusOK, map[string]any{"posted": posted})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

// handleEvents streams the page state as server-sent events: one "state"
// event on connect and after every change, then "closed" once the page is
// unmounted.
func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request, pageID string) {
	p, release, err := s.service.OpenStream(pageID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	defer release()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming not supported", nil)
		return
	}
	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	changes, stop := p.Watch()
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sendState := func() error {
		state := p.State()
		payload, err := json.Marshal(state)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", state.Version, payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	observability.StreamOpened()
	defer observability.StreamClosed()

	if err := sendState(); err != nil {
		return
	}

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-changes:
			if !ok {
				_, _ = fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			if err := sendState(); err != nil {
				s.logger.Debug().Err(err).Str("page", pageID).Msg("event stream write failed")
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		duration := time.Since(started)
		observability.RecordHTTPRequest(r.Method, routeLabel(r.URL.Path), writer.status, duration)
		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Int64("duration_ms", duration.Milliseconds()).
			Msg("request")
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// routeLabel collapses page ids so metric labels stay bounded.
func routeLabel(path string) string {
	parts := splitPath(path)
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "pages" {
		parts[2] = ":id"
		if len(parts) == 5 && parts[3] == "panels" {
			parts[4] = ":key"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, page.ErrClosed):
		return http.StatusNotFound, "PAGE_NOT_FOUND", "Page not found", nil
	case errors.Is(err, panels.ErrUnknownPanel):
		return http.StatusNotFound, "PANEL_NOT_FOUND", "Panel not found", map[string]any{"panels": panels.Order}
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Unsupported export format", map[string]any{"formats": []export.Format{export.FormatHTML, export.FormatPDF}}
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "PDF_UNAVAILABLE", "PDF export is not available on this server", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
