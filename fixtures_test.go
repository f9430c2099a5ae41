package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// tagMiddleware appends its name to the request trail and continues.
type tagMiddleware struct {
	name  string
	trail *[]string
}

func (m *tagMiddleware) Process(ctx context.Context, r *http.Request, next RequestHandler) (Response, error) {
	*m.trail = append(*m.trail, m.name)
	return next.Handle(ctx, r)
}

// answerMiddleware answers without calling next.
type answerMiddleware struct {
	status int
	calls  atomic.Int32
}

func (m *answerMiddleware) Process(ctx context.Context, r *http.Request, next RequestHandler) (Response, error) {
	m.calls.Add(1)
	return Text(m.status, "answered"), nil
}

// echoHandler is a terminal handler.
type echoHandler struct {
	body string
}

func (h *echoHandler) Handle(ctx context.Context, r *http.Request) (Response, error) {
	return Text(http.StatusOK, h.body), nil
}

// homeController exposes methods for "Key@method" handlers.
type homeController struct{}

func (c *homeController) Index(ctx context.Context, r *http.Request) (Response, error) {
	return Text(http.StatusOK, "index"), nil
}

func (c *homeController) Forward(r *http.Request, next RequestHandler) (Response, error) {
	return next.Handle(r.Context(), r)
}

func (c *homeController) Broken() string {
	return "not a response"
}

func (c *homeController) Odd(n int) Response {
	return nil
}

// unrelated implements neither contract.
type unrelated struct{}

// mapLookup is a minimal ServiceLookup.
type mapLookup struct {
	services map[string]any
	gets     atomic.Int32
}

func (l *mapLookup) Has(key string) bool {
	_, ok := l.services[key]
	return ok
}

func (l *mapLookup) Get(key string) (any, error) {
	l.gets.Add(1)
	return l.services[key], nil
}

// write renders resp through a recorder.
func write(t *testing.T, resp Response) *httptest.ResponseRecorder {
	t.Helper()
	if resp == nil {
		t.Fatal("Expected a response, got nil")
	}
	rec := httptest.NewRecorder()
	if err := resp.Write(context.Background(), rec); err != nil {
		t.Fatalf("Failed to write response: %v", err)
	}
	return rec
}

func newRequest() *http.Request {
	return httptest.NewRequest(http.MethodGet, "/test", nil)
}

// terminal records whether it was reached.
func terminal(reached *bool) RequestHandler {
	return HandlerFunc(func(ctx context.Context, r *http.Request) (Response, error) {
		*reached = true
		return Text(http.StatusTeapot, "next"), nil
	})
}

// exhausted stands in for the end of a chain.
func exhausted() RequestHandler {
	return HandlerFunc(func(ctx context.Context, r *http.Request) (Response, error) {
		return NotFound(), nil
	})
}

func mustHandle(t *testing.T, h RequestHandler) Response {
	t.Helper()
	resp, err := h.Handle(context.Background(), newRequest())
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	return resp
}
