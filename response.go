package relay

import (
	"context"
	"encoding/json"
	"net/http"
)

// Response knows how to write itself to http.ResponseWriter
type Response interface {
	Write(ctx context.Context, w http.ResponseWriter) error
}

// StatusCoder is implemented by responses that can report their HTTP
// status before being written.
type StatusCoder interface {
	Status() int
}

// StatusOf returns the status a response will be written with, or
// http.StatusOK when the response does not report one.
func StatusOf(resp Response) int {
	if sc, ok := resp.(StatusCoder); ok {
		return sc.Status()
	}
	return http.StatusOK
}

// --- Response implementations ---

type JSONResponse struct {
	StatusCode int
	Data       any
}

func (r JSONResponse) Write(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(r.StatusCode)
	return json.NewEncoder(w).Encode(r.Data)
}

func (r JSONResponse) Status() int { return r.StatusCode }

func JSON(statusCode int, data any) Response {
	return JSONResponse{StatusCode: statusCode, Data: data}
}

func Error(data any) Response {
	return JSONResponse{StatusCode: http.StatusInternalServerError, Data: data}
}

// EmptyResponse writes a status line with no body.
type EmptyResponse struct {
	StatusCode int
}

func (r EmptyResponse) Write(ctx context.Context, w http.ResponseWriter) error {
	w.WriteHeader(r.StatusCode)
	return nil
}

func (r EmptyResponse) Status() int { return r.StatusCode }

// NotFound is the response a Dispatcher returns once its chain is exhausted.
func NotFound() Response {
	return EmptyResponse{StatusCode: http.StatusNotFound}
}

type TextResponse struct {
	StatusCode int
	Body       string
}

func (r TextResponse) Write(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(r.StatusCode)
	_, err := w.Write([]byte(r.Body))
	return err
}

func (r TextResponse) Status() int { return r.StatusCode }

func Text(statusCode int, body string) Response {
	return TextResponse{StatusCode: statusCode, Body: body}
}

// headerResponse sets headers on the writer before the wrapped response
// writes its status line.
type headerResponse struct {
	Response
	header http.Header
}

func (r headerResponse) Write(ctx context.Context, w http.ResponseWriter) error {
	for k, values := range r.header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	return r.Response.Write(ctx, w)
}

func (r headerResponse) Status() int { return StatusOf(r.Response) }

// Header reports the headers that will be added when the response is written.
func (r headerResponse) Header() http.Header { return r.header }

// WithHeader decorates resp so that key is set to value when it is written.
// Decorating an already decorated response extends the same header set.
func WithHeader(resp Response, key, value string) Response {
	if hr, ok := resp.(headerResponse); ok {
		h := hr.header.Clone()
		h.Set(key, value)
		return headerResponse{Response: hr.Response, header: h}
	}
	h := make(http.Header)
	h.Set(key, value)
	return headerResponse{Response: resp, header: h}
}
