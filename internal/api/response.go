package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// maxBodySize caps request bodies read by readJSON.
const maxBodySize = 1 << 20

// Pagination defaults for collection endpoints.
const (
	defaultPerPage = 10
	maxPerPage     = 100
)

// RESTError is the WordPress REST API error body:
// { "code": "...", "message": "...", "data": { "status": N } }.
type RESTError struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Data    RESTErrorData `json:"data"`
}

// RESTErrorData carries the HTTP status of a RESTError.
type RESTErrorData struct {
	Status int `json:"status"`
}

// writeJSON writes data as a JSON response with the given status code.
// Collections and objects are written bare, the way the REST API does.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode json response", "error", err)
	}
}

// writeError writes a REST API error response.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(RESTError{
		Code:    code,
		Message: msg,
		Data:    RESTErrorData{Status: status},
	})
	if err != nil {
		slog.Error("failed to encode json error response", "error", err)
	}
}

// readJSON decodes a single JSON object from the request body into dst.
// Unknown fields are rejected. Returns an error message for the client, or
// "" on success.
func readJSON(r *http.Request, dst any) string {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return "request body must not be empty"
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return "malformed json"
		case errors.As(err, &typeErr):
			return fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return "unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field ")
		default:
			return "invalid request body"
		}
	}

	if dec.More() {
		return "request body must contain a single json object"
	}
	return ""
}

// pagination holds the parsed page and per_page query parameters.
type pagination struct {
	Page    int
	PerPage int
}

// Offset returns the number of items to skip.
func (p pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// parsePagination reads page (1-based) and per_page (1..100) from the query
// string. Returns an error message for the client, or "" on success.
func parsePagination(r *http.Request) (pagination, string) {
	p := pagination{Page: 1, PerPage: defaultPerPage}
	q := r.URL.Query()

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, "page must be a positive integer"
		}
		p.Page = n
	}

	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPerPage {
			return p, fmt.Sprintf("per_page must be between 1 (inclusive) and %d (inclusive)", maxPerPage)
		}
		p.PerPage = n
	}

	return p, ""
}

// totalPages returns the number of pages needed for total items.
func totalPages(total int64, perPage int) int64 {
	if total == 0 {
		return 0
	}
	return (total + int64(perPage) - 1) / int64(perPage)
}
