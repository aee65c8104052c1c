package middleware

import (
	"encoding/json"
	"net/http"
)

// restError is the WordPress REST API error body:
// { "code": "...", "message": "...", "data": { "status": N } }.
// It mirrors api.RESTError without importing the api package.
type restError struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Data    restErrorData `json:"data"`
}

type restErrorData struct {
	Status int `json:"status"`
}

func writeRESTError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(restError{ //nolint:errcheck
		Code:    code,
		Message: msg,
		Data:    restErrorData{Status: status},
	})
}
