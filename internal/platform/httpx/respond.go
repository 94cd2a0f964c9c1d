// Package httpx provides HTTP response utilities and the JSON error envelope.
package httpx

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorEnvelope is the body written for every failed request.
type ErrorEnvelope struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	Details     string       `json:"details,omitempty"`
	Status      int          `json:"status"`
	Timestamp   string       `json:"timestamp"`
	Path        string       `json:"path"`
	ErrorCode   string       `json:"errorCode,omitempty"`
	FieldErrors []FieldError `json:"fieldErrors,omitempty"`
}

// FieldError describes a single rejected payload field.
type FieldError struct {
	Field         string `json:"field"`
	RejectedValue any    `json:"rejectedValue,omitempty"`
	Message       string `json:"message"`
	Code          string `json:"code"`
}

// Now is the clock used for envelope timestamps.
var Now = func() time.Time { return time.Now().UTC() }

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Text sends a plain text response.
func Text(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// Error writes an envelope with the given status and message.
func Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	WriteEnvelope(w, r, ErrorEnvelope{Status: status, Message: message})
}

// WriteEnvelope fills the request dependent fields and writes env.
func WriteEnvelope(w http.ResponseWriter, r *http.Request, env ErrorEnvelope) {
	env.Success = false
	if env.Timestamp == "" {
		env.Timestamp = Now().Format(time.RFC3339)
	}
	if env.Path == "" && r != nil {
		env.Path = r.URL.Path
	}
	JSON(w, env.Status, env)
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}
