package util

import (
	"encoding/json"
	"errors"
	"net/http"
)

type APIError struct {
	Code      string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, msg, reqID string) {
	WriteJSON(w, status, APIError{Code: code, Message: msg, RequestID: reqID})
}

// StatusError is an error that knows the HTTP status it should surface as.
type StatusError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *StatusError) Unwrap() error { return e.Err }

func (e *StatusError) StatusCode() int { return e.Status }

func NewStatusError(status int, code, msg string) *StatusError {
	return &StatusError{Status: status, Code: code, Message: msg}
}

type statusCoder interface {
	StatusCode() int
}

// StatusOf returns the status carried by err, or 500 when err carries none
// or an out-of-range one.
func StatusOf(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		if s := sc.StatusCode(); s >= 400 && s <= 599 {
			return s
		}
	}
	return http.StatusInternalServerError
}

// ErrorBody builds the client-facing error for err. Server errors never
// expose the underlying message.
func ErrorBody(err error, reqID string) (int, APIError) {
	status := StatusOf(err)
	body := APIError{Code: "internal_error", Message: "internal server error", RequestID: reqID}
	if status >= 500 {
		return status, body
	}
	var se *StatusError
	if errors.As(err, &se) {
		body.Code = se.Code
		body.Message = se.Message
		return status, body
	}
	body.Code = http.StatusText(status)
	body.Message = err.Error()
	return status, body
}
