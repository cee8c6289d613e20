package api

import (
	"encoding/json"
	"fmt"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	// ErrCodeRequestFailed marks an error envelope synthesized by the client
	// because the backend's error body could not be parsed.
	ErrCodeRequestFailed = "REQUEST_FAILED"
)

// Envelope is the uniform response shape of both backend services.
type Envelope[T any] struct {
	Status    string  `json:"status"`
	Message   string  `json:"message"`
	ErrorCode *string `json:"error_code"`
	Data      *T      `json:"data"`
}

// Code returns the error code or "" when the backend sent null.
func (e *Envelope[T]) Code() string {
	if e == nil || e.ErrorCode == nil {
		return ""
	}
	return *e.ErrorCode
}

// Error is a non-2xx response. Its fields are the backend's error envelope, or
// a synthesized REQUEST_FAILED envelope when the body was not parseable.
type Error struct {
	HTTPStatus int    `json:"-"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	ErrorCode  string `json:"error_code"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("%s (%s, HTTP %d)", e.Message, e.ErrorCode, e.HTTPStatus)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.HTTPStatus)
}

// Synthesized reports whether the client made this envelope up.
func (e *Error) Synthesized() bool {
	return e != nil && e.ErrorCode == ErrCodeRequestFailed
}

// Envelope renders the error in the wire envelope shape with null data.
func (e *Error) Envelope() Envelope[json.RawMessage] {
	var code *string
	if e.ErrorCode != "" {
		c := e.ErrorCode
		code = &c
	}
	return Envelope[json.RawMessage]{Status: StatusError, Message: e.Message, ErrorCode: code}
}

func requestFailed(status int) *Error {
	return &Error{
		HTTPStatus: status,
		Status:     StatusError,
		Message:    "Request failed",
		ErrorCode:  ErrCodeRequestFailed,
	}
}

// errorFromBody parses a backend error envelope. Anything that is not a JSON
// object becomes the synthesized REQUEST_FAILED envelope.
func errorFromBody(status int, body []byte) *Error {
	var raw struct {
		Status    string  `json:"status"`
		Message   string  `json:"message"`
		ErrorCode *string `json:"error_code"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return requestFailed(status)
	}
	e := &Error{
		HTTPStatus: status,
		Status:     raw.Status,
		Message:    raw.Message,
	}
	if raw.ErrorCode != nil {
		e.ErrorCode = *raw.ErrorCode
	}
	if e.Status == "" {
		e.Status = StatusError
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("request failed with HTTP %d", status)
	}
	return e
}
