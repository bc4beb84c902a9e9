package app

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind tags an error with its place in the failure taxonomy so the HTTP
// boundary can map it to a status code without string matching.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindAuthentication
	KindValidation
	KindNotFound
	KindGateway
	KindWebhookVerification
	KindExtraction
)

// Error is the tagged error type used for all expected failures. Unexpected
// faults stay plain errors and map to 500.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func authErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindAuthentication, Msg: fmt.Sprintf(format, args...)}
}

func validationErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func notFoundErrorf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func gatewayError(msg string, err error) *Error {
	return &Error{Kind: KindGateway, Msg: msg, Err: err}
}

func webhookError(msg string, err error) *Error {
	return &Error{Kind: KindWebhookVerification, Msg: msg, Err: err}
}

func extractionError(msg string, err error) *Error {
	return &Error{Kind: KindExtraction, Msg: msg, Err: err}
}

// KindOf returns the taxonomy tag for err, or KindUnknown for untagged
// errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps an error kind to the response status. The mapping is
// exhaustive over the tag set; anything untagged is a server fault.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindValidation, KindWebhookVerification:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindExtraction:
		return http.StatusUnprocessableEntity
	case KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
