package client

import (
	"errors"
	"fmt"
	"net/http"

	appErrors "github.com/noah-isme/campus-admin-console/pkg/errors"
)

// ErrUnrecognizedEnvelope is returned when a list response matches none of the schema's keys.
var ErrUnrecognizedEnvelope = errors.New("unrecognized list envelope")

// NetworkError is a transport failure: the request never produced an HTTP response.
type NetworkError struct {
	Op     string
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Op, e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Message is the backend's message field when the body
// carried one, otherwise the raw status line.
type HTTPError struct {
	Op         string
	Status     int
	StatusLine string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == e.StatusLine {
		return fmt.Sprintf("%s: %s", e.Op, e.StatusLine)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.StatusLine, e.Message)
}

// UserMessage renders err for a toast.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Message
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return "Unable to reach the server. Check your connection and try again."
	}
	if errors.Is(err, ErrUnrecognizedEnvelope) {
		return "The server returned an unexpected response."
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// AsAppError maps client errors onto the console's typed errors.
func AsAppError(err error) *appErrors.Error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		var base *appErrors.Error
		switch httpErr.Status {
		case http.StatusNotFound:
			base = appErrors.ErrNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			base = appErrors.ErrUnauthorized
		case http.StatusConflict:
			base = appErrors.ErrConflict
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			base = appErrors.ErrValidation
		default:
			base = appErrors.ErrUpstream
		}
		return appErrors.Wrap(err, base.Code, base.Status, httpErr.Message)
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, UserMessage(err))
	}
	if errors.Is(err, ErrUnrecognizedEnvelope) {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, UserMessage(err))
	}
	return appErrors.FromError(err)
}
