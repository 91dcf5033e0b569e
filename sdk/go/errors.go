package flatconnectsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidWorker     = errors.New("invalid worker")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("not found")
	ErrUpload            = errors.New("upload failed")
	ErrSubmission        = errors.New("submission failed")
	ErrNetwork           = errors.New("network error")
	ErrServer            = errors.New("server error")
	// ErrCreatedNotLoaded means the create call succeeded but the stored issue
	// could not be read back.
	ErrCreatedNotLoaded = errors.New("issue created but not reloaded")
)

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
	Kind       error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	return fmt.Sprintf("api error: status=%d %s", e.StatusCode, msg)
}

func (e *APIError) Unwrap() error { return e.Kind }

func newAPIError(status int, body []byte, kinds statusKinds) *APIError {
	code, msg := parseErrorBody(body)
	return &APIError{
		StatusCode: status,
		Code:       code,
		Message:    msg,
		Body:       string(body),
		Kind:       kindFor(status, kinds),
	}
}

func kindFor(status int, kinds statusKinds) error {
	if k, ok := kinds[status]; ok {
		return k
	}
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthenticated
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusRequestEntityTooLarge, status == http.StatusUnsupportedMediaType:
		return ErrUpload
	case status >= 500:
		return ErrServer
	case status >= 400:
		return ErrValidation
	default:
		return ErrServer
	}
}

// parseErrorBody understands the emulator envelope {"error":{"code","message"}}
// as well as the Django shapes {"error":"..."} and {"detail":"..."}.
func parseErrorBody(body []byte) (string, string) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", strings.TrimSpace(string(body))
	}
	if raw, ok := envelope["error"]; ok {
		var nested struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &nested); err == nil && nested.Message != "" {
			return nested.Code, nested.Message
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return "", s
		}
	}
	if raw, ok := envelope["detail"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return "", s
		}
	}
	return "", ""
}
