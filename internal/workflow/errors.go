package workflow

import (
	"errors"
	"fmt"
	"strings"

	"flatconnect/internal/lifecycle"
	sdk "flatconnect/sdk/go"
)

var (
	ErrNoWorkerSelected    = errors.New("no worker selected")
	ErrPhotosRequired      = lifecycle.ErrPhotosRequired
	ErrBusy                = errors.New("request already in flight")
	ErrNoPhotos            = errors.New("no completion photos available")
	ErrLocationDenied      = errors.New("geolocation access denied")
	ErrLocationUnsupported = errors.New("geolocation not supported")
	ErrPasswordMismatch    = errors.New("passwords do not match")
)

// ValidationError is a client-side precondition failure. No request was made.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error { return sdk.ErrValidation }

// Op names the user action an error came from.
type Op string

const (
	OpAssign   Op = "assign"
	OpStart    Op = "start"
	OpComplete Op = "complete"
	OpSubmit   Op = "submit"
	OpProfile  Op = "profile"
	OpLogin    Op = "login"
	OpSignup   Op = "signup"
	OpGoogle   Op = "google"
	OpLoad     Op = "load"
)

// OpError tags a failure with the action that produced it.
type OpError struct {
	Op  Op
	Err error
}

func (e *OpError) Error() string { return string(e.Op) + ": " + e.Err.Error() }

func (e *OpError) Unwrap() error { return e.Err }

func opErr(op Op, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}

// Message turns any workflow error into the alert text shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, ErrNoWorkerSelected):
		return "Please select a worker"
	case errors.Is(err, ErrPhotosRequired):
		return "Please upload at least one photo before marking as complete."
	case errors.Is(err, ErrNoPhotos):
		return "No completion photos available for this task."
	case errors.Is(err, lifecycle.ErrWorkerRequired):
		return "Please select a worker"
	case errors.Is(err, ErrBusy):
		return "Please wait for the current request to finish."
	case errors.Is(err, ErrPasswordMismatch):
		return "Passwords do not match!"
	}
	var op Op
	var oerr *OpError
	if errors.As(err, &oerr) {
		op = oerr.Op
	}
	if errors.Is(err, sdk.ErrUnauthenticated) && op != OpLogin {
		return "Authentication token is missing. Please log in again."
	}
	switch op {
	case OpAssign:
		switch {
		case errors.Is(err, sdk.ErrForbidden):
			return "You do not have permission to assign tasks."
		case errors.Is(err, sdk.ErrInvalidWorker):
			return "Invalid worker selected. Please try again."
		case errors.Is(err, sdk.ErrNotFound):
			return "Task not found."
		}
		return "Failed to assign task. Please try again."
	case OpStart, OpComplete:
		switch {
		case errors.Is(err, sdk.ErrInvalidTransition), errors.Is(err, lifecycle.ErrInvalidTransition):
			return "Invalid status. Please try again."
		case errors.Is(err, sdk.ErrNotFound):
			return "Task not found."
		case errors.Is(err, sdk.ErrForbidden):
			return "You do not have permission to update this task."
		}
		if op == OpComplete {
			return "Failed to complete task. Please try again."
		}
		return "Failed to update task. Please try again."
	case OpSubmit:
		return "Failed to submit complaint: " + detail(err)
	case OpProfile:
		return "Failed to update profile. Please try again."
	case OpLogin:
		return "Login Failed: " + detail(err)
	case OpSignup:
		return "Error: " + detail(err)
	case OpGoogle:
		return "Failed to initiate Google login. Please try again."
	case OpLoad:
		if errors.Is(err, sdk.ErrNetwork) {
			return "No response from server. Please check your connection."
		}
		return "Failed to load dashboard data. Please try again."
	}
	if errors.Is(err, sdk.ErrNetwork) {
		return "No response from server. Please check your connection."
	}
	return "An unexpected error occurred."
}

func detail(err error) string {
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return apiErr.Body
	}
	if errors.Is(err, sdk.ErrNetwork) {
		return "No response from server. Please check your connection."
	}
	var oerr *OpError
	if errors.As(err, &oerr) {
		return oerr.Err.Error()
	}
	return err.Error()
}
