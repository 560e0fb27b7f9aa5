package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an API failure.
type Kind int

const (
	// KindNetwork means no response was received.
	KindNetwork Kind = iota
	// KindOffline means the connectivity check failed before dispatch.
	KindOffline
	// KindStatus is a non-2xx response other than 401.
	KindStatus
	// KindAuth is a 401 response. The session has been cleared.
	KindAuth
	// KindDecode means a 2xx body could not be decoded.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindOffline:
		return "offline"
	case KindStatus:
		return "status"
	case KindAuth:
		return "auth"
	case KindDecode:
		return "decode"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// User facing messages.
const (
	MsgUnreachable    = "could not reach the server, check your internet connection"
	MsgOffline        = "offline: no cached data available"
	MsgOfflineAction  = "this action requires an internet connection"
	MsgBadRequest     = "invalid request"
	MsgSessionExpired = "your session has expired, please log in again"
	MsgForbidden      = "you are not allowed to perform this action"
	MsgNotFound       = "the requested resource was not found"
	MsgTimeout        = "the request timed out"
	MsgRateLimited    = "too many requests, please wait"
	MsgServerError    = "server error, please try again later"
	MsgUnavailable    = "the service is temporarily unavailable"
	MsgGeneric        = "something went wrong"
	MsgInvalidBody    = "the server returned an invalid response"
)

// Error is the single error type returned by Client. Message is safe to show
// to a user.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d)", e.Message, e.Status)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) HTTPStatus() int  { return e.Status }
func (e *Error) KindName() string { return e.Kind.String() }

// Retryable reports whether another attempt may succeed: no response at
// all, any 5xx, 408 or 429.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork:
		return true
	case KindStatus:
		return e.Status >= 500 || e.Status == http.StatusRequestTimeout || e.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsOffline reports whether err was caused by a failed connectivity check.
func IsOffline(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == KindOffline
}

// IsAuth reports whether err is a 401.
func IsAuth(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == KindAuth
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, status int) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Status == status
}

// StatusMessage maps an HTTP status to a user facing message. serverMsg is
// the detail or message the server sent, used where the status alone is not
// descriptive.
func StatusMessage(status int, serverMsg string) string {
	switch status {
	case http.StatusBadRequest:
		return orDefault(serverMsg, MsgBadRequest)
	case http.StatusUnauthorized:
		return MsgSessionExpired
	case http.StatusForbidden:
		return MsgForbidden
	case http.StatusNotFound:
		return MsgNotFound
	case http.StatusRequestTimeout:
		return MsgTimeout
	case http.StatusTooManyRequests:
		return MsgRateLimited
	case http.StatusInternalServerError:
		return MsgServerError
	case http.StatusServiceUnavailable:
		return MsgUnavailable
	default:
		return orDefault(serverMsg, MsgGeneric)
	}
}

func statusError(status int, body []byte) *Error {
	kind := KindStatus
	if status == http.StatusUnauthorized {
		kind = KindAuth
	}
	serverMsg := serverMessage(body)

	var cause error
	if serverMsg != "" {
		cause = errors.New(serverMsg)
	}
	return &Error{
		Kind:    kind,
		Status:  status,
		Message: StatusMessage(status, serverMsg),
		Err:     cause,
	}
}

// serverMessage pulls detail, falling back to message then error, out of an
// error body. detail may be a string or a list of validation errors.
func serverMessage(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil && s != "" {
			return s
		}

		var list []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &list); err == nil {
			msgs := make([]string, 0, len(list))
			for _, item := range list {
				if item.Msg != "" {
					msgs = append(msgs, item.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}

	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
