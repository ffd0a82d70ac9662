package acl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/clients"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// ErrorResponse is an error body from the backend. PostgREST sends
// code/message/details/hint; GoTrue sends error_code/msg, or the older
// error/error_description pair. Code is a string for PostgREST and the HTTP
// status number for GoTrue, so it is kept raw.
type ErrorResponse struct {
	Code    json.RawMessage `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Details string          `json:"details,omitempty"`
	Hint    string          `json:"hint,omitempty"`

	ErrorCode        string `json:"error_code,omitempty"`
	Msg              string `json:"msg,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// GetCode returns the most specific code in the body.
func (e *ErrorResponse) GetCode() string {
	if e.ErrorCode != "" {
		return e.ErrorCode
	}

	var code string
	if len(e.Code) > 0 && json.Unmarshal(e.Code, &code) == nil && code != "" {
		return code
	}

	return e.Error
}

// GetMessage returns the most readable message in the body.
func (e *ErrorResponse) GetMessage() string {
	for _, m := range []string{e.Message, e.Msg, e.ErrorDescription, e.Error} {
		if m != "" {
			return m
		}
	}

	return ""
}

// Backend error codes with a domain meaning.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeNoRows              = "PGRST116"

	CodeInvalidGrant       = "invalid_grant"
	CodeInvalidCredentials = "invalid_credentials"
	CodeOTPExpired         = "otp_expired"
	CodeUserExists         = "user_already_exists"
	CodeEmailExists        = "email_exists"
	CodeWeakPassword       = "weak_password"
)

// Target names what a request was operating on, for error context.
type Target struct {
	Operation string
	Entity    string
	ID        string
}

// ParseErrorResponse decodes an error body. It returns nil when the body is
// empty or carries nothing useful.
func ParseErrorResponse(body io.Reader) *ErrorResponse {
	if body == nil {
		return nil
	}

	var resp ErrorResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil
	}

	if resp.GetCode() == "" && resp.GetMessage() == "" {
		return nil
	}

	return &resp
}

// MapHTTPError maps a failed exchange to a domain error. clientErr is the
// transport error, if any; otherwise resp must be a non-2xx response, whose
// body is consumed.
func MapHTTPError(resp *http.Response, clientErr error, service string, t Target) error {
	if clientErr != nil {
		return mapClientError(clientErr, service, t.Operation)
	}

	if resp == nil {
		return domain.NewUnavailableError(service, "no response received")
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	var errResp *ErrorResponse
	if resp.Body != nil {
		errResp = ParseErrorResponse(resp.Body)
	}

	if errResp != nil {
		if err := MapBackendCode(errResp.GetCode(), errResp.GetMessage(), t); err != nil {
			return err
		}
	}

	return mapStatusCode(resp.StatusCode, errResp, service, t)
}

func mapClientError(err error, service, operation string) error {
	switch {
	case errors.Is(err, clients.ErrCircuitOpen):
		return domain.NewUnavailableError(service, "circuit breaker open during "+operation)
	case errors.Is(err, clients.ErrMaxRetriesExceeded):
		return domain.NewUnavailableError(service, fmt.Sprintf("%s failed after retries: %v", operation, errors.Unwrap(err)))
	default:
		return domain.NewUnavailableError(service, fmt.Sprintf("%s failed: %v", operation, err))
	}
}

// MapBackendCode maps a code from an error body. It returns nil for codes
// without a specific meaning so the status decides.
func MapBackendCode(code, message string, t Target) error {
	switch code {
	case CodeUniqueViolation:
		return domain.NewConflictErrorWithDetails(t.Entity, "already exists", message)
	case CodeForeignKeyViolation:
		return domain.NewNotFoundError(referencedEntity(message, t.Entity), t.ID)
	case CodeNoRows:
		return domain.NewNotFoundError(t.Entity, t.ID)
	case CodeInvalidGrant, CodeInvalidCredentials, CodeOTPExpired:
		return domain.NewForbiddenError(t.Operation, nonEmpty(message, "invalid credentials"))
	case CodeUserExists, CodeEmailExists:
		return domain.NewConflictError("account", nonEmpty(message, "email already registered"))
	case CodeWeakPassword:
		return domain.NewValidationError("password", nonEmpty(message, "password is too weak"))
	default:
		return nil
	}
}

// referencedEntity picks the missing parent out of a foreign key message
// such as `violates foreign key constraint "favorites_quote_id_fkey"`.
func referencedEntity(message, fallback string) string {
	switch {
	case strings.Contains(message, "quote_id"):
		return "quote"
	case strings.Contains(message, "collection_id"):
		return "collection"
	case strings.Contains(message, "user_id"):
		return "user"
	default:
		return fallback
	}
}

func mapStatusCode(status int, errResp *ErrorResponse, service string, t Target) error {
	message := defaultMessageForStatus(status, t.Operation)
	if errResp != nil && errResp.GetMessage() != "" {
		message = errResp.GetMessage()
	}

	switch status {
	case http.StatusNotFound, http.StatusNotAcceptable:
		return domain.NewNotFoundError(t.Entity, t.ID)
	case http.StatusConflict:
		return domain.NewConflictError(t.Entity, message)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.NewValidationError("", message)
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.NewForbiddenError(t.Operation, message)
	case http.StatusTooManyRequests:
		return domain.NewUnavailableError(service, "rate limit exceeded")
	default:
		if status >= http.StatusInternalServerError {
			return domain.NewUnavailableError(service, message)
		}

		return domain.NewValidationError("", message)
	}
}

func defaultMessageForStatus(status int, operation string) string {
	switch status {
	case http.StatusNotFound:
		return "resource not found"
	case http.StatusConflict:
		return "resource conflict"
	case http.StatusBadRequest:
		return "invalid request"
	case http.StatusUnauthorized:
		return "authentication required"
	case http.StatusForbidden:
		return "access denied"
	case http.StatusTooManyRequests:
		return "rate limit exceeded"
	case http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	default:
		return fmt.Sprintf("%s failed with status %d", operation, status)
	}
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}

	return s
}
