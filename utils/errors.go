package utils

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorKind classifies a failure by how the pipeline reacts to it.
type ErrorKind string

const (
	KindAuth          ErrorKind = "auth"
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindDependency    ErrorKind = "dependency"
	KindInternal      ErrorKind = "internal"
)

// ErrorResponse is the uniform client-facing error envelope.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// AppError carries a machine-readable code and HTTP status. Err holds the
// underlying cause for server-side logs and is never serialized.
type AppError struct {
	Kind    ErrorKind
	Status  int
	Code    string
	Message string
	Details interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (e *AppError) Unwrap() error { return e.Err }

// Response renders the envelope for this error.
func (e *AppError) Response() ErrorResponse {
	return ErrorResponse{Error: e.Code, Message: e.Message, Details: e.Details}
}

func NewAuthError(status int, code, message string) *AppError {
	return &AppError{Kind: KindAuth, Status: status, Code: code, Message: message}
}

func NewValidationError(details interface{}) *AppError {
	return &AppError{Kind: KindValidation, Status: http.StatusBadRequest, Code: "invalid_body", Details: details}
}

// NewNotConfiguredError reports a dependency with no credentials, e.g. "openai_not_configured".
func NewNotConfiguredError(dependency string) *AppError {
	return &AppError{Kind: KindConfiguration, Status: http.StatusServiceUnavailable, Code: dependency + "_not_configured"}
}

// NewDependencyError surfaces a failed external call. Only the provider's
// message text reaches the client.
func NewDependencyError(code string, err error) *AppError {
	msg := "unknown"
	if err != nil {
		msg = err.Error()
	}
	return &AppError{Kind: KindDependency, Status: http.StatusInternalServerError, Code: code, Message: msg, Err: err}
}

func NewInternalError(code string, err error) *AppError {
	return &AppError{Kind: KindInternal, Status: http.StatusInternalServerError, Code: code, Message: "unknown", Err: err}
}

// RespondWithError sends a standardized error response
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details interface{}) {
	c.JSON(statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
		Details: details,
	})
}

// RespondWithAppError writes e and aborts the handler chain.
func RespondWithAppError(c *gin.Context, e *AppError) {
	c.AbortWithStatusJSON(e.Status, e.Response())
}
