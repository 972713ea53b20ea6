// Package apperr defines the typed errors every engine returns. Each error
// carries an HTTP-like status code and a stable error code; the HTTP layer
// maps anything else to a generic 500.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	StatusCode int    `json:"statusCode"`
	Code       string `json:"errorCode"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code, message string) *Error {
	return &Error{StatusCode: status, Code: code, Message: message}
}

// Wrap attaches a collaborator failure for diagnostics. The underlying
// message is forwarded to the client, never the raw error chain.
func Wrap(status int, code, message string, err error) *Error {
	return &Error{StatusCode: status, Code: code, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func AccessDenied(message string) *Error {
	return New(http.StatusForbidden, "ACCESS_DENIED", message)
}

// NotFound builds a 404 with a resource-specific code, e.g. NODE_NOT_FOUND.
func NotFound(code, message string) *Error {
	return New(http.StatusNotFound, code, message)
}

func InvalidMove(message string) *Error {
	return New(http.StatusBadRequest, "INVALID_MOVE", message)
}

func InvalidNodeType(message string) *Error {
	return New(http.StatusBadRequest, "INVALID_NODE_TYPE", message)
}

func InvalidTarget(message string) *Error {
	return New(http.StatusBadRequest, "INVALID_TARGET", message)
}

func AlreadyDeleted(message string) *Error {
	return New(http.StatusBadRequest, "ALREADY_DELETED", message)
}

func QuotaExceeded(message string) *Error {
	return New(http.StatusForbidden, "QUOTA_EXCEEDED", message)
}

func ChunkMissing(message string) *Error {
	return New(http.StatusUnprocessableEntity, "CHUNK_MISSING", message)
}

func ChunkUploadFailed(err error) *Error {
	return Wrap(http.StatusBadGateway, "CHUNK_UPLOAD_FAILED", "failed to upload chunk to object storage", err)
}

func UploadCompleteFailed(err error) *Error {
	return Wrap(http.StatusInternalServerError, "UPLOAD_COMPLETE_FAILED", fmt.Sprintf("failed to complete upload: %v", err), err)
}

func DownloadFailed(err error) *Error {
	return Wrap(http.StatusBadGateway, "DOWNLOAD_FAILED", "failed to read file from object storage", err)
}

func SignedURLFailed(err error) *Error {
	return Wrap(http.StatusBadGateway, "SIGNED_URL_FAILED", "failed to create signed URL", err)
}

func Database(err error) *Error {
	return Wrap(http.StatusInternalServerError, "DB_OPERATION_FAILED", "database operation failed", err)
}

// From extracts the typed error, or wraps an untyped one as a 500.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", err)
}
