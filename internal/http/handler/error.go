package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"certgrouper/internal/archive"
	"certgrouper/internal/http/middleware"
	"certgrouper/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "BAD_ARCHIVE", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError maps BatchService errors onto status codes. Only the name of an
// offending upload is ever echoed back.
func writeServiceError(c *fiber.Ctx, err error) error {
	var bad *archive.BadArchiveError
	var limit *service.LimitError

	switch {
	case errors.As(err, &bad):
		return writeError(c, fiber.StatusUnprocessableEntity, "BAD_ARCHIVE",
			fmt.Sprintf("%s is not a valid ZIP file", bad.Name))
	case errors.As(err, &limit):
		return writeError(c, fiber.StatusBadRequest, "TOO_MANY_ARCHIVES",
			fmt.Sprintf("a maximum of %d archives can be processed at a time", limit.Max))
	case errors.Is(err, service.ErrNoQualifyingDocuments):
		return writeError(c, fiber.StatusUnprocessableEntity, "NO_QUALIFYING_DOCUMENTS", err.Error())
	case errors.Is(err, service.ErrNoArchives):
		return writeError(c, fiber.StatusBadRequest, "FILES_REQUIRED", "at least one ZIP file is required")
	case errors.Is(err, service.ErrStorageDisabled):
		return writeError(c, fiber.StatusServiceUnavailable, "STORAGE_DISABLED", err.Error())
	case errors.Is(err, service.ErrHistoryDisabled):
		return writeError(c, fiber.StatusServiceUnavailable, "HISTORY_DISABLED", err.Error())
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "batch not found")
	case errors.Is(err, service.ErrNotPublished):
		return writeError(c, fiber.StatusNotFound, "NOT_PUBLISHED", err.Error())
	case errors.Is(err, service.ErrIDRequired):
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
	case errors.Is(err, context.DeadlineExceeded):
		return writeError(c, fiber.StatusGatewayTimeout, "REQUEST_TIMEOUT", "batch processing took too long")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "upload exceeds the size limit")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
