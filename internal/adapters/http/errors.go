package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/mapnav/navclient/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, not_found, unavailable, ...
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// errUnauthorized returns a 401 error.
func errUnauthorized(c *fiber.Ctx, msg string) error {
	return newError(c, 401, "unauthorized", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, 409, "conflict", msg)
}

// errFromDomain maps a workflow error onto a response.
func errFromDomain(c *fiber.Ctx, err error) error {
	msg := err.Error()
	switch domain.Classify(err) {
	case domain.KindInput:
		switch {
		case errors.Is(err, domain.ErrDuplicateName):
			return errConflict(c, msg)
		case errors.Is(err, domain.ErrInvalidTransition):
			return newError(c, 409, "invalid_transition", msg)
		case errors.Is(err, domain.ErrNoResults):
			return newError(c, 404, "no_results", msg)
		case errors.Is(err, domain.ErrMissingEndpoint):
			return newError(c, 422, "missing_endpoint", msg)
		}
		return errBadRequest(c, msg)
	case domain.KindAuth:
		return errUnauthorized(c, msg)
	case domain.KindNotFound:
		return errNotFound(c, msg)
	case domain.KindStale:
		return newError(c, 409, "superseded", msg)
	case domain.KindMalformed:
		return newError(c, 502, "bad_gateway", msg)
	case domain.KindTransient:
		return newError(c, 503, "unavailable", msg)
	}
	LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
	return errInternal(c, msg)
}
