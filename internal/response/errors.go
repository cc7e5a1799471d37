package response

import (
	"errors"

	"github.com/Kyz7/vanilla/internal/apperr"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// failure is how one apperr sentinel is rendered.
type failure struct {
	target  error
	status  int
	code    string
	message string
}

// failures is checked in order; an empty message is filled with the resource
// name.
var failures = []failure{
	{apperr.ErrIntegrity, fiber.StatusUnprocessableEntity, "INTEGRITY_ERROR", "Invalid entity"},
	{apperr.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND", ""},
	{apperr.ErrUnauthenticated, fiber.StatusUnauthorized, "UNAUTHORIZED", "Authentication required"},
	{apperr.ErrPermissionDenied, fiber.StatusForbidden, "FORBIDDEN", "Permission denied"},
	{apperr.ErrNotDeleted, fiber.StatusBadRequest, "BAD_REQUEST", "Entity is not deleted"},
}

// classify maps err into a status and an error body. ok is false for
// errors outside the taxonomy, which render as a bare 500.
func classify(err error, resource string) (status int, detail ErrorDetail, ok bool) {
	var (
		verr *apperr.ValidationError
		bad  *apperr.BadRequestError
		ferr *fiber.Error
	)
	switch {
	case errors.As(err, &verr):
		return fiber.StatusUnprocessableEntity, ErrorDetail{Code: "VALIDATION_ERROR", Message: "Validation failed", Details: verr.Fields}, true
	case errors.As(err, &bad):
		return fiber.StatusBadRequest, ErrorDetail{Code: "BAD_REQUEST", Message: bad.Message}, true
	case errors.As(err, &ferr):
		return ferr.Code, ErrorDetail{Code: "HTTP_ERROR", Message: ferr.Message}, true
	}
	for _, f := range failures {
		if !errors.Is(err, f.target) {
			continue
		}
		msg := f.message
		if msg == "" {
			msg = resource + " not found"
		}
		return f.status, ErrorDetail{Code: f.code, Message: msg}, true
	}
	return fiber.StatusInternalServerError, ErrorDetail{Code: "INTERNAL_ERROR", Message: "Internal server error"}, false
}

// FromError writes the response for an error returned by the lifecycle,
// query or policy layers. Unclassified errors are logged and hidden.
func FromError(c *fiber.Ctx, log zerolog.Logger, err error, resource string) error {
	status, detail, ok := classify(err, resource)
	if !ok {
		log.Error().Err(err).Str("path", c.Path()).Str("method", c.Method()).Msg("request failed")
	}
	return Error(c, status, detail.Code, detail.Message, detail.Details)
}

// Fail renders err for middleware that carries no logger.
func Fail(c *fiber.Ctx, err error) error {
	return FromError(c, zerolog.Nop(), err, "Resource")
}

// ErrorHandler is the fiber fallback for errors handlers did not render.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return FromError(c, log, err, "Resource")
	}
}
