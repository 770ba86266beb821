package api

import "github.com/gofiber/fiber/v2"

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, not_found, unauthorized, bad_gateway, rate_limited, internal_error
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

func errUnauthorized(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusUnauthorized, "unauthorized", msg)
}

func errBadGateway(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadGateway, "bad_gateway", msg)
}

func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}
