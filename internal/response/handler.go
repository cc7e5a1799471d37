package response

import (
	"github.com/gofiber/fiber/v2"
)

// StandardResponse is the envelope of every JSON reply.
type StandardResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
	Meta    *Meta        `json:"meta,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Meta describes one page of a paged list.
type Meta struct {
	Page       int   `json:"page,omitempty"`
	Limit      int   `json:"limit,omitempty"`
	Total      int64 `json:"total,omitempty"`
	TotalPages int64 `json:"total_pages,omitempty"`
}

func NewMeta(page, limit int, total int64) *Meta {
	pages := int64(0)
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return &Meta{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

func Success(c *fiber.Ctx, data any, message string) error {
	return SuccessWithMeta(c, data, nil, message)
}

// SuccessWithMeta replies 200; a nil meta is omitted.
func SuccessWithMeta(c *fiber.Ctx, data any, meta *Meta, message string) error {
	return c.JSON(StandardResponse{Success: true, Message: message, Data: data, Meta: meta})
}

func Created(c *fiber.Ctx, data any, message string) error {
	return c.Status(fiber.StatusCreated).JSON(StandardResponse{Success: true, Message: message, Data: data})
}

// Error writes a failure envelope with an explicit status and code. Most
// callers go through FromError instead.
func Error(c *fiber.Ctx, status int, code, message string, details any) error {
	return c.Status(status).JSON(StandardResponse{
		Error: &ErrorDetail{Code: code, Message: message, Details: details},
	})
}
