package middleware

import (
	"github.com/ahmetcoskunkizilkaya/marketplace-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// AdminRequired rejects callers that Identity did not mark as admin.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IsAdmin(c) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Admin access required",
			})
		}
		return c.Next()
	}
}
