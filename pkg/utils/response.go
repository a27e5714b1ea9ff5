package utils

import "github.com/gofiber/fiber/v2"

func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// ErrorWithDetails is used where a failure must carry structured context the
// caller needs to act on, such as the object-store keys that failed to delete.
func ErrorWithDetails(c *fiber.Ctx, status int, message string, details interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
		"details": details,
	})
}
