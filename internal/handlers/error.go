package handlers

import (
	"errors"

	"github.com/ggorockee/shopfinder/internal/logger"
	"github.com/gofiber/fiber/v2"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrorHandler renders every error as {"error": msg}. Errors that are not
// a *fiber.Error become a 500 and are logged; their text is not exposed.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		logger.GetLogger("http").Errorw("unhandled error",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
	}

	return c.Status(code).JSON(ErrorResponse{
		Error: message,
	})
}
