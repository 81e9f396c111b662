package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"marketplace/internal/apperror"
)

// ErrorHandler renders every error as {"message": ...}. It is installed as
// the Fiber app's ErrorHandler, so handlers and middleware simply return errors.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		message := fiberErr.Message
		switch fiberErr.Code {
		case fiber.StatusNotFound:
			message = "Not found - " + c.OriginalURL()
		case fiber.StatusMethodNotAllowed:
			message = "Method " + c.Method() + " not allowed"
		}
		return c.Status(fiberErr.Code).JSON(fiber.Map{"message": message})
	}

	kind := apperror.KindOf(err)
	entry := log.WithError(err).WithFields(log.Fields{
		"method": c.Method(),
		"path":   c.Path(),
		"kind":   kind.String(),
	})
	if kind == apperror.Internal {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	return c.Status(kind.HTTPStatus()).JSON(fiber.Map{"message": apperror.PublicMessage(err)})
}

// parseBody decodes the request body into out.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperror.Wrap(err, apperror.InvalidInput, "Invalid request body")
	}
	return nil
}
