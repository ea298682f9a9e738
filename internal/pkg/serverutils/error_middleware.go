package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"ai-citation-be/pkg/citation"
	"ai-citation-be/pkg/llm"
)

// ErrorHandlerMiddleware maps domain errors onto HTTP statuses so controllers
// can just return them.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var validationErr *ValidationError
		var malformed *llm.MalformedResponseError

		switch {
		case errors.As(err, &validationErr):
			return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse("Invalid request", err))
		case errors.Is(err, citation.ErrNoRelevantSources):
			return ctx.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse("No relevant sources", err))
		case errors.Is(err, citation.ErrBuildInProgress):
			return ctx.Status(fiber.StatusConflict).JSON(ErrorResponse("Topic is being indexed, retry shortly", err))
		case errors.As(err, &malformed):
			return ctx.Status(fiber.StatusBadGateway).JSON(ErrorResponse("Citation model returned malformed output", err))
		case errors.Is(err, llm.ErrCitationFailed):
			return ctx.Status(fiber.StatusBadGateway).JSON(ErrorResponse("Citation generation failed", err))
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Message, nil))
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse("Internal server error", err))
	}
}
