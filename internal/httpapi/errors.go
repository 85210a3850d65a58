package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/spigell/insight/internal/errors"
)

const (
	msgServerError = "something went wrong, please try again later"
	msgUpstream    = "an upstream service is unavailable, please try again later"
)

func statusOf(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	switch apperrors.TypeOf(err) {
	case apperrors.ErrTypeNotFound:
		return fiber.StatusNotFound
	case apperrors.ErrTypeInvalidInput:
		return fiber.StatusBadRequest
	case apperrors.ErrTypeUnauthorized:
		return fiber.StatusUnauthorized
	case apperrors.ErrTypeConflict:
		return fiber.StatusConflict
	case apperrors.ErrTypeUnavailable:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := statusOf(err)

	var fiberErr *fiber.Error
	message := apperrors.MessageOf(err)
	if errors.As(err, &fiberErr) {
		message = fiberErr.Message
	}

	switch {
	case status == fiber.StatusBadGateway:
		s.logger.Warn("upstream failure", zap.String("path", c.Path()), zap.Error(err))
		message = msgUpstream
	case status >= fiber.StatusInternalServerError:
		fields := []zap.Field{zap.String("path", c.Path()), zap.Error(err)}
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) && len(domainErr.Stack) > 0 {
			fields = append(fields, zap.ByteString("stack", domainErr.Stack))
		}
		s.logger.Error("request failed", fields...)
		message = msgServerError
	case message == "":
		message = err.Error()
	}

	return c.Status(status).JSON(fiber.Map{"error": message})
}
