package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"yakunote/internal/ai"
	"yakunote/internal/app"
	"yakunote/internal/repository"
	"yakunote/internal/transport/http/response"
)

// writeError maps a service error onto the API error body. Only validation
// messages reach the client verbatim; everything else is logged and replaced.
func writeError(c *gin.Context, log *slog.Logger, op string, err error) {
	var (
		validation *app.ValidationError
		upstream   *ai.UpstreamError
	)

	switch {
	case errors.As(err, &validation):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, validation.Error())
		return
	case errors.Is(err, app.ErrValidation):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	case errors.Is(err, app.ErrUnauthenticated):
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "sign in required")
		return
	case errors.Is(err, app.ErrForbidden):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, "user_id does not match the signed-in user")
		return
	case errors.Is(err, repository.ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "summary not found")
		return
	}

	log.ErrorContext(c.Request.Context(), op+" failed", "error", err)
	switch {
	case errors.Is(err, ai.ErrMissingAPIKey):
		response.Error(c, http.StatusInternalServerError, response.CodeNotConfigured, "OpenAI API key is not configured")
	case errors.As(err, &upstream):
		response.Error(c, http.StatusInternalServerError, response.CodeCompletion, "the language model request failed")
	case errors.Is(err, repository.ErrStorage):
		response.Error(c, http.StatusInternalServerError, response.CodeStorage, "storage request failed")
	case errors.Is(err, app.ErrAuthUnavailable):
		response.Error(c, http.StatusInternalServerError, response.CodeAuthUnavailable, "authentication is not configured")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "internal server error")
	}
}

func loggerOrDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
