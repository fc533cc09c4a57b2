package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"skim/backend/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

type backoffResponse struct {
	Error   string `json:"error"`
	RetryAt string `json:"retryAt"`
}

func writeServiceError(c echo.Context, err error) error {
	var backoffErr *service.BackoffError
	if errors.As(err, &backoffErr) {
		c.Response().Header().Set("Retry-After", backoffErr.RetryAfter.UTC().Format(http.TimeFormat))
		return c.JSON(http.StatusTooManyRequests, backoffResponse{
			Error:   "feed is in backoff",
			RetryAt: backoffErr.RetryAfter.UTC().Format(time.RFC3339),
		})
	}

	switch {
	case errors.Is(err, service.ErrInvalid):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "resource not found"})
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, errorResponse{Error: "conflict"})
	case errors.Is(err, service.ErrFeedFetch):
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "feed fetch failed"})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
