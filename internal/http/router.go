package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"skim/backend/internal/handler"
)

func NewRouter(
	accountHandler *handler.AccountHandler,
	feedHandler *handler.FeedHandler,
	entryHandler *handler.EntryHandler,
	filterHandler *handler.FilterHandler,
	domainRateLimitHandler *handler.DomainRateLimitHandler,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	api := e.Group("/api")
	accountHandler.RegisterRoutes(api)
	feedHandler.RegisterRoutes(api)
	entryHandler.RegisterRoutes(api)
	filterHandler.RegisterRoutes(api)
	domainRateLimitHandler.RegisterRoutes(api)

	return e
}
