package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"skim/backend/internal/service"
)

type DomainRateLimitHandler struct {
	service service.DomainRateLimitService
}

type domainRateLimitRequest struct {
	Host            string `json:"host"`
	IntervalSeconds int    `json:"intervalSeconds"`
}

type domainRateLimitResponse struct {
	ID              string `json:"id"`
	Host            string `json:"host"`
	IntervalSeconds int    `json:"intervalSeconds"`
}

type domainRateLimitListResponse struct {
	Items []domainRateLimitResponse `json:"items"`
}

func NewDomainRateLimitHandler(svc service.DomainRateLimitService) *DomainRateLimitHandler {
	return &DomainRateLimitHandler{service: svc}
}

func (h *DomainRateLimitHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/domain-rate-limits", h.List)
	g.POST("/domain-rate-limits", h.Create)
	g.PUT("/domain-rate-limits/:host", h.Update)
	g.DELETE("/domain-rate-limits/:host", h.Delete)
}

func (h *DomainRateLimitHandler) List(c echo.Context) error {
	limits, err := h.service.List(c.Request().Context())
	if err != nil {
		return writeServiceError(c, err)
	}
	items := make([]domainRateLimitResponse, len(limits))
	for i, l := range limits {
		items[i] = domainRateLimitResponse{
			ID:              l.ID,
			Host:            l.Host,
			IntervalSeconds: l.IntervalSeconds,
		}
	}
	return c.JSON(http.StatusOK, domainRateLimitListResponse{Items: items})
}

func (h *DomainRateLimitHandler) Create(c echo.Context) error {
	var req domainRateLimitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if req.Host == "" || req.IntervalSeconds < 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	ctx := c.Request().Context()
	if err := h.service.SetInterval(ctx, req.Host, req.IntervalSeconds); err != nil {
		return writeServiceError(c, err)
	}
	return h.respondWithHost(c, req.Host, http.StatusCreated)
}

func (h *DomainRateLimitHandler) Update(c echo.Context) error {
	host := c.Param("host")
	var req domainRateLimitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if req.IntervalSeconds < 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if err := h.service.SetInterval(c.Request().Context(), host, req.IntervalSeconds); err != nil {
		return writeServiceError(c, err)
	}
	return h.respondWithHost(c, host, http.StatusOK)
}

func (h *DomainRateLimitHandler) Delete(c echo.Context) error {
	if err := h.service.DeleteInterval(c.Request().Context(), c.Param("host")); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *DomainRateLimitHandler) respondWithHost(c echo.Context, host string, status int) error {
	limits, err := h.service.List(c.Request().Context())
	if err != nil {
		return writeServiceError(c, err)
	}
	for _, l := range limits {
		if l.Host == host {
			return c.JSON(status, domainRateLimitResponse{
				ID:              l.ID,
				Host:            l.Host,
				IntervalSeconds: l.IntervalSeconds,
			})
		}
	}
	return c.JSON(http.StatusNotFound, errorResponse{Error: "resource not found"})
}
