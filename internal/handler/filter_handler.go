package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"skim/backend/internal/model"
	"skim/backend/internal/service"
)

type FilterHandler struct {
	filters  service.FilterService
	backfill service.BackfillService
}

type filterRuleRequest struct {
	Type       string  `json:"type"`
	Pattern    string  `json:"pattern"`
	Inverse    bool    `json:"inverse"`
	FeedID     *string `json:"feedId,omitempty"`
	CategoryID *string `json:"categoryId,omitempty"`
}

type filterActionRequest struct {
	Type  string `json:"type"`
	Param string `json:"param"`
}

type createFilterRequest struct {
	UserID       string                `json:"userId"`
	Title        string                `json:"title"`
	Enabled      *bool                 `json:"enabled,omitempty"`
	MatchAnyRule bool                  `json:"matchAnyRule"`
	Inverse      bool                  `json:"inverse"`
	OrderID      int                   `json:"orderId"`
	Rules        []filterRuleRequest   `json:"rules"`
	Actions      []filterActionRequest `json:"actions"`
}

type filterRuleResponse struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Pattern    string  `json:"pattern"`
	Inverse    bool    `json:"inverse"`
	FeedID     *string `json:"feedId,omitempty"`
	CategoryID *string `json:"categoryId,omitempty"`
}

type filterActionResponse struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Param string `json:"param,omitempty"`
}

type filterResponse struct {
	ID            string                 `json:"id"`
	UserID        string                 `json:"userId"`
	Title         string                 `json:"title"`
	Enabled       bool                   `json:"enabled"`
	MatchAnyRule  bool                   `json:"matchAnyRule"`
	Inverse       bool                   `json:"inverse"`
	OrderID       int                    `json:"orderId"`
	LastTriggered *string                `json:"lastTriggered,omitempty"`
	Rules         []filterRuleResponse   `json:"rules"`
	Actions       []filterActionResponse `json:"actions"`
	CreatedAt     string                 `json:"createdAt"`
	UpdatedAt     string                 `json:"updatedAt"`
}

type backfillResponse struct {
	Affected int `json:"affected"`
}

func NewFilterHandler(filters service.FilterService, backfill service.BackfillService) *FilterHandler {
	return &FilterHandler{filters: filters, backfill: backfill}
}

func (h *FilterHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/filters", h.Create)
	g.GET("/filters", h.List)
	g.GET("/filters/:id", h.Get)
	g.DELETE("/filters/:id", h.Delete)
	g.POST("/filters/:id/backfill", h.Backfill)
	g.POST("/users/:id/filters/backfill", h.BackfillUser)
}

// Create stores a filter with its rules and actions.
func (h *FilterHandler) Create(c echo.Context) error {
	var req createFilterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	userID, err := parseID(req.UserID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}

	filter := model.Filter{
		UserID:       userID,
		Title:        req.Title,
		Enabled:      true,
		MatchAnyRule: req.MatchAnyRule,
		Inverse:      req.Inverse,
		OrderID:      req.OrderID,
	}
	if req.Enabled != nil {
		filter.Enabled = *req.Enabled
	}
	for _, rule := range req.Rules {
		feedID, err := parseIDPtr(rule.FeedID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		}
		categoryID, err := parseIDPtr(rule.CategoryID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
		}
		filter.Rules = append(filter.Rules, model.FilterRule{
			Type:       model.FilterRuleType(rule.Type),
			Pattern:    rule.Pattern,
			Inverse:    rule.Inverse,
			FeedID:     feedID,
			CategoryID: categoryID,
		})
	}
	for i, action := range req.Actions {
		filter.Actions = append(filter.Actions, model.FilterAction{
			Type:    model.FilterActionType(action.Type),
			Param:   action.Param,
			OrderID: i,
		})
	}

	created, err := h.filters.Create(c.Request().Context(), filter)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toFilterResponse(created))
}

// List returns the filters of the user named by the userId query parameter.
func (h *FilterHandler) List(c echo.Context) error {
	userID, err := parseID(c.QueryParam("userId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	filters, err := h.filters.List(c.Request().Context(), userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	response := make([]filterResponse, 0, len(filters))
	for _, filter := range filters {
		response = append(response, toFilterResponse(filter))
	}
	return c.JSON(http.StatusOK, response)
}

func (h *FilterHandler) Get(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	filter, err := h.filters.Get(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toFilterResponse(filter))
}

func (h *FilterHandler) Delete(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if err := h.filters.Delete(c.Request().Context(), id); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Backfill applies one filter to the owner's existing entries.
func (h *FilterHandler) Backfill(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	affected, err := h.backfill.BackfillFilter(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, backfillResponse{Affected: affected})
}

// BackfillUser applies all of a user's enabled filters to existing entries.
func (h *FilterHandler) BackfillUser(c echo.Context) error {
	userID, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	affected, err := h.backfill.BackfillUser(c.Request().Context(), userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, backfillResponse{Affected: affected})
}

func toFilterResponse(filter model.Filter) filterResponse {
	rules := make([]filterRuleResponse, 0, len(filter.Rules))
	for _, rule := range filter.Rules {
		rules = append(rules, filterRuleResponse{
			ID:         idToString(rule.ID),
			Type:       string(rule.Type),
			Pattern:    rule.Pattern,
			Inverse:    rule.Inverse,
			FeedID:     idPtrToString(rule.FeedID),
			CategoryID: idPtrToString(rule.CategoryID),
		})
	}
	actions := make([]filterActionResponse, 0, len(filter.Actions))
	for _, action := range filter.Actions {
		actions = append(actions, filterActionResponse{
			ID:    idToString(action.ID),
			Type:  string(action.Type),
			Param: action.Param,
		})
	}
	return filterResponse{
		ID:            idToString(filter.ID),
		UserID:        idToString(filter.UserID),
		Title:         filter.Title,
		Enabled:       filter.Enabled,
		MatchAnyRule:  filter.MatchAnyRule,
		Inverse:       filter.Inverse,
		OrderID:       filter.OrderID,
		LastTriggered: timePtrToString(filter.LastTriggered),
		Rules:         rules,
		Actions:       actions,
		CreatedAt:     filter.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     filter.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
