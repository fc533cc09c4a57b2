package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"skim/backend/internal/model"
	"skim/backend/internal/service"
)

type FeedHandler struct {
	feeds   service.FeedService
	refresh service.RefreshService
}

type createFeedRequest struct {
	UserID         string  `json:"userId"`
	URL            string  `json:"url"`
	Title          string  `json:"title"`
	CategoryID     *string `json:"categoryId,omitempty"`
	UpdateInterval int     `json:"updateInterval"`
}

type updateFeedRequest struct {
	Title          string  `json:"title"`
	CategoryID     *string `json:"categoryId,omitempty"`
	UpdateInterval int     `json:"updateInterval"`
}

type feedResponse struct {
	ID                   string   `json:"id"`
	UserID               string   `json:"userId"`
	CategoryID           *string  `json:"categoryId,omitempty"`
	Title                string   `json:"title"`
	URL                  string   `json:"url"`
	SiteURL              *string  `json:"siteUrl,omitempty"`
	UpdateInterval       int      `json:"updateInterval"`
	IntervalSeconds      *int64   `json:"intervalSeconds,omitempty"`
	AvgPostsPerDay       *float64 `json:"avgPostsPerDay,omitempty"`
	NextPollAt           *string  `json:"nextPollAt,omitempty"`
	LastPolledAt         *string  `json:"lastPolledAt,omitempty"`
	LastSuccessfulPollAt *string  `json:"lastSuccessfulPollAt,omitempty"`
	LastNewEntryAt       *string  `json:"lastNewEntryAt,omitempty"`
	LastError            *string  `json:"lastError,omitempty"`
	ConsecutiveFailures  int      `json:"consecutiveFailures"`
	RetryAfter           *string  `json:"retryAfter,omitempty"`
	CreatedAt            string   `json:"createdAt"`
	UpdatedAt            string   `json:"updatedAt"`
}

type refreshResponse struct {
	New       int `json:"new"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

func NewFeedHandler(feeds service.FeedService, refresh service.RefreshService) *FeedHandler {
	return &FeedHandler{feeds: feeds, refresh: refresh}
}

func (h *FeedHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/feeds", h.Create)
	g.GET("/feeds", h.List)
	g.GET("/feeds/:id", h.Get)
	g.PUT("/feeds/:id", h.Update)
	g.DELETE("/feeds/:id", h.Delete)
	g.POST("/feeds/:id/refresh", h.Refresh)
}

// Create subscribes a user to a feed URL and runs the initial fetch.
func (h *FeedHandler) Create(c echo.Context) error {
	var req createFeedRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	userID, err := parseID(req.UserID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	categoryID, err := parseIDPtr(req.CategoryID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	feed, err := h.feeds.Subscribe(c.Request().Context(), service.SubscribeRequest{
		UserID:         userID,
		URL:            req.URL,
		Title:          req.Title,
		CategoryID:     categoryID,
		UpdateInterval: req.UpdateInterval,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toFeedResponse(feed))
}

// List returns the feeds of the user named by the userId query parameter.
func (h *FeedHandler) List(c echo.Context) error {
	userID, err := parseID(c.QueryParam("userId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	feeds, err := h.feeds.List(c.Request().Context(), userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	response := make([]feedResponse, 0, len(feeds))
	for _, feed := range feeds {
		response = append(response, toFeedResponse(feed))
	}
	return c.JSON(http.StatusOK, response)
}

func (h *FeedHandler) Get(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	feed, err := h.feeds.Get(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toFeedResponse(feed))
}

func (h *FeedHandler) Update(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	var req updateFeedRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	categoryID, err := parseIDPtr(req.CategoryID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	feed, err := h.feeds.Update(c.Request().Context(), model.Feed{
		ID:             id,
		Title:          req.Title,
		CategoryID:     categoryID,
		UpdateInterval: req.UpdateInterval,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toFeedResponse(feed))
}

func (h *FeedHandler) Delete(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if err := h.feeds.Delete(c.Request().Context(), id); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Refresh fetches the feed immediately, outside its schedule. A fetch already
// in flight answers 409 and a feed inside its retry window answers 429.
func (h *FeedHandler) Refresh(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	counts, err := h.refresh.RefreshFeed(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, refreshResponse{
		New:       counts.New,
		Updated:   counts.Updated,
		Unchanged: counts.Unchanged,
	})
}

func toFeedResponse(feed model.Feed) feedResponse {
	return feedResponse{
		ID:                   idToString(feed.ID),
		UserID:               idToString(feed.UserID),
		CategoryID:           idPtrToString(feed.CategoryID),
		Title:                feed.Title,
		URL:                  feed.URL,
		SiteURL:              feed.SiteURL,
		UpdateInterval:       feed.UpdateInterval,
		IntervalSeconds:      feed.CalculatedIntervalSeconds,
		AvgPostsPerDay:       feed.AvgPostsPerDay,
		NextPollAt:           timePtrToString(feed.NextPollAt),
		LastPolledAt:         timePtrToString(feed.LastPolledAt),
		LastSuccessfulPollAt: timePtrToString(feed.LastSuccessfulPollAt),
		LastNewEntryAt:       timePtrToString(feed.LastNewEntryAt),
		LastError:            feed.LastError,
		ConsecutiveFailures:  feed.ConsecutiveFailures,
		RetryAfter:           timePtrToString(feed.RetryAfter),
		CreatedAt:            feed.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:            feed.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func timePtrToString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
