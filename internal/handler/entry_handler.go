package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"skim/backend/internal/service"
)

type EntryHandler struct {
	entries service.EntryService
}

type entryResponse struct {
	ID          string  `json:"id"`
	EntryID     string  `json:"entryId"`
	FeedID      string  `json:"feedId"`
	Title       *string `json:"title"`
	Link        *string `json:"link"`
	Author      *string `json:"author"`
	Content     *string `json:"content"`
	PublishedAt *string `json:"publishedAt"`
	Read        bool    `json:"read"`
	Starred     bool    `json:"starred"`
	Published   bool    `json:"published"`
	Score       int     `json:"score"`
	Note        *string `json:"note"`
	CreatedAt   string  `json:"createdAt"`
}

func NewEntryHandler(entries service.EntryService) *EntryHandler {
	return &EntryHandler{entries: entries}
}

func (h *EntryHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/users/:id/entries", h.ListEntries)
}

// ListEntries returns a page of the user's entries, newest first. Optional
// feedId and categoryId query parameters narrow the listing.
func (h *EntryHandler) ListEntries(c echo.Context) error {
	userID, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}

	opts := service.EntryListOptions{}
	feedID := c.QueryParam("feedId")
	if opts.FeedID, err = parseIDPtr(&feedID); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid feedId"})
	}
	categoryID := c.QueryParam("categoryId")
	if opts.CategoryID, err = parseIDPtr(&categoryID); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid categoryId"})
	}
	if raw := c.QueryParam("limit"); raw != "" {
		if opts.Limit, err = strconv.Atoi(raw); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid limit"})
		}
	}
	if raw := c.QueryParam("offset"); raw != "" {
		if opts.Offset, err = strconv.Atoi(raw); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid offset"})
		}
	}

	items, err := h.entries.ListForUser(c.Request().Context(), userID, opts)
	if err != nil {
		return writeServiceError(c, err)
	}

	response := make([]entryResponse, 0, len(items))
	for _, item := range items {
		response = append(response, toEntryResponse(item))
	}
	return c.JSON(http.StatusOK, response)
}

func toEntryResponse(item service.EntryListItem) entryResponse {
	return entryResponse{
		ID:          idToString(item.UserEntry.ID),
		EntryID:     idToString(item.Entry.ID),
		FeedID:      idToString(item.UserEntry.FeedID),
		Title:       item.Entry.Title,
		Link:        item.Entry.Link,
		Author:      item.Entry.Author,
		Content:     item.Entry.Content,
		PublishedAt: timePtrToString(item.Entry.PublishedAt),
		Read:        item.UserEntry.Read,
		Starred:     item.UserEntry.Starred,
		Published:   item.UserEntry.Published,
		Score:       item.UserEntry.Score,
		Note:        item.UserEntry.Note,
		CreatedAt:   item.UserEntry.CreatedAt.UTC().Format(time.RFC3339),
	}
}
