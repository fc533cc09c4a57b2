package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"skim/backend/internal/model"
	"skim/backend/internal/service"
)

type AccountHandler struct {
	accounts service.AccountService
}

type createUserRequest struct {
	Username string `json:"username"`
}

type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"createdAt"`
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

type categoryResponse struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

func NewAccountHandler(accounts service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

func (h *AccountHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/users", h.CreateUser)
	g.GET("/users/:id", h.GetUser)
	g.POST("/users/:id/categories", h.CreateCategory)
	g.GET("/users/:id/categories", h.ListCategories)
}

func (h *AccountHandler) CreateUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	user, err := h.accounts.CreateUser(c.Request().Context(), req.Username)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toUserResponse(user))
}

func (h *AccountHandler) GetUser(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	user, err := h.accounts.GetUser(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *AccountHandler) CreateCategory(c echo.Context) error {
	userID, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	var req createCategoryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	category, err := h.accounts.CreateCategory(c.Request().Context(), userID, req.Name)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toCategoryResponse(category))
}

func (h *AccountHandler) ListCategories(c echo.Context) error {
	userID, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	categories, err := h.accounts.ListCategories(c.Request().Context(), userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	response := make([]categoryResponse, 0, len(categories))
	for _, category := range categories {
		response = append(response, toCategoryResponse(category))
	}
	return c.JSON(http.StatusOK, response)
}

func toUserResponse(user model.User) userResponse {
	return userResponse{
		ID:        idToString(user.ID),
		Username:  user.Username,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toCategoryResponse(category model.Category) categoryResponse {
	return categoryResponse{
		ID:     idToString(category.ID),
		UserID: idToString(category.UserID),
		Name:   category.Name,
	}
}
