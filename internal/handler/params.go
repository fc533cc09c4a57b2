package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

func parseIDParam(c echo.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

func parseIDPtr(raw *string) (*int64, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(*raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Snowflake IDs exceed JavaScript's safe integer range, so the API carries
// them as strings.
func idToString(id int64) string {
	return strconv.FormatInt(id, 10)
}

func idPtrToString(id *int64) *string {
	if id == nil {
		return nil
	}
	s := strconv.FormatInt(*id, 10)
	return &s
}
