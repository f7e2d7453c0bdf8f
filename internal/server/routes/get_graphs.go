package routes

import (
	"errors"
	"net/http"

	"github.com/kg-audit/weaver/backend/internal/server/middleware"
	"github.com/kg-audit/weaver/backend/pkg/logger"
	"github.com/kg-audit/weaver/backend/pkg/store"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// GetGraphHandler returns the stored reference graph for a keyword.
func GetGraphHandler(c echo.Context) error {
	type getGraphParams struct {
		Keyword string `param:"keyword" validate:"required"`
	}

	params := new(getGraphParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	graph, err := st.GetGraph(ctx, params.Keyword)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "No graph for this keyword"})
		}
		logger.Error("Failed to load graph", "keyword", params.Keyword, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusOK, newGraphDTO(graph))
}
