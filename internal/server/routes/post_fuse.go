package routes

import (
	"net/http"

	"github.com/kg-audit/weaver/backend/internal/server/middleware"
	"github.com/kg-audit/weaver/backend/pkg/common"
	"github.com/kg-audit/weaver/backend/pkg/fusion"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// FuseHandler runs one synchronous fusion pass over caller-supplied
// candidates. Nothing is persisted; callers that want the stored graph
// updated go through POST /api/graphs instead. Passing a previous result
// as existing makes the call incremental.
func FuseHandler(c echo.Context) error {
	type fuseBody struct {
		Entities  []common.EntityCandidate   `json:"entities" validate:"required"`
		Relations []common.RelationCandidate `json:"relations"`
		Existing  *common.FusedGraph         `json:"existing"`
	}

	type fuseResponse struct {
		Graph graphDTO         `json:"graph"`
		Stats common.FuseStats `json:"stats"`
	}

	data := new(fuseBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	cfg := c.(*middleware.AppContext).App.FuseCfg
	graph, stats := fusion.BuildGraph(data.Entities, data.Relations, data.Existing, cfg)

	return c.JSON(http.StatusOK, fuseResponse{
		Graph: newGraphDTO(&graph),
		Stats: stats,
	})
}
