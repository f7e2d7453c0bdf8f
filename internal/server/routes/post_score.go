package routes

import (
	"errors"
	"net/http"

	"github.com/kg-audit/weaver/backend/internal/server/middleware"
	"github.com/kg-audit/weaver/backend/pkg/common"
	"github.com/kg-audit/weaver/backend/pkg/coverage"
	"github.com/kg-audit/weaver/backend/pkg/logger"
	"github.com/kg-audit/weaver/backend/pkg/store"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// ScoreHandler scores a set of already-resolved entity ids against the
// stored reference graph of a keyword. Audited ids that are not part of
// the graph are ignored by the scorer.
func ScoreHandler(c echo.Context) error {
	type scoreBody struct {
		Keyword    string   `json:"keyword" validate:"required"`
		AuditedIDs []string `json:"audited_ids" validate:"required"`
	}

	type scoreResponse struct {
		Report          common.CoverageReport   `json:"report"`
		Recommendations []common.Recommendation `json:"recommendations"`
	}

	data := new(scoreBody)
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

	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	graph, err := st.GetGraph(ctx, data.Keyword)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "No graph for this keyword"})
		}
		logger.Error("Failed to load graph", "keyword", data.Keyword, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	audited := make(map[string]struct{}, len(data.AuditedIDs))
	for _, id := range data.AuditedIDs {
		audited[id] = struct{}{}
	}

	report := coverage.Score(graph, audited)
	recommendations := coverage.Recommend(report, coverage.RecommendOptions{})

	return c.JSON(http.StatusOK, scoreResponse{
		Report:          report,
		Recommendations: recommendations,
	})
}
