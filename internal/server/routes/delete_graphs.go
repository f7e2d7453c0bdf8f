package routes

import (
	"encoding/json"
	"net/http"

	"github.com/kg-audit/weaver/backend/internal/queue"
	"github.com/kg-audit/weaver/backend/internal/server/middleware"
	"github.com/kg-audit/weaver/backend/pkg/logger"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DeleteGraphHandler enqueues removal of a keyword's graph, its audits and
// the archived reports. Deletion runs in the worker under the keyword's
// lease so it never races a fusion or audit in flight.
func DeleteGraphHandler(c echo.Context) error {
	type deleteGraphParams struct {
		Keyword string `param:"keyword" validate:"required"`
	}

	params := new(deleteGraphParams)
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

	correlationID, err := gonanoid.New()
	if err != nil {
		logger.Error("Failed to generate correlation id", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	msg, err := json.Marshal(queue.DeleteMsg{
		Keyword:       params.Keyword,
		CorrelationID: correlationID,
	})
	if err != nil {
		logger.Error("Failed to marshal delete message", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	ch := c.(*middleware.AppContext).App.Queue
	if err := queue.PublishFIFO(ch, queue.DeleteQueue, msg); err != nil {
		logger.Error("Failed to publish delete message", "keyword", params.Keyword, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"message":        "Deletion queued",
		"keyword":        params.Keyword,
		"correlation_id": correlationID,
	})
}
