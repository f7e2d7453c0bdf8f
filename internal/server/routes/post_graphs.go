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

// CreateGraphHandler enqueues a fusion job that builds (or extends) the
// reference graph for a keyword. The actual work happens in the worker.
func CreateGraphHandler(c echo.Context) error {
	type createGraphBody struct {
		Keyword string `json:"keyword" validate:"required"`
	}

	type createGraphResponse struct {
		Message       string `json:"message"`
		Keyword       string `json:"keyword,omitempty"`
		CorrelationID string `json:"correlation_id,omitempty"`
	}

	data := new(createGraphBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createGraphResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createGraphResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, createGraphResponse{
			Message: "Unauthorized",
		})
	}

	correlationID, err := gonanoid.New()
	if err != nil {
		logger.Error("Failed to generate correlation id", "err", err)
		return c.JSON(http.StatusInternalServerError, createGraphResponse{
			Message: "Internal server error",
		})
	}

	msg, err := json.Marshal(queue.FuseMsg{
		Keyword:       data.Keyword,
		CorrelationID: correlationID,
	})
	if err != nil {
		logger.Error("Failed to marshal fuse message", "err", err)
		return c.JSON(http.StatusInternalServerError, createGraphResponse{
			Message: "Internal server error",
		})
	}

	ch := c.(*middleware.AppContext).App.Queue
	if err := queue.PublishFIFO(ch, queue.FuseQueue, msg); err != nil {
		logger.Error("Failed to publish fuse message", "keyword", data.Keyword, "err", err)
		return c.JSON(http.StatusInternalServerError, createGraphResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, createGraphResponse{
		Message:       "Fusion queued",
		Keyword:       data.Keyword,
		CorrelationID: correlationID,
	})
}
