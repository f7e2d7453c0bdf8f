package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kg-audit/weaver/backend/internal/queue"
	"github.com/kg-audit/weaver/backend/internal/server/middleware"
	"github.com/kg-audit/weaver/backend/pkg/logger"
	"github.com/kg-audit/weaver/backend/pkg/store"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// CreateAuditHandler creates an audit job for one document against the
// reference graph of a keyword. The document is given either as a location
// (web URL or object key) or as inline text, never both.
func CreateAuditHandler(c echo.Context) error {
	type createAuditBody struct {
		Keyword  string `json:"keyword" validate:"required"`
		Location string `json:"location"`
		Text     string `json:"text"`
	}

	type createAuditResponse struct {
		Message string       `json:"message"`
		Audit   *store.Audit `json:"audit,omitempty"`
	}

	data := new(createAuditBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createAuditResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createAuditResponse{
			Message: "Invalid request body",
		})
	}
	if (data.Location == "") == (data.Text == "") {
		return c.JSON(http.StatusBadRequest, createAuditResponse{
			Message: "Exactly one of location and text must be set",
		})
	}

	user := c.(*middleware.AppContext).User
	if user == nil {
		return c.JSON(http.StatusUnauthorized, createAuditResponse{
			Message: "Unauthorized",
		})
	}

	ctx := c.Request().Context()
	st := c.(*middleware.AppContext).App.Store

	if _, err := st.GetGraph(ctx, data.Keyword); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, createAuditResponse{
				Message: "No graph for this keyword",
			})
		}
		logger.Error("Failed to load graph", "keyword", data.Keyword, "err", err)
		return c.JSON(http.StatusInternalServerError, createAuditResponse{
			Message: "Internal server error",
		})
	}

	auditID, err := gonanoid.New()
	if err != nil {
		logger.Error("Failed to generate audit id", "err", err)
		return c.JSON(http.StatusInternalServerError, createAuditResponse{
			Message: "Internal server error",
		})
	}

	audit := &store.Audit{
		ID:        auditID,
		Keyword:   data.Keyword,
		Status:    store.AuditStatusPending,
		Location:  data.Location,
		CreatedBy: user.UserID,
	}
	if err := st.CreateAudit(ctx, audit); err != nil {
		logger.Error("Failed to create audit", "keyword", data.Keyword, "err", err)
		return c.JSON(http.StatusInternalServerError, createAuditResponse{
			Message: "Internal server error",
		})
	}

	msg, err := json.Marshal(queue.AuditMsg{
		AuditID:       auditID,
		Keyword:       data.Keyword,
		Location:      data.Location,
		Text:          data.Text,
		CorrelationID: auditID,
	})
	if err != nil {
		logger.Error("Failed to marshal audit message", "err", err)
		return c.JSON(http.StatusInternalServerError, createAuditResponse{
			Message: "Internal server error",
		})
	}

	ch := c.(*middleware.AppContext).App.Queue
	if err := queue.PublishFIFO(ch, queue.AuditQueue, msg); err != nil {
		logger.Error("Failed to publish audit message", "audit_id", auditID, "err", err)
		if stErr := st.UpdateAuditStatus(ctx, auditID, store.AuditStatusFailed, "failed to enqueue"); stErr != nil {
			logger.Error("Failed to mark audit failed", "audit_id", auditID, "err", stErr)
		}
		return c.JSON(http.StatusInternalServerError, createAuditResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, createAuditResponse{
		Message: "Audit queued",
		Audit:   audit,
	})
}
