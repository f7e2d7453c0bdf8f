package routes

import (
	"errors"
	"net/http"

	"github.com/kg-audit/weaver/backend/internal/server/middleware"
	"github.com/kg-audit/weaver/backend/internal/storage"
	"github.com/kg-audit/weaver/backend/pkg/logger"
	"github.com/kg-audit/weaver/backend/pkg/store"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// GetAuditHandler returns an audit with its report once completed. Users
// only see their own audits unless they hold audit.view:all. When the
// report has been archived, the response carries a short-lived download
// link for the full JSON document.
func GetAuditHandler(c echo.Context) error {
	type getAuditParams struct {
		AuditID string `param:"id" validate:"required"`
	}

	type getAuditResponse struct {
		Audit       *store.Audit `json:"audit"`
		DownloadURL string       `json:"download_url,omitempty"`
	}

	params := new(getAuditParams)
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
	app := c.(*middleware.AppContext).App

	audit, err := app.Store.GetAudit(ctx, params.AuditID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Audit not found"})
		}
		logger.Error("Failed to load audit", "audit_id", params.AuditID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	if audit.CreatedBy != user.UserID &&
		!middleware.IsAdmin(user) &&
		!middleware.HasPermission(user, "audit.view:all") {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "You cannot view this audit"})
	}

	res := getAuditResponse{Audit: audit}
	if audit.Report != nil && audit.Report.ArchiveKey != "" && app.S3 != nil {
		url, err := storage.GenerateDownloadLink(ctx, app.S3, audit.Report.ArchiveKey)
		if err != nil {
			// The report body is inline anyway; the link is a convenience.
			logger.Warn("Failed to presign report link", "audit_id", audit.ID, "err", err)
		} else {
			res.DownloadURL = url
		}
	}

	return c.JSON(http.StatusOK, res)
}
