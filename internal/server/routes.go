package server

import (
	"github.com/kg-audit/weaver/backend/internal/server/middleware"
	"github.com/kg-audit/weaver/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Graph routes
	apiRoutes.POST("/graphs", routes.CreateGraphHandler, middleware.RequirePermission("graph.create"))
	apiRoutes.GET("/graphs/:keyword", routes.GetGraphHandler, middleware.RequirePermission("graph.view"))
	apiRoutes.DELETE("/graphs/:keyword", routes.DeleteGraphHandler, middleware.RequirePermission("graph.delete"))

	// Stateless fusion and scoring routes
	apiRoutes.POST("/fuse", routes.FuseHandler, middleware.RequirePermission("fuse.run"))
	apiRoutes.POST("/score", routes.ScoreHandler, middleware.RequirePermission("score.run"))

	// Audit routes
	apiRoutes.POST("/audits", routes.CreateAuditHandler, middleware.RequirePermission("audit.create"))
	apiRoutes.GET("/audits/:id", routes.GetAuditHandler, middleware.RequireAnyPermission("audit.view", "audit.view:all"))
}
