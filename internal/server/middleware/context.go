package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/kg-audit/weaver/backend/pkg/ai"
	"github.com/kg-audit/weaver/backend/pkg/fusion"
	"github.com/kg-audit/weaver/backend/pkg/store"
)

// AppUser is the authenticated caller, populated by AuthMiddleware.
type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// App carries the request-scoped view of the service's shared dependencies.
type App struct {
	DBConn         *pgxpool.Pool
	Queue          *amqp091.Channel
	Key            *keyfunc.Keyfunc
	S3             *s3.Client
	Store          store.FusionStorage
	AiClient       ai.ExtractionAIClient
	FuseCfg        fusion.Config
	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

// AppContext wraps echo.Context with the app dependencies and the
// authenticated user.
type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

// AppContextMiddleware attaches the shared App to every request context.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
