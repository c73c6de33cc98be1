package backend

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"

	"github.com/birbparty/shelf/internal/telemetry"
)

const localsUser = "user"

// SetupMiddleware configures all middleware for the application
func SetupMiddleware(app *fiber.App, cfg *Config, metrics *telemetry.Metrics, log logrus.FieldLogger) {
	// Request ID middleware
	app.Use(requestid.New())

	// CORS middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		ExposeHeaders:    "Content-Disposition, X-Request-ID",
		AllowCredentials: cfg.allowCredentials(),
	}))

	// Metrics and tracing
	app.Use(telemetry.FiberMetricsMiddleware(metrics))

	// Structured request log
	app.Use(telemetry.FiberLoggingMiddleware(log))

	// Custom error handler
	app.Use(errorHandler(log))

	// Recover middleware, inside the error handler so panics render as JSON
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Timing middleware
	app.Use(timingMiddleware())
}

// errorHandler renders returned errors as JSON error responses
func errorHandler(log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}

		// Default to 500 Internal Server Error
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"
		errCode := ErrCodeInternalError

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		}

		switch code {
		case fiber.StatusNotFound:
			errCode = ErrCodeNotFound
		case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
			errCode = ErrCodeInvalidRequest
		case fiber.StatusUnauthorized:
			errCode = ErrCodeUnauthorized
		case fiber.StatusRequestTimeout:
			errCode = ErrCodeTimeout
		}

		if code >= fiber.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"path":   c.Path(),
				"method": c.Method(),
			}).Error("Unhandled request error")
		}

		return c.Status(code).JSON(NewErrorResponse(code, message, errCode))
	}
}

// timingMiddleware adds request timing headers
func timingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		c.Set("X-Response-Time", fmt.Sprintf("%d ms", time.Since(start).Milliseconds()))
		return err
	}
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller in the request locals
func RequireAuth(tokens *TokenIssuer, users *Users) fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			return unauthorized(c, "Missing bearer token")
		}

		userID, err := tokens.Verify(token)
		if err != nil {
			return unauthorized(c, "Token expired or invalid")
		}

		user, err := users.Get(userID)
		if err != nil {
			return unauthorized(c, "Token expired or invalid")
		}

		c.Locals(localsUser, user)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(
		NewErrorResponse(fiber.StatusUnauthorized, message, ErrCodeUnauthorized),
	)
}

// CurrentUser returns the caller stored by RequireAuth
func CurrentUser(c *fiber.Ctx) (*User, bool) {
	user, ok := c.Locals(localsUser).(*User)
	return user, ok
}
