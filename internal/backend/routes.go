package backend

import (
	"github.com/gofiber/fiber/v2"

	"github.com/birbparty/shelf/internal/telemetry"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg *Config, handler *Handler, metrics *telemetry.Metrics) {
	auth := RequireAuth(handler.tokens, handler.users)

	// Account endpoints
	users := app.Group("/users")
	users.Post("/login", handler.Login)
	users.Post("/register", handler.Register)
	users.Get("/me", auth, handler.Me)

	// Catalogue endpoints. Search is public, everything else needs a token.
	products := app.Group("/products")
	products.Get("/search", handler.SearchProducts)
	products.Get("/page", auth, handler.ListProducts)
	products.Get("/export", auth, handler.ExportProducts)
	products.Post("/import", auth, handler.ImportProducts)
	products.Delete("/batch", auth, handler.BatchDeleteProducts)
	products.Post("/", auth, handler.CreateProduct)
	products.Delete("/:id", auth, handler.DeleteProduct)

	// Health and metrics endpoints (no auth required)
	app.Get("/health", handler.Health)
	app.Get(cfg.MetricsPath, telemetry.FiberPrometheusHandler(metrics))

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "shelf-backend",
			"version": "1.0.0",
			"status":  "running",
			"endpoints": fiber.Map{
				"users": fiber.Map{
					"login":    "POST /users/login",
					"register": "POST /users/register",
					"me":       "GET /users/me",
				},
				"products": fiber.Map{
					"search": "GET /products/search",
					"page":   "GET /products/page",
					"create": "POST /products",
					"delete": "DELETE /products/:id",
					"batch":  "DELETE /products/batch",
					"export": "GET /products/export",
					"import": "POST /products/import",
				},
				"health":  "GET /health",
				"metrics": "GET " + cfg.MetricsPath,
			},
		})
	})

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(
			NewErrorResponse(fiber.StatusNotFound, "Endpoint not found", ErrCodeNotFound),
		)
	})
}
