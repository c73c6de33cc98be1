package backend

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/birbparty/shelf/internal/telemetry"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	maxImportSize   = 10 << 20
)

// Handler holds all dependencies for API handlers
type Handler struct {
	catalogue *Catalogue
	users     *Users
	tokens    *TokenIssuer
	metrics   *telemetry.Metrics
	validate  *validator.Validate
	logger    logrus.FieldLogger
	config    *Config
	started   time.Time
	now       func() time.Time
}

// NewHandler creates a new handler instance
func NewHandler(cfg *Config, catalogue *Catalogue, users *Users, tokens *TokenIssuer, metrics *telemetry.Metrics, log logrus.FieldLogger) *Handler {
	return &Handler{
		catalogue: catalogue,
		users:     users,
		tokens:    tokens,
		metrics:   metrics,
		validate:  validator.New(),
		logger:    log,
		config:    cfg,
		started:   time.Now(),
		now:       time.Now,
	}
}

// Login handles POST /users/login
func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}

	user, err := h.users.Authenticate(req.Username, req.Password)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(
			NewErrorResponse(fiber.StatusUnauthorized, "Invalid username or password", ErrCodeInvalidCredentials),
		)
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		return err
	}

	h.logger.WithField("user_id", user.ID).Info("User logged in")

	if h.config.LoginShape == LoginShapeNested {
		return c.JSON(&NestedLoginResponse{
			Code: fiber.StatusOK,
			Data: &NestedLoginData{
				Token:    token,
				ID:       user.ID,
				Username: user.Username,
				Email:    user.Email,
			},
		})
	}
	return c.JSON(&LoginResponse{Token: token, User: ConvertToUserResponse(user)})
}

// Register handles POST /users/register
func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}

	user, err := h.users.Register(req.Username, req.Password, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			return c.Status(fiber.StatusConflict).JSON(
				NewErrorResponse(fiber.StatusConflict, "Username is already taken", ErrCodeConflict),
			)
		}
		return err
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		return err
	}

	h.logger.WithField("user_id", user.ID).Info("User registered")

	return c.Status(fiber.StatusCreated).JSON(&LoginResponse{Token: token, User: ConvertToUserResponse(user)})
}

// Me handles GET /users/me
func (h *Handler) Me(c *fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	return c.JSON(ConvertToUserResponse(user))
}

// SearchProducts handles GET /products/search. The response is a bare array.
func (h *Handler) SearchProducts(c *fiber.Ctx) error {
	page, pageSize, err := pageParams(c, 0)
	if err != nil {
		return err
	}
	return c.JSON(h.catalogue.Search(c.Query("keyword"), page, pageSize))
}

// ListProducts handles GET /products/page
func (h *Handler) ListProducts(c *fiber.Ctx) error {
	page, pageSize, err := pageParams(c, defaultPageSize)
	if err != nil {
		return err
	}

	var items []Product
	var total int
	if keyword := c.Query("keyword"); keyword != "" {
		matches := h.catalogue.Search(keyword, 0, 0)
		items, total = paginate(matches, page, pageSize), len(matches)
	} else {
		items, total = h.catalogue.Page(page, pageSize)
	}

	return c.JSON(&PageResponse{
		Data: items,
		Pagination: Pagination{
			Total:    total,
			Page:     page,
			PageSize: pageSize,
		},
	})
}

// CreateProduct handles POST /products
func (h *Handler) CreateProduct(c *fiber.Ctx) error {
	var req ProductRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}

	product := h.catalogue.Create(req)
	h.metrics.UpdateCatalogueSize(h.catalogue.Len())

	return c.Status(fiber.StatusCreated).JSON(product)
}

// DeleteProduct handles DELETE /products/:id
func (h *Handler) DeleteProduct(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Product id must be an integer")
	}

	if err := h.catalogue.Delete(id); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Product not found")
		}
		return err
	}
	h.metrics.UpdateCatalogueSize(h.catalogue.Len())

	return c.SendStatus(fiber.StatusNoContent)
}

// BatchDeleteProducts handles DELETE /products/batch
func (h *Handler) BatchDeleteProducts(c *fiber.Ctx) error {
	var req BatchDeleteRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}

	ids := make([]int64, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := strconv.ParseInt(raw.String(), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Invalid product id %q", raw.String()))
		}
		ids = append(ids, id)
	}

	deleted := h.catalogue.DeleteMany(ids)
	h.metrics.UpdateCatalogueSize(h.catalogue.Len())

	return c.JSON(&BatchDeleteResponse{Deleted: deleted})
}

// ExportProducts handles GET /products/export
func (h *Handler) ExportProducts(c *fiber.Ctx) error {
	data, err := EncodeCSV(h.catalogue.All())
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("products-export-%s.csv", h.now().UTC().Format("2006-01-02"))
	c.Attachment(filename)
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(data)
}

// ImportProducts handles POST /products/import. Valid rows are stored and
// rejected rows are reported by line.
func (h *Handler) ImportProducts(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Missing import file")
	}
	if header.Size > maxImportSize {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "Import file is too large")
	}

	file, err := header.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	rows, failed, err := DecodeCSV(file)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	resp := &ImportResponse{Failed: failed}
	for _, row := range rows {
		if err := h.validate.Struct(row.Product); err != nil {
			resp.Failed = append(resp.Failed, ImportFailure{Line: row.Line, Error: validationMessage(err)})
			continue
		}
		h.catalogue.Create(row.Product)
		resp.Imported++
	}
	if resp.Failed == nil {
		resp.Failed = []ImportFailure{}
	}
	h.metrics.UpdateCatalogueSize(h.catalogue.Len())

	h.logger.WithFields(logrus.Fields{
		"filename": header.Filename,
		"imported": resp.Imported,
		"failed":   len(resp.Failed),
	}).Info("Catalogue import finished")

	return c.JSON(resp)
}

// Health handles GET /health
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(&HealthResponse{
		Status:  "healthy",
		Service: "shelf-backend",
		Version: "1.0.0",
		Uptime:  formatUptime(time.Since(h.started)),
		Checks: map[string]string{
			"catalogue": "healthy",
		},
		Metadata: map[string]string{
			"products":    strconv.Itoa(h.catalogue.Len()),
			"login_shape": h.config.LoginShape,
		},
	})
}

// parse decodes and validates a JSON body
func (h *Handler) parse(c *fiber.Ctx, dest interface{}) error {
	if err := c.BodyParser(dest); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validate.Struct(dest); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Validation failed: "+validationMessage(err))
	}
	return nil
}

// pageParams reads the one-based page and the page size. A zero default
// size means "no limit" when pageSize is absent.
func pageParams(c *fiber.Ctx, defaultSize int) (int, int, error) {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "page must be a positive integer")
	}
	pageSize, err := strconv.Atoi(c.Query("pageSize", strconv.Itoa(defaultSize)))
	if err != nil || pageSize < 0 {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "pageSize must be a non-negative integer")
	}
	if pageSize == 0 && defaultSize > 0 {
		pageSize = defaultSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s is %s", fe.Field(), fe.Tag())
}
