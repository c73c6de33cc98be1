package backend

import (
	"time"

	"github.com/birbparty/shelf/sdk"
)

// LoginRequest represents the request body for POST /users/login
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents the request body for POST /users/register
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// LoginResponse is the flat login layout
type LoginResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

// NestedLoginData is the payload of the nested login layout
type NestedLoginData struct {
	Token    string `json:"token"`
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// NestedLoginResponse is the {"code": 200, "data": {...}} login layout
type NestedLoginResponse struct {
	Code int              `json:"code"`
	Data *NestedLoginData `json:"data"`
}

// ProductRequest represents the request body for POST /products
type ProductRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Category    string  `json:"category,omitempty" validate:"max=100"`
	Price       float64 `json:"price" validate:"gte=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
	Description string  `json:"description,omitempty"`
}

// Pagination describes one page of a listing
type Pagination struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// PageResponse is the response for GET /products/page
type PageResponse struct {
	Data       []Product  `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// BatchDeleteRequest represents the request body for DELETE /products/batch.
// Ids may be JSON numbers or strings.
type BatchDeleteRequest struct {
	IDs []sdk.ProductID `json:"ids" validate:"required,min=1,max=1000"`
}

// BatchDeleteResponse represents the response for batch deletes
type BatchDeleteResponse struct {
	Deleted int `json:"deleted"`
}

// ImportFailure describes a rejected import row
type ImportFailure struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// ImportResponse represents the response for POST /products/import
type ImportResponse struct {
	Imported int             `json:"imported"`
	Failed   []ImportFailure `json:"failed"`
}

// ErrorResponse represents an error response. Code mirrors the HTTP status
// so clients reading only the body can classify the failure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string            `json:"status"`
	Service  string            `json:"service"`
	Version  string            `json:"version"`
	Uptime   string            `json:"uptime"`
	Checks   map[string]string `json:"checks"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Error codes
const (
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeTimeout            = "TIMEOUT"
)

// NewErrorResponse creates a new error response
func NewErrorResponse(status int, message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Code:    status,
		Message: message,
		Error:   code,
	}
}

// ConvertToUserResponse converts a stored user to its public view
func ConvertToUserResponse(u *User) *UserResponse {
	return &UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
	}
}

func formatUptime(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
