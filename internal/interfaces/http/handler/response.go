package handler

import "github.com/streamcart/backend/internal/interfaces/http/dto"

// APIResponse is the typed success envelope referenced by the OpenAPI
// annotations. Handlers marshal dto.Response at runtime; this generic
// mirror exists so swag can document the concrete data type per route.
// @Description Standard API response wrapper with typed data field
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse is the error envelope referenced by the OpenAPI
// annotations.
// @Description Standard error response
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}
