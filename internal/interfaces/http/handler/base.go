package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/interfaces/http/dto"
	"github.com/streamcart/backend/internal/interfaces/http/middleware"
)

// BaseHandler carries the response helpers every HTTP handler embeds.
// Error envelopes always include the request ID so a caller can quote
// it when reporting a failed payout or dispute call.
type BaseHandler struct{}

// getRequestID reads the ID stored by the request-id middleware. The
// header fallback covers handlers mounted without the middleware, such
// as bare health endpoints.
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// getUserID resolves the acting user from the gin context or header.
func getUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr := c.GetString(middleware.UserIDKey)
	if userIDStr == "" {
		userIDStr = c.GetHeader(middleware.UserIDHeader)
	}
	if userIDStr == "" {
		return uuid.Nil, errors.New("user ID not found in context")
	}
	return uuid.Parse(userIDStr)
}

func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta.
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error envelope with an explicit status code.
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest rejects malformed input with a plain message.
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// BindError reports a request binding failure. Validator errors carry
// per-field details in the envelope; anything else (malformed JSON,
// type mismatches) is surfaced as a plain bad request.
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		middleware.HandleValidationError(c, err)
		return
	}
	h.BadRequest(c, err.Error())
}

// InternalError sends an opaque 500. The message is fixed by callers;
// raw error text never goes into a response body.
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError maps a service error to an HTTP response. Domain errors
// keep their code and message, with the HTTP status derived from the
// code; anything else becomes an opaque 500 so internals never leak
// into API responses.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.Error(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}

	h.InternalError(c, "An unexpected error occurred")
}
