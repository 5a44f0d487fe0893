package handler

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nkuznetsov/linkcut/internal/middleware"
	"github.com/nkuznetsov/linkcut/internal/models"
	"github.com/nkuznetsov/linkcut/internal/repository"
	"github.com/nkuznetsov/linkcut/internal/service"
	"go.uber.org/zap"
)

type LinkHandler struct {
	service service.LinkService
	baseURL string
	logger  *zap.Logger
}

func NewLinkHandler(service service.LinkService, baseURL string, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		service: service,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

type CreateLinkRequest struct {
	URL        string `json:"url" binding:"required"`
	ExpiresIn  *int   `json:"expires_in,omitempty"`
	CustomCode string `json:"custom_code,omitempty"`
}

type LinkResponse struct {
	ShortCode   string     `json:"short_code"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	Flagged     bool       `json:"flagged"`
	FlagReason  *string    `json:"flag_reason,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type UpdateLinkRequest struct {
	CustomCode *string `json:"custom_code,omitempty"`
	ExpiresIn  *int    `json:"expires_in,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateLink godoc
// @Summary Create a short link
// @Description Create a new shortened URL; the caller is warned via flagged/flag_reason even when not blocked
// @Tags links
// @Accept json
// @Produce json
// @Param request body CreateLinkRequest true "Link creation request"
// @Success 201 {object} LinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /api/v1/links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	owner, privileged := middleware.CallerIdentity(c)
	input := &models.CreateLinkInput{
		OriginalURL: req.URL,
		ExpiresIn:   req.ExpiresIn,
		Owner:       owner,
		Privileged:  privileged,
	}
	if req.CustomCode != "" {
		input.CustomCode = &req.CustomCode
	}

	link, err := h.service.CreateLink(c.Request.Context(), input)
	if err != nil {
		h.writeCreateError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.linkResponse(link))
}

func (h *LinkHandler) writeCreateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_url",
			Message: "Invalid URL format",
		})
	case errors.Is(err, service.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_code",
			Message: "Custom code must be 4-12 alphanumeric characters",
		})
	case errors.Is(err, repository.ErrCodeExists):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "code_collision",
			Message: "Short code is already taken, try a different one",
		})
	case errors.Is(err, service.ErrSafetyBlocked):
		// Отдельный ответ: блокировка политикой, а не сбой сервиса
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "safety_blocked",
			Message: "URL was rejected by the content safety policy",
		})
	case errors.Is(err, service.ErrAllocationExhausted):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "allocation_exhausted",
			Message: "Could not allocate a short code, retry later",
		})
	default:
		h.logger.Error("Failed to create link", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to create link",
		})
	}
}

// Redirect godoc
// @Summary Redirect to original URL
// @Description Resolve a short code; flagged links get an interstitial warning unless confirmed=1
// @Tags links
// @Produce html
// @Param code path string true "Short code"
// @Param confirmed query string false "Skip the interstitial for flagged links"
// @Success 307 {object} nil
// @Failure 404 {object} ErrorResponse
// @Router /{code} [get]
func (h *LinkHandler) Redirect(c *gin.Context) {
	code := c.Param("code")

	link, err := h.service.Resolve(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Link not found or expired",
			})
			return
		}
		h.logger.Error("Failed to resolve link", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to resolve link",
		})
		return
	}

	// Помеченная ссылка: предупреждение вместо мгновенного редиректа
	if link.Flagged && c.Query("confirmed") != "1" {
		c.Data(http.StatusOK, "text/html; charset=utf-8", interstitialPage(code, link))
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, link.OriginalURL)
}

// interstitialPage рендерит минимальную страницу-прослойку с причиной флага.
func interstitialPage(code string, link *models.Link) []byte {
	reason := "This link was flagged by the content safety check."
	if link.FlagReason != nil {
		reason = *link.FlagReason
	}

	page := fmt.Sprintf(
		`<!DOCTYPE html>
<html>
<head><title>Warning</title></head>
<body>
<h1>Hold on</h1>
<p>%s</p>
<p>Destination: %s</p>
<p><a href="/%s?confirmed=1">Continue anyway</a></p>
</body>
</html>`,
		html.EscapeString(reason),
		html.EscapeString(link.OriginalURL),
		html.EscapeString(code),
	)

	return []byte(page)
}

// GetLink godoc
// @Summary Get link details
// @Description Read a link without counting a click
// @Tags links
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} LinkResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code} [get]
func (h *LinkHandler) GetLink(c *gin.Context) {
	code := c.Param("code")

	link, err := h.service.GetLink(c.Request.Context(), code)
	if err != nil {
		h.writeLookupError(c, code, err)
		return
	}

	c.JSON(http.StatusOK, h.linkResponse(link))
}

// UpdateLink godoc
// @Summary Edit a link
// @Description Change the short code and/or expiration; requires ownership
// @Tags links
// @Accept json
// @Produce json
// @Param code path string true "Short code"
// @Param request body UpdateLinkRequest true "Fields to change"
// @Success 200 {object} LinkResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/links/{code} [patch]
func (h *LinkHandler) UpdateLink(c *gin.Context) {
	code := c.Param("code")

	var req UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	owner, privileged := middleware.CallerIdentity(c)
	input := &models.UpdateLinkInput{
		CustomCode: req.CustomCode,
		ExpiresIn:  req.ExpiresIn,
		Owner:      owner,
		Privileged: privileged,
	}

	link, err := h.service.UpdateLink(c.Request.Context(), code, input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCode):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_code",
				Message: "Custom code must be 4-12 alphanumeric characters",
			})
		case errors.Is(err, repository.ErrCodeExists):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "code_collision",
				Message: "Short code is already taken, try a different one",
			})
		case errors.Is(err, service.ErrForbidden):
			c.JSON(http.StatusForbidden, ErrorResponse{
				Error:   "forbidden",
				Message: "You do not own this link",
			})
		case errors.Is(err, repository.ErrLinkNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Link not found",
			})
		default:
			h.logger.Error("Failed to update link", zap.String("code", code), zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Failed to update link",
			})
		}
		return
	}

	c.JSON(http.StatusOK, h.linkResponse(link))
}

// DeleteLink godoc
// @Summary Delete a short link
// @Description Delete a link; requires ownership
// @Tags links
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} map[string]string
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code} [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	code := c.Param("code")
	owner, privileged := middleware.CallerIdentity(c)

	err := h.service.DeleteLink(c.Request.Context(), code, owner, privileged)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrForbidden):
			c.JSON(http.StatusForbidden, ErrorResponse{
				Error:   "forbidden",
				Message: "You do not own this link",
			})
		case errors.Is(err, repository.ErrLinkNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Link not found",
			})
		default:
			h.logger.Error("Failed to delete link", zap.String("code", code), zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Failed to delete link",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Link deleted successfully"})
}

// GetStats godoc
// @Summary Get click statistics for a short link
// @Description Click count and safety flags straight from the durable store
// @Tags links
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} models.LinkStats
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{code}/stats [get]
func (h *LinkHandler) GetStats(c *gin.Context) {
	code := c.Param("code")

	stats, err := h.service.Stats(c.Request.Context(), code)
	if err != nil {
		h.writeLookupError(c, code, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *LinkHandler) writeLookupError(c *gin.Context, code string, err error) {
	if errors.Is(err, repository.ErrLinkNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Link not found",
		})
		return
	}
	h.logger.Error("Failed to load link", zap.String("code", code), zap.Error(err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Failed to load link",
	})
}

func (h *LinkHandler) linkResponse(link *models.Link) LinkResponse {
	return LinkResponse{
		ShortCode:   link.ShortCode,
		ShortURL:    h.baseURL + "/" + link.ShortCode,
		OriginalURL: link.OriginalURL,
		Flagged:     link.Flagged,
		FlagReason:  link.FlagReason,
		ExpiresAt:   link.ExpiresAt,
		CreatedAt:   link.CreatedAt,
	}
}
