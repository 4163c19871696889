package account

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for account registration.
type Handler struct {
	service *Service
}

// NewHandler creates a new account handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up account routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/accounts", h.Create)
	r.GET("/accounts/:identity", h.Get)
}

// CreateRequest is the payload for registering an account.
type CreateRequest struct {
	Identity  string `json:"identity" binding:"required"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}

// Create handles POST /v1/accounts
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	acct, err := h.service.Create(c.Request.Context(), req.Identity, req.FirstName, req.LastName)
	switch {
	case errors.Is(err, ErrAccountExists):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "account_exists",
			"message": "Identity is already registered",
		})
		return
	case errors.Is(err, ErrInvalidIdentity), errors.Is(err, ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"account": acct})
}

// Get handles GET /v1/accounts/:identity
func (h *Handler) Get(c *gin.Context) {
	acct, err := h.service.Get(c.Request.Context(), c.Param("identity"))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Account not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": acct})
}
