package ticket

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/ticketline/internal/validation"
)

// Handler provides HTTP endpoints for marketplace operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new ticket handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up ticket routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/tickets", h.Create)
	r.GET("/tickets/:id", h.Get)
	r.GET("/owners/:identity/quantity", h.OwnerQuantity)
	r.POST("/tickets/:id/price", h.Revise)
	r.POST("/tickets/:id/transfer", h.Transfer)
	r.POST("/tickets/:id/release", h.Release)
	r.POST("/tickets/:id/approve", h.Approve)
	r.POST("/tickets/:id/transfer-second", h.TransferSecond)
	r.POST("/tickets/:id/settle", h.Settle)
}

// caller resolves the acting identity from the X-Caller-ID header.
func caller(c *gin.Context) string {
	return c.GetHeader("X-Caller-ID")
}

func ticketID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_ticket_id",
			"message": "Ticket ID must be a non-negative integer",
		})
		return 0, false
	}
	return id, true
}

// fail maps service errors to HTTP responses.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrTicketNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Ticket not found"})
	case errors.Is(err, ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized", "message": err.Error()})
	case errors.Is(err, ErrInsufficientPayment):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient_payment", "message": err.Error()})
	case errors.Is(err, ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient_funds", "message": err.Error()})
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrNoHeldFunds):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_state", "message": err.Error()})
	case errors.Is(err, ErrInvalidPrice), errors.Is(err, ErrInvalidIdentity),
		errors.Is(err, ErrSelfDeal), errors.Is(err, ErrUnsplittablePayment):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
	}
}

// CreateRequest is the payload for minting a ticket.
type CreateRequest struct {
	EventName string `json:"eventName" binding:"required"`
	Seat      string `json:"seat" binding:"required"`
	Price     int64  `json:"price"`
}

// Create handles POST /v1/tickets
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}

	t, err := h.service.Create(c.Request.Context(), caller(c), req.EventName, req.Seat, req.Price)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ticket": t})
}

// Get handles GET /v1/tickets/:id
func (h *Handler) Get(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}

	t, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": t})
}

// OwnerQuantity handles GET /v1/owners/:identity/quantity
func (h *Handler) OwnerQuantity(c *gin.Context) {
	identity := c.Param("identity")
	if !validation.IsValidIdentity(identity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_identity", "message": "Invalid identity"})
		return
	}

	count, err := h.service.OwnerToQuantity(c.Request.Context(), identity)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": identity, "quantity": count})
}

// ReviseRequest is the payload for a price revision.
type ReviseRequest struct {
	Price int64 `json:"price"`
}

// Revise handles POST /v1/tickets/:id/price
func (h *Handler) Revise(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}

	var req ReviseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}

	t, err := h.service.Revise(c.Request.Context(), caller(c), id, req.Price)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": t})
}

// TransferRequest is the payload for a primary sale. Payment has no
// required binding: zero is a valid payment for a free ticket.
type TransferRequest struct {
	Seller  string `json:"seller" binding:"required"`
	Payment int64  `json:"payment"`
}

// Transfer handles POST /v1/tickets/:id/transfer
// The caller is the buyer.
func (h *Handler) Transfer(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}

	t, err := h.service.Transfer(c.Request.Context(), caller(c), req.Seller, id, req.Payment)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": t})
}

// Release handles POST /v1/tickets/:id/release
func (h *Handler) Release(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}

	t, err := h.service.ReleaseHeld(c.Request.Context(), caller(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": t})
}

// ApproveRequest is the payload for a secondary-market approval.
type ApproveRequest struct {
	Payment int64 `json:"payment"`
}

// Approve handles POST /v1/tickets/:id/approve
// The caller is the prospective buyer.
func (h *Handler) Approve(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}

	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}

	t, err := h.service.Approve(c.Request.Context(), caller(c), id, req.Payment)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": t})
}

// TransferSecondRequest is the payload for the secondary-market transfer.
type TransferSecondRequest struct {
	Buyer string `json:"buyer" binding:"required"`
}

// TransferSecond handles POST /v1/tickets/:id/transfer-second
// The caller is the current owner (seller).
func (h *Handler) TransferSecond(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}

	var req TransferSecondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}

	t, err := h.service.TransferToApproved(c.Request.Context(), caller(c), req.Buyer, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": t})
}

// Settle handles POST /v1/tickets/:id/settle
// The caller is the seller entitled to the proceeds.
func (h *Handler) Settle(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}

	result, err := h.service.Settle(c.Request.Context(), caller(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settlement": result})
}
