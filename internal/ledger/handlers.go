package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/ticketline/internal/validation"
)

// Handler provides HTTP endpoints for the balance ledger.
type Handler struct {
	ledger *Ledger
}

// NewHandler creates a new ledger handler.
func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// RegisterRoutes sets up ledger routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/ledger/:identity/deposit", h.Deposit)
	r.GET("/ledger/:identity", h.Balance)
	r.GET("/ledger/:identity/history", h.History)
	// Static segment would conflict with :identity in the router tree,
	// so reconciliation lives at the group root.
	r.GET("/reconciliation", h.Reconcile)
}

// DepositRequest is the payload for crediting an identity.
type DepositRequest struct {
	Amount    int64  `json:"amount" binding:"required"`
	Reference string `json:"reference" binding:"required"`
}

// Deposit handles POST /v1/ledger/:identity/deposit
func (h *Handler) Deposit(c *gin.Context) {
	identity := c.Param("identity")
	if !validation.IsValidIdentity(identity) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_identity",
			"message": "Identity is not a valid ledger key",
		})
		return
	}

	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}
	if !validation.IsValidAmount(req.Amount) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_amount",
			"message": "Amount must be a positive number of minor units",
		})
		return
	}

	err := h.ledger.Deposit(c.Request.Context(), identity, req.Amount, req.Reference)
	switch {
	case errors.Is(err, ErrDuplicateDeposit):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "duplicate_deposit",
			"message": "Deposit reference already processed",
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "deposit_failed",
			"message": err.Error(),
		})
		return
	}

	bal, err := h.ledger.Balance(c.Request.Context(), identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": bal})
}

// Balance handles GET /v1/ledger/:identity
func (h *Handler) Balance(c *gin.Context) {
	bal, err := h.ledger.Balance(c.Request.Context(), c.Param("identity"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": bal})
}

// History handles GET /v1/ledger/:identity/history
func (h *Handler) History(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 200 {
				limit = 200
			}
		}
	}

	entries, err := h.ledger.History(c.Request.Context(), c.Param("identity"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// Reconcile handles GET /v1/reconciliation
func (h *Handler) Reconcile(c *gin.Context) {
	results, err := h.ledger.ReconcileAll(c.Request.Context())
	switch {
	case errors.Is(err, ErrNoEventLog):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "no_event_log",
			"message": "Reconciliation requires an event log",
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	mismatches := 0
	for _, r := range results {
		if !r.Match {
			mismatches++
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "mismatches": mismatches})
}
