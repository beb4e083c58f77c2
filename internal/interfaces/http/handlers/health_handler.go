package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/entitle/internal/infrastructure/emulator"
)

// HealthHandler reports emulator liveness.
type HealthHandler struct {
	ledger *emulator.Ledger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(ledger *emulator.Ledger) *HealthHandler {
	return &HealthHandler{ledger: ledger}
}

// Liveness answers 200 with the number of outstanding consumptions.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"outstanding": h.ledger.Outstanding(),
	})
}
