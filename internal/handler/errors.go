package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/canopyledger/wallet-trust/internal/trust"
	"github.com/canopyledger/wallet-trust/internal/wallet"
)

// writeError recovers domain errors into stable HTTP status codes.
// Anything outside the taxonomy is a 500 with a generic message.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, trust.ErrNotFound), errors.Is(err, wallet.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, trust.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, trust.ErrConflict), errors.Is(err, trust.ErrSelfTrust):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, trust.ErrValidation), errors.Is(err, wallet.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, wallet.ErrBadCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
