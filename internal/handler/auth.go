package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/canopyledger/wallet-trust/internal/auth"
	"github.com/canopyledger/wallet-trust/internal/wallet"
)

// AuthHandler exchanges wallet credentials for a session token.
type AuthHandler struct {
	wallets *wallet.Service
	tokens  *auth.TokenIssuer
	logger  *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(wallets *wallet.Service, tokens *auth.TokenIssuer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{wallets: wallets, tokens: tokens, logger: logger}
}

// Register registers the auth route on the router.
func (h *AuthHandler) Register(r gin.IRouter) {
	r.POST("/auth", h.Login)
}

type loginRequest struct {
	Wallet   string `json:"wallet"   binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /auth.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w, err := h.wallets.VerifyPassword(c.Request.Context(), req.Wallet, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	token, err := h.tokens.Issue(w.ID, w.Name)
	if err != nil {
		h.logger.Error("issue wallet token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.logger.Info("wallet logged in", zap.String("wallet", w.Name))
	c.JSON(http.StatusOK, gin.H{"token": token})
}
