package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/canopyledger/wallet-trust/internal/auth"
	"github.com/canopyledger/wallet-trust/internal/wallet"
)

// WalletHandler handles HTTP requests for the wallet directory. All
// listings are scoped to the authenticated wallet's hierarchy.
type WalletHandler struct {
	svc    *wallet.Service
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(svc *wallet.Service, tokens *auth.TokenIssuer, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{svc: svc, tokens: tokens, logger: logger}
}

// Register registers the wallet routes.
func (h *WalletHandler) Register(r gin.IRouter) {
	ws := r.Group("/wallets", auth.RequireWallet(h.tokens))
	{
		ws.GET("", h.List)
		ws.GET("/:id", h.GetByID)
	}
}

// List handles GET /wallets — the authenticated wallet plus everything it
// controls. Supports ?name= substring filtering, ?offset/?limit paging,
// and ?count=true for a total decoupled from the page.
func (h *WalletHandler) List(c *gin.Context) {
	walletID := auth.WalletIDFromCtx(c)

	paging := &wallet.Paging{}
	paging.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	paging.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "0"))
	wantCount := c.Query("count") == "true"

	wallets, count, err := h.svc.GetAllWallets(c.Request.Context(), walletID, paging, c.Query("name"), wantCount)
	if err != nil {
		writeError(c, err)
		return
	}
	if wallets == nil {
		wallets = []*wallet.Wallet{}
	}

	resp := gin.H{"wallets": wallets}
	if wantCount {
		resp["total"] = count
	}
	c.JSON(http.StatusOK, resp)
}

// GetByID handles GET /wallets/:id. A wallet outside the caller's
// hierarchy reads as absent.
func (h *WalletHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet id"})
		return
	}
	loginID := auth.WalletIDFromCtx(c)

	members, _, err := h.svc.GetAllWallets(c.Request.Context(), loginID, nil, "", false)
	if err != nil {
		writeError(c, err)
		return
	}
	for _, w := range members {
		if w.ID == id {
			c.JSON(http.StatusOK, w)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": wallet.ErrNotFound.Error()})
}
