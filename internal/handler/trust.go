package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/canopyledger/wallet-trust/internal/auth"
	"github.com/canopyledger/wallet-trust/internal/trust"
)

// TrustHandler handles HTTP requests for trust relationships.
type TrustHandler struct {
	svc    *trust.Service
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

// NewTrustHandler creates a TrustHandler.
func NewTrustHandler(svc *trust.Service, tokens *auth.TokenIssuer, logger *zap.Logger) *TrustHandler {
	return &TrustHandler{svc: svc, tokens: tokens, logger: logger}
}

// Register registers the trust relationship routes.
func (h *TrustHandler) Register(r gin.IRouter) {
	tr := r.Group("/trust_relationships", auth.RequireWallet(h.tokens))
	{
		tr.GET("", h.List)
		tr.POST("", h.Create)
		tr.GET("/:id", h.GetByID)
		tr.POST("/:id/accept", h.Accept)
		tr.POST("/:id/decline", h.Decline)
		tr.POST("/:id/cancel", h.Cancel)
	}
}

// buildFilter assembles a trust.Filter from query parameters, validating
// the enum fields before any store call.
func buildFilter(c *gin.Context, walletID uuid.UUID) (trust.Filter, error) {
	f := trust.Filter{WalletID: walletID}
	if s := c.Query("state"); s != "" {
		state, err := trust.ParseState(s)
		if err != nil {
			return f, err
		}
		f.State = state
	}
	if rt := c.Query("request_type"); rt != "" {
		requestType, err := trust.ParseRequestType(rt)
		if err != nil {
			return f, err
		}
		f.RequestType = requestType
	}
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "0"))
	return f, nil
}

// List handles GET /trust_relationships. With ?all=true the listing spans
// the wallet's full controlled hierarchy (no pagination at that level).
func (h *TrustHandler) List(c *gin.Context) {
	walletID := auth.WalletIDFromCtx(c)
	f, err := buildFilter(c, walletID)
	if err != nil {
		writeError(c, err)
		return
	}

	var rels []*trust.TrustRelationship
	if c.Query("all") == "true" {
		rels, err = h.svc.GetAllTrustRelationships(c.Request.Context(), f)
	} else {
		rels, err = h.svc.GetTrustRelationships(c.Request.Context(), f)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	if rels == nil {
		rels = []*trust.TrustRelationship{}
	}
	c.JSON(http.StatusOK, gin.H{"trust_relationships": rels})
}

// createTrustRequest is the payload for POST /trust_relationships.
type createTrustRequest struct {
	TrustRequestType string `json:"trust_request_type" binding:"required"`
	RequesteeWallet  string `json:"requestee_wallet"   binding:"required"`
	RequesterWallet  string `json:"requester_wallet"`
}

// Create handles POST /trust_relationships.
func (h *TrustHandler) Create(c *gin.Context) {
	var req createTrustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tr, err := h.svc.CreateTrustRelationship(c.Request.Context(), trust.CreateRequest{
		WalletLoginID:   auth.WalletIDFromCtx(c),
		RequesteeWallet: req.RequesteeWallet,
		RequesterWallet: req.RequesterWallet,
		RequestType:     req.TrustRequestType,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	recordTrustTransition("request", "ok")
	c.JSON(http.StatusOK, tr)
}

// GetByID handles GET /trust_relationships/:id.
func (h *TrustHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trust relationship id"})
		return
	}
	tr, err := h.svc.TrustRelationshipGetByID(c.Request.Context(), auth.WalletIDFromCtx(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tr)
}

// Accept handles POST /trust_relationships/:id/accept.
func (h *TrustHandler) Accept(c *gin.Context) {
	h.transition(c, "accept", h.svc.AcceptTrustRequestSentToMe)
}

// Decline handles POST /trust_relationships/:id/decline.
func (h *TrustHandler) Decline(c *gin.Context) {
	h.transition(c, "decline", h.svc.DeclineTrustRequestSentToMe)
}

// Cancel handles POST /trust_relationships/:id/cancel.
func (h *TrustHandler) Cancel(c *gin.Context) {
	h.transition(c, "cancel", h.svc.CancelTrustRequest)
}

// transition runs one of the accept/decline/cancel flows and records the
// outcome metric.
func (h *TrustHandler) transition(c *gin.Context, action string, fn func(ctx context.Context, walletID, id uuid.UUID) (*trust.TrustRelationship, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trust relationship id"})
		return
	}
	tr, err := fn(c.Request.Context(), auth.WalletIDFromCtx(c), id)
	if err != nil {
		recordTrustTransition(action, "rejected")
		writeError(c, err)
		return
	}
	recordTrustTransition(action, "ok")
	c.JSON(http.StatusOK, tr)
}
