package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"navkeeper/internal/auth"
	"navkeeper/internal/models"
	"navkeeper/internal/valuation"
)

// PositionStore is the slice of the repository the fund handlers need.
type PositionStore interface {
	ListPositions(ctx context.Context, userID string) ([]models.Position, error)
	GetPosition(ctx context.Context, userID, code string) (models.Position, error)
	CreatePosition(ctx context.Context, p models.Position) error
	UpdatePositionAmount(ctx context.Context, userID, code string, amount, shares decimal.Decimal) error
	DeletePosition(ctx context.Context, userID, code string) error
	SearchPositions(ctx context.Context, userID, keyword string) ([]models.Position, error)
}

// UserStore is the slice of the repository the auth handlers need.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// QuoteProvider produces fund and gold quotes; it never fails, only
// degrades.
type QuoteProvider interface {
	Quote(ctx context.Context, code string) models.Quote
	Gold(ctx context.Context) models.GoldQuote
	FundHistory(ctx context.Context, code string) (string, []models.Bar)
	GoldHistory(ctx context.Context) []models.Bar
	GoldMinute(ctx context.Context) []models.MinutePoint
}

type Handler struct {
	store    PositionStore
	users    UserStore
	quotes   QuoteProvider
	auth     *auth.Manager
	sellMode valuation.SellMode
	log      *logrus.Logger
}

func NewHandler(store PositionStore, users UserStore, quotes QuoteProvider, authMgr *auth.Manager, sellMode valuation.SellMode, log *logrus.Logger) *Handler {
	return &Handler{store: store, users: users, quotes: quotes, auth: authMgr, sellMode: sellMode, log: log}
}

// fundView assembles the API row for one position: stored amount/shares
// plus the live (or synthetic) estimate and the derived market value.
func (h *Handler) fundView(ctx context.Context, p models.Position) gin.H {
	quote := h.quotes.Quote(ctx, p.Code)
	nav := valuation.EffectiveNav(quote.Nav())
	value := valuation.MarketValue(p.Shares, nav)
	return gin.H{
		"code":            p.Code,
		"name":            p.Name,
		"amount":          p.Amount.String(),
		"shares":          p.Shares.String(),
		"estimate":        quote.Estimate,
		"estimate_change": quote.EstimateChange,
		"time":            quote.Time,
		"type":            quote.Type,
		"sector":          quote.Sector,
		"current_value":   value.StringFixed(4),
	}
}

func (h *Handler) ListFunds(c *gin.Context) {
	ctx := c.Request.Context()
	positions, err := h.store.ListPositions(ctx, auth.UserID(c))
	if err != nil {
		h.log.Errorf("list positions failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	res := []gin.H{}
	for _, p := range positions {
		res = append(res, h.fundView(ctx, p))
	}
	c.JSON(http.StatusOK, res)
}

type AddFundRequest struct {
	Code   string          `json:"code" binding:"required"`
	Name   string          `json:"name" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) AddFund(c *gin.Context) {
	var req AddFundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid add fund body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Amount.Cmp(decimal.Zero) < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must not be negative"})
		return
	}

	ctx := c.Request.Context()
	pos := models.Position{UserID: auth.UserID(c), Code: req.Code, Name: req.Name}
	if req.Amount.Cmp(decimal.Zero) > 0 {
		quote := h.quotes.Quote(ctx, req.Code)
		nav := valuation.EffectiveNav(quote.Nav())
		var err error
		pos, err = valuation.ApplyBuy(pos, req.Amount, nav)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
	}

	if err := h.store.CreatePosition(ctx, pos); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "fund already exists"})
			return
		}
		h.log.Errorf("create position failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "fund added",
		"code":    pos.Code,
		"name":    pos.Name,
		"amount":  pos.Amount.String(),
		"shares":  pos.Shares.String(),
	})
}

func (h *Handler) DeleteFund(c *gin.Context) {
	code := c.Param("code")
	if err := h.store.DeletePosition(c.Request.Context(), auth.UserID(c), code); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "fund not found"})
			return
		}
		h.log.Errorf("delete position failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "fund deleted", "code": code})
}

type UpdateAmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Sell   bool            `json:"sell"`
}

// UpdateAmount applies a buy or sell to an existing position at the current
// estimate. On a sell, Amount is the invested amount remaining afterwards.
func (h *Handler) UpdateAmount(c *gin.Context) {
	code := c.Param("code")
	var req UpdateAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("invalid amount body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	userID := auth.UserID(c)
	pos, err := h.store.GetPosition(ctx, userID, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "fund not found"})
			return
		}
		h.log.Errorf("get position failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	quote := h.quotes.Quote(ctx, code)
	nav := valuation.EffectiveNav(quote.Nav())

	var message string
	if req.Sell {
		pos, err = valuation.ApplySell(pos, req.Amount, nav, h.sellMode)
		message = "fund sold"
	} else {
		pos, err = valuation.ApplyBuy(pos, req.Amount, nav)
		message = "amount added"
	}
	if err != nil {
		if req.Sell {
			c.JSON(http.StatusBadRequest, gin.H{"error": "remaining amount must not be negative"})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		}
		return
	}

	if err := h.store.UpdatePositionAmount(ctx, userID, code, pos.Amount, pos.Shares); err != nil {
		h.log.Errorf("update position failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    message,
		"code":       code,
		"new_amount": pos.Amount.String(),
		"new_shares": pos.Shares.String(),
	})
}

func (h *Handler) GetFund(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}
	ctx := c.Request.Context()
	pos, err := h.store.GetPosition(ctx, auth.UserID(c), code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "fund not found"})
			return
		}
		h.log.Errorf("get position failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.fundView(ctx, pos))
}

// SearchFunds matches the caller's own positions by code or name, and when
// the keyword looks like a fund code it also probes the quote source for
// funds not yet held.
func (h *Handler) SearchFunds(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "keyword is required"})
		return
	}

	ctx := c.Request.Context()
	positions, err := h.store.SearchPositions(ctx, auth.UserID(c), keyword)
	if err != nil {
		h.log.Errorf("search positions failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	res := []gin.H{}
	held := map[string]bool{}
	for _, p := range positions {
		view := h.fundView(ctx, p)
		view["exists"] = true
		res = append(res, view)
		held[p.Code] = true
	}

	if isCodeLike(keyword) && !held[keyword] {
		quote := h.quotes.Quote(ctx, keyword)
		res = append(res, gin.H{
			"code":            quote.Code,
			"name":            quote.Name,
			"amount":          "0",
			"estimate":        quote.Estimate,
			"estimate_change": quote.EstimateChange,
			"time":            quote.Time,
			"type":            quote.Type,
			"sector":          quote.Sector,
			"exists":          false,
		})
	}
	c.JSON(http.StatusOK, res)
}

func isCodeLike(s string) bool {
	if len(s) < 4 {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) < 0
}

// FundInfo returns the live (or synthetic) quote for any code, held or not.
func (h *Handler) FundInfo(c *gin.Context) {
	quote := h.quotes.Quote(c.Request.Context(), c.Param("code"))
	c.JSON(http.StatusOK, quote)
}

func (h *Handler) FundHistory(c *gin.Context) {
	code := c.Param("code")
	name, bars := h.quotes.FundHistory(c.Request.Context(), code)
	c.JSON(http.StatusOK, gin.H{"code": code, "name": name, "history": bars})
}
