package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const goldName = "Shanghai Gold"

func (h *Handler) Gold(c *gin.Context) {
	c.JSON(http.StatusOK, h.quotes.Gold(c.Request.Context()))
}

func (h *Handler) GoldHistory(c *gin.Context) {
	bars := h.quotes.GoldHistory(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"code": "AU9999", "name": goldName, "history": bars})
}

func (h *Handler) GoldMinute(c *gin.Context) {
	points := h.quotes.GoldMinute(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"code": "AU9999", "name": goldName, "minute_data": points})
}
