package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hekumbi_chat/internal/usecases"
)

func (h *Handler) Login(c *gin.Context) {
	var loginReq struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&loginReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	token, err := h.auth.Login(loginReq.Username, loginReq.Password)
	if errors.Is(err, usecases.ErrAdminDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handler) BotInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"welcome":  h.bot.Welcome(),
		"keywords": h.bot.Keywords(),
	})
}

func (h *Handler) Analytics(c *gin.Context) {
	out, err := h.dashboard.Overview(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
