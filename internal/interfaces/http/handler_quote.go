package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hekumbi_chat/internal/entities"
	"hekumbi_chat/internal/usecases"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) SubmitQuote(c *gin.Context) {
	var req usecases.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	if req.CustomerID != "" && !ValidID(req.CustomerID) {
		req.CustomerID = ""
	}
	if req.ChatID != "" && !ValidID(req.ChatID) {
		badRequest(c, "Invalid chat id")
		return
	}
	q, err := h.quotes.SubmitQuote(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"quote": q})
}

func (h *Handler) EstimateQuote(c *gin.Context) {
	var req struct {
		Area      float64 `json:"area"`
		Frequency string  `json:"frequency"`
		Urgency   string  `json:"urgency"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	c.JSON(http.StatusOK, h.quotes.Preview(req.Area, req.Frequency, req.Urgency))
}

func (h *Handler) QuoteQRCode(c *gin.Context) {
	id := c.Param("id")
	if !ValidID(id) {
		badRequest(c, "Invalid quote id")
		return
	}
	png, err := h.quotes.QRCode(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) ListQuotes(c *gin.Context) {
	out, err := h.quotes.ListQuotes(c.Request.Context(), listFilter(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) UpdateQuote(c *gin.Context) {
	var req struct {
		ID string `json:"id"`
		entities.QuotePatch
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	if !ValidID(req.ID) {
		badRequest(c, "id: is required")
		return
	}
	q, err := h.quotes.UpdateQuote(c.Request.Context(), req.ID, req.QuotePatch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "quote": q})
}

func (h *Handler) ExportQuotes(c *gin.Context) {
	var buf bytes.Buffer
	n, err := h.quotes.ExportXLSX(c.Request.Context(), listFilter(c), &buf)
	if err != nil {
		h.respondError(c, err)
		return
	}
	filename := fmt.Sprintf("orcamentos-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header("X-Total-Count", strconv.Itoa(n))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
