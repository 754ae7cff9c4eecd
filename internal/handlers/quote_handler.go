package handlers

import (
	"net/http"
	"strconv"

	"quote_manager/internal/models"
	"quote_manager/internal/repository"
	"quote_manager/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (h *APIHandler) CreateQuote(c *gin.Context) {
	var input services.CreateQuoteInput
	if !h.bindJSON(c, "CreateQuote", &input) {
		return
	}
	quote, err := h.quoteService.CreateQuote(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, "CreateQuote", err)
		return
	}
	c.JSON(http.StatusCreated, quote)
}

func (h *APIHandler) GetQuote(c *gin.Context) {
	quote, err := h.quoteService.GetQuote(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "GetQuote", err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *APIHandler) ListQuotes(c *gin.Context) {
	filter := repository.QuoteFilter{
		Status:     models.QuoteStatus(c.Query("status")),
		CustomerID: c.Query("customer_id"),
		Limit:      queryInt(c, "limit", defaultPageSize),
		Offset:     queryInt(c, "offset", 0),
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	quotes, total, err := h.quoteService.ListQuotes(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, "ListQuotes", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"quotes": quotes,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func queryInt(c *gin.Context, key string, defaultValue int) int {
	if value := c.Query(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (h *APIHandler) DeleteQuote(c *gin.Context) {
	if err := h.quoteService.DeleteQuote(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, "DeleteQuote", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) GetQuoteSummary(c *gin.Context) {
	summary, err := h.quoteService.GetQuoteSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "GetQuoteSummary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *APIHandler) GetCalculationHistory(c *gin.Context) {
	history, err := h.quoteService.GetCalculationHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "GetCalculationHistory", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *APIHandler) Recalculate(c *gin.Context) {
	quote, err := h.quoteService.Recalculate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "Recalculate", err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *APIHandler) UpdateCharges(c *gin.Context) {
	var input services.ChargesInput
	if !h.bindJSON(c, "UpdateCharges", &input) {
		return
	}
	quote, err := h.quoteService.UpdateCharges(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.respondError(c, "UpdateCharges", err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *APIHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status models.QuoteStatus `json:"status" binding:"required,oneof=draft sent accepted rejected"`
	}
	if !h.bindJSON(c, "UpdateStatus", &req) {
		return
	}
	quote, err := h.quoteService.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.respondError(c, "UpdateStatus", err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *APIHandler) AddTask(c *gin.Context) {
	var input services.TaskInput
	if !h.bindJSON(c, "AddTask", &input) {
		return
	}
	task, err := h.quoteService.AddTask(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.respondError(c, "AddTask", err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *APIHandler) UpdateTask(c *gin.Context) {
	var patch services.TaskPatch
	if !h.bindJSON(c, "UpdateTask", &patch) {
		return
	}
	task, err := h.quoteService.UpdateTask(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, "UpdateTask", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *APIHandler) RemoveTask(c *gin.Context) {
	if err := h.quoteService.RemoveTask(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, "RemoveTask", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) AddMaterial(c *gin.Context) {
	var input services.MaterialInput
	if !h.bindJSON(c, "AddMaterial", &input) {
		return
	}
	line, err := h.quoteService.AddMaterial(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.respondError(c, "AddMaterial", err)
		return
	}
	c.JSON(http.StatusCreated, line)
}

func (h *APIHandler) UpdateMaterial(c *gin.Context) {
	var patch services.MaterialPatch
	if !h.bindJSON(c, "UpdateMaterial", &patch) {
		return
	}
	line, err := h.quoteService.UpdateMaterial(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, "UpdateMaterial", err)
		return
	}
	c.JSON(http.StatusOK, line)
}

func (h *APIHandler) RemoveMaterial(c *gin.Context) {
	if err := h.quoteService.RemoveMaterial(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, "RemoveMaterial", err)
		return
	}
	c.Status(http.StatusNoContent)
}
