package handlers

import (
	"errors"
	"net/http"

	"quote_manager/internal/apperrors"
	"quote_manager/internal/config"
	"quote_manager/internal/models"
	"quote_manager/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type APIHandler struct {
	quoteService    services.QuoteService
	customerService services.CustomerService
	productService  services.ProductService
	logger          *logrus.Logger
}

func NewAPIHandler(
	quoteService services.QuoteService,
	customerService services.CustomerService,
	productService services.ProductService,
	logger *logrus.Logger,
) *APIHandler {
	return &APIHandler{
		quoteService:    quoteService,
		customerService: customerService,
		productService:  productService,
		logger:          logger,
	}
}

// RegisterRoutes mounts the JSON API under /api.
func (h *APIHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/customers", h.CreateCustomer)
		api.GET("/customers/:id", h.GetCustomer)

		api.POST("/products", h.CreateProduct)
		api.GET("/products/:id", h.GetProduct)

		api.POST("/quotes", h.CreateQuote)
		api.GET("/quotes", h.ListQuotes)
		api.GET("/quotes/:id", h.GetQuote)
		api.DELETE("/quotes/:id", h.DeleteQuote)
		api.GET("/quotes/:id/summary", h.GetQuoteSummary)
		api.GET("/quotes/:id/history", h.GetCalculationHistory)
		api.POST("/quotes/:id/recalculate", h.Recalculate)
		api.PUT("/quotes/:id/charges", h.UpdateCharges)
		api.PUT("/quotes/:id/status", h.UpdateStatus)
		api.POST("/quotes/:id/tasks", h.AddTask)

		api.PATCH("/tasks/:id", h.UpdateTask)
		api.DELETE("/tasks/:id", h.RemoveTask)
		api.POST("/tasks/:id/materials", h.AddMaterial)

		api.PATCH("/materials/:id", h.UpdateMaterial)
		api.DELETE("/materials/:id", h.RemoveMaterial)
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

var statusByKind = map[apperrors.Kind]int{
	apperrors.KindInvalidAmount:       http.StatusBadRequest,
	apperrors.KindNotFound:            http.StatusNotFound,
	apperrors.KindConflictOnSave:      http.StatusConflict,
	apperrors.KindInvalidState:        http.StatusUnprocessableEntity,
	apperrors.KindInternalComputation: http.StatusInternalServerError,
}

// respondError writes the status and code for err's kind. Errors outside the
// taxonomy are logged and reported as internal errors.
func (h *APIHandler) respondError(c *gin.Context, funcName string, err error) {
	kind := apperrors.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		config.LogError(h.logger, "api_handler", funcName, c.FullPath(), gin.H{"params": c.Params}, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorBody{Code: "internal_error", Message: "internal server error"}})
		return
	}
	if status >= http.StatusInternalServerError || kind == apperrors.KindConflictOnSave {
		config.LogError(h.logger, "api_handler", funcName, c.FullPath(), gin.H{"params": c.Params}, err)
	}

	body := errorBody{Code: string(kind), Message: err.Error()}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		body.Field = appErr.Field
	}
	c.JSON(status, gin.H{"error": body})
}

// bindJSON decodes and validates the body into dest. Malformed JSON answers
// 400 invalid_request; Money fields and binding rules answer with their kind.
func (h *APIHandler) bindJSON(c *gin.Context, funcName string, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			h.respondError(c, funcName, fieldError(fieldErrs[0]))
			return false
		}
		if apperrors.KindOf(err) != "" {
			h.respondError(c, funcName, err)
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Code: "invalid_request", Message: "Invalid request format: " + err.Error()}})
		return false
	}
	return true
}

func (h *APIHandler) CreateCustomer(c *gin.Context) {
	var customer models.Customer
	if !h.bindJSON(c, "CreateCustomer", &customer) {
		return
	}
	customer.ID = ""
	if err := h.customerService.CreateCustomer(c.Request.Context(), &customer); err != nil {
		h.respondError(c, "CreateCustomer", err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *APIHandler) GetCustomer(c *gin.Context) {
	customer, err := h.customerService.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "GetCustomer", err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *APIHandler) CreateProduct(c *gin.Context) {
	var product models.Product
	if !h.bindJSON(c, "CreateProduct", &product) {
		return
	}
	product.ID = ""
	if err := h.productService.CreateProduct(c.Request.Context(), &product); err != nil {
		h.respondError(c, "CreateProduct", err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *APIHandler) GetProduct(c *gin.Context) {
	product, err := h.productService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "GetProduct", err)
		return
	}
	c.JSON(http.StatusOK, product)
}
