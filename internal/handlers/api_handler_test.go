package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"quote_manager/internal/apperrors"
	"quote_manager/internal/database"
	"quote_manager/internal/models"
	"quote_manager/internal/repository"
	"quote_manager/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	customers := repository.NewCustomerRepository(db)
	products := repository.NewProductRepository(db)
	quoteSvc := services.NewQuoteService(
		repository.NewTransactor(db),
		repository.NewQuoteRepository(db),
		customers,
		products,
		repository.NewPricingSettingRepository(db),
		nil, nil, quietLogger(),
	)
	return routerFor(NewAPIHandler(quoteSvc, services.NewCustomerService(customers), services.NewProductService(products), quietLogger()))
}

func routerFor(h *APIHandler) *gin.Engine {
	router := gin.New()
	h.RegisterRoutes(router)
	return router
}

func do(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return w, decoded
}

func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	e, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "missing error object in %v", body)
	return e["code"].(string)
}

func createCustomer(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w, body := do(t, router, http.MethodPost, "/api/customers", `{"name":"Ada","phone":"0811"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return body["id"].(string)
}

func createQuote(t *testing.T, router *gin.Engine, customerID string) string {
	t.Helper()
	w, body := do(t, router, http.MethodPost, "/api/quotes", `{"customer_id":"`+customerID+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return body["id"].(string)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)
	w, body := do(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestQuoteLifecycle(t *testing.T) {
	router := newTestRouter(t)
	customerID := createCustomer(t, router)
	quoteID := createQuote(t, router, customerID)

	w, task := do(t, router, http.MethodPost, "/api/quotes/"+quoteID+"/tasks",
		`{"description":"Demolition","labor_price":"100.00","material_mode":"lump_sum","estimated_material_cost":50}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "100.00", task["labor_price"])

	w, charges := do(t, router, http.MethodPut, "/api/quotes/"+quoteID+"/charges",
		`{"complexity_charge":"50.00","markup_percentage":"10"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "20.00", charges["markup_charge"])
	assert.Equal(t, "220.00", charges["grand_total"])

	w, framing := do(t, router, http.MethodPost, "/api/quotes/"+quoteID+"/tasks",
		`{"description":"Framing","labor_price":"0","material_mode":"itemized"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	taskID := framing["id"].(string)

	w, line := do(t, router, http.MethodPost, "/api/tasks/"+taskID+"/materials", `{"quantity":3,"unit_price":"10.00"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	materialID := line["id"].(string)

	w, _ = do(t, router, http.MethodPatch, "/api/materials/"+materialID, `{"quantity":2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, summary := do(t, router, http.MethodGet, "/api/quotes/"+quoteID+"/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "70.00", summary["subtotal_materials"])
	assert.Equal(t, "242.00", summary["grand_total"])
	assert.Equal(t, float64(2), summary["task_count"])

	w, _ = do(t, router, http.MethodDelete, "/api/materials/"+materialID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = do(t, router, http.MethodPatch, "/api/tasks/"+taskID, `{"labor_price":"5.00"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = do(t, router, http.MethodDelete, "/api/tasks/"+taskID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, quote := do(t, router, http.MethodPost, "/api/quotes/"+quoteID+"/recalculate", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "220.00", quote["grand_total"])

	w, quote = do(t, router, http.MethodPut, "/api/quotes/"+quoteID+"/status", `{"status":"sent"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sent", quote["status"])

	w, quote = do(t, router, http.MethodGet, "/api/quotes/"+quoteID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, quote["tasks"], 1)

	w, history := do(t, router, http.MethodGet, "/api/quotes/"+quoteID+"/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, history["history"], 10)

	w, list := do(t, router, http.MethodGet, "/api/quotes?status=sent&limit=500", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), list["total"])
	assert.Equal(t, float64(maxPageSize), list["limit"])

	w, _ = do(t, router, http.MethodDelete, "/api/quotes/"+quoteID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, body := do(t, router, http.MethodGet, "/api/quotes/"+quoteID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorCode(t, body))
}

func TestErrorStatusMapping(t *testing.T) {
	router := newTestRouter(t)
	customerID := createCustomer(t, router)
	quoteID := createQuote(t, router, customerID)
	w, lumpSum := do(t, router, http.MethodPost, "/api/quotes/"+quoteID+"/tasks",
		`{"description":"Haul","labor_price":"10.00","material_mode":"lump_sum"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"malformed body", http.MethodPost, "/api/quotes/" + quoteID + "/tasks", `{"description":`, http.StatusBadRequest, "invalid_request"},
		{"negative amount", http.MethodPost, "/api/quotes/" + quoteID + "/tasks", `{"description":"x","labor_price":"-1","material_mode":"lump_sum"}`, http.StatusBadRequest, "invalid_amount"},
		{"non-numeric amount", http.MethodPut, "/api/quotes/" + quoteID + "/charges", `{"complexity_charge":"lots"}`, http.StatusBadRequest, "invalid_amount"},
		{"both markup forms", http.MethodPut, "/api/quotes/" + quoteID + "/charges", `{"markup_percentage":"5","markup_override":"1.00"}`, http.StatusBadRequest, "invalid_amount"},
		{"unknown quote", http.MethodGet, "/api/quotes/nope", "", http.StatusNotFound, "not_found"},
		{"unknown task", http.MethodDelete, "/api/tasks/nope", "", http.StatusNotFound, "not_found"},
		{"unknown customer", http.MethodPost, "/api/quotes", `{"customer_id":"nope"}`, http.StatusNotFound, "not_found"},
		{"material on lump sum", http.MethodPost, "/api/tasks/" + lumpSum["id"].(string) + "/materials", `{"quantity":1,"unit_price":"1.00"}`, http.StatusUnprocessableEntity, "invalid_state"},
		{"unknown status", http.MethodPut, "/api/quotes/" + quoteID + "/status", `{"status":"archived"}`, http.StatusUnprocessableEntity, "invalid_state"},
		{"missing status", http.MethodPut, "/api/quotes/" + quoteID + "/status", `{}`, http.StatusUnprocessableEntity, "invalid_state"},
		{"zero quantity", http.MethodPost, "/api/tasks/" + lumpSum["id"].(string) + "/materials", `{"quantity":0,"unit_price":"1.00"}`, http.StatusBadRequest, "invalid_amount"},
		{"zero quantity patch", http.MethodPatch, "/api/materials/nope", `{"quantity":0}`, http.StatusBadRequest, "invalid_amount"},
		{"missing material mode", http.MethodPost, "/api/quotes/" + quoteID + "/tasks", `{"description":"x","labor_price":"1.00"}`, http.StatusUnprocessableEntity, "invalid_state"},
		{"unknown material mode", http.MethodPost, "/api/quotes/" + quoteID + "/tasks", `{"description":"x","material_mode":"bulk"}`, http.StatusUnprocessableEntity, "invalid_state"},
		{"missing customer", http.MethodPost, "/api/quotes", `{}`, http.StatusUnprocessableEntity, "invalid_state"},
		{"nested material quantity", http.MethodPost, "/api/quotes", `{"customer_id":"c","tasks":[{"description":"x","material_mode":"itemized","materials":[{"quantity":0,"unit_price":"1.00"}]}]}`, http.StatusBadRequest, "invalid_amount"},
		{"empty customer name", http.MethodPost, "/api/customers", `{"name":" "}`, http.StatusUnprocessableEntity, "invalid_state"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := do(t, router, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Equal(t, tc.code, errorCode(t, body))
		})
	}
}

func TestErrorFieldIsReported(t *testing.T) {
	router := newTestRouter(t)
	customerID := createCustomer(t, router)
	quoteID := createQuote(t, router, customerID)

	w, body := do(t, router, http.MethodPost, "/api/quotes/"+quoteID+"/tasks", `{"description":"","material_mode":"lump_sum"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	e := body["error"].(map[string]interface{})
	assert.Equal(t, "description", e["field"])
	assert.NotEmpty(t, e["message"])
}

func TestListQuotes_PageSize(t *testing.T) {
	router := newTestRouter(t)
	customerID := createCustomer(t, router)
	createQuote(t, router, customerID)

	cases := []struct {
		query string
		limit int
	}{
		{"", defaultPageSize},
		{"?limit=0", defaultPageSize},
		{"?limit=-5", defaultPageSize},
		{"?limit=abc", defaultPageSize},
		{"?limit=7", 7},
		{"?limit=101", maxPageSize},
	}
	for _, tc := range cases {
		t.Run("limit"+tc.query, func(t *testing.T) {
			w, body := do(t, router, http.MethodGet, "/api/quotes"+tc.query, "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, float64(tc.limit), body["limit"])
			assert.Equal(t, float64(1), body["total"])
		})
	}
}

func TestBindingErrorsNameTheJSONField(t *testing.T) {
	router := newTestRouter(t)
	customerID := createCustomer(t, router)
	quoteID := createQuote(t, router, customerID)

	w, body := do(t, router, http.MethodPost, "/api/quotes/"+quoteID+"/tasks", `{"description":"x","material_mode":"bulk"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "material_mode", body["error"].(map[string]interface{})["field"])

	w, body = do(t, router, http.MethodPost, "/api/products", `{"unit_price":"1.00"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "name", body["error"].(map[string]interface{})["field"])
}

func TestCatalogEndpoints(t *testing.T) {
	router := newTestRouter(t)
	customerID := createCustomer(t, router)

	w, customer := do(t, router, http.MethodGet, "/api/customers/"+customerID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ada", customer["name"])

	w, product := do(t, router, http.MethodPost, "/api/products", `{"name":"Sheet","unit_price":"12.40"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "unit", product["unit"])

	w, fetched := do(t, router, http.MethodGet, "/api/products/"+product["id"].(string), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12.40", fetched["unit_price"])

	w, _ = do(t, router, http.MethodGet, "/api/products/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// failingQuotes answers Recalculate with a fixed error.
type failingQuotes struct {
	services.QuoteService
	err error
}

func (f failingQuotes) Recalculate(ctx context.Context, quoteID string) (models.Quote, error) {
	return models.Quote{}, f.err
}

func TestErrorStatusMapping_ServerSide(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"conflict", apperrors.Conflict(errors.New("stale version")), http.StatusConflict, "conflict_on_save"},
		{"computation", apperrors.InternalComputation("grand_total", "overflow"), http.StatusInternalServerError, "internal_computation_error"},
		{"unclassified", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := routerFor(NewAPIHandler(failingQuotes{err: tc.err}, nil, nil, quietLogger()))
			w, body := do(t, router, http.MethodPost, "/api/quotes/q1/recalculate", "")
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, errorCode(t, body))
			if tc.code == "internal_error" {
				assert.NotContains(t, w.Body.String(), "disk on fire")
			}
		})
	}
}
