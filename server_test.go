package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/models"
	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type apiFixture struct {
	router      *gin.Engine
	token       string
	warehouseId int
	supplierId  int
	productId   int
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Message    string `json:"message"`
		StatusCode int    `json:"statusCode"`
	} `json:"error"`
}

func newAPIFixture(t *testing.T, role models.UserRole) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_NAME", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	t.Setenv("REDIS_ADDRESS", "")
	t.Setenv("RATE_LIMIT_ENABLED", "")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("API_SECRET", "server-test-secret")

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	models.MigrateTable()

	ctx := context.Background()
	user, err := models.CreateUser(ctx, &models.NewUser{Username: "api", Name: "Api User", Password: "secret", Role: role})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	warehouse, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Main"})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "Acme"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	product, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Rice", Sku: "RICE", Unit: "bag", WeightPerUnit: decimal.NewFromInt(25)})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	token, err := utils.JwtGenerate(user.ID, user.Username, user.Name, string(user.Role))
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	return &apiFixture{
		router:      setupRouter(config.GetLogger()),
		token:       token,
		warehouseId: warehouse.ID,
		supplierId:  supplier.ID,
		productId:   product.ID,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != xlsxContentType {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w, env
}

func (f *apiFixture) receiptBody() map[string]any {
	return map[string]any{
		"warehouse_id": f.warehouseId,
		"supplier_id":  f.supplierId,
		"expire_date":  time.Now().UTC().AddDate(0, 1, 0).Format("2006-01-02"),
		"products": []map[string]any{
			{"product_id": f.productId, "quantity": "4", "unit_price": "12.5"},
		},
	}
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t, models.UserRoleStoreKeep)
	w, _ := f.do(t, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("healthz: got %d", w.Code)
	}
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	f := newAPIFixture(t, models.UserRoleStoreKeep)
	f.token = ""
	w, env := f.do(t, http.MethodGet, "/api/stock-inputs", nil)
	if w.Code != http.StatusUnauthorized || env.Success || env.Error == nil || env.Error.StatusCode != http.StatusUnauthorized {
		t.Fatalf("got %d %+v", w.Code, env)
	}
}

func TestStockInputLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t, models.UserRoleStoreKeep)

	w, env := f.do(t, http.MethodPost, "/api/stock-inputs", f.receiptBody())
	if w.Code != http.StatusOK || !env.Success || env.Error != nil {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var created models.Transaction
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode transaction: %v", err)
	}
	if !created.TotalCost.Equal(decimal.NewFromInt(50)) || !created.TotalWeight.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("totals: cost %s weight %s", created.TotalCost, created.TotalWeight)
	}
	base := fmt.Sprintf("/api/stock-inputs/%d", created.ID)

	if w, _ := f.do(t, http.MethodPost, base+"/checked", nil); w.Code != http.StatusOK {
		t.Fatalf("checked: %d %s", w.Code, w.Body.String())
	}
	w, env = f.do(t, http.MethodPost, base+"/checked", nil)
	if w.Code != http.StatusBadRequest || env.Error == nil || env.Error.StatusCode != http.StatusBadRequest {
		t.Fatalf("second check: %d %s", w.Code, w.Body.String())
	}

	w, _ = f.do(t, http.MethodPost, base+"/payments/partial", map[string]any{"amount": "20"}, "Idempotency-Key", "pay-1")
	if w.Code != http.StatusOK {
		t.Fatalf("partial: %d %s", w.Code, w.Body.String())
	}
	w, _ = f.do(t, http.MethodPost, base+"/payments/partial", map[string]any{"amount": "20"}, "Idempotency-Key", "pay-1")
	if w.Code != http.StatusOK {
		t.Fatalf("partial replay: %d %s", w.Code, w.Body.String())
	}
	w, env = f.do(t, http.MethodGet, base+"/payments", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary: %d", w.Code)
	}
	var summary models.PaymentSummary
	if err := json.Unmarshal(env.Data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if !summary.Paid.Equal(decimal.NewFromInt(20)) || !summary.Outstanding.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("summary: paid %s outstanding %s", summary.Paid, summary.Outstanding)
	}

	if w, _ := f.do(t, http.MethodPost, base+"/payments/full", nil); w.Code != http.StatusOK {
		t.Fatalf("full: %d %s", w.Code, w.Body.String())
	}

	w, env = f.do(t, http.MethodGet, fmt.Sprintf("/api/inventories/%d/%d", f.warehouseId, f.productId), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("inventory: %d %s", w.Code, w.Body.String())
	}
	var inv models.Inventory
	if err := json.Unmarshal(env.Data, &inv); err != nil {
		t.Fatalf("decode inventory: %v", err)
	}
	if !inv.Quantity.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("inventory: %s", inv.Quantity)
	}

	w, _ = f.do(t, http.MethodGet, base+"/export", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != xlsxContentType || w.Body.Len() == 0 {
		t.Fatalf("export: %d %s", w.Code, w.Header().Get("Content-Type"))
	}

	w, env = f.do(t, http.MethodGet, base+"/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history: %d", w.Code)
	}
	var histories []models.History
	if err := json.Unmarshal(env.Data, &histories); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(histories) < 3 {
		t.Fatalf("history rows: %d", len(histories))
	}
}

func TestErrorMapping(t *testing.T) {
	f := newAPIFixture(t, models.UserRoleStoreKeep)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"missing transaction", http.MethodGet, "/api/stock-inputs/9999", nil, http.StatusNotFound},
		{"bad id", http.MethodPost, "/api/stock-inputs/abc/checked", nil, http.StatusBadRequest},
		{"zero id", http.MethodPost, "/api/stock-inputs/0/cancel", nil, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/stock-inputs", "not an object", http.StatusBadRequest},
		{"unknown warehouse", http.MethodPost, "/api/stock-inputs", map[string]any{"warehouse_id": 9999}, http.StatusNotFound},
		{"bad list filter", http.MethodGet, "/api/stock-inputs?from=yesterday", nil, http.StatusBadRequest},
		{"admin only", http.MethodGet, "/api/ops/reconciliation/inventory", nil, http.StatusForbidden},
		{"unknown route", http.MethodGet, "/api/nothing-here", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, env := f.do(t, tc.method, tc.path, tc.body)
			if w.Code != tc.status {
				t.Fatalf("status: got %d want %d (%s)", w.Code, tc.status, w.Body.String())
			}
			if env.Success || env.Error == nil || env.Error.StatusCode != tc.status || env.Error.Message == "" {
				t.Fatalf("envelope: %s", w.Body.String())
			}
		})
	}
}

func TestAdminOpsRoutes(t *testing.T) {
	f := newAPIFixture(t, models.UserRoleAdmin)

	w, env := f.do(t, http.MethodGet, "/api/ops/reconciliation/inventory", nil)
	if w.Code != http.StatusOK || !env.Success {
		t.Fatalf("reconcile: %d %s", w.Code, w.Body.String())
	}
	w, _ = f.do(t, http.MethodPost, "/api/ops/outbox/9999/replay", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("replay missing: %d", w.Code)
	}
}
