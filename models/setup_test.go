package models_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/models"
	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fixture struct {
	ctx       context.Context
	user      *models.User
	warehouse *models.Warehouse
	supplier  *models.Supplier
	products  []*models.Product
}

// newFixture connects a fresh in-memory SQLite database, migrates it and
// seeds one user, warehouse, supplier and products weighing 2 and 3 per unit.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_NAME", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	t.Setenv("REDIS_ADDRESS", "")
	t.Setenv("RECEIVE_STOCK_ON_CREATE", "")
	t.Setenv("BCRYPT_COST", "4")

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	models.MigrateTable()

	ctx := context.Background()
	user, err := models.CreateUser(ctx, &models.NewUser{
		Username: "keeper",
		Name:     "Store Keeper",
		Password: "secret",
		Role:     models.UserRoleStoreKeep,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	ctx = utils.SetUserIdInContext(ctx, user.ID)
	ctx = utils.SetUserNameInContext(ctx, user.Name)
	ctx = utils.SetUsernameInContext(ctx, user.Username)

	warehouse, err := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Main"})
	if err != nil {
		t.Fatalf("CreateWarehouse: %v", err)
	}
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "Acme Supply"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}

	f := &fixture{ctx: ctx, user: user, warehouse: warehouse, supplier: supplier}
	for i, w := range []int64{2, 3} {
		p, err := models.CreateProduct(ctx, &models.NewProduct{
			Name:          fmt.Sprintf("Product %d", i+1),
			Sku:           fmt.Sprintf("SKU-%d", i+1),
			Unit:          "pcs",
			WeightPerUnit: decimal.NewFromInt(w),
		})
		if err != nil {
			t.Fatalf("CreateProduct: %v", err)
		}
		f.products = append(f.products, p)
	}
	return f
}

func (f *fixture) addProduct(t *testing.T, sku string, weight decimal.Decimal) *models.Product {
	t.Helper()
	p, err := models.CreateProduct(f.ctx, &models.NewProduct{
		Name:          "Product " + sku,
		Sku:           sku,
		Unit:          "pcs",
		WeightPerUnit: weight,
	})
	if err != nil {
		t.Fatalf("CreateProduct %s: %v", sku, err)
	}
	return p
}

func futureDate(days int) models.Date {
	return models.NewDate(time.Now().UTC().AddDate(0, 0, days))
}

func line(productId int, qty int64, price int64) models.NewStockInputDetail {
	return models.NewStockInputDetail{
		ProductId: productId,
		Quantity:  decimal.NewFromInt(qty),
		UnitPrice: decimal.NewFromInt(price),
	}
}

func decimalLine(productId int, qty string, price string) models.NewStockInputDetail {
	return models.NewStockInputDetail{
		ProductId: productId,
		Quantity:  decimal.RequireFromString(qty),
		UnitPrice: decimal.RequireFromString(price),
	}
}

func (f *fixture) newInput(lines ...models.NewStockInputDetail) *models.NewStockInput {
	return &models.NewStockInput{
		WarehouseId: f.warehouse.ID,
		SupplierId:  f.supplier.ID,
		ExpireDate:  futureDate(30),
		Note:        "test receipt",
		Products:    lines,
	}
}

// createReceipt books the standard receipt: 10 x P1 @5 and 5 x P2 @10, total 100.
func (f *fixture) createReceipt(t *testing.T) *models.Transaction {
	t.Helper()
	tr, err := models.CreateStockInputs(f.ctx, f.user.ID, f.newInput(
		line(f.products[0].ID, 10, 5),
		line(f.products[1].ID, 5, 10),
	))
	if err != nil {
		t.Fatalf("CreateStockInputs: %v", err)
	}
	return tr
}

func (f *fixture) checkReceipt(t *testing.T, id int) *models.Transaction {
	t.Helper()
	tr, err := models.SetStatusChecked(f.ctx, id, nil)
	if err != nil {
		t.Fatalf("SetStatusChecked: %v", err)
	}
	return tr
}

func inventoryQty(t *testing.T, f *fixture, productId int) decimal.Decimal {
	t.Helper()
	inv, err := models.GetInventory(f.ctx, f.warehouse.ID, productId)
	if err != nil {
		if utils.IsKind(err, utils.KindNotFound) {
			return decimal.Zero
		}
		t.Fatalf("GetInventory: %v", err)
	}
	return inv.Quantity
}

func countRows(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := config.GetDB().Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func assertKind(t *testing.T, err error, kind utils.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := utils.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s: %v", kind, got, err)
	}
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s: got %s want %s", name, got.String(), want)
	}
}
