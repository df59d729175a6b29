package reports

import (
	"bytes"
	"context"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/models"
	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func TestExportReceiptExcel(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_NAME", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	t.Setenv("REDIS_ADDRESS", "")
	t.Setenv("BCRYPT_COST", "4")
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	models.MigrateTable()

	ctx := context.Background()
	user, err := models.CreateUser(ctx, &models.NewUser{Username: "u", Name: "U", Password: "pw", Role: models.UserRoleStoreKeep})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	ctx = utils.SetUserIdInContext(ctx, user.ID)
	warehouse, _ := models.CreateWarehouse(ctx, &models.NewWarehouse{Name: "Main"})
	supplier, _ := models.CreateSupplier(ctx, &models.NewSupplier{Name: "Acme"})
	product, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Rice", Sku: "RICE-25", Unit: "bag", WeightPerUnit: decimal.NewFromInt(25)})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	tr, err := models.CreateStockInputs(ctx, user.ID, &models.NewStockInput{
		WarehouseId: warehouse.ID,
		SupplierId:  supplier.ID,
		ExpireDate:  models.NewDate(time.Now().AddDate(0, 2, 0)),
		Products: []models.NewStockInputDetail{
			{ProductId: product.ID, Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(40)},
		},
	})
	if err != nil {
		t.Fatalf("CreateStockInputs: %v", err)
	}

	data, filename, err := ExportReceiptExcel(ctx, tr.ID)
	if err != nil {
		t.Fatalf("ExportReceiptExcel: %v", err)
	}
	if filename == "" || !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatalf("not an xlsx archive: %s (%d bytes)", filename, len(data))
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(receiptSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	want := map[string]string{
		"Supplier":       "Acme",
		"Total Cost":     "120.00",
		"Outstanding":    "120.00",
		"Payment Status": "Unpaid",
	}
	found := map[string]string{}
	for _, r := range rows {
		if len(r) >= 2 {
			found[r[0]] = r[1]
		}
	}
	for k, v := range want {
		if found[k] != v {
			t.Errorf("%s: got %q want %q", k, found[k], v)
		}
	}
	last := rows[len(rows)-1]
	if len(last) != len(receiptLineHeadings) || last[1] != "RICE-25" || last[6] != "120.00" {
		t.Fatalf("line row: %v", last)
	}

	if _, _, err := ExportReceiptExcel(ctx, 9999); !utils.IsKind(err, utils.KindNotFound) {
		t.Fatalf("missing receipt: %v", err)
	}
}
