package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
)

const reconcileCheckInventoryBatches = "INVENTORY_BATCHES"

// ReconciliationReport is one drift finding of an inventory check run.
type ReconciliationReport struct {
	ID            int             `gorm:"primary_key" json:"id"`
	CheckType     string          `gorm:"size:50;index;not null" json:"check_type"`
	WarehouseId   int             `gorm:"index;not null" json:"warehouse_id"`
	ProductId     int             `gorm:"index;not null" json:"product_id"`
	InventoryQty  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"inventory_qty"`
	BatchQty      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"batch_qty"`
	Details       string          `gorm:"type:text" json:"details"`
	CorrelationId string          `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type inventoryCell struct {
	WarehouseId int
	ProductId   int
}

// ReconcileInventory compares every inventory cell with the sum of its stock
// batches and returns the cells that differ. With persist set the findings
// are also written to reconciliation_reports.
func ReconcileInventory(ctx context.Context, persist bool) ([]*ReconciliationReport, error) {
	db := config.GetDB().WithContext(ctx)
	cid := correlationIdFromContextOrNew(ctx)

	var inventories []Inventory
	if err := db.Order("warehouse_id, product_id").Find(&inventories).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	var batches []StockBatch
	if err := db.Select("warehouse_id", "product_id", "quantity").Find(&batches).Error; err != nil {
		return nil, utils.Unexpected(err)
	}

	batchTotals := map[inventoryCell]decimal.Decimal{}
	for _, b := range batches {
		cell := inventoryCell{b.WarehouseId, b.ProductId}
		batchTotals[cell] = batchTotals[cell].Add(b.Quantity)
	}

	var findings []*ReconciliationReport
	seen := map[inventoryCell]bool{}
	for _, inv := range inventories {
		cell := inventoryCell{inv.WarehouseId, inv.ProductId}
		seen[cell] = true
		batchQty := batchTotals[cell]
		if inv.Quantity.Equal(batchQty) {
			continue
		}
		findings = append(findings, newInventoryFinding(cell, inv.Quantity, batchQty, cid))
	}
	for cell, qty := range batchTotals {
		if seen[cell] || qty.IsZero() {
			continue
		}
		findings = append(findings, newInventoryFinding(cell, decimal.Zero, qty, cid))
	}

	if persist && len(findings) > 0 {
		if err := db.Create(&findings).Error; err != nil {
			return nil, utils.Unexpected(err)
		}
	}
	return findings, nil
}

func newInventoryFinding(cell inventoryCell, inventoryQty decimal.Decimal, batchQty decimal.Decimal, cid string) *ReconciliationReport {
	return &ReconciliationReport{
		CheckType:     reconcileCheckInventoryBatches,
		WarehouseId:   cell.WarehouseId,
		ProductId:     cell.ProductId,
		InventoryQty:  inventoryQty,
		BatchQty:      batchQty,
		Details:       fmt.Sprintf("inventory quantity %s != sum(stock_batches.quantity) %s", inventoryQty.String(), batchQty.String()),
		CorrelationId: cid,
	}
}
