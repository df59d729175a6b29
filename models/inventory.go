package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Inventory is the on-hand quantity of one product in one warehouse.
type Inventory struct {
	ID          int             `gorm:"primary_key" json:"id"`
	WarehouseId int             `gorm:"not null;uniqueIndex:uniq_inventory_cell,priority:1" json:"warehouse_id"`
	ProductId   int             `gorm:"not null;uniqueIndex:uniq_inventory_cell,priority:2;index" json:"product_id"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"quantity"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetInventoryByWarehouseAndProduct returns nil when the cell was never stocked.
func GetInventoryByWarehouseAndProduct(tx *gorm.DB, warehouseId int, productId int) (*Inventory, error) {
	var inventory Inventory
	err := tx.Where("warehouse_id = ? AND product_id = ?", warehouseId, productId).Take(&inventory).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, utils.Unexpected(err)
	}
	return &inventory, nil
}

func firstOrCreateInventory(tx *gorm.DB, warehouseId int, productId int) (*Inventory, error) {
	inventory := Inventory{
		WarehouseId: warehouseId,
		ProductId:   productId,
		Quantity:    decimal.Zero,
	}
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("warehouse_id = ? AND product_id = ?", warehouseId, productId).
		FirstOrCreate(&inventory).Error
	if err == nil {
		return &inventory, nil
	}
	if !utils.IsDuplicateKeyErr(err) {
		return nil, utils.Unexpected(err)
	}
	// lost the lazy-create race, the row exists now
	inventory = Inventory{}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("warehouse_id = ? AND product_id = ?", warehouseId, productId).
		Take(&inventory).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	return &inventory, nil
}

// CreateOrIncrementInventory adds delta to the cell, creating it at zero first.
// A negative delta is only accepted while the result stays non-negative.
func CreateOrIncrementInventory(tx *gorm.DB, warehouseId int, productId int, delta decimal.Decimal) (*Inventory, error) {
	inventory, err := firstOrCreateInventory(tx, warehouseId, productId)
	if err != nil {
		return nil, err
	}
	if delta.IsZero() {
		return inventory, nil
	}
	if inventory.Quantity.Add(delta).IsNegative() {
		return nil, utils.InvalidOperation("inventory of product %d in warehouse %d cannot go below zero", productId, warehouseId)
	}
	if err := tx.Model(&Inventory{}).
		Where("id = ?", inventory.ID).
		Update("quantity", gorm.Expr("quantity + ?", delta)).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	if err := tx.First(inventory, inventory.ID).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	return inventory, nil
}

func GetInventory(ctx context.Context, warehouseId int, productId int) (*Inventory, error) {
	if warehouseId <= 0 || productId <= 0 {
		return nil, utils.InvalidArgument("warehouse id and product id are required")
	}
	db := config.GetDB().WithContext(ctx)
	inventory, err := GetInventoryByWarehouseAndProduct(db, warehouseId, productId)
	if err != nil {
		return nil, err
	}
	if inventory == nil {
		return nil, utils.NotFound("inventory not found")
	}
	return inventory, nil
}

// ListInventories returns every stocked cell of a warehouse; warehouseId 0 lists all.
func ListInventories(ctx context.Context, warehouseId int) ([]*Inventory, error) {
	db := config.GetDB().WithContext(ctx)
	q := db.Model(&Inventory{})
	if warehouseId > 0 {
		if _, err := GetWarehouse(db, warehouseId); err != nil {
			return nil, err
		}
		q = q.Where("warehouse_id = ?", warehouseId)
	}
	var results []*Inventory
	if err := q.Order("warehouse_id, product_id").Find(&results).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	return results, nil
}
