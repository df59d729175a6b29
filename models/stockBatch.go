package models

import (
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockBatch is one received lot of a product, named so it can be deduplicated.
type StockBatch struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Name          string          `gorm:"size:100;not null;uniqueIndex" json:"name"`
	TransactionId int             `gorm:"index;not null" json:"transaction_id"`
	WarehouseId   int             `gorm:"index;not null" json:"warehouse_id"`
	ProductId     int             `gorm:"index;not null" json:"product_id"`
	ExpireDate    time.Time       `gorm:"not null" json:"expire_date"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"quantity"`
	Note          string          `gorm:"type:text" json:"note"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BuildStockBatchName is the dedup key of a receipt's lot: one per product and expiry.
func BuildStockBatchName(transactionId int, productId int, expireDate time.Time) string {
	return fmt.Sprintf("IMP-%d-%d-%s", transactionId, productId, expireDate.UTC().Format("20060102"))
}

// FindStockBatchByName returns nil when no batch carries the name.
func FindStockBatchByName(tx *gorm.DB, name string) (*StockBatch, error) {
	var batch StockBatch
	err := tx.Where("name = ?", name).Take(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, utils.Unexpected(err)
	}
	return &batch, nil
}

// CreateStockBatch rejects lots that are already expired.
func CreateStockBatch(tx *gorm.DB, batch *StockBatch) error {
	if batch.Name == "" {
		return utils.InvalidArgument("batch name is required")
	}
	if batch.Quantity.IsNegative() {
		return utils.InvalidArgument("batch quantity must not be negative")
	}
	if utils.IsBeforeToday(batch.ExpireDate, time.Now()) {
		return utils.InvalidArgument("expire date %s is in the past", batch.ExpireDate.Format(dateLayout))
	}
	if err := tx.Create(batch).Error; err != nil {
		if utils.IsDuplicateKeyErr(err) {
			return utils.InvalidOperation("stock batch %s already exists", batch.Name)
		}
		return utils.Unexpected(err)
	}
	return nil
}

// findOrCreateStockBatch returns the existing lot or creates a new one with
// the given quantity. The second result is true when a batch was created.
func findOrCreateStockBatch(tx *gorm.DB, batch *StockBatch) (*StockBatch, bool, error) {
	existing, err := FindStockBatchByName(tx, batch.Name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	if err := CreateStockBatch(tx, batch); err != nil {
		return nil, false, err
	}
	return batch, true, nil
}

func setStockBatchQuantity(tx *gorm.DB, batchId int, quantity decimal.Decimal) error {
	if err := tx.Model(&StockBatch{}).Where("id = ?", batchId).Update("quantity", quantity).Error; err != nil {
		return utils.Unexpected(err)
	}
	return nil
}

// deleteStockBatch drops a lot whose product was removed from its receipt.
func deleteStockBatch(tx *gorm.DB, batchId int) error {
	if err := tx.Delete(&StockBatch{}, batchId).Error; err != nil {
		return utils.Unexpected(err)
	}
	return nil
}

func getStockBatchesByTransaction(tx *gorm.DB, transactionId int) ([]StockBatch, error) {
	var batches []StockBatch
	if err := tx.Where("transaction_id = ?", transactionId).Order("id").Find(&batches).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	return batches, nil
}
