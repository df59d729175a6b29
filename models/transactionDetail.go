package models

import (
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionDetail struct {
	ID            int             `gorm:"primary_key" json:"id"`
	TransactionId int             `gorm:"index;not null" json:"transaction_id"`
	ProductId     int             `gorm:"index;not null" json:"product_id"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"unit_price"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (d TransactionDetail) LineCost() decimal.Decimal {
	return d.Quantity.Mul(d.UnitPrice)
}

func GetTransactionDetails(tx *gorm.DB, transactionId int) ([]TransactionDetail, error) {
	var details []TransactionDetail
	if err := tx.Where("transaction_id = ?", transactionId).Order("id").Find(&details).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	return details, nil
}

func DeleteTransactionDetails(tx *gorm.DB, details []TransactionDetail) error {
	if len(details) == 0 {
		return nil
	}
	ids := make([]int, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ID)
	}
	if err := tx.Where("id IN ?", ids).Delete(&TransactionDetail{}).Error; err != nil {
		return utils.Unexpected(err)
	}
	return nil
}

func CreateTransactionDetail(tx *gorm.DB, detail *TransactionDetail) error {
	if detail.TransactionId <= 0 {
		return utils.InvalidArgument("transaction id is required")
	}
	if err := tx.Create(detail).Error; err != nil {
		return utils.Unexpected(err)
	}
	return nil
}
