package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type StockInputFilter struct {
	WarehouseId int
	SupplierId  int
	Status      *TransactionStatus
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

type StockInputPage struct {
	Items  []*Transaction `json:"items"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func GetImportTransaction(ctx context.Context, transactionId int) (*Transaction, error) {
	if transactionId <= 0 {
		return nil, utils.InvalidArgument("invalid transaction id")
	}
	db := config.GetDB().WithContext(ctx)
	transaction, err := loadTransaction(db, transactionId)
	if err != nil {
		return nil, err
	}
	if transaction.Type != TransactionTypeImport {
		return nil, utils.NotFound("transaction not found")
	}
	return transaction, nil
}

// ListImportTransactions pages goods receipts newest first. Line items are
// not preloaded.
func ListImportTransactions(ctx context.Context, filter StockInputFilter) (*StockInputPage, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, utils.InvalidArgument("invalid status %d", int(*filter.Status))
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, utils.InvalidArgument("date range end is before its start")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	db := config.GetDB().WithContext(ctx)
	q := db.Model(&Transaction{}).Where("type = ?", TransactionTypeImport)
	if filter.WarehouseId > 0 {
		q = q.Where("warehouse_id = ?", filter.WarehouseId)
	}
	if filter.SupplierId > 0 {
		q = q.Where("supplier_id = ?", filter.SupplierId)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		q = q.Where("transaction_date >= ?", utils.StartOfDay(filter.From.UTC()))
	}
	if filter.To != nil {
		q = q.Where("transaction_date < ?", utils.StartOfDay(filter.To.UTC()).AddDate(0, 0, 1))
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	var items []*Transaction
	if err := q.Session(&gorm.Session{}).Order("transaction_date DESC, id DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	return &StockInputPage{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// GetPaymentSummary reconciles the receipt against its payment ledger.
func GetPaymentSummary(ctx context.Context, transactionId int) (*PaymentSummary, error) {
	transaction, err := GetImportTransaction(ctx, transactionId)
	if err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)
	summary, err := reconcileTransactionPayments(db, transaction)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
