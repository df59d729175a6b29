package models

import (
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FinancialTransaction is one payment booked against a goods receipt.
type FinancialTransaction struct {
	ID                   int                      `gorm:"primary_key" json:"id"`
	RelatedTransactionId int                      `gorm:"index;not null" json:"related_transaction_id"`
	Amount               decimal.Decimal          `gorm:"type:decimal(20,4);not null" json:"amount"`
	Type                 FinancialTransactionType `gorm:"size:30;not null" json:"type"`
	PaymentMethod        PaymentMethod            `gorm:"size:20" json:"payment_method"`
	ReferenceNumber      string                   `gorm:"size:100" json:"reference_number"`
	Description          string                   `gorm:"type:text" json:"description"`
	TransactionDate      time.Time                `gorm:"not null" json:"transaction_date"`
	CreatedBy            int                      `gorm:"index" json:"created_by"`
	CreatedAt            time.Time                `gorm:"autoCreateTime" json:"created_at"`
}

type PaymentSummary struct {
	TransactionId int                     `json:"transaction_id"`
	TotalCost     decimal.Decimal         `json:"total_cost"`
	Paid          decimal.Decimal         `json:"paid"`
	Outstanding   decimal.Decimal         `json:"outstanding"`
	State         PaymentState            `json:"state"`
	Payments      []*FinancialTransaction `json:"payments,omitempty"`
}

func GetFinancialTransactionsByRelatedId(tx *gorm.DB, transactionId int) ([]*FinancialTransaction, error) {
	var results []*FinancialTransaction
	if err := tx.Where("related_transaction_id = ?", transactionId).Order("id").Find(&results).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	return results, nil
}

func CreateFinancialTransaction(tx *gorm.DB, ft *FinancialTransaction) error {
	if ft.RelatedTransactionId <= 0 {
		return utils.InvalidArgument("related transaction id is required")
	}
	if !ft.Amount.IsPositive() {
		return utils.InvalidArgument("payment amount must be greater than zero")
	}
	if ft.Type == "" {
		ft.Type = FinancialTransactionTypeSupplierPayment
	}
	if ft.TransactionDate.IsZero() {
		ft.TransactionDate = time.Now().UTC()
	}
	if err := tx.Create(ft).Error; err != nil {
		return utils.Unexpected(err)
	}
	return nil
}

// ReconcilePayments derives paid, outstanding and the payment state from the
// ledger rows. Outstanding at or below zero counts as paid in full.
func ReconcilePayments(totalCost decimal.Decimal, payments []*FinancialTransaction) PaymentSummary {
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	outstanding := totalCost.Sub(paid)

	state := PaymentStateUnpaid
	switch {
	case !outstanding.IsPositive():
		state = PaymentStatePaidInFull
	case paid.IsPositive():
		state = PaymentStatePartiallyPaid
	}
	return PaymentSummary{
		TotalCost:   totalCost,
		Paid:        paid,
		Outstanding: outstanding,
		State:       state,
		Payments:    payments,
	}
}

func reconcileTransactionPayments(tx *gorm.DB, transaction *Transaction) (PaymentSummary, error) {
	payments, err := GetFinancialTransactionsByRelatedId(tx, transaction.ID)
	if err != nil {
		return PaymentSummary{}, err
	}
	summary := ReconcilePayments(transaction.TotalCost, payments)
	summary.TransactionId = transaction.ID
	return summary, nil
}
