package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const TransactionReferenceType = "transactions"

// CreateStockInputs records a goods receipt in Checking status. Validation
// stops at the first failure: user, warehouse, supplier, expiry, lines.
func CreateStockInputs(ctx context.Context, responsibleId int, input *NewStockInput) (result *Transaction, err error) {
	ctx, span := startSpan(ctx, "models.CreateStockInputs", 0)
	defer func() { endSpan(span, err) }()

	if input == nil {
		return nil, utils.InvalidArgument("input is required")
	}

	err = runInTransaction(ctx, func(tx *gorm.DB) error {
		if _, err := GetUser(tx, responsibleId); err != nil {
			return err
		}
		if _, err := GetWarehouse(tx, input.WarehouseId); err != nil {
			return err
		}
		if _, err := GetSupplier(tx, input.SupplierId); err != nil {
			return err
		}
		if input.ExpireDate.IsZero() {
			return utils.InvalidArgument("expire date is required")
		}
		if utils.IsBeforeToday(input.ExpireDate.Time(), time.Now()) {
			return utils.InvalidArgument("expire date %s is in the past", input.ExpireDate)
		}
		lines, err := resolveStockInputLines(tx, input.Products)
		if err != nil {
			return err
		}

		totalCost, totalWeight := calculateStockInputTotals(lines)
		transactionDate := time.Now().UTC()
		if input.TransactionDate != nil && !input.TransactionDate.IsZero() {
			transactionDate = input.TransactionDate.Time()
		}

		transaction := Transaction{
			Type:            TransactionTypeImport,
			WarehouseId:     input.WarehouseId,
			SupplierId:      input.SupplierId,
			ResponsibleId:   responsibleId,
			Status:          TransactionStatusChecking,
			TotalCost:       totalCost,
			TotalWeight:     totalWeight,
			PaidAmount:      decimal.Zero,
			PaymentStatus:   ReconcilePayments(totalCost, nil).State,
			ExpireDate:      input.ExpireDate.Time(),
			Note:            input.Note,
			TransactionDate: transactionDate,
		}
		if err := tx.Create(&transaction).Error; err != nil {
			return utils.Unexpected(err)
		}

		details := make([]TransactionDetail, 0, len(lines))
		for _, line := range lines {
			detail := line.TransactionDetail
			detail.TransactionId = transaction.ID
			if err := CreateTransactionDetail(tx, &detail); err != nil {
				return err
			}
			details = append(details, detail)
		}
		transaction.Details = details

		if config.ReceiveStockOnCreate() {
			if err := applyStockReceipt(tx, &transaction, transaction.ExpireDate, input.Note); err != nil {
				return err
			}
		}

		description := fmt.Sprintf("Goods receipt created with %d line(s), total cost %s.", len(details), totalCost.StringFixed(2))
		if err := createHistory(tx, HistoryActionCreate, transaction.ID, TransactionReferenceType, nil, transaction, description); err != nil {
			return err
		}

		result, err = loadTransaction(tx, transaction.ID)
		return err
	})
	if err != nil {
		logUnexpected("CreateStockInputs", input, err)
		return nil, err
	}
	return result, nil
}

// UpdateImport replaces all line items of a receipt still in Checking and
// recomputes its totals. Stock already received is adjusted by the per
// product difference.
func UpdateImport(ctx context.Context, transactionId int, input *UpdateStockInput) (result *Transaction, err error) {
	ctx, span := startSpan(ctx, "models.UpdateImport", transactionId)
	defer func() { endSpan(span, err) }()

	if input == nil {
		return nil, utils.InvalidArgument("input is required")
	}

	err = withStockInputLock(ctx, transactionId, "UpdateImport", func() error {
		return runInTransaction(ctx, func(tx *gorm.DB) error {
			transaction, err := getTransactionForUpdate(tx, transactionId)
			if err != nil {
				return err
			}
			if transaction.Type != TransactionTypeImport {
				return utils.InvalidOperation("only import transactions can be edited")
			}
			if !transaction.Status.IsEditable() {
				return utils.InvalidOperation("transaction in status %s cannot be edited", transaction.Status)
			}
			oldDetails, err := GetTransactionDetails(tx, transactionId)
			if err != nil {
				return err
			}
			if len(oldDetails) == 0 {
				return utils.NotFound("transaction details not found")
			}
			lines, err := resolveStockInputLines(tx, input.Products)
			if err != nil {
				return err
			}

			before := *transaction
			before.Details = oldDetails

			if err := DeleteTransactionDetails(tx, oldDetails); err != nil {
				return err
			}
			newDetails := make([]TransactionDetail, 0, len(lines))
			for _, line := range lines {
				detail := line.TransactionDetail
				detail.TransactionId = transactionId
				if err := CreateTransactionDetail(tx, &detail); err != nil {
					return err
				}
				newDetails = append(newDetails, detail)
			}

			totalCost, totalWeight := calculateStockInputTotals(lines)
			updates := map[string]interface{}{
				"total_cost":     totalCost,
				"total_weight":   totalWeight,
				"payment_status": ReconcilePayments(totalCost, nil).State,
			}
			if input.Note != nil {
				updates["note"] = *input.Note
			}
			if err := tx.Model(&Transaction{}).Where("id = ?", transactionId).Updates(updates).Error; err != nil {
				return utils.Unexpected(err)
			}

			if transaction.InventoryApplied {
				if err := adjustReceivedStock(tx, transaction, oldDetails, newDetails); err != nil {
					return err
				}
			}

			result, err = loadTransaction(tx, transactionId)
			if err != nil {
				return err
			}
			description := fmt.Sprintf("Goods receipt lines replaced (%d -> %d), total cost %s -> %s.",
				len(oldDetails), len(newDetails), before.TotalCost.StringFixed(2), totalCost.StringFixed(2))
			return createHistory(tx, HistoryActionUpdate, transactionId, TransactionReferenceType, before, result, description)
		})
	})
	if err != nil {
		logUnexpected("UpdateImport", transactionId, err)
		return nil, err
	}
	return result, nil
}

// SetStatusChecking is a no-op for a receipt already in Checking and
// reopens a Checked receipt that has no payments yet.
func SetStatusChecking(ctx context.Context, transactionId int) (result *Transaction, err error) {
	ctx, span := startSpan(ctx, "models.SetStatusChecking", transactionId)
	defer func() { endSpan(span, err) }()

	err = withStockInputLock(ctx, transactionId, "SetStatusChecking", func() error {
		return runInTransaction(ctx, func(tx *gorm.DB) error {
			transaction, err := getTransactionForUpdate(tx, transactionId)
			if err != nil {
				return err
			}
			if transaction.Type != TransactionTypeImport {
				return utils.InvalidOperation("only import transactions have a checking step")
			}
			if transaction.Status == TransactionStatusChecking {
				result, err = loadTransaction(tx, transactionId)
				return err
			}
			if err := transitionStatus(tx, transaction, TransactionStatusChecking, nil); err != nil {
				return err
			}
			result, err = loadTransaction(tx, transactionId)
			return err
		})
	})
	if err != nil {
		logUnexpected("SetStatusChecking", transactionId, err)
		return nil, err
	}
	return result, nil
}

// SetStatusChecked confirms the receipt. Stock batches are created and
// inventory is incremented unless the receipt's stock was already received.
func SetStatusChecked(ctx context.Context, transactionId int, input *CheckStockInput) (result *Transaction, err error) {
	ctx, span := startSpan(ctx, "models.SetStatusChecked", transactionId)
	defer func() { endSpan(span, err) }()

	if input == nil {
		input = &CheckStockInput{}
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	err = withStockInputLock(ctx, transactionId, "SetStatusChecked", func() error {
		return runInTransaction(ctx, func(tx *gorm.DB) error {
			transaction, err := getTransactionForUpdate(tx, transactionId)
			if err != nil {
				return err
			}
			if transaction.Type != TransactionTypeImport {
				return utils.InvalidOperation("only import transactions can be checked")
			}
			if transaction.Status != TransactionStatusChecking {
				return utils.InvalidOperation("transaction must be in Checking to be checked, current status %s", transaction.Status)
			}
			details, err := GetTransactionDetails(tx, transactionId)
			if err != nil {
				return err
			}
			if len(details) == 0 {
				return utils.InvalidOperation("transaction has no line items")
			}
			transaction.Details = details

			expireDate := transaction.ExpireDate
			if input.ExpireDate != nil && !input.ExpireDate.IsZero() {
				expireDate = input.ExpireDate.Time()
			}
			if utils.IsBeforeToday(expireDate, time.Now()) {
				return utils.InvalidArgument("expire date %s is in the past", expireDate.Format(dateLayout))
			}
			note := utils.DereferencePtr(input.Note, transaction.Note)

			if transaction.InventoryApplied {
				if !expireDate.Equal(transaction.ExpireDate) {
					if err := rescheduleStockBatches(tx, transactionId, expireDate); err != nil {
						return err
					}
				}
			} else if err := applyStockReceipt(tx, transaction, expireDate, note); err != nil {
				return err
			}

			extra := map[string]interface{}{
				"expire_date": expireDate,
				"note":        note,
			}
			if err := transitionStatus(tx, transaction, TransactionStatusChecked, extra); err != nil {
				return err
			}

			result, err = loadTransaction(tx, transactionId)
			if err != nil {
				return err
			}
			return publishStockEvent(tx, transactionId, OutboxReferenceStockInput, OutboxActionReceived, result)
		})
	})
	if err != nil {
		logUnexpected("SetStatusChecked", transactionId, err)
		return nil, err
	}
	return result, nil
}

// DeleteImportTransaction cancels a receipt. Received stock is not reversed.
func DeleteImportTransaction(ctx context.Context, transactionId int) (result *Transaction, err error) {
	ctx, span := startSpan(ctx, "models.DeleteImportTransaction", transactionId)
	defer func() { endSpan(span, err) }()

	err = withStockInputLock(ctx, transactionId, "DeleteImportTransaction", func() error {
		return runInTransaction(ctx, func(tx *gorm.DB) error {
			transaction, err := getTransactionForUpdate(tx, transactionId)
			if err != nil {
				return err
			}
			if transaction.Type == TransactionTypeExport {
				return utils.InvalidOperation("export transactions cannot be cancelled as imports")
			}
			if transaction.Status == TransactionStatusCancelled {
				return utils.InvalidOperation("transaction is already cancelled")
			}
			if err := transitionStatus(tx, transaction, TransactionStatusCancelled, nil); err != nil {
				return err
			}
			result, err = loadTransaction(tx, transactionId)
			if err != nil {
				return err
			}
			return publishStockEvent(tx, transactionId, OutboxReferenceStockInput, OutboxActionCancelled, result)
		})
	})
	if err != nil {
		logUnexpected("DeleteImportTransaction", transactionId, err)
		return nil, err
	}
	return result, nil
}

// UpdateToPaidInFullStatus books the outstanding balance as one payment
// and marks the receipt paid in full.
func UpdateToPaidInFullStatus(ctx context.Context, transactionId int, input *NewPayment) (result *Transaction, err error) {
	ctx, span := startSpan(ctx, "models.UpdateToPaidInFullStatus", transactionId)
	defer func() { endSpan(span, err) }()

	if input == nil {
		input = &NewPayment{}
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	idemKey, _ := utils.GetIdempotencyKeyFromContext(ctx)

	err = withStockInputLock(ctx, transactionId, "UpdateToPaidInFullStatus", func() error {
		return runInTransaction(ctx, func(tx *gorm.DB) error {
			transaction, err := getTransactionForUpdate(tx, transactionId)
			if err != nil {
				return err
			}
			replayed, err := findIdempotencyKey(tx, idempotencyScopeFullPayment, idemKey, transactionId)
			if err != nil {
				return err
			}
			if replayed {
				result, err = loadTransaction(tx, transactionId)
				return err
			}
			if transaction.Type != TransactionTypeImport {
				return utils.InvalidOperation("only import transactions can be paid")
			}
			if !transaction.Status.AcceptsPayment() {
				return utils.InvalidOperation("transaction in status %s does not accept payments", transaction.Status)
			}

			summary, err := reconcileTransactionPayments(tx, transaction)
			if err != nil {
				return err
			}
			resultId := 0
			if summary.Outstanding.IsPositive() {
				payment := newFinancialTransaction(ctx, transaction, summary.Outstanding, input,
					fmt.Sprintf("Full payment for goods receipt #%d", transactionId))
				if err := CreateFinancialTransaction(tx, payment); err != nil {
					return err
				}
				resultId = payment.ID
			}

			summary, err = reconcileTransactionPayments(tx, transaction)
			if err != nil {
				return err
			}
			extra := map[string]interface{}{
				"paid_amount":    summary.Paid,
				"payment_status": PaymentStatePaidInFull,
			}
			if err := transitionStatus(tx, transaction, TransactionStatusPaidInFull, extra); err != nil {
				return err
			}
			if err := saveIdempotencyKey(tx, idempotencyScopeFullPayment, idemKey, transactionId, resultId); err != nil {
				return err
			}

			result, err = loadTransaction(tx, transactionId)
			if err != nil {
				return err
			}
			return publishStockEvent(tx, transactionId, OutboxReferencePayment, OutboxActionPaid, summary)
		})
	})
	if err != nil {
		logUnexpected("UpdateToPaidInFullStatus", transactionId, err)
		return nil, err
	}
	return result, nil
}

// CreatePartialPayment appends a payment of at most the outstanding balance.
// The receipt becomes PaidInFull once nothing is outstanding.
func CreatePartialPayment(ctx context.Context, transactionId int, input *NewPayment) (result *Transaction, err error) {
	ctx, span := startSpan(ctx, "models.CreatePartialPayment", transactionId)
	defer func() { endSpan(span, err) }()

	if input == nil {
		return nil, utils.InvalidArgument("input is required")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	idemKey, _ := utils.GetIdempotencyKeyFromContext(ctx)

	err = withStockInputLock(ctx, transactionId, "CreatePartialPayment", func() error {
		return runInTransaction(ctx, func(tx *gorm.DB) error {
			transaction, err := getTransactionForUpdate(tx, transactionId)
			if err != nil {
				return err
			}
			if !input.Amount.IsPositive() {
				return utils.InvalidArgument("payment amount must be greater than zero")
			}
			if exceedsScale(input.Amount) {
				return utils.InvalidArgument("payment amount allows at most %d decimal places", amountScale)
			}
			replayed, err := findIdempotencyKey(tx, idempotencyScopePartialPayment, idemKey, transactionId)
			if err != nil {
				return err
			}
			if replayed {
				result, err = loadTransaction(tx, transactionId)
				return err
			}
			if transaction.Type != TransactionTypeImport {
				return utils.InvalidOperation("only import transactions can be paid")
			}
			if !transaction.Status.AcceptsPayment() {
				return utils.InvalidOperation("transaction in status %s does not accept payments", transaction.Status)
			}

			summary, err := reconcileTransactionPayments(tx, transaction)
			if err != nil {
				return err
			}
			if input.Amount.GreaterThan(summary.Outstanding) {
				return utils.InvalidArgument("payment amount %s exceeds outstanding balance %s",
					input.Amount.String(), summary.Outstanding.String())
			}

			payment := newFinancialTransaction(ctx, transaction, input.Amount, input,
				fmt.Sprintf("Partial payment for goods receipt #%d", transactionId))
			if err := CreateFinancialTransaction(tx, payment); err != nil {
				return err
			}

			summary, err = reconcileTransactionPayments(tx, transaction)
			if err != nil {
				return err
			}
			next := TransactionStatusPartiallyPaid
			if summary.State == PaymentStatePaidInFull {
				next = TransactionStatusPaidInFull
			}
			extra := map[string]interface{}{
				"paid_amount":    summary.Paid,
				"payment_status": summary.State,
			}
			if err := transitionStatus(tx, transaction, next, extra); err != nil {
				return err
			}
			if err := saveIdempotencyKey(tx, idempotencyScopePartialPayment, idemKey, transactionId, payment.ID); err != nil {
				return err
			}

			result, err = loadTransaction(tx, transactionId)
			if err != nil {
				return err
			}
			return publishStockEvent(tx, transactionId, OutboxReferencePayment, OutboxActionPaid, summary)
		})
	})
	if err != nil {
		logUnexpected("CreatePartialPayment", transactionId, err)
		return nil, err
	}
	return result, nil
}

/* helpers */

func getTransactionForUpdate(tx *gorm.DB, transactionId int) (*Transaction, error) {
	if transactionId <= 0 {
		return nil, utils.InvalidArgument("invalid transaction id")
	}
	transaction, err := utils.FetchModelForUpdate[Transaction](tx, transactionId)
	if err != nil {
		if err == utils.ErrorRecordNotFound {
			return nil, utils.NotFound("transaction not found")
		}
		return nil, utils.Unexpected(err)
	}
	return transaction, nil
}

func loadTransaction(tx *gorm.DB, transactionId int) (*Transaction, error) {
	transaction, err := utils.FetchModel[Transaction](tx, transactionId, "Details", "Batches")
	if err != nil {
		if err == utils.ErrorRecordNotFound {
			return nil, utils.NotFound("transaction not found")
		}
		return nil, utils.Unexpected(err)
	}
	return transaction, nil
}

// transitionStatus writes the status change (plus extra columns) after
// checking it against the transition table, and records history.
func transitionStatus(tx *gorm.DB, transaction *Transaction, next TransactionStatus, extra map[string]interface{}) error {
	current := transaction.Status
	if !current.CanTransitionTo(next) {
		return utils.InvalidOperation("cannot move transaction from %s to %s", current, next)
	}
	updates := map[string]interface{}{"status": next}
	for k, v := range extra {
		updates[k] = v
	}
	if err := tx.Model(&Transaction{}).Where("id = ?", transaction.ID).Updates(updates).Error; err != nil {
		return utils.Unexpected(err)
	}
	transaction.Status = next

	action := HistoryActionStatus
	switch next {
	case TransactionStatusCancelled:
		action = HistoryActionCancel
	case TransactionStatusPartiallyPaid, TransactionStatusPaidInFull:
		action = HistoryActionPay
	}
	description := fmt.Sprintf("Status changed from %s to %s.", current, next)
	return createHistory(tx, action, transaction.ID, TransactionReferenceType,
		map[string]interface{}{"status": current}, updates, description)
}

// applyStockReceipt creates one lot per product and increments inventory.
// It runs at most once per receipt.
func applyStockReceipt(tx *gorm.DB, transaction *Transaction, expireDate time.Time, note string) error {
	if transaction.InventoryApplied {
		return nil
	}
	for _, pq := range sumQuantitiesByProduct(transaction.Details) {
		batch := &StockBatch{
			Name:          BuildStockBatchName(transaction.ID, pq.ProductId, expireDate),
			TransactionId: transaction.ID,
			WarehouseId:   transaction.WarehouseId,
			ProductId:     pq.ProductId,
			ExpireDate:    expireDate,
			Quantity:      pq.Quantity,
			Note:          note,
		}
		if _, _, err := findOrCreateStockBatch(tx, batch); err != nil {
			return err
		}
		if _, err := CreateOrIncrementInventory(tx, transaction.WarehouseId, pq.ProductId, pq.Quantity); err != nil {
			return err
		}
	}
	if err := tx.Model(&Transaction{}).Where("id = ?", transaction.ID).Update("inventory_applied", true).Error; err != nil {
		return utils.Unexpected(err)
	}
	transaction.InventoryApplied = true
	return nil
}

// adjustReceivedStock moves inventory and lot quantities by the difference
// between the old and new line items of a receipt whose stock was received.
func adjustReceivedStock(tx *gorm.DB, transaction *Transaction, oldDetails []TransactionDetail, newDetails []TransactionDetail) error {
	oldQty := map[int]decimal.Decimal{}
	for _, pq := range sumQuantitiesByProduct(oldDetails) {
		oldQty[pq.ProductId] = pq.Quantity
	}
	newTotals := sumQuantitiesByProduct(newDetails)
	newQty := map[int]decimal.Decimal{}
	for _, pq := range newTotals {
		newQty[pq.ProductId] = pq.Quantity
	}

	batches, err := getStockBatchesByTransaction(tx, transaction.ID)
	if err != nil {
		return err
	}
	batchByProduct := map[int]StockBatch{}
	for _, b := range batches {
		batchByProduct[b.ProductId] = b
	}

	products := make([]int, 0, len(newTotals)+len(oldQty))
	for _, pq := range newTotals {
		products = append(products, pq.ProductId)
	}
	for _, pq := range sumQuantitiesByProduct(oldDetails) {
		if _, ok := newQty[pq.ProductId]; !ok {
			products = append(products, pq.ProductId)
		}
	}

	for _, productId := range products {
		target := newQty[productId]
		delta := target.Sub(oldQty[productId])

		if batch, ok := batchByProduct[productId]; ok && target.IsZero() {
			if err := deleteStockBatch(tx, batch.ID); err != nil {
				return err
			}
		} else if ok {
			if err := setStockBatchQuantity(tx, batch.ID, target); err != nil {
				return err
			}
		} else if target.IsPositive() {
			if err := CreateStockBatch(tx, &StockBatch{
				Name:          BuildStockBatchName(transaction.ID, productId, transaction.ExpireDate),
				TransactionId: transaction.ID,
				WarehouseId:   transaction.WarehouseId,
				ProductId:     productId,
				ExpireDate:    transaction.ExpireDate,
				Quantity:      target,
				Note:          transaction.Note,
			}); err != nil {
				return err
			}
		}
		if delta.IsZero() {
			continue
		}
		if _, err := CreateOrIncrementInventory(tx, transaction.WarehouseId, productId, delta); err != nil {
			return err
		}
	}
	return nil
}

// rescheduleStockBatches moves a receipt's lots to a new expiry and renames them.
func rescheduleStockBatches(tx *gorm.DB, transactionId int, expireDate time.Time) error {
	batches, err := getStockBatchesByTransaction(tx, transactionId)
	if err != nil {
		return err
	}
	for _, b := range batches {
		if err := tx.Model(&StockBatch{}).Where("id = ?", b.ID).Updates(map[string]interface{}{
			"expire_date": expireDate,
			"name":        BuildStockBatchName(transactionId, b.ProductId, expireDate),
		}).Error; err != nil {
			if utils.IsDuplicateKeyErr(err) {
				return utils.InvalidOperation("stock batch for product %d with this expiry already exists", b.ProductId)
			}
			return utils.Unexpected(err)
		}
	}
	return nil
}

func newFinancialTransaction(ctx context.Context, transaction *Transaction, amount decimal.Decimal, input *NewPayment, defaultDescription string) *FinancialTransaction {
	userId, _ := utils.GetUserIdFromContext(ctx)
	description := input.Description
	if description == "" {
		description = defaultDescription
	}
	method := input.PaymentMethod
	if method == "" {
		method = PaymentMethodCash
	}
	paymentDate := time.Now().UTC()
	if input.PaymentDate != nil && !input.PaymentDate.IsZero() {
		paymentDate = input.PaymentDate.Time()
	}
	return &FinancialTransaction{
		RelatedTransactionId: transaction.ID,
		Amount:               amount,
		Type:                 FinancialTransactionTypeSupplierPayment,
		PaymentMethod:        method,
		ReferenceNumber:      input.ReferenceNumber,
		Description:          description,
		TransactionDate:      paymentDate,
		CreatedBy:            userId,
	}
}
