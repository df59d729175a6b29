package models

import (
	"encoding/json"
	"errors"
)

type TransactionType string

const (
	TransactionTypeImport TransactionType = "Import"
	TransactionTypeExport TransactionType = "Export"
)

// TransactionStatus is persisted as its integer code.
// Codes 2-5 belong to the export lifecycle and are never written here.
type TransactionStatus int

const (
	TransactionStatusCancelled     TransactionStatus = 0
	TransactionStatusChecking      TransactionStatus = 1
	TransactionStatusChecked       TransactionStatus = 6
	TransactionStatusPartiallyPaid TransactionStatus = 7
	TransactionStatusPaidInFull    TransactionStatus = 8
)

func (s TransactionStatus) String() string {
	switch s {
	case TransactionStatusCancelled:
		return "Cancelled"
	case TransactionStatusChecking:
		return "Checking"
	case TransactionStatusChecked:
		return "Checked"
	case TransactionStatusPartiallyPaid:
		return "PartiallyPaid"
	case TransactionStatusPaidInFull:
		return "PaidInFull"
	}
	return "Unknown"
}

func (s TransactionStatus) IsValid() bool {
	return s.String() != "Unknown"
}

// allowed status moves for import transactions; a move onto the same
// status is listed only where it is meaningful
var transactionStatusTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusChecking: {
		TransactionStatusChecking,
		TransactionStatusChecked,
		TransactionStatusCancelled,
	},
	TransactionStatusChecked: {
		TransactionStatusChecking,
		TransactionStatusPartiallyPaid,
		TransactionStatusPaidInFull,
		TransactionStatusCancelled,
	},
	TransactionStatusPartiallyPaid: {
		TransactionStatusPartiallyPaid,
		TransactionStatusPaidInFull,
		TransactionStatusCancelled,
	},
	TransactionStatusPaidInFull: {
		TransactionStatusCancelled,
	},
	TransactionStatusCancelled: {},
}

func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transactionStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AcceptsPayment reports whether payments can be booked in this status.
func (s TransactionStatus) AcceptsPayment() bool {
	return s == TransactionStatusChecked || s == TransactionStatusPartiallyPaid
}

// IsEditable reports whether line items may be rewritten.
func (s TransactionStatus) IsEditable() bool {
	return s == TransactionStatusChecking
}

type PaymentState string

const (
	PaymentStateUnpaid        PaymentState = "Unpaid"
	PaymentStatePartiallyPaid PaymentState = "PartiallyPaid"
	PaymentStatePaidInFull    PaymentState = "PaidInFull"
)

type FinancialTransactionType string

const (
	FinancialTransactionTypeSupplierPayment FinancialTransactionType = "SupplierPayment"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "Cash"
	PaymentMethodBankTransfer PaymentMethod = "BankTransfer"
	PaymentMethodCard         PaymentMethod = "Card"
	PaymentMethodCheque       PaymentMethod = "Cheque"
)

func (m *PaymentMethod) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("payment method must be string")
	}
	switch str {
	case "":
		*m = ""
	case "Cash":
		*m = PaymentMethodCash
	case "BankTransfer":
		*m = PaymentMethodBankTransfer
	case "Card":
		*m = PaymentMethodCard
	case "Cheque":
		*m = PaymentMethodCheque
	default:
		return errors.New("invalid payment method")
	}
	return nil
}

type HistoryAction string

const (
	HistoryActionCreate HistoryAction = "CREATE"
	HistoryActionUpdate HistoryAction = "UPDATE"
	HistoryActionStatus HistoryAction = "STATUS"
	HistoryActionPay    HistoryAction = "PAY"
	HistoryActionCancel HistoryAction = "CANCEL"
)

type OutboxReferenceType string

const (
	OutboxReferenceStockInput OutboxReferenceType = "STOCK_INPUT"
	OutboxReferencePayment    OutboxReferenceType = "SUPPLIER_PAYMENT"
)

type OutboxAction string

const (
	OutboxActionReceived  OutboxAction = "RECEIVED"
	OutboxActionCancelled OutboxAction = "CANCELLED"
	OutboxActionPaid      OutboxAction = "PAID"
)
