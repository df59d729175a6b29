package models

import (
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction is a goods receipt (Import) or dispatch (Export) header.
type Transaction struct {
	ID               int                 `gorm:"primary_key" json:"id"`
	Type             TransactionType     `gorm:"size:10;not null;index" json:"type"`
	WarehouseId      int                 `gorm:"index;not null" json:"warehouse_id"`
	SupplierId       int                 `gorm:"index;default:null" json:"supplier_id"`
	CustomerId       int                 `gorm:"index;default:null" json:"customer_id"`
	ResponsibleId    int                 `gorm:"index;not null" json:"responsible_id"`
	Status           TransactionStatus   `gorm:"not null;index" json:"status"`
	TotalCost        decimal.Decimal     `gorm:"type:decimal(20,4);not null;default:0" json:"total_cost"`
	TotalWeight      decimal.Decimal     `gorm:"type:decimal(20,4);not null;default:0" json:"total_weight"`
	PaidAmount       decimal.Decimal     `gorm:"type:decimal(20,4);not null;default:0" json:"paid_amount"`
	PaymentStatus    PaymentState        `gorm:"size:20;not null" json:"payment_status"`
	InventoryApplied bool                `gorm:"not null;default:false" json:"inventory_applied"`
	ExpireDate       time.Time           `gorm:"not null" json:"expire_date"`
	Note             string              `gorm:"type:text" json:"note"`
	TransactionDate  time.Time           `gorm:"not null;index" json:"transaction_date"`
	Details          []TransactionDetail `gorm:"foreignKey:TransactionId" json:"details"`
	Batches          []StockBatch        `gorm:"foreignKey:TransactionId" json:"batches,omitempty"`
	CreatedAt        time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t Transaction) StatusName() string {
	return t.Status.String()
}

type NewStockInput struct {
	WarehouseId     int                   `json:"warehouse_id"`
	SupplierId      int                   `json:"supplier_id"`
	ExpireDate      Date                  `json:"expire_date"`
	TransactionDate *Date                 `json:"transaction_date"`
	Note            string                `json:"note"`
	Products        []NewStockInputDetail `json:"products"`
}

type NewStockInputDetail struct {
	ProductId int             `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type UpdateStockInput struct {
	Note     *string               `json:"note"`
	Products []NewStockInputDetail `json:"products"`
}

type CheckStockInput struct {
	// ExpireDate overrides the receipt's expiry for the lots created on check.
	ExpireDate *Date   `json:"expire_date"`
	Note       *string `json:"note" validate:"omitempty,max=1000"`
}

type NewPayment struct {
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethod   PaymentMethod   `json:"payment_method" validate:"omitempty,oneof=Cash BankTransfer Card Cheque"`
	ReferenceNumber string          `json:"reference_number" validate:"max=100"`
	Description     string          `json:"description" validate:"max=1000"`
	PaymentDate     *Date           `json:"payment_date"`
}

// amountScale is the number of decimal places stored by every decimal(20,4) column.
const amountScale = 4

// exceedsScale reports whether d carries significant digits beyond amountScale.
// Trailing zeros ("1.50000") are fine.
func exceedsScale(d decimal.Decimal) bool {
	return !d.Equal(d.Truncate(amountScale))
}

// resolved line with the product needed for weight
type stockInputLine struct {
	TransactionDetail
	Product *Product
}

// validate a line in the order quantity, unit price, product
func (input NewStockInputDetail) resolve(tx *gorm.DB, index int) (stockInputLine, error) {
	if !input.Quantity.IsPositive() {
		return stockInputLine{}, utils.InvalidArgument("products[%d]: quantity must be greater than zero", index)
	}
	if exceedsScale(input.Quantity) {
		return stockInputLine{}, utils.InvalidArgument("products[%d]: quantity allows at most %d decimal places", index, amountScale)
	}
	if input.UnitPrice.IsNegative() {
		return stockInputLine{}, utils.InvalidArgument("products[%d]: unit price must not be negative", index)
	}
	if exceedsScale(input.UnitPrice) {
		return stockInputLine{}, utils.InvalidArgument("products[%d]: unit price allows at most %d decimal places", index, amountScale)
	}
	product, err := GetProduct(tx, input.ProductId)
	if err != nil {
		return stockInputLine{}, err
	}
	return stockInputLine{
		TransactionDetail: TransactionDetail{
			ProductId: input.ProductId,
			Quantity:  input.Quantity,
			UnitPrice: input.UnitPrice,
		},
		Product: product,
	}, nil
}

func resolveStockInputLines(tx *gorm.DB, inputs []NewStockInputDetail) ([]stockInputLine, error) {
	if len(inputs) == 0 {
		return nil, utils.InvalidArgument("product list must not be empty")
	}
	lines := make([]stockInputLine, 0, len(inputs))
	for i, input := range inputs {
		line, err := input.resolve(tx, i)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// totals: cost = sum(qty * price), weight = sum(qty * weight_per_unit)
func calculateStockInputTotals(lines []stockInputLine) (decimal.Decimal, decimal.Decimal) {
	totalCost := decimal.Zero
	totalWeight := decimal.Zero
	for _, line := range lines {
		totalCost = totalCost.Add(line.LineCost())
		totalWeight = totalWeight.Add(line.Quantity.Mul(line.Product.WeightPerUnit))
	}
	return totalCost, totalWeight
}

type productQuantity struct {
	ProductId int
	Quantity  decimal.Decimal
}

// per-product quantities in first-seen order
func sumQuantitiesByProduct(details []TransactionDetail) []productQuantity {
	index := map[int]int{}
	var out []productQuantity
	for _, d := range details {
		if i, ok := index[d.ProductId]; ok {
			out[i].Quantity = out[i].Quantity.Add(d.Quantity)
			continue
		}
		index[d.ProductId] = len(out)
		out = append(out, productQuantity{ProductId: d.ProductId, Quantity: d.Quantity})
	}
	return out
}
