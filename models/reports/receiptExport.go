package reports

import (
	"bytes"
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/models"
	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"github.com/xuri/excelize/v2"
)

const receiptSheet = "Receipt"

// ExcelExporter is a row of an exported sheet.
type ExcelExporter interface {
	GetCellValues() []interface{}
}

type receiptLineRow struct {
	No          int
	Sku         string
	ProductName string
	Unit        string
	Quantity    string
	UnitPrice   string
	LineCost    string
}

func (r receiptLineRow) GetCellValues() []interface{} {
	return []interface{}{r.No, r.Sku, r.ProductName, r.Unit, r.Quantity, r.UnitPrice, r.LineCost}
}

var receiptLineHeadings = []string{"No", "SKU", "Product", "Unit", "Quantity", "Unit Price", "Line Cost"}

// ExportReceiptExcel renders a goods receipt with its lines and payment
// position as an xlsx workbook.
func ExportReceiptExcel(ctx context.Context, transactionId int) ([]byte, string, error) {
	transaction, err := models.GetImportTransaction(ctx, transactionId)
	if err != nil {
		return nil, "", err
	}
	summary, err := models.GetPaymentSummary(ctx, transactionId)
	if err != nil {
		return nil, "", err
	}

	db := config.GetDB().WithContext(ctx)
	warehouse, err := models.GetWarehouse(db, transaction.WarehouseId)
	if err != nil {
		return nil, "", err
	}
	supplier, err := models.GetSupplier(db, transaction.SupplierId)
	if err != nil {
		return nil, "", err
	}

	rows := make([]ExcelExporter, 0, len(transaction.Details))
	for i, d := range transaction.Details {
		product, err := models.GetProduct(db, d.ProductId)
		if err != nil {
			return nil, "", err
		}
		rows = append(rows, receiptLineRow{
			No:          i + 1,
			Sku:         product.Sku,
			ProductName: product.Name,
			Unit:        product.Unit,
			Quantity:    d.Quantity.String(),
			UnitPrice:   d.UnitPrice.StringFixed(2),
			LineCost:    d.LineCost().StringFixed(2),
		})
	}

	header := [][2]interface{}{
		{"Receipt", transaction.ID},
		{"Status", transaction.StatusName()},
		{"Warehouse", warehouse.Name},
		{"Supplier", supplier.Name},
		{"Transaction Date", transaction.TransactionDate.Format("2006-01-02")},
		{"Expire Date", transaction.ExpireDate.Format("2006-01-02")},
		{"Total Cost", transaction.TotalCost.StringFixed(2)},
		{"Total Weight", transaction.TotalWeight.String()},
		{"Paid", summary.Paid.StringFixed(2)},
		{"Outstanding", summary.Outstanding.StringFixed(2)},
		{"Payment Status", string(summary.State)},
	}

	f, err := exportExcel(header, rows, receiptLineHeadings...)
	if err != nil {
		return nil, "", utils.Unexpected(err)
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", utils.Unexpected(err)
	}
	return buf.Bytes(), fmt.Sprintf("receipt-%d.xlsx", transaction.ID), nil
}

// exportExcel writes key/value header rows, a blank row, then the table.
func exportExcel(header [][2]interface{}, data []ExcelExporter, headings ...string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", receiptSheet); err != nil {
		return nil, err
	}

	rowNo := 1
	for _, kv := range header {
		if err := setRow(f, rowNo, kv[0], kv[1]); err != nil {
			return nil, err
		}
		rowNo++
	}
	rowNo++

	values := make([]interface{}, len(headings))
	for i, h := range headings {
		values[i] = h
	}
	if err := setRow(f, rowNo, values...); err != nil {
		return nil, err
	}
	rowNo++

	for _, d := range data {
		if err := setRow(f, rowNo, d.GetCellValues()...); err != nil {
			return nil, err
		}
		rowNo++
	}
	return f, nil
}

func setRow(f *excelize.File, rowNo int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	return f.SetSheetRow(receiptSheet, cell, &values)
}
