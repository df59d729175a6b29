package models

import (
	"log"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Warehouse{}, &Supplier{}, &Product{}, &User{},
		&Transaction{}, &TransactionDetail{},
		&StockBatch{}, &Inventory{},
		&FinancialTransaction{},
		&History{},
		&OutboxMessage{},
		&IdempotencyKey{},
		&ReconciliationReport{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
