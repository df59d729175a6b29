package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/models"
	"github.com/sirupsen/logrus"
)

func main() {
	persist := flag.Bool("persist", false, "write findings to reconciliation_reports")
	failOnDrift := flag.Bool("fail-on-drift", false, "exit with status 2 when any drift is found")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	findings, err := models.ReconcileInventory(context.Background(), *persist)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "inventory-reconcile"}).Error(err.Error())
		os.Exit(1)
	}
	for _, f := range findings {
		fmt.Printf("warehouse=%d product=%d inventory=%s batches=%s\n",
			f.WarehouseId, f.ProductId, f.InventoryQty.String(), f.BatchQty.String())
	}
	fmt.Printf("%d drift(s) found (driver=%s)\n", len(findings), config.GetDBDriver())
	if *failOnDrift && len(findings) > 0 {
		os.Exit(2)
	}
}
