// seed-dev creates the master data a local warehouse needs to receive goods:
// one warehouse, one supplier, a few products with unit weights and an admin
// user, then prints a session token for that user.
//
// Usage:
//
//	DB_DRIVER=sqlite DB_NAME=file:warehouse.db go run ./cmd/seed-dev
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/models"
	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
)

func main() {
	username := flag.String("username", "admin", "admin username")
	password := flag.String("password", "admin123", "admin password")
	supplierPhone := flag.String("supplier-phone", "09420012345", "supplier phone, local or E.164")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	warehouse, err := models.CreateWarehouse(ctx, &models.NewWarehouse{
		Name: "Main Warehouse",
		City: "Yangon",
	})
	exitOnErr("create warehouse", err)

	if err := utils.ValidatePhoneNumber(*supplierPhone, utils.CountryCode); err != nil {
		fmt.Fprintf(os.Stderr, "supplier phone %q is not valid for %s: %v\n", *supplierPhone, utils.CountryCode, err)
		os.Exit(1)
	}
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{
		Name:        "Golden Harvest Trading",
		ContactName: "Ko Aung",
		Phone:       *supplierPhone,
	})
	exitOnErr("create supplier", err)

	products := []models.NewProduct{
		{Name: "Rice 25kg", Sku: "RICE-25", Unit: "bag", WeightPerUnit: decimal.NewFromInt(25)},
		{Name: "Cooking Oil 1L", Sku: "OIL-1L", Unit: "bottle", WeightPerUnit: decimal.RequireFromString("0.92")},
		{Name: "Sugar 1kg", Sku: "SUGAR-1", Unit: "pack", WeightPerUnit: decimal.NewFromInt(1)},
	}
	for i := range products {
		p, err := models.CreateProduct(ctx, &products[i])
		exitOnErr("create product "+products[i].Sku, err)
		fmt.Printf("product %d: %s (%s kg/%s)\n", p.ID, p.Name, p.WeightPerUnit.String(), p.Unit)
	}

	user, err := models.CreateUser(ctx, &models.NewUser{
		Username: *username,
		Name:     "Warehouse Admin",
		Password: *password,
		Role:     models.UserRoleAdmin,
	})
	exitOnErr("create user", err)

	token, err := utils.JwtGenerate(user.ID, user.Username, user.Name, string(user.Role))
	exitOnErr("generate token", err)

	fmt.Printf("warehouse %d: %s\n", warehouse.ID, warehouse.Name)
	fmt.Printf("supplier %d: %s %s\n", supplier.ID, supplier.Name, supplier.Phone)
	fmt.Printf("user %d: %s\n", user.ID, user.Username)
	fmt.Printf("token: %s\n", token)
}

func exitOnErr(step string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}
