package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Name          string          `gorm:"size:255;not null" json:"name" binding:"required"`
	Sku           string          `gorm:"size:100;uniqueIndex" json:"sku"`
	Unit          string          `gorm:"size:20" json:"unit"`
	WeightPerUnit decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"weight_per_unit"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name          string          `json:"name" binding:"required"`
	Sku           string          `json:"sku"`
	Unit          string          `json:"unit"`
	WeightPerUnit decimal.Decimal `json:"weight_per_unit"`
}

func GetProduct(tx *gorm.DB, id int) (*Product, error) {
	if id <= 0 {
		return nil, utils.InvalidArgument("invalid product id")
	}
	product, err := utils.FetchCachedModel[Product](tx, id)
	if err != nil {
		if err == utils.ErrorRecordNotFound {
			return nil, utils.NotFound("product not found (id=%d)", id)
		}
		return nil, utils.Unexpected(err)
	}
	return product, nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, utils.InvalidArgument("product name is required")
	}
	if input.WeightPerUnit.IsNegative() {
		return nil, utils.InvalidArgument("weight per unit must not be negative")
	}
	product := Product{
		Name:          name,
		Sku:           strings.TrimSpace(input.Sku),
		Unit:          input.Unit,
		WeightPerUnit: input.WeightPerUnit,
		IsActive:      boolPtr(true),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	return &product, nil
}
