package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
)

type Warehouse struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name" binding:"required"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Address   string    `gorm:"type:text" json:"address"`
	City      string    `gorm:"size:100" json:"city"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWarehouse struct {
	Name    string `json:"name" binding:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
}

// GetWarehouse returns NotFound for unknown ids.
func GetWarehouse(tx *gorm.DB, id int) (*Warehouse, error) {
	if id <= 0 {
		return nil, utils.InvalidArgument("invalid warehouse id")
	}
	warehouse, err := utils.FetchCachedModel[Warehouse](tx, id)
	if err != nil {
		if err == utils.ErrorRecordNotFound {
			return nil, utils.NotFound("warehouse not found")
		}
		return nil, utils.Unexpected(err)
	}
	return warehouse, nil
}

// CreateWarehouse is master data setup used by seeding.
func CreateWarehouse(ctx context.Context, input *NewWarehouse) (*Warehouse, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, utils.InvalidArgument("warehouse name is required")
	}
	warehouse := Warehouse{
		Name:     name,
		Phone:    input.Phone,
		Address:  input.Address,
		City:     input.City,
		IsActive: boolPtr(true),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&warehouse).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	return &warehouse, nil
}

func boolPtr(b bool) *bool {
	return &b
}
