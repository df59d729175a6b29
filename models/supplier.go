package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
)

type Supplier struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name" binding:"required"`
	ContactName string    `gorm:"size:100" json:"contact_name"`
	Phone       string    `gorm:"size:20" json:"phone"`
	Email       string    `gorm:"size:100" json:"email"`
	Address     string    `gorm:"type:text" json:"address"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name        string `json:"name" binding:"required"`
	ContactName string `json:"contact_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Address     string `json:"address"`
}

func GetSupplier(tx *gorm.DB, id int) (*Supplier, error) {
	if id <= 0 {
		return nil, utils.InvalidArgument("invalid supplier id")
	}
	supplier, err := utils.FetchCachedModel[Supplier](tx, id)
	if err != nil {
		if err == utils.ErrorRecordNotFound {
			return nil, utils.NotFound("supplier not found")
		}
		return nil, utils.Unexpected(err)
	}
	return supplier, nil
}

// CreateSupplier normalizes the phone number to E.164 when one is given.
func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, utils.InvalidArgument("supplier name is required")
	}
	phone := strings.TrimSpace(input.Phone)
	if phone != "" {
		formatted, err := utils.FormatPhoneNumber(phone, utils.CountryCode)
		if err != nil {
			return nil, utils.InvalidArgument("invalid supplier phone: %v", err)
		}
		phone = formatted
	}
	supplier := Supplier{
		Name:        name,
		ContactName: input.ContactName,
		Phone:       phone,
		Email:       input.Email,
		Address:     input.Address,
		IsActive:    boolPtr(true),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	return &supplier, nil
}
