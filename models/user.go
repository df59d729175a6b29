package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleAdmin     UserRole = "Admin"
	UserRoleStoreKeep UserRole = "StoreKeeper"
	UserRoleAccount   UserRole = "Accountant"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:100;not null;uniqueIndex" json:"username"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      UserRole  `gorm:"size:20;not null" json:"role"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username string   `json:"username" binding:"required"`
	Name     string   `json:"name" binding:"required"`
	Email    string   `json:"email"`
	Password string   `json:"password" binding:"required"`
	Role     UserRole `json:"role" binding:"required"`
}

func GetUser(tx *gorm.DB, id int) (*User, error) {
	if id <= 0 {
		return nil, utils.InvalidArgument("invalid responsible user id")
	}
	user, err := utils.FetchCachedModel[User](tx, id)
	if err != nil {
		if err == utils.ErrorRecordNotFound {
			return nil, utils.NotFound("user not found")
		}
		return nil, utils.Unexpected(err)
	}
	return user, nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	if username == "" || strings.TrimSpace(input.Password) == "" {
		return nil, utils.InvalidArgument("username and password are required")
	}
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, utils.Unexpected(err)
	}
	user := User{
		Username: username,
		Name:     input.Name,
		Email:    input.Email,
		Password: hashed,
		Role:     input.Role,
		IsActive: boolPtr(true),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	return &user, nil
}
