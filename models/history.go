package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
)

type History struct {
	ID            int           `gorm:"primary_key" json:"id"`
	ActionType    HistoryAction `gorm:"size:10;not null" json:"action_type"`
	Before        string        `gorm:"type:text" json:"before"`
	After         string        `gorm:"type:text" json:"after"`
	Description   string        `gorm:"type:text;not null" json:"description"`
	ReferenceID   int           `gorm:"index:idx_history_ref,priority:2" json:"reference_id"`
	ReferenceType string        `gorm:"size:50;index:idx_history_ref,priority:1" json:"reference_type"`
	UserId        int           `gorm:"index;not null" json:"user_id"`
	UserName      string        `gorm:"size:100" json:"user_name"`
	CorrelationId string        `gorm:"size:64" json:"correlation_id"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

func createHistory(tx *gorm.DB,
	actionType HistoryAction,
	referenceId int,
	referenceType string,
	before interface{},
	after interface{},
	description string) error {

	var history History

	ctx := tx.Statement.Context
	if before != nil {
		b, _ := json.Marshal(before)
		history.Before = string(b)
	}
	if after != nil {
		a, _ := json.Marshal(after)
		history.After = string(a)
	}

	// user comes from the session, system jobs run as user 0
	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, ok := utils.GetUserNameFromContext(ctx)
	if !ok || userName == "" {
		userName = "System"
	}

	history.ActionType = actionType
	history.Description = description
	history.ReferenceID = referenceId
	history.ReferenceType = referenceType
	history.UserId = userId
	history.UserName = userName
	history.CorrelationId = correlationIdFromContextOrNew(ctx)

	if err := tx.Create(&history).Error; err != nil {
		return utils.Unexpected(err)
	}
	return nil
}

func GetHistories(ctx context.Context, referenceType string, referenceId int) ([]*History, error) {
	db := config.GetDB()
	var results []*History
	if err := db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceId).
		Order("id").
		Find(&results).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	return results, nil
}
