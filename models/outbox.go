package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Outbox publish statuses for OutboxMessage.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// OutboxMessage is written in the business transaction and published after commit.
type OutboxMessage struct {
	ID               int                 `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	EventDateTime    time.Time           `gorm:"index;not null" json:"event_date_time"`
	ReferenceId      int                 `gorm:"index" json:"reference_id"`
	ReferenceType    OutboxReferenceType `gorm:"size:30;not null" json:"reference_type"`
	Action           OutboxAction        `gorm:"size:20;not null" json:"action"`
	Payload          []byte              `gorm:"type:blob" json:"payload"`
	PublishStatus    string              `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time          `gorm:"index" json:"published_at"`
	PubSubMessageId  *string             `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int                 `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time          `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time          `gorm:"index" json:"locked_at"`
	LockedBy         *string             `gorm:"size:100" json:"locked_by"`
	LastPublishError *string             `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string              `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (m OutboxMessage) ToStockEventMessage() config.StockEventMessage {
	return config.StockEventMessage{
		ID:            m.ID,
		EventDateTime: m.EventDateTime,
		ReferenceId:   m.ReferenceId,
		ReferenceType: string(m.ReferenceType),
		Action:        string(m.Action),
		Payload:       m.Payload,
		CorrelationId: m.CorrelationId,
	}
}

// publishStockEvent records the event inside tx; the dispatcher sends it later.
func publishStockEvent(tx *gorm.DB, refId int, refType OutboxReferenceType, action OutboxAction, obj interface{}) error {
	payload, err := json.Marshal(obj)
	if err != nil {
		return utils.Unexpected(err)
	}
	record := OutboxMessage{
		EventDateTime: time.Now().UTC(),
		ReferenceId:   refId,
		ReferenceType: refType,
		Action:        action,
		Payload:       payload,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(tx.Statement.Context),
	}
	if err := tx.Create(&record).Error; err != nil {
		return utils.Unexpected(err)
	}
	return nil
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// ReplayOutboxMessage makes a FAILED or DEAD record eligible for dispatch again.
func ReplayOutboxMessage(ctx context.Context, id int) (*OutboxMessage, error) {
	db := config.GetDB().WithContext(ctx)
	record, err := utils.FetchModel[OutboxMessage](db, id)
	if err != nil {
		if err == utils.ErrorRecordNotFound {
			return nil, utils.NotFound("outbox message not found")
		}
		return nil, utils.Unexpected(err)
	}
	if record.PublishStatus != OutboxPublishStatusFailed && record.PublishStatus != OutboxPublishStatusDead {
		return nil, utils.InvalidOperation("outbox message is %s, only FAILED or DEAD can be replayed", record.PublishStatus)
	}
	now := time.Now().UTC()
	if err := db.Model(&OutboxMessage{}).Where("id = ?", id).Updates(map[string]interface{}{
		"publish_status":     OutboxPublishStatusFailed,
		"publish_attempts":   0,
		"next_attempt_at":    &now,
		"locked_at":          nil,
		"locked_by":          nil,
		"last_publish_error": nil,
	}).Error; err != nil {
		return nil, utils.Unexpected(err)
	}
	return utils.FetchModel[OutboxMessage](db, id)
}
