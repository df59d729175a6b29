package models

import (
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"gorm.io/gorm"
)

const (
	idempotencyScopeFullPayment    = "payment:full"
	idempotencyScopePartialPayment = "payment:partial"
)

// IdempotencyKey remembers client retry keys of payment requests. It is
// written in the same DB transaction as the payment it guards.
// Unique constraint: (scope, idempotency_key).
type IdempotencyKey struct {
	ID             int       `gorm:"primary_key" json:"id"`
	Scope          string    `gorm:"size:50;not null;uniqueIndex:uniq_idem,priority:1" json:"scope"`
	IdempotencyKey string    `gorm:"size:255;not null;uniqueIndex:uniq_idem,priority:2" json:"idempotency_key"`
	ReferenceId    int       `gorm:"index;not null" json:"reference_id"`
	ResultId       int       `json:"result_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// findIdempotencyKey returns (true, nil) when the key was already used for
// referenceId; a key used for another reference is rejected.
func findIdempotencyKey(tx *gorm.DB, scope string, key string, referenceId int) (bool, error) {
	if key == "" {
		return false, nil
	}
	var existing IdempotencyKey
	err := tx.Where("scope = ? AND idempotency_key = ?", scope, key).Take(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, utils.Unexpected(err)
	}
	if existing.ReferenceId != referenceId {
		return false, utils.InvalidArgument("idempotency key already used for another transaction")
	}
	return true, nil
}

func saveIdempotencyKey(tx *gorm.DB, scope string, key string, referenceId int, resultId int) error {
	if key == "" {
		return nil
	}
	record := IdempotencyKey{
		Scope:          scope,
		IdempotencyKey: key,
		ReferenceId:    referenceId,
		ResultId:       resultId,
	}
	if err := tx.Create(&record).Error; err != nil {
		if utils.IsDuplicateKeyErr(err) {
			return utils.InvalidArgument("idempotency key already used")
		}
		return utils.Unexpected(err)
	}
	return nil
}
