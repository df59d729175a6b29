package utils

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/* DB fetching */

// fetch model by primary key through the caller's handle
// (may return RecordNotFound)
func FetchModel[T any](tx *gorm.DB, id int, associations ...string) (*T, error) {
	q := tx
	for _, field := range associations {
		q = q.Preload(field)
	}
	var result T
	if err := q.First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// fetch model with SELECT ... FOR UPDATE, tx must be inside a transaction
func FetchModelForUpdate[T any](tx *gorm.DB, id int) (*T, error) {
	return FetchModel[T](tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

// cached lookup: redis first, then db, then store in redis
func FetchCachedModel[T any](tx *gorm.DB, id int) (*T, error) {
	result, err := RetrieveRedis[T](id)
	if err != nil {
		return nil, err
	}
	if result != nil {
		return result, nil
	}
	result, err = FetchModel[T](tx, id)
	if err != nil {
		return nil, err
	}
	if err := StoreRedis[T](result, id); err != nil {
		return nil, err
	}
	return result, nil
}
