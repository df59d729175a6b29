package models

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("warehouse_backend/models")

// runInTransaction begins a DB transaction, runs fn, and commits.
// Any error or panic from fn rolls everything back.
func runInTransaction(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	db := config.GetDB()
	if db == nil {
		return utils.Unexpected(fmt.Errorf("database is not connected"))
	}
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return utils.Unexpected(tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err = tx.Commit().Error; err != nil {
		return utils.Unexpected(err)
	}
	return nil
}

// withStockInputLock serializes mutations of one transaction across requests.
func withStockInputLock(ctx context.Context, transactionId int, funcName string, fn func() error) error {
	if transactionId <= 0 {
		return utils.InvalidArgument("invalid transaction id")
	}
	release, err := utils.AcquireLock(ctx, utils.LockTypeStockInput, transactionId, "stockInput.go", funcName)
	if err != nil {
		return utils.Unexpected(err)
	}
	defer release()
	return fn()
}

func startSpan(ctx context.Context, name string, transactionId int) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	if transactionId > 0 {
		span.SetAttributes(attribute.Int("transaction.id", transactionId))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.kind", string(utils.KindOf(err))))
	}
	span.End()
}

func logUnexpected(funcName string, data any, err error) {
	if utils.KindOf(err) != utils.KindUnexpected {
		return
	}
	config.LogError(config.GetLogger(), "stockInput.go", funcName, "unexpected failure", data, err)
}
