package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakePublisher struct {
	mu   sync.Mutex
	sent []config.StockEventMessage
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, msg config.StockEventMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.sent = append(p.sent, msg)
	return "msg-" + uuid.NewString(), nil
}

func setupDispatcherDB(t *testing.T) *gorm.DB {
	t.Helper()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_NAME", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	t.Setenv("REDIS_ADDRESS", "")

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	models.MigrateTable()
	return db
}

func seedOutbox(t *testing.T, db *gorm.DB, n int) []models.OutboxMessage {
	t.Helper()
	var out []models.OutboxMessage
	for i := 0; i < n; i++ {
		rec := models.OutboxMessage{
			EventDateTime: time.Now().UTC(),
			ReferenceId:   i + 1,
			ReferenceType: models.OutboxReferenceStockInput,
			Action:        models.OutboxActionReceived,
			Payload:       []byte(`{"id":1}`),
			PublishStatus: models.OutboxPublishStatusPending,
			CorrelationId: "cid",
		}
		if err := db.Create(&rec).Error; err != nil {
			t.Fatalf("seed outbox: %v", err)
		}
		out = append(out, rec)
	}
	return out
}

func loadOutbox(t *testing.T, db *gorm.DB, id int) models.OutboxMessage {
	t.Helper()
	var rec models.OutboxMessage
	if err := db.First(&rec, id).Error; err != nil {
		t.Fatalf("load outbox %d: %v", id, err)
	}
	return rec
}

func newTestDispatcher(db *gorm.DB, p Publisher) *OutboxDispatcher {
	d := NewOutboxDispatcher(db, config.GetLogger())
	d.Publisher = p
	d.InitialBackoff = time.Hour
	d.MaxAttempts = 2
	return d
}

func TestDispatchOnceMarksSent(t *testing.T) {
	db := setupDispatcherDB(t)
	recs := seedOutbox(t, db, 3)
	pub := &fakePublisher{}
	d := newTestDispatcher(db, pub)

	sent, err := d.DispatchOnce(context.Background())
	if err != nil {
		t.Fatalf("DispatchOnce: %v", err)
	}
	if sent != 3 || len(pub.sent) != 3 {
		t.Fatalf("sent: got %d (publisher saw %d), want 3", sent, len(pub.sent))
	}
	for i, rec := range recs {
		got := loadOutbox(t, db, rec.ID)
		if got.PublishStatus != models.OutboxPublishStatusSent {
			t.Fatalf("record %d: status %s", rec.ID, got.PublishStatus)
		}
		if got.PublishedAt == nil || got.PubSubMessageId == nil || got.LockedBy != nil {
			t.Fatalf("record %d: published_at/message id/lock not settled", rec.ID)
		}
		if got.PublishAttempts != 1 {
			t.Fatalf("record %d: attempts %d", rec.ID, got.PublishAttempts)
		}
		if pub.sent[i].ID != rec.ID || pub.sent[i].CorrelationId != "cid" {
			t.Fatalf("publish order or payload mismatch at %d", i)
		}
	}

	sent, err = d.DispatchOnce(context.Background())
	if err != nil {
		t.Fatalf("DispatchOnce: %v", err)
	}
	if sent != 0 {
		t.Fatalf("second dispatch re-sent %d rows", sent)
	}
}

func TestDispatchOnceFailureBacksOffThenDies(t *testing.T) {
	db := setupDispatcherDB(t)
	rec := seedOutbox(t, db, 1)[0]
	pub := &fakePublisher{err: errors.New("broker down")}
	d := newTestDispatcher(db, pub)

	if _, err := d.DispatchOnce(context.Background()); err != nil {
		t.Fatalf("DispatchOnce: %v", err)
	}
	got := loadOutbox(t, db, rec.ID)
	if got.PublishStatus != models.OutboxPublishStatusFailed {
		t.Fatalf("status: got %s want FAILED", got.PublishStatus)
	}
	if got.LastPublishError == nil || *got.LastPublishError != "broker down" {
		t.Fatalf("last error: %v", got.LastPublishError)
	}
	if got.NextAttemptAt == nil || !got.NextAttemptAt.After(time.Now().Add(30*time.Minute)) {
		t.Fatalf("next attempt not pushed out: %v", got.NextAttemptAt)
	}

	// still backing off
	if _, err := d.DispatchOnce(context.Background()); err != nil {
		t.Fatalf("DispatchOnce: %v", err)
	}
	if got := loadOutbox(t, db, rec.ID); got.PublishAttempts != 1 {
		t.Fatalf("retried during backoff, attempts %d", got.PublishAttempts)
	}

	past := time.Now().UTC().Add(-time.Minute)
	if err := db.Model(&models.OutboxMessage{}).Where("id = ?", rec.ID).Update("next_attempt_at", &past).Error; err != nil {
		t.Fatalf("rewind next attempt: %v", err)
	}
	if _, err := d.DispatchOnce(context.Background()); err != nil {
		t.Fatalf("DispatchOnce: %v", err)
	}
	got = loadOutbox(t, db, rec.ID)
	if got.PublishStatus != models.OutboxPublishStatusDead {
		t.Fatalf("status: got %s want DEAD", got.PublishStatus)
	}
	if got.PublishAttempts != 2 {
		t.Fatalf("attempts: got %d want 2", got.PublishAttempts)
	}
}

func TestDispatchOnceReclaimsStaleProcessing(t *testing.T) {
	db := setupDispatcherDB(t)
	rec := seedOutbox(t, db, 1)[0]
	stale := time.Now().UTC().Add(-time.Hour)
	owner := "crashed"
	if err := db.Model(&models.OutboxMessage{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
		"publish_status": models.OutboxPublishStatusProcessing,
		"locked_at":      &stale,
		"locked_by":      &owner,
	}).Error; err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	d := newTestDispatcher(db, &fakePublisher{})
	sent, err := d.DispatchOnce(context.Background())
	if err != nil {
		t.Fatalf("DispatchOnce: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent: got %d want 1", sent)
	}
	if got := loadOutbox(t, db, rec.ID); got.PublishStatus != models.OutboxPublishStatusSent {
		t.Fatalf("status: got %s", got.PublishStatus)
	}
}

func TestPublishBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{4, 40 * time.Second},
		{20, maxPublishBackoff},
	}
	for _, tc := range cases {
		if got := publishBackoff(5*time.Second, tc.attempt); got != tc.want {
			t.Errorf("attempt %d: got %s want %s", tc.attempt, got, tc.want)
		}
	}
}
