package config

import (
	"os"
	"strings"
)

// ReceiveStockOnCreate applies inventory when a goods receipt is created
// instead of when it is checked (single-stage receiving).
//
// Set via env:
// - RECEIVE_STOCK_ON_CREATE=true
func ReceiveStockOnCreate() bool {
	return boolFromEnv("RECEIVE_STOCK_ON_CREATE")
}

// OutboxDispatcherEnabled starts the Pub/Sub outbox dispatcher on boot.
// Requires PUBSUB_TOPIC.
func OutboxDispatcherEnabled() bool {
	return strings.TrimSpace(os.Getenv("PUBSUB_TOPIC")) != "" && !boolFromEnv("OUTBOX_DISPATCHER_DISABLED")
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
