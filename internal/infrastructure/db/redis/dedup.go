package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupTTL = 24 * time.Hour

// CallbackDedup provides a fast-path replay check for gateway
// callbacks. Key format: callback:<txn_id>:<status_code>. The payment
// store's terminal-state check remains authoritative; this only lets
// replays be spotted cheaply before hitting the store.
type CallbackDedup struct {
	client *redis.Client
}

// NewCallbackDedup creates a CallbackDedup wrapping the given client.
func NewCallbackDedup(client *redis.Client) *CallbackDedup {
	return &CallbackDedup{client: client}
}

// Seen reports whether this exact callback has already been reconciled.
func (d *CallbackDedup) Seen(ctx context.Context, txnID, statusCode string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(txnID, statusCode)).Result()
	if err != nil {
		return false, fmt.Errorf("callback dedup check: %w", err)
	}
	return n > 0, nil
}

// Mark records that this callback has been reconciled (expires after
// dedupTTL).
func (d *CallbackDedup) Mark(ctx context.Context, txnID, statusCode string) error {
	return d.client.Set(ctx, d.key(txnID, statusCode), "1", dedupTTL).Err()
}

func (d *CallbackDedup) key(txnID, statusCode string) string {
	return fmt.Sprintf("callback:%s:%s", txnID, statusCode)
}
