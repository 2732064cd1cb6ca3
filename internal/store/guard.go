package store

import (
	"context"
	"time"
)

const notifiedKeyPrefix = "checkout:notified:"

// NotificationGuard hands out the success notification of a session at most once.
type NotificationGuard struct {
	kv  KV
	ttl time.Duration
}

func NewNotificationGuard(kv KV, ttl time.Duration) *NotificationGuard {
	return &NotificationGuard{kv: kv, ttl: ttl}
}

func (g *NotificationGuard) Claim(ctx context.Context, sessionID string) (bool, error) {
	return g.kv.SetNX(ctx, notifiedKeyPrefix+sessionID, "1", g.ttl)
}
