package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/akylbek/payment-system/upgrade-checkout/internal/models"
)

const UpgradeSucceededSubject = "checkout.upgrade.succeeded"

// NatsConn is the subset of *nats.Conn used for publishing.
type NatsConn interface {
	PublishMsg(m *nats.Msg) error
}

// NatsUpgradePublisher announces completed upgrades to other services.
type NatsUpgradePublisher struct {
	nc      NatsConn
	subject string
}

func NewNatsUpgradePublisher(nc NatsConn, subject string) *NatsUpgradePublisher {
	if subject == "" {
		subject = UpgradeSucceededSubject
	}
	return &NatsUpgradePublisher{nc: nc, subject: subject}
}

func (p *NatsUpgradePublisher) PublishUpgrade(ctx context.Context, event models.UpgradeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal upgrade event: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set("Session-Id", event.SessionID)
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish upgrade event: %w", err)
	}
	return nil
}
