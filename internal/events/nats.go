package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"SchoolPayments/internal/models"

	"github.com/nats-io/nats.go"
)

const DefaultSubject = "payments.status"

func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("school-payments"),
		nats.MaxReconnects(-1),
	)
}

type NATSPublisher struct {
	Conn    *nats.Conn
	Subject string
}

func (p NATSPublisher) Publish(ctx context.Context, ev models.StatusEvent) error {
	if p.Conn == nil {
		return nats.ErrConnectionClosed
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.Conn.Publish(p.Subject, data)
}

// Bridge feeds every event published on subject into hub, so each API
// instance can serve status streams for webhooks handled elsewhere.
func Bridge(conn *nats.Conn, subject string, hub *Hub) (*nats.Subscription, error) {
	if conn == nil {
		return nil, nats.ErrConnectionClosed
	}
	return conn.Subscribe(subject, func(msg *nats.Msg) {
		var ev models.StatusEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			slog.Error("decode status event failed", "subject", msg.Subject, "error", err)
			return
		}
		_ = hub.Publish(context.Background(), ev)
	})
}
