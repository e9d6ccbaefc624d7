package changefeed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const Subject = "clinic.changes"

// NATS publishes changes on a subject so that every replica's subscribers
// see writes made by any replica. Received messages are fanned out locally.
type NATS struct {
	conn   *nats.Conn
	sub    *nats.Subscription
	local  *Local
	logger *zap.Logger
}

func NewNATS(url string, logger *zap.Logger) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name("clinicdesk"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	f := &NATS{conn: conn, local: NewLocal(), logger: logger}
	f.sub, err = conn.Subscribe(Subject, f.receive)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", Subject, err)
	}
	return f, nil
}

func (f *NATS) receive(msg *nats.Msg) {
	var c Change
	if err := json.Unmarshal(msg.Data, &c); err != nil {
		f.logger.Warn("drop malformed change", zap.Error(err))
		return
	}
	_ = f.local.Publish(context.Background(), c)
}

func (f *NATS) Publish(_ context.Context, changes ...Change) error {
	for _, c := range changes {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode change %s: %w", c.Path, err)
		}
		if err := f.conn.Publish(Subject, data); err != nil {
			return fmt.Errorf("publish change %s: %w", c.Path, err)
		}
	}
	return nil
}

func (f *NATS) Subscribe(buffer int) (<-chan Change, func()) {
	return f.local.Subscribe(buffer)
}

func (f *NATS) Close() error {
	if f.sub != nil {
		_ = f.sub.Unsubscribe()
	}
	err := f.conn.Drain()
	_ = f.local.Close()
	return err
}
