package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject click events are published on.
const DefaultSubject = "links.clicked"

// publisher is the part of *nats.Conn the sink needs.
type publisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSSink publishes click events as JSON. The event id is sent in the
// Nats-Msg-Id header so JetStream consumers can drop duplicates.
type NATSSink struct {
	pub     publisher
	subject string
}

func NewNATSSink(pub publisher, subject string) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSink{pub: pub, subject: subject}
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Notify(ctx context.Context, evt ClickEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode click event: %w", err)
	}

	msg := nats.NewMsg(s.subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, evt.ID.String())

	if err := s.pub.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish click event: %w", err)
	}
	return nil
}

// ConnectNATS dials the server and logs connection state changes. An
// unreachable server does not fail startup; the client keeps retrying in
// the background and buffers publishes meanwhile.
func ConnectNATS(url, name string, logger *slog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return conn, nil
}
