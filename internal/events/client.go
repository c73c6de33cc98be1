package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Client represents a NATS connection with an optional JetStream context
// for the session event stream.
type Client struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	config *Config
	logger logrus.FieldLogger
}

// NewClient connects to NATS and makes sure the session stream exists
func NewClient(config *Config, logger logrus.FieldLogger) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	opts := []nats.Option{
		nats.Name(config.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.WithError(err).Error("NATS error")
		}),
	}

	if config.User != "" && config.Password != "" {
		opts = append(opts, nats.UserInfo(config.User, config.Password))
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	client := &Client{
		nc:     nc,
		config: config,
		logger: logger,
	}

	if config.DisableStream {
		return client, nil
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	client.js = js

	if err := client.initializeStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to initialize stream: %w", err)
	}

	return client, nil
}

// initializeStream creates or updates the session event stream
func (c *Client) initializeStream() error {
	streamConfig := &nats.StreamConfig{
		Name:        c.config.StreamName,
		Description: "shelf session lifecycle events",
		Subjects:    []string{SubjectSessionAll},
		Retention:   nats.LimitsPolicy,
		MaxAge:      c.config.StreamMaxAge,
		MaxMsgs:     c.config.StreamMaxMsgs,
		Replicas:    c.config.StreamReplicas,
		Duplicates:  time.Minute,
		Storage:     nats.FileStorage,
	}

	_, err := c.js.AddStream(streamConfig)
	if err != nil {
		_, err = c.js.UpdateStream(streamConfig)
		if err != nil {
			return fmt.Errorf("failed to create/update session stream: %w", err)
		}
	}
	return nil
}

// PublishSession publishes a session message and waits for the stream ack
func (c *Client) PublishSession(ctx context.Context, msg *SessionMessage) error {
	data, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal session message: %w", err)
	}

	if c.js == nil {
		if err := c.nc.Publish(msg.Subject(), data); err != nil {
			return fmt.Errorf("failed to publish session message: %w", err)
		}
		return c.flush(ctx)
	}

	pubAck, err := c.js.PublishAsync(msg.Subject(), data, nats.MsgId(msg.ID))
	if err != nil {
		return fmt.Errorf("failed to publish session message: %w", err)
	}

	select {
	case <-pubAck.Ok():
		return nil
	case err := <-pubAck.Err():
		return fmt.Errorf("session message publish failed: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubscribeSessions delivers session messages to handler. With a stream the
// subscription is durable under consumerName and replays missed events.
func (c *Client) SubscribeSessions(consumerName string, handler func(*SessionMessage)) (*nats.Subscription, error) {
	deliver := func(m *nats.Msg) {
		msg, err := UnmarshalSessionMessage(m.Data)
		if err != nil {
			c.logger.WithError(err).WithField("subject", m.Subject).Warn("Dropping malformed session message")
			if c.js != nil {
				_ = m.Term()
			}
			return
		}
		handler(msg)
		if c.js != nil {
			_ = m.Ack()
		}
	}

	if c.js == nil {
		sub, err := c.nc.Subscribe(SubjectSessionAll, deliver)
		if err != nil {
			return nil, fmt.Errorf("failed to create subscription: %w", err)
		}
		return sub, nil
	}

	sub, err := c.js.Subscribe(SubjectSessionAll, deliver,
		nats.Durable(consumerName),
		nats.ManualAck(),
		nats.DeliverAll(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	return sub, nil
}

// flush waits for the server to process published messages. NATS needs a
// deadline, so ctx without one gets the publish timeout.
func (c *Client) flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.PublishTimeout)
		defer cancel()
	}
	return c.nc.FlushWithContext(ctx)
}

// Health checks the NATS connection health
func (c *Client) Health() error {
	if !c.nc.IsConnected() {
		return fmt.Errorf("NATS is not connected")
	}
	if c.js == nil {
		return nil
	}

	if _, err := c.js.AccountInfo(); err != nil {
		return fmt.Errorf("JetStream health check failed: %w", err)
	}
	return nil
}

// Close drains subscriptions and closes the NATS connection
func (c *Client) Close() error {
	if c.nc == nil {
		return nil
	}
	if err := c.nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		c.nc.Close()
		return err
	}
	return nil
}

// Conn returns the underlying NATS connection
func (c *Client) Conn() *nats.Conn {
	return c.nc
}
