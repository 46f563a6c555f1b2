package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"flip7-server/pkg/flip7"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// DefaultSubjectPrefix is used when no prefix is configured
const DefaultSubjectPrefix = "flip7.game"

// Publisher sends committed snapshots to out-of-process observers
type Publisher interface {
	Publish(gameID string, snap *flip7.Snapshot) error
	Close()
}

// conn is the subset of *nats.Conn the publisher needs
type conn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// Subject returns the subject the snapshots of a game are published on
func Subject(prefix, gameID string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	return fmt.Sprintf("%s.%s.state", prefix, gameID)
}

// Connect connects to the NATS server at url
func Connect(url, name string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(5),
	}

	return nats.Connect(url, opts...)
}

// New returns a NATS publisher, or a publisher that drops everything if url is empty
func New(logger logrus.FieldLogger, url, prefix string) (Publisher, error) {
	if url == "" {
		return Nop{}, nil
	}

	nc, err := Connect(url, "flip7-server")
	if err != nil {
		return nil, fmt.Errorf("could not connect to NATS at %s: %w", url, err)
	}

	logger.WithField("url", url).Info("publishing snapshots to NATS")
	return newNATSPublisher(logger, nc, prefix), nil
}

// NATSPublisher publishes snapshots as JSON on a per-game subject
type NATSPublisher struct {
	conn   conn
	prefix string
	logger logrus.FieldLogger
}

func newNATSPublisher(logger logrus.FieldLogger, c conn, prefix string) *NATSPublisher {
	return &NATSPublisher{
		conn:   c,
		prefix: prefix,
		logger: logger,
	}
}

// Publish sends the snapshot
func (p *NATSPublisher) Publish(gameID string, snap *flip7.Snapshot) error {
	data, err := snap.JSON()
	if err != nil {
		return err
	}

	subject := Subject(p.prefix, gameID)
	p.logger.WithField("subject", subject).WithField("version", snap.Version).Trace("publishing snapshot")
	return p.conn.Publish(subject, data)
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.WithError(err).Warn("could not drain NATS connection")
	}
}

// Nop is a publisher that drops every snapshot
type Nop struct{}

// Publish does nothing
func (Nop) Publish(string, *flip7.Snapshot) error {
	return nil
}

// Close does nothing
func (Nop) Close() {}

// Watch calls fn with every snapshot published for the game until ctx is done
// gameID may be "*" to watch every game.
func Watch(ctx context.Context, nc *nats.Conn, prefix, gameID string, fn func(*flip7.Snapshot)) error {
	sub, err := nc.Subscribe(Subject(prefix, gameID), func(msg *nats.Msg) {
		snap, err := decode(msg.Data)
		if err != nil {
			logrus.WithError(err).WithField("subject", msg.Subject).Warn("dropping malformed snapshot")
			return
		}

		fn(snap)
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	return sub.Unsubscribe()
}

func decode(data []byte) (*flip7.Snapshot, error) {
	var snap flip7.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", flip7.ErrValidation, err)
	}

	return &snap, nil
}
