// Package natsbus shares query tag invalidations between processes over NATS.
package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/fivetwenty-io/blog-client/internal/constants"
	"github.com/fivetwenty-io/blog-client/pkg/blog"
	"github.com/fivetwenty-io/blog-client/pkg/query"
)

// Static errors for err113 compliance.
var (
	ErrURLRequired  = errors.New("NATS URL is required")
	ErrConnRequired = errors.New("NATS connection is required")
	ErrEmptyMessage = errors.New("invalidation message carries no tags")
)

// Config configures a bus connection.
type Config struct {
	URL     string
	Subject string
	Name    string
	Logger  blog.Logger
	Options []nats.Option
}

// Bus implements query.Bus on a NATS subject. The connection is opened with
// NoEcho, so a process never receives its own invalidations.
type Bus struct {
	conn    *nats.Conn
	subject string
	logger  blog.Logger
	owned   bool
}

var _ query.Bus = (*Bus)(nil)

// Connect dials NATS and returns a bus owning the connection.
func Connect(cfg *Config) (*Bus, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, ErrURLRequired
	}

	name := cfg.Name
	if name == "" {
		name = constants.DefaultUserAgent
	}

	opts := append([]nats.Option{nats.Name(name), nats.NoEcho()}, cfg.Options...)

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	bus, err := New(conn, cfg.Subject, cfg.Logger)
	if err != nil {
		conn.Close()

		return nil, err
	}

	bus.owned = true

	return bus, nil
}

// New wraps an existing connection. The caller keeps ownership of conn.
func New(conn *nats.Conn, subject string, logger blog.Logger) (*Bus, error) {
	if conn == nil {
		return nil, ErrConnRequired
	}

	if subject == "" {
		subject = constants.DefaultNATSSubject
	}

	if logger == nil {
		logger = blog.NopLogger{}
	}

	return &Bus{conn: conn, subject: subject, logger: logger}, nil
}

// Subject returns the subject invalidations travel on.
func (b *Bus) Subject() string {
	return b.subject
}

// Publish implements query.Bus.
func (b *Bus) Publish(ctx context.Context, tags []query.Tag) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publishing invalidation: %w", err)
	}

	data, err := Encode(tags)
	if err != nil {
		return err
	}

	err = b.conn.Publish(b.subject, data)
	if err != nil {
		return fmt.Errorf("publishing invalidation: %w", err)
	}

	return nil
}

// Subscribe implements query.Bus. Malformed messages are logged and dropped.
func (b *Bus) Subscribe(handler func(tags []query.Tag)) (func(), error) {
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		tags, err := Decode(msg.Data)
		if err != nil {
			b.logger.Warn("Dropping invalidation message", map[string]interface{}{
				"subject": msg.Subject,
				"error":   err.Error(),
			})

			return
		}

		handler(tags)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", b.subject, err)
	}

	return func() {
		_ = sub.Unsubscribe()
	}, nil
}

// Close closes the connection if the bus opened it.
func (b *Bus) Close() {
	if b.owned {
		b.conn.Close()
	}
}

type message struct {
	Tags []query.Tag `json:"tags"`
}

// Encode returns the wire form of an invalidation: {"tags":[{"type":..,"id":..}]}.
func Encode(tags []query.Tag) ([]byte, error) {
	if len(tags) == 0 {
		return nil, ErrEmptyMessage
	}

	data, err := json.Marshal(message{Tags: tags})
	if err != nil {
		return nil, fmt.Errorf("encoding invalidation: %w", err)
	}

	return data, nil
}

// Decode parses an invalidation produced by Encode.
func Decode(data []byte) ([]query.Tag, error) {
	var msg message

	err := json.Unmarshal(data, &msg)
	if err != nil {
		return nil, fmt.Errorf("decoding invalidation: %w", err)
	}

	if len(msg.Tags) == 0 {
		return nil, ErrEmptyMessage
	}

	return msg.Tags, nil
}
