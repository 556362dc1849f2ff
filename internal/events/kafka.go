package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"parkspot/internal/config"
	"parkspot/internal/models"
)

const (
	HeaderEventID   = "event-id"
	HeaderEventType = "event-type"
	HeaderSource    = "source"
)

var ErrPublisherClosed = errors.New("kafka publisher is closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes outbox events to the booking topic, keyed by booking
// id so that one booking's events stay ordered within a partition.
type KafkaPublisher struct {
	writer   messageWriter
	clientID string
	logger   *zerolog.Logger
	mu       sync.RWMutex
	closed   bool
}

func NewKafkaPublisher(cfg config.KafkaConfig, logger *zerolog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic cannot be empty")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: requiredAcks(cfg.RequiredAcks),
		Compression:  compression(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		BatchTimeout: cfg.BatchTimeout,
		Logger:       kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			logger.Error().Msgf(msg, args...)
		}),
	}
	return newKafkaPublisher(writer, cfg.ClientID, logger), nil
}

func newKafkaPublisher(w messageWriter, clientID string, logger *zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, clientID: clientID, logger: logger}
}

func requiredAcks(v int) kafka.RequiredAcks {
	switch v {
	case 0:
		return kafka.RequireNone
	case 1:
		return kafka.RequireOne
	default:
		return kafka.RequireAll
	}
}

func compression(name string) compress.Compression {
	switch name {
	case "gzip":
		return compress.Gzip
	case "lz4":
		return compress.Lz4
	case "zstd":
		return compress.Zstd
	case "none":
		return 0
	default:
		return compress.Snappy
	}
}

func (p *KafkaPublisher) buildMessage(ev models.OutboxEvent) kafka.Message {
	ts := ev.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.BookingID, 10)),
		Value: []byte(ev.Payload),
		Time:  ts,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(ev.EventID)},
			{Key: HeaderEventType, Value: []byte(ev.EventType)},
			{Key: HeaderSource, Value: []byte(p.clientID)},
		},
	}
}

// Publish writes one outbox event and waits for the configured acks.
func (p *KafkaPublisher) Publish(ctx context.Context, ev models.OutboxEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	if ev.Payload == "" {
		return fmt.Errorf("event %s has empty payload", ev.EventID)
	}

	if err := p.writer.WriteMessages(ctx, p.buildMessage(ev)); err != nil {
		return fmt.Errorf("failed to write %s to kafka: %w", ev.EventType, err)
	}
	p.logger.Debug().Str("event_id", ev.EventID).Str("type", ev.EventType).Msg("event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}
