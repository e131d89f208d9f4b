package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jwtly10/signalbook/internal/logging"
	"github.com/jwtly10/signalbook/internal/sizing"
	"github.com/jwtly10/signalbook/internal/types"
)

var logger = logging.New("gateway")

// Proposal is what the order gateway receives: the signal plus the sizing
// that passed every viability check. Placing the order is the gateway's job.
type Proposal struct {
	ID         string        `json:"id"`
	Signal     types.Signal  `json:"signal"`
	TakeProfit float64       `json:"take_profit"`
	Sizing     sizing.Result `json:"sizing"`
	RiskLevel  string        `json:"risk_level"`
	ProposedAt time.Time     `json:"proposed_at"`
}

type Publisher interface {
	Publish(ctx context.Context, p Proposal) error
	Close() error
}

// LogPublisher writes proposals to the log only. Used for dry runs.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (LogPublisher) Publish(_ context.Context, p Proposal) error {
	logger.Info("Order proposal",
		"id", p.ID,
		"symbol", p.Signal.Symbol,
		"side", p.Signal.Side,
		"entry", p.Signal.EntryPrice,
		"stop_loss", p.Signal.StopLoss,
		"take_profit", p.TakeProfit,
		"units", p.Sizing.Units,
		"notional", p.Sizing.Notional,
		"leverage", p.Sizing.LeverageUsed,
		"confidence", p.Signal.Confidence)
	return nil
}

func (LogPublisher) Close() error { return nil }

type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" default:"signalbook.proposals"`
	Compression  string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd none"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3" validate:"gte=1"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher sends proposals as JSON, keyed by symbol so one symbol's
// proposals stay ordered on a single partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
	}
	return newKafkaPublisher(writer, cfg.Topic), nil
}

func newKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic}
}

func (k *KafkaPublisher) Publish(ctx context.Context, p Proposal) error {
	value, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal proposal: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(p.Signal.Symbol),
		Value: value,
		Time:  p.ProposedAt,
		Headers: []kafka.Header{
			{Key: "side", Value: []byte(p.Signal.Side)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error("Failed to publish proposal", "topic", k.topic, "symbol", p.Signal.Symbol, "error", err)
		return fmt.Errorf("publish proposal %s: %w", p.ID, err)
	}

	logger.Debug("Published proposal", "topic", k.topic, "symbol", p.Signal.Symbol, "bytes", len(value))
	return nil
}

func (k *KafkaPublisher) Close() error {
	if k.writer != nil {
		return k.writer.Close()
	}
	return nil
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	case "none":
		return 0
	default:
		return kafka.Gzip
	}
}
