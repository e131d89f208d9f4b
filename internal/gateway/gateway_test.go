package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwtly10/signalbook/internal/sizing"
	"github.com/jwtly10/signalbook/internal/types"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) Close() error {
	c.closed = true
	return nil
}

func testProposal() Proposal {
	return Proposal{
		ID: "p-1",
		Signal: types.Signal{
			Symbol:     "BTCUSDT",
			Side:       types.BUY,
			EntryPrice: 100,
			StopLoss:   98.75,
			Confidence: 70,
			Confluence: 2,
		},
		TakeProfit: 101.5,
		Sizing:     sizing.Result{Notional: 200, Units: 2, RequiredCapital: 5.71, LeverageUsed: 35, RiskAmount: 20, Viable: true},
		RiskLevel:  "MINIMAL",
		ProposedAt: TimeFromString("2024-01-01T10:00:00Z"),
	}
}

func TestKafkaPublisher_PublishesJSONKeyedBySymbol(t *testing.T) {
	w := &captureWriter{}
	pub := newKafkaPublisher(w, "proposals")

	require.NoError(t, pub.Publish(context.Background(), testProposal()))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "BTCUSDT", string(msg.Key))
	assert.Equal(t, TimeFromString("2024-01-01T10:00:00Z"), msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "BUY", string(msg.Headers[0].Value))

	var got Proposal
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, testProposal(), got)
}

func TestKafkaPublisher_WrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	pub := newKafkaPublisher(&captureWriter{err: boom}, "proposals")

	err := pub.Publish(context.Background(), testProposal())

	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "p-1")
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &captureWriter{}
	pub := newKafkaPublisher(w, "proposals")

	require.NoError(t, pub.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaPublisher_RequiresBrokersAndTopic(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Topic: "x"})
	assert.ErrorContains(t, err, "brokers")

	_, err = NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.ErrorContains(t, err, "topic")

	pub, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "x", Compression: "zstd"})
	require.NoError(t, err)
	assert.Equal(t, "x", pub.topic)
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Gzip, parseCompression("gzip"))
	assert.Equal(t, kafka.Snappy, parseCompression("snappy"))
	assert.Equal(t, kafka.Lz4, parseCompression("lz4"))
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
	assert.Equal(t, kafka.Compression(0), parseCompression("none"))
	assert.Equal(t, kafka.Gzip, parseCompression(""))
}

func TestLogPublisher(t *testing.T) {
	pub := NewLogPublisher()
	assert.NoError(t, pub.Publish(context.Background(), testProposal()))
	assert.NoError(t, pub.Close())
}

func TimeFromString(timeStr string) (t time.Time) {
	t, _ = time.Parse(time.RFC3339, timeStr)
	return
}
