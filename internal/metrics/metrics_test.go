package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Signals(t *testing.T) {
	r := New()

	r.RecordSignal("BTCUSDT", "ACCEPTED")
	r.RecordSignal("BTCUSDT", "REJECT_VOLUME")
	r.RecordSignal("BTCUSDT", "REJECT_VOLUME")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.signals.WithLabelValues("BTCUSDT", "ACCEPTED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.signals.WithLabelValues("BTCUSDT", "REJECT_VOLUME")))
}

func TestRecorder_GateAndSizing(t *testing.T) {
	r := New()

	r.RecordGate("MEDIUM", true, 0.12)
	r.RecordGate("CRITICAL", false, 0.21)
	r.RecordSizing(true)
	r.RecordSizing(false)
	r.RecordProposal("ETHUSDT", nil)
	r.RecordProposal("ETHUSDT", errors.New("broker down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.gate.WithLabelValues("CRITICAL", "false")))
	assert.Equal(t, 0.21, testutil.ToFloat64(r.drawdown))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sizing.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.proposals.WithLabelValues("ETHUSDT", "error")))
}

func TestRecorder_ObserveIteration(t *testing.T) {
	r := New()

	r.ObserveIteration(false, 0, false)
	r.ObserveIteration(true, 40, true)
	r.ObserveIteration(true, 30, false)
	r.ObserveIteration(true, 55, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.iterations.WithLabelValues("discarded")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.iterations.WithLabelValues("scored")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.improvement))
	assert.Equal(t, 55.0, testutil.ToFloat64(r.bestScore))
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.RecordSignal("BTCUSDT", "ACCEPTED")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `signalbook_signals_total{decision="ACCEPTED",symbol="BTCUSDT"} 1`))
	assert.Contains(t, body, "go_goroutines")
}

func TestRecorder_SeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.RecordSizing(true)

	assert.Equal(t, 0.0, testutil.ToFloat64(b.sizing.WithLabelValues("true")))
	n, err := testutil.GatherAndCount(a.Registry(), "signalbook_sizing_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
