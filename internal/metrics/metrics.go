package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds every signalbook metric on its own registry so tests and
// multiple runs in one process never collide.
type Recorder struct {
	registry *prometheus.Registry

	signals     *prometheus.CounterVec
	sizing      *prometheus.CounterVec
	gate        *prometheus.CounterVec
	proposals   *prometheus.CounterVec
	drawdown    prometheus.Gauge
	iterations  *prometheus.CounterVec
	bestScore   prometheus.Gauge
	improvement prometheus.Counter
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		signals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbook_signals_total",
				Help: "Scorer decisions by symbol and outcome",
			},
			[]string{"symbol", "decision"},
		),
		sizing: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbook_sizing_total",
				Help: "Sizing results by viability",
			},
			[]string{"viable"},
		),
		gate: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbook_risk_gate_checks_total",
				Help: "Risk gate decisions by level",
			},
			[]string{"level", "allowed"},
		),
		proposals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbook_proposals_total",
				Help: "Order proposals handed to the gateway",
			},
			[]string{"symbol", "result"},
		),
		drawdown: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signalbook_drawdown_ratio",
			Help: "Current drawdown from peak balance as a fraction",
		}),
		iterations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbook_optimizer_iterations_total",
				Help: "Optimizer evaluations by outcome",
			},
			[]string{"result"},
		),
		bestScore: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signalbook_optimizer_best_score",
			Help: "Best optimizer score so far",
		}),
		improvement: factory.NewCounter(prometheus.CounterOpts{
			Name: "signalbook_optimizer_improvements_total",
			Help: "Times the optimizer found a new best parameter set",
		}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) RecordSignal(symbol, decision string) {
	r.signals.WithLabelValues(symbol, decision).Inc()
}

func (r *Recorder) RecordSizing(viable bool) {
	r.sizing.WithLabelValues(boolLabel(viable)).Inc()
}

func (r *Recorder) RecordGate(level string, allowed bool, drawdown float64) {
	r.gate.WithLabelValues(level, boolLabel(allowed)).Inc()
	r.drawdown.Set(drawdown)
}

func (r *Recorder) RecordProposal(symbol string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.proposals.WithLabelValues(symbol, result).Inc()
}

// ObserveIteration satisfies optimizer.Observer.
func (r *Recorder) ObserveIteration(scored bool, score float64, improved bool) {
	if !scored {
		r.iterations.WithLabelValues("discarded").Inc()
		return
	}
	r.iterations.WithLabelValues("scored").Inc()
	if improved {
		r.improvement.Inc()
		r.bestScore.Set(score)
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
