// Package metrics exports Prometheus collectors for DUT calls and test cases.
package metrics

import (
	"net/http"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "powertest"

// Collectors holds the harness metrics.
type Collectors struct {
	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	CasesTotal   *prometheus.CounterVec
	RunsTotal    *prometheus.CounterVec
	RunActive    prometheus.Gauge
	DUTReachable prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the collectors on their own registry so that tests and
// multiple harness instances never collide on registration.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collectors{
		CallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "topshim",
				Name:      "calls_total",
				Help:      "Remote calls issued to the DUT",
			},
			[]string{"call", "status"},
		),
		CallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "topshim",
				Name:      "call_duration_seconds",
				Help:      "Latency of remote calls to the DUT",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"call"},
		),
		CasesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "suite",
				Name:      "cases_total",
				Help:      "Test cases executed",
			},
			[]string{"case", "result"},
		),
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "suite",
				Name:      "runs_total",
				Help:      "Matrix runs executed",
			},
			[]string{"result"},
		),
		RunActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "suite",
			Name:      "run_active",
			Help:      "1 while a run owns the DUT",
		}),
		DUTReachable: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dut_reachable",
			Help:      "1 when the last reachability probe succeeded",
		}),
		gatherer: reg,
	}
}

func result(ok bool) string {
	if ok {
		return "pass"
	}
	return "fail"
}

// ObserveCall records one DUT call.
func (c *Collectors) ObserveCall(call models.Call) {
	status := "ok"
	if call.Error != "" {
		status = "error"
	}
	c.CallsTotal.WithLabelValues(call.Name, status).Inc()
	c.CallDuration.WithLabelValues(call.Name).Observe(call.Duration.Seconds())
}

// ObserveCase records one finished case.
func (c *Collectors) ObserveCase(res models.CaseResult) {
	c.CasesTotal.WithLabelValues(res.Name, result(res.Passed)).Inc()
}

// ObserveRun records the start or end of a run.
func (c *Collectors) ObserveRun(run models.Run, active bool) {
	if active {
		c.RunActive.Set(1)
		return
	}
	c.RunActive.Set(0)
	c.RunsTotal.WithLabelValues(result(run.Passed())).Inc()
}

// SetReachable records the outcome of a reachability probe.
func (c *Collectors) SetReachable(ok bool) {
	if ok {
		c.DUTReachable.Set(1)
	} else {
		c.DUTReachable.Set(0)
	}
}

// Gatherer exposes the registry, mainly for tests.
func (c *Collectors) Gatherer() prometheus.Gatherer { return c.gatherer }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
