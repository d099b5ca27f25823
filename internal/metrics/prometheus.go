package metrics

import (
	"net/http"
	"strconv"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus records into its own registry so tests and multiple processes in
// one binary never collide on the global default registry.
type Prometheus struct {
	registry       *prom.Registry
	cacheLookups   *prom.CounterVec
	engineOpens    *prom.CounterVec
	secretFailures prom.Counter
	opTotal        *prom.CounterVec
	opSeconds      *prom.HistogramVec
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prom.NewRegistry(),
		cacheLookups: prom.NewCounterVec(prom.CounterOpts{
			Name: "aigis_engine_cache_lookups_total",
			Help: "Engine cache lookups by outcome",
		}, []string{"hit"}),
		engineOpens: prom.NewCounterVec(prom.CounterOpts{
			Name: "aigis_engine_opens_total",
			Help: "Engines constructed by connection kind",
		}, []string{"kind", "success"}),
		secretFailures: prom.NewCounter(prom.CounterOpts{
			Name: "aigis_secret_decrypt_failures_total",
			Help: "Stored passwords that could not be decrypted",
		}),
		opTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "aigis_ops_total",
			Help: "Core operations by outcome",
		}, []string{"op", "success"}),
		opSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "aigis_op_seconds",
			Help:    "Core operation duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"op", "success"}),
	}
	p.registry.MustRegister(p.cacheLookups, p.engineOpens, p.secretFailures, p.opTotal, p.opSeconds)
	return p
}

func (p *Prometheus) IncCacheLookup(hit bool) {
	p.cacheLookups.WithLabelValues(strconv.FormatBool(hit)).Inc()
}

func (p *Prometheus) IncEngineOpen(kind string, success bool) {
	p.engineOpens.WithLabelValues(kind, strconv.FormatBool(success)).Inc()
}

func (p *Prometheus) IncSecretFailure() {
	p.secretFailures.Inc()
}

func (p *Prometheus) ObserveOp(op string, success bool, seconds float64) {
	label := strconv.FormatBool(success)
	p.opTotal.WithLabelValues(op, label).Inc()
	p.opSeconds.WithLabelValues(op, label).Observe(seconds)
}

// Registry exposes the private registry for gathering in tests.
func (p *Prometheus) Registry() *prom.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
