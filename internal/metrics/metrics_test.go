package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, p *Prometheus) string {
	t.Helper()
	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestPrometheusRecorder(t *testing.T) {
	p := NewPrometheus()

	p.IncCacheLookup(true)
	p.IncCacheLookup(false)
	p.IncCacheLookup(true)
	p.IncEngineOpen("sqlite", true)
	p.IncSecretFailure()
	TimeOp(p, OpExecute)(true)

	body := scrape(t, p)
	assert.Contains(t, body, `aigis_engine_cache_lookups_total{hit="true"} 2`)
	assert.Contains(t, body, `aigis_engine_cache_lookups_total{hit="false"} 1`)
	assert.Contains(t, body, `aigis_engine_opens_total{kind="sqlite",success="true"} 1`)
	assert.Contains(t, body, "aigis_secret_decrypt_failures_total 1")
	assert.Contains(t, body, `aigis_ops_total{op="execute",success="true"} 1`)
	assert.Contains(t, body, `aigis_op_seconds_count{op="execute",success="true"} 1`)
}

func TestPrometheusRegistry(t *testing.T) {
	p := NewPrometheus()
	p.IncSecretFailure()

	families, err := p.Registry().Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "aigis_secret_decrypt_failures_total")
}

func TestNopAndNil(t *testing.T) {
	assert.NotPanics(t, func() {
		TimeOp(nil, OpResolve)(false)
		OrNop(nil).IncSecretFailure()
		Nop().IncEngineOpen("custom", false)
	})
}
