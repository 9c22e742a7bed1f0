package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveBackend("XLM", "account", "ok", time.Now())
	m.ObserveBackend("XLM", "account", "not_found", time.Now())
	m.ObserveExchange("StellarSignTx", "ok")
	m.ObserveSigning("Stellar", "SIGNED")
	m.SetDiscovered("Stellar", 2)
	m.ObserveEvent("stellar")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendRequests.WithLabelValues("XLM", "account", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeviceExchanges.WithLabelValues("StellarSignTx", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SigningRuns.WithLabelValues("Stellar", "SIGNED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Discovered.WithLabelValues("Stellar")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ListenerEvents.WithLabelValues("stellar")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBackend("XEM", "fee", "error", time.Now())
		m.ObserveExchange("NEMGetAddress", "ok")
		m.ObserveSigning("Nem", "FAILED")
		m.SetDiscovered("Nem", 0)
		m.ObserveEvent("nem")
	})
}
