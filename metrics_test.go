package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsCollectorWithRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewMetricsCollectorWithRegistry(registry)

	assert.NotNil(t, collector.requestsTotal)
	assert.NotNil(t, collector.requestDuration)
	assert.NotNil(t, collector.requestsInFlight)
	assert.NotNil(t, collector.retriesTotal)
	assert.NotNil(t, collector.errorsTotal)
	assert.NotNil(t, collector.tokenRefreshTotal)
	assert.Equal(t, registry, collector.Registerer())
}

func TestNilMetricsCollector(t *testing.T) {
	var collector *MetricsCollector

	assert.NotPanics(t, func() {
		collector.RecordRequest("GET", "/x", 200, time.Second)
		collector.RecordRequestStart("GET", "/x")
		collector.RecordRequestEnd("GET", "/x")
		collector.RecordRetry("GET", "/x", 1)
		collector.RecordError(ErrorTypeHTTP, "GET", "/x")
		collector.RecordTokenRefresh("success")
		collector.RecordCacheHit("/x")
		collector.RecordCacheMiss("/x")
	})
	assert.Nil(t, collector.Registerer())
}

func TestClientRecordsMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	client := New(Config{
		BaseURL:      server.URL,
		DefaultRetry: &RetryConfig{Count: 2, Delay: noDelay},
	}, WithMetricsCollector(collector))

	client.Get(context.Background(), "/metrics-test")

	const path = "/metrics-test"
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.requestsTotal.WithLabelValues("GET", "502", path)))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.retriesTotal.WithLabelValues("GET", path, "1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.retriesTotal.WithLabelValues("GET", path, "2")))
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.errorsTotal.WithLabelValues(ErrorTypeHTTP, "GET", path)))
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.requestsInFlight.WithLabelValues("GET", path)))
}
