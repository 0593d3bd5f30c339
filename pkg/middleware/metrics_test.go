package middleware

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findMetric drains a Collector and returns the first sample whose labels
// include every key/value pair in want, or nil when no sample matches.
func findMetric(t *testing.T, c prometheus.Collector, want map[string]string) *dto.Metric {
	if t != nil {
		t.Helper()
	}
	ch := make(chan prometheus.Metric, 100)
	c.Collect(ch)
	close(ch)

	for m := range ch {
		d := &dto.Metric{}
		if err := m.Write(d); err != nil {
			continue
		}
		if metricHasLabels(d, want) {
			return d
		}
	}
	return nil
}

func metricHasLabels(d *dto.Metric, want map[string]string) bool {
	for k, v := range want {
		found := false
		for _, lp := range d.GetLabel() {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// routeThrough mounts a handler behind a chi router so RoutePattern resolves.
func routeThrough(mw func(http.Handler) http.Handler, handler http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(mw)
	r.Get("/products", handler.ServeHTTP)
	return r
}

func TestPrometheusMetrics_CountsRequests(t *testing.T) {
	mw := PrometheusMetrics("storefront-count")
	handler := routeThrough(mw, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/products", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	labels := map[string]string{"service": "storefront-count", "method": "GET", "path": "/products", "status": "200"}
	m := findMetric(t, httpRequestsTotal, labels)
	require.NotNil(t, m, "expected a counter sample for GET /products 200")
	assert.GreaterOrEqual(t, m.GetCounter().GetValue(), float64(3))
}

func TestPrometheusMetrics_ObservesDuration(t *testing.T) {
	mw := PrometheusMetrics("storefront-hist")
	handler := routeThrough(mw, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code)

	labels := map[string]string{"service": "storefront-hist", "method": "GET", "path": "/products", "status": "201"}
	m := findMetric(t, httpRequestDuration, labels)
	require.NotNil(t, m, "expected a histogram sample")
	assert.GreaterOrEqual(t, m.GetHistogram().GetSampleCount(), uint64(1))
}

func TestPrometheusMetrics_InFlightGauge(t *testing.T) {
	// Sample the gauge from inside the handler, while the request is live.
	inFlightSeen := float64(-1)
	mw := PrometheusMetrics("storefront-inflight")
	handler := routeThrough(mw, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := findMetric(nil, httpRequestsInFlight, map[string]string{"service": "storefront-inflight"})
		if m != nil {
			inFlightSeen = m.GetGauge().GetValue()
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.GreaterOrEqual(t, inFlightSeen, float64(1), "gauge should be at least 1 while the handler runs")
}

func TestPrometheusMetrics_StatusCodeCapture(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"200 OK", http.StatusOK},
		{"404 Not Found", http.StatusNotFound},
		{"500 Internal Server Error", http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mw := PrometheusMetrics("storefront-status-" + http.StatusText(tc.statusCode))
			handler := routeThrough(mw, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
			}))

			req := httptest.NewRequest(http.MethodGet, "/products", nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tc.statusCode, rr.Code)
		})
	}
}

func TestPrometheusMetrics_ImplicitOK(t *testing.T) {
	// A handler that never calls WriteHeader is recorded as 200.
	mw := PrometheusMetrics("storefront-implicit")
	handler := routeThrough(mw, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	m := findMetric(t, httpRequestsTotal, map[string]string{"service": "storefront-implicit", "status": "200"})
	require.NotNil(t, m, "implicit writes should count as status 200")
}

type flushRecorder struct {
	http.ResponseWriter
	flushed bool
}

func (f *flushRecorder) Flush() {
	f.flushed = true
}

func TestMetricsResponseWriter_Flush_Delegates(t *testing.T) {
	inner := &flushRecorder{ResponseWriter: httptest.NewRecorder()}
	rw := &metricsResponseWriter{ResponseWriter: inner, statusCode: http.StatusOK}

	rw.Flush()
	assert.True(t, inner.flushed)
}

func TestMetricsResponseWriter_Flush_NoOpWhenNotSupported(t *testing.T) {
	rw := &metricsResponseWriter{ResponseWriter: &bareResponseWriter{}, statusCode: http.StatusOK}

	// Must not panic when the wrapped writer cannot flush.
	rw.Flush()
}

type hijackRecorder struct {
	http.ResponseWriter
	hijacked bool
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestMetricsResponseWriter_Hijack_Delegates(t *testing.T) {
	inner := &hijackRecorder{ResponseWriter: httptest.NewRecorder()}
	rw := &metricsResponseWriter{ResponseWriter: inner, statusCode: http.StatusOK}

	_, _, err := rw.Hijack()
	assert.NoError(t, err)
	assert.True(t, inner.hijacked)
}

func TestMetricsResponseWriter_Hijack_ErrorWhenNotSupported(t *testing.T) {
	rw := &metricsResponseWriter{ResponseWriter: &bareResponseWriter{}, statusCode: http.StatusOK}

	_, _, err := rw.Hijack()
	assert.ErrorIs(t, err, http.ErrNotSupported)
}

// bareResponseWriter implements only http.ResponseWriter, nothing optional.
type bareResponseWriter struct {
	header http.Header
}

func (b *bareResponseWriter) Header() http.Header {
	if b.header == nil {
		b.header = make(http.Header)
	}
	return b.header
}

func (b *bareResponseWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

func (b *bareResponseWriter) WriteHeader(int) {}

func TestMetricsResponseWriter_OptionalInterfaces(t *testing.T) {
	rw := &metricsResponseWriter{ResponseWriter: httptest.NewRecorder()}

	_, ok := interface{}(rw).(http.Flusher)
	assert.True(t, ok, "wrapper should satisfy http.Flusher")

	_, ok = interface{}(rw).(http.Hijacker)
	assert.True(t, ok, "wrapper should satisfy http.Hijacker")
}
