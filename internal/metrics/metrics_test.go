package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.LinkCreated(true)
		m.CodeCollision()
		m.Resolved("found")
		m.ClickCountFailed()
		m.Notified("telegram", nil)
		m.NotificationDropped()
		m.RequestStarted()("GET", "/{code}", 302)
	})

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.LinkCreated(true)
	m.LinkCreated(false)
	m.LinkCreated(false)
	m.CodeCollision()
	m.Resolved("found")
	m.Resolved("not_found")
	m.ClickCountFailed()
	m.Notified("nats", nil)
	m.Notified("nats", errors.New("down"))
	m.NotificationDropped()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.linksCreated.WithLabelValues("custom")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.linksCreated.WithLabelValues("generated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.codeCollisions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues("found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.clickCountFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("nats", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("nats", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationsDropped))
}

func TestRequestStarted(t *testing.T) {
	m := New(nil)

	done := m.RequestStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpInFlight))

	done("POST", "POST /api/shorten", 200)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "POST /api/shorten", "200")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New(nil)
	m.LinkCreated(false)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `linkregistry_links_created_total{code="generated"} 1`))
}
