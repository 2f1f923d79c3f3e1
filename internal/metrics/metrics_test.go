// ABOUTME: Tests for the Prometheus discovery collector
// ABOUTME: Drives the Observer hooks and checks the scraped exposition
package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Resonate-Protocol/bonjour-go/pkg/discovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestCollectorCounts(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	c.SessionStarted("_http._tcp.", "local.")
	c.SessionStarted("_http._tcp.", "local.")
	c.SessionStarted("_printer._tcp.", "local.")
	c.ServiceDiscovered("A")
	c.ServiceDiscovered("B")
	c.ServiceResolved(discovery.ServiceRecord{Name: "A"})
	c.ResolutionFailed("B", errors.New("timeout"))
	c.NoServicesFound()
	c.SessionFinished(2)

	body := scrape(t, c)
	assert.Contains(t, body, `bonjour_sessions_started_total{service_type="_http._tcp."} 2`)
	assert.Contains(t, body, `bonjour_sessions_started_total{service_type="_printer._tcp."} 1`)
	assert.Contains(t, body, "bonjour_services_discovered_total 2")
	assert.Contains(t, body, "bonjour_services_resolved_total 1")
	assert.Contains(t, body, "bonjour_resolution_failures_total 1")
	assert.Contains(t, body, "bonjour_no_services_found_total 1")
	assert.Contains(t, body, "bonjour_sessions_finished_total 1")
	assert.Contains(t, body, "bonjour_services_per_session_count 1")
	assert.Contains(t, body, "bonjour_services_per_session_sum 2")
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	b, err := New()
	require.NoError(t, err)

	a.ServiceDiscovered("A")

	assert.Contains(t, scrape(t, a), "bonjour_services_discovered_total 1")
	assert.Contains(t, scrape(t, b), "bonjour_services_discovered_total 0")
}

func TestRuntimeCollectors(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	assert.Contains(t, scrape(t, c), "go_goroutines")
}
