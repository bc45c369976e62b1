package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/probe/:id", func(c echo.Context) error { return c.NoContent(http.StatusTeapot) })

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/probe/:id", "418"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/probe/9", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	after := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/probe/:id", "418"))
	assert.Equal(t, before+1, after)
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(ledgerOps.WithLabelValues("debit", "insufficient"))
	LedgerOp("debit", "insufficient")
	assert.Equal(t, before+1, testutil.ToFloat64(ledgerOps.WithLabelValues("debit", "insufficient")))

	StatusTransition("resolved")
	Notification("incident.status_changed", "failed")
	assert.GreaterOrEqual(t, testutil.ToFloat64(statusTransitions.WithLabelValues("resolved")), 1.0)
}

func TestHandlerServesRegistry(t *testing.T) {
	StatusTransition("investigating")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "civic_incidents_status_transitions_total")
}
