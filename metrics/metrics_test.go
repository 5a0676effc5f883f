package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware(t *testing.T) {
	RegisterTestingT(t)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())
	router.GET("/api/v1/things/:id", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	RegisterMetricsHandler(router)

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/api/v1/things/:id", "200"))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/things/123", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	Expect(w.Code).To(Equal(http.StatusOK))
	Expect(testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/api/v1/things/:id", "200"))).To(Equal(before + 1))

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	Expect(w.Code).To(Equal(http.StatusOK))
	Expect(strings.Contains(w.Body.String(), "backoffice_http_requests_total")).To(BeTrue())
}

func TestDomainCounters(t *testing.T) {
	RegisterTestingT(t)

	before := testutil.ToFloat64(WorkflowTransitions.WithLabelValues("approve", "failure"))
	RecordTransition("approve", errors.New("invalid"))
	Expect(testutil.ToFloat64(WorkflowTransitions.WithLabelValues("approve", "failure"))).To(Equal(before + 1))

	before = testutil.ToFloat64(WebhookDeliveries.WithLabelValues("workflow.completed", "success"))
	RecordWebhookDelivery("workflow.completed", 20*time.Millisecond, nil)
	Expect(testutil.ToFloat64(WebhookDeliveries.WithLabelValues("workflow.completed", "success"))).To(Equal(before + 1))
}
