package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"backoffice/domain"
	"backoffice/event"
	"backoffice/jsondoc"
	"backoffice/webhook"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
)

type delivery struct {
	authorization string
	envelope      map[string]interface{}
}

type receiver struct {
	mu         sync.Mutex
	status     int
	delay      time.Duration
	deliveries []delivery
}

func (r *receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	time.Sleep(r.delay)
	body, _ := io.ReadAll(req.Body)
	envelope := map[string]interface{}{}
	_ = json.Unmarshal(body, &envelope)

	r.mu.Lock()
	r.deliveries = append(r.deliveries, delivery{authorization: req.Header.Get("X-Authorization"), envelope: envelope})
	status := r.status
	r.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (r *receiver) received() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery{}, r.deliveries...)
}

type alerts struct {
	mu     sync.Mutex
	errors []error
}

func (a *alerts) Alert(ctx context.Context, envelope *webhook.Envelope, target webhook.Target, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errors = append(a.errors, err)
}

func (a *alerts) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.errors)
}

func sampleRuntime() *domain.WorkflowRuntimeData {
	state := "approved"
	endUserID := types.ID(11)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	resolved := created.Add(time.Hour)
	return &domain.WorkflowRuntimeData{
		ID: 101, WorkflowDefinitionID: 1, EndUserID: &endUserID, State: &state,
		Status: domain.RuntimeStatusCompleted, CreatedAt: created, ResolvedAt: &resolved,
		Context: jsondoc.Document{
			"entity": map[string]interface{}{"id": "cust-11"},
			"documents": []interface{}{
				map[string]interface{}{"id": "d1", "propertiesSchema": map[string]interface{}{"type": "object"},
					"decision": map[string]interface{}{"status": "approved"}},
			},
		},
	}
}

func newDispatcher(url, secret string, opts webhook.Options) *webhook.Dispatcher {
	router, err := webhook.NewRouter(nil, opts.Environment, url, secret)
	Expect(err).To(BeNil())
	return webhook.NewDispatcher(router, opts)
}

func TestDispatcher(t *testing.T) {
	RegisterTestingT(t)

	t.Run("completed should post the envelope with the secret", func(t *testing.T) {
		r := &receiver{}
		server := httptest.NewServer(r)
		defer server.Close()
		d := newDispatcher(server.URL, "s3cr3t", webhook.Options{Environment: "production"})

		rt := sampleRuntime()
		previous := "idle"
		Expect(d.HandleCompleted(context.Background(), &event.Completed{
			Source: event.NewSource(rt, nil), PreviousState: &previous, EventName: "approve",
		})).To(BeNil())

		deliveries := r.received()
		Expect(len(deliveries)).To(Equal(1))
		Expect(deliveries[0].authorization).To(Equal("s3cr3t"))
		e := deliveries[0].envelope
		Expect(e["id"]).ToNot(BeEmpty())
		Expect(e["eventName"]).To(Equal(webhook.EventCompleted))
		Expect(e["apiVersion"]).To(Equal(float64(1)))
		Expect(e["workflowRuntimeId"]).To(Equal("101"))
		Expect(e["workflowDefinitionId"]).To(Equal("1"))
		Expect(e["ballerineEntityId"]).To(Equal("11"))
		Expect(e["correlationId"]).To(Equal("cust-11"))
		Expect(e["environment"]).To(Equal("production"))
		Expect(e["workflowState"]).To(Equal("approved"))
		Expect(e["previousWorkflowState"]).To(Equal("idle"))
		Expect(e["workflowCreatedAt"]).To(Equal("2024-01-02T03:04:05Z"))
		Expect(e["workflowResolvedAt"]).To(Equal("2024-01-02T04:04:05Z"))
		Expect(e["data"]).To(HaveKey("documents"))
	})

	t.Run("document changed should strip schemas and skip unchanged decisions", func(t *testing.T) {
		r := &receiver{}
		server := httptest.NewServer(r)
		defer server.Close()
		d := newDispatcher(server.URL, "", webhook.Options{})

		rt := sampleRuntime()
		Expect(d.HandleContextChanged(context.Background(), &event.ContextChanged{
			Source: event.NewSource(rt, rt.Context.Clone()), ChangedDocuments: []string{"d1"},
		})).To(BeNil())
		Expect(r.received()).To(BeEmpty())

		old := rt.Context.Clone()
		delete(old["documents"].([]interface{})[0].(map[string]interface{}), "decision")
		Expect(d.HandleContextChanged(context.Background(), &event.ContextChanged{
			Source: event.NewSource(rt, old), ChangedDocuments: []string{"d1"},
		})).To(BeNil())

		deliveries := r.received()
		Expect(len(deliveries)).To(Equal(1))
		Expect(deliveries[0].authorization).To(BeEmpty())
		Expect(deliveries[0].envelope["eventName"]).To(Equal(webhook.EventDocumentChanged))
		Expect(deliveries[0].envelope).ToNot(HaveKey("previousWorkflowState"))
		Expect(deliveries[0].envelope["data"]).To(Equal(map[string]interface{}{
			"entity": map[string]interface{}{"id": "cust-11"},
			"documents": []interface{}{
				map[string]interface{}{"id": "d1", "decision": map[string]interface{}{"status": "approved"}},
			},
		}))
		Expect(rt.Context.Get("documents.0.propertiesSchema.type").String()).To(Equal("object"))
	})

	t.Run("failures should be alerted and absorbed", func(t *testing.T) {
		r := &receiver{status: http.StatusInternalServerError}
		server := httptest.NewServer(r)
		defer server.Close()
		a := &alerts{}
		d := newDispatcher(server.URL, "", webhook.Options{Alerter: a})

		rt := sampleRuntime()
		Expect(d.HandleStateChanged(context.Background(), &event.StateChanged{Source: event.NewSource(rt, nil)})).To(BeNil())
		Expect(len(r.received())).To(Equal(1))
		Expect(a.count()).To(Equal(1))

		unreachable := newDispatcher("http://127.0.0.1:1/hook", "", webhook.Options{Alerter: a, Timeout: time.Second})
		Expect(unreachable.HandleStateChanged(context.Background(), &event.StateChanged{Source: event.NewSource(rt, nil)})).To(BeNil())
		Expect(a.count()).To(Equal(2))
	})

	t.Run("no target should be a no-op", func(t *testing.T) {
		a := &alerts{}
		d := newDispatcher("", "", webhook.Options{Alerter: a})
		Expect(d.HandleCompleted(context.Background(), &event.Completed{Source: event.NewSource(sampleRuntime(), nil)})).To(BeNil())
		Expect(a.count()).To(Equal(0))
	})

	t.Run("async deliveries should be drained on shutdown", func(t *testing.T) {
		r := &receiver{delay: 50 * time.Millisecond}
		server := httptest.NewServer(r)
		defer server.Close()
		d := newDispatcher(server.URL, "", webhook.Options{Async: true, RateLimit: 100})

		ctx, cancel := context.WithCancel(context.Background())
		for i := 0; i < 3; i++ {
			Expect(d.HandleStateChanged(ctx, &event.StateChanged{Source: event.NewSource(sampleRuntime(), nil)})).To(BeNil())
		}
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		Expect(d.Shutdown(shutdownCtx)).To(BeNil())
		Expect(len(r.received())).To(Equal(3))
	})
}
