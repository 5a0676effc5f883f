package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"backoffice/common"
	"backoffice/config"
	"backoffice/event"
	"backoffice/infra/tracing"
	"backoffice/jsondoc"
	"backoffice/metrics"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const authorizationHeader = "X-Authorization"

// Alerter is told about every delivery that failed.
type Alerter interface {
	Alert(ctx context.Context, envelope *Envelope, target Target, err error)
}

// LogAlerter raises alerts as error logs.
type LogAlerter struct{}

func (LogAlerter) Alert(ctx context.Context, envelope *Envelope, target Target, err error) {
	logrus.WithFields(logrus.Fields{"eventName": envelope.EventName, "runtimeId": envelope.WorkflowRuntimeID,
		"alert": "webhook"}).Error(err)
}

type Options struct {
	Environment string
	Timeout     time.Duration
	// Async detaches deliveries from the publishing request, Shutdown waits for them.
	Async bool
	// RateLimit caps outbound requests per second, zero means unlimited.
	RateLimit float64
	Client    *http.Client
	Alerter   Alerter
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Environment: cfg.Environment,
		Timeout:     cfg.Webhooks.Timeout,
		Async:       cfg.Webhooks.Async,
		RateLimit:   cfg.Webhooks.RateLimit,
	}
}

// Dispatcher turns workflow events into webhook deliveries. Delivery errors are logged, counted and alerted,
// they never reach the publisher and are never retried.
type Dispatcher struct {
	router  *Router
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	alerter Alerter
	pending sync.WaitGroup
}

func NewDispatcher(router *Router, opts Options) *Dispatcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	alerter := opts.Alerter
	if alerter == nil {
		alerter = LogAlerter{}
	}
	return &Dispatcher{
		router:  router,
		opts:    opts,
		client:  tracing.NewTracingClient(client),
		limiter: limiter,
		alerter: alerter,
	}
}

// NewDispatcherFromConfig builds the router from the subscriptions and webhook defaults of cfg.
func NewDispatcherFromConfig(cfg *config.Config) (*Dispatcher, error) {
	router, err := NewRouter(cfg.Subscriptions, cfg.Environment, cfg.Webhooks.DefaultURL, cfg.Webhooks.Secret)
	if err != nil {
		return nil, err
	}
	return NewDispatcher(router, OptionsFromConfig(cfg)), nil
}

// Register subscribes the document-changed, state-changed and completed dispatchers to the bus.
func (d *Dispatcher) Register(s event.Subscriber) {
	s.OnContextChanged("webhook.document-changed", d.HandleContextChanged)
	s.OnStateChanged("webhook.state-changed", d.HandleStateChanged)
	s.OnCompleted("webhook.completed", d.HandleCompleted)
}

// HandleContextChanged fires only when a document decision changed, other context edits are not reported.
func (d *Dispatcher) HandleContextChanged(ctx context.Context, e *event.ContextChanged) error {
	if !jsondoc.DocumentDecisionChanged(e.OldContext, e.Runtime.Context) {
		return nil
	}
	d.dispatch(ctx, e.Runtime.Config, documentChangedEnvelope(e, d.opts.Environment))
	return nil
}

func (d *Dispatcher) HandleStateChanged(ctx context.Context, e *event.StateChanged) error {
	d.dispatch(ctx, e.Runtime.Config, stateChangedEnvelope(e, d.opts.Environment))
	return nil
}

func (d *Dispatcher) HandleCompleted(ctx context.Context, e *event.Completed) error {
	d.dispatch(ctx, e.Runtime.Config, completedEnvelope(e, d.opts.Environment))
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, runtimeConfig jsondoc.Document, envelope *Envelope) {
	targets := d.router.Targets(envelope.EventName, runtimeConfig)
	if len(targets) == 0 {
		logrus.WithField("eventName", envelope.EventName).Debug("no webhook target subscribed")
		return
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		logrus.WithField("eventName", envelope.EventName).Error("marshal webhook envelope: ", err)
		return
	}

	for _, target := range targets {
		if !d.opts.Async {
			d.deliver(ctx, target, envelope, body)
			continue
		}
		d.pending.Add(1)
		go func(target Target) {
			defer d.pending.Done()
			d.deliver(context.WithoutCancel(ctx), target, envelope, body)
		}(target)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, target Target, envelope *Envelope, body []byte) {
	start := time.Now()
	err := d.limiter.Wait(ctx)
	if err == nil {
		headers := http.Header{}
		if target.Secret != "" {
			headers.Set(authorizationHeader, target.Secret)
		}
		_, err = common.HttpInvokeJson(ctx, d.client, http.MethodPost, target.URL, headers, body)
	}
	metrics.RecordWebhookDelivery(envelope.EventName, time.Since(start), err)

	log := logrus.WithFields(logrus.Fields{"eventName": envelope.EventName, "webhookId": envelope.ID, "url": target.URL})
	if err != nil {
		log.Warn("webhook delivery failed: ", err)
		d.alerter.Alert(ctx, envelope, target, err)
		return
	}
	log.Debug("webhook delivered")
}

// Shutdown waits for detached deliveries until ctx is done.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
