package webhook

import (
	"encoding/json"
	"fmt"

	"backoffice/config"
	"backoffice/jsondoc"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const (
	anyEvent         = "*"
	subscriptionsKey = "subscriptions"
)

var validate = validator.New()

// Target is one endpoint a webhook is delivered to.
type Target struct {
	URL    string
	Secret string
}

// Router resolves the targets of an event. Subscriptions in the runtime config win over the service
// subscriptions, the default url is used when neither matches.
type Router struct {
	subscriptions []config.Subscription
	environment   string
	defaultURL    string
	defaultSecret string
}

func NewRouter(subscriptions []config.Subscription, environment, defaultURL, defaultSecret string) (*Router, error) {
	for i := range subscriptions {
		if err := validateSubscription(&subscriptions[i]); err != nil {
			return nil, fmt.Errorf("invalid subscription %d: %w", i, err)
		}
	}
	return &Router{subscriptions: subscriptions, environment: environment, defaultURL: defaultURL, defaultSecret: defaultSecret}, nil
}

func validateSubscription(s *config.Subscription) error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	for _, name := range s.Events {
		switch name {
		case EventDocumentChanged, EventStateChanged, EventCompleted, anyEvent:
		default:
			return fmt.Errorf("unknown event '%s'", name)
		}
	}
	return nil
}

// RuntimeSubscriptions reads config.subscriptions of a runtime, invalid entries are skipped.
func RuntimeSubscriptions(runtimeConfig jsondoc.Document) []config.Subscription {
	raw, found := runtimeConfig[subscriptionsKey]
	if !found || raw == nil {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var candidates []config.Subscription
	if err := json.Unmarshal(b, &candidates); err != nil {
		logrus.Warn("ignore malformed runtime subscriptions: ", err)
		return nil
	}
	var subscriptions []config.Subscription
	for i := range candidates {
		if err := validateSubscription(&candidates[i]); err != nil {
			logrus.Warnf("ignore runtime subscription %d: %v", i, err)
			continue
		}
		subscriptions = append(subscriptions, candidates[i])
	}
	return subscriptions
}

// Targets lists the endpoints subscribed to eventName in the running environment. A subscription without a
// secret uses the default secret.
func (r *Router) Targets(eventName string, runtimeConfig jsondoc.Document) []Target {
	if targets := r.match(RuntimeSubscriptions(runtimeConfig), eventName); len(targets) > 0 {
		return targets
	}
	if targets := r.match(r.subscriptions, eventName); len(targets) > 0 {
		return targets
	}
	if r.defaultURL != "" {
		return []Target{{URL: r.defaultURL, Secret: r.defaultSecret}}
	}
	return nil
}

func (r *Router) match(subscriptions []config.Subscription, eventName string) []Target {
	var targets []Target
	for _, s := range subscriptions {
		if s.Environment != "" && s.Environment != r.environment {
			continue
		}
		if !subscribes(s.Events, eventName) {
			continue
		}
		secret := s.Secret
		if secret == "" {
			secret = r.defaultSecret
		}
		targets = append(targets, Target{URL: s.URL, Secret: secret})
	}
	return targets
}

func subscribes(events []string, eventName string) bool {
	for _, e := range events {
		if e == eventName || e == anyEvent {
			return true
		}
	}
	return false
}
