package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"backoffice/bizerror"
)

// stateless object, just used for state computing
type StateChart struct {
	ID          string       `json:"id,omitempty"`
	Initial     string       `json:"initial"`
	States      []State      `json:"states"`
	Transitions []Transition `json:"transitions"`
}

type State struct {
	Name  string `json:"name"`
	Final bool   `json:"final"`
}

type Transition struct {
	Event string `json:"event"`
	From  string `json:"from"`
	To    string `json:"to"`
}

type chartDocument struct {
	ID      string                   `json:"id"`
	Initial string                   `json:"initial"`
	States  map[string]stateDocument `json:"states"`
}

type stateDocument struct {
	Type string                     `json:"type"`
	On   map[string]json.RawMessage `json:"on"`
}

type targetDocument struct {
	Target string `json:"target"`
}

// Parse interprets a definition document of the form
// {"initial": "a", "states": {"a": {"on": {"go": "b"}}, "b": {"type": "final"}}}.
// An event target may also be written as {"target": "b"} or [{"target": "b"}].
func Parse(definition map[string]interface{}) (*StateChart, error) {
	chart := &StateChart{}
	if len(definition) == 0 {
		return chart, nil
	}
	raw, err := json.Marshal(definition)
	if err != nil {
		return nil, invalidDefinition(err)
	}
	doc := chartDocument{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, invalidDefinition(err)
	}
	chart.ID = doc.ID
	chart.Initial = doc.Initial

	names := make([]string, 0, len(doc.States))
	for name := range doc.States {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s := doc.States[name]
		chart.States = append(chart.States, State{Name: name, Final: s.Type == "final"})

		events := make([]string, 0, len(s.On))
		for event := range s.On {
			events = append(events, event)
		}
		sort.Strings(events)
		for _, event := range events {
			target, err := parseTarget(s.On[event])
			if err != nil {
				return nil, invalidDefinition(fmt.Errorf("state '%s' event '%s': %w", name, event, err))
			}
			if _, declared := doc.States[target]; !declared {
				return nil, invalidDefinition(fmt.Errorf("state '%s' event '%s' targets undeclared state '%s'", name, event, target))
			}
			chart.Transitions = append(chart.Transitions, Transition{Event: event, From: name, To: target})
		}
	}

	if len(doc.States) > 0 {
		if _, declared := doc.States[doc.Initial]; !declared {
			return nil, invalidDefinition(fmt.Errorf("initial state '%s' is not declared", doc.Initial))
		}
	}
	return chart, nil
}

func parseTarget(raw json.RawMessage) (string, error) {
	var target string
	if err := json.Unmarshal(raw, &target); err == nil {
		return target, nil
	}
	t := targetDocument{}
	if err := json.Unmarshal(raw, &t); err == nil && t.Target != "" {
		return t.Target, nil
	}
	var ts []targetDocument
	if err := json.Unmarshal(raw, &ts); err == nil && len(ts) > 0 && ts[0].Target != "" {
		return ts[0].Target, nil
	}
	return "", errors.New("unsupported transition target")
}

func invalidDefinition(err error) error {
	return &bizerror.ErrBadParam{Cause: fmt.Errorf("invalid workflow definition: %w", err)}
}

func (sc *StateChart) resolve(current *string) string {
	if current == nil || *current == "" {
		return sc.Initial
	}
	return *current
}

func (sc *StateChart) AvailableTransitions(fromState string) []Transition {
	r := []Transition{}
	for _, transition := range sc.Transitions {
		if fromState == transition.From {
			r = append(r, transition)
		}
	}
	return r
}

// Next computes the state reached from current by event, a nil current stands for the initial state.
func (sc *StateChart) Next(current *string, event string) (string, error) {
	from := sc.resolve(current)
	for _, transition := range sc.AvailableTransitions(from) {
		if transition.Event == event {
			return transition.To, nil
		}
	}
	return "", fmt.Errorf("%w: '%s' is not allowed from state '%s'", bizerror.ErrInvalidEvent, event, from)
}

// NextEvents lists the event names accepted from current, sorted.
func (sc *StateChart) NextEvents(current *string) []string {
	events := []string{}
	for _, transition := range sc.AvailableTransitions(sc.resolve(current)) {
		events = append(events, transition.Event)
	}
	sort.Strings(events)
	return events
}

func (sc *StateChart) HasState(name string) bool {
	for _, s := range sc.States {
		if s.Name == name {
			return true
		}
	}
	return false
}

func (sc *StateChart) IsFinal(name string) bool {
	for _, s := range sc.States {
		if s.Name == name {
			return s.Final
		}
	}
	return false
}
