package event

import (
	"time"

	"backoffice/domain"
	"backoffice/jsondoc"

	"github.com/fundwit/go-commons/types"
)

type Kind string

const (
	KindContextChanged Kind = "context.changed"
	KindStateChanged   Kind = "state.changed"
	KindCompleted      Kind = "completed"
	KindSaved          Kind = "runtime.saved"
)

// Source identifies the runtime an event is about and the entity owning it.
type Source struct {
	Runtime       *domain.WorkflowRuntimeData `json:"runtime"`
	OldContext    jsondoc.Document            `json:"oldContext"`
	EntityID      types.ID                    `json:"entityId"`
	EntityType    domain.EntityType           `json:"entityType"`
	CorrelationID string                      `json:"correlationId"`
	Timestamp     time.Time                   `json:"timestamp"`
}

func NewSource(runtime *domain.WorkflowRuntimeData, oldContext jsondoc.Document) Source {
	entityID, entityType := runtime.EntityID()
	return Source{
		Runtime:       runtime,
		OldContext:    oldContext,
		EntityID:      entityID,
		EntityType:    entityType,
		CorrelationID: runtime.CorrelationID(),
		Timestamp:     time.Now(),
	}
}

// ContextChanged is published when the decision of at least one context document changed.
type ContextChanged struct {
	Source
	OldRuntime       *domain.WorkflowRuntimeData `json:"oldRuntime"`
	ChangedDocuments []string                    `json:"changedDocuments"`
}

type StateChanged struct {
	Source
	PreviousState *string `json:"previousState"`
	EventName     string  `json:"eventName"`
}

// Completed is published once, when a runtime reaches a final state.
type Completed struct {
	Source
	PreviousState *string `json:"previousState"`
	EventName     string  `json:"eventName"`
}

// Saved is published after every committed write of a runtime, including creation and assignment.
type Saved struct {
	Source
	Created bool `json:"created"`
}
