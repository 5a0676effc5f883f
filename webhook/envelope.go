package webhook

import (
	"time"

	"backoffice/event"
	"backoffice/jsondoc"

	"github.com/fundwit/go-commons/types"
	"github.com/google/uuid"
)

const (
	EventDocumentChanged = "workflow.context.document.changed"
	EventStateChanged    = "workflow.state.changed"
	EventCompleted       = "workflow.completed"

	APIVersion = 1

	// documents carry their json schema for the UI, receivers never need it
	strippedDocumentField = "propertiesSchema"
)

// Envelope is the body of every webhook request.
type Envelope struct {
	ID                    string           `json:"id"`
	EventName             string           `json:"eventName"`
	APIVersion            int              `json:"apiVersion"`
	Timestamp             time.Time        `json:"timestamp"`
	WorkflowCreatedAt     time.Time        `json:"workflowCreatedAt"`
	WorkflowResolvedAt    *time.Time       `json:"workflowResolvedAt"`
	WorkflowDefinitionID  types.ID         `json:"workflowDefinitionId"`
	WorkflowRuntimeID     types.ID         `json:"workflowRuntimeId"`
	WorkflowState         *string          `json:"workflowState,omitempty"`
	PreviousWorkflowState *string          `json:"previousWorkflowState,omitempty"`
	BallerineEntityID     types.ID         `json:"ballerineEntityId"`
	CorrelationID         string           `json:"correlationId"`
	Environment           string           `json:"environment"`
	Data                  jsondoc.Document `json:"data"`
}

func newEnvelope(eventName, environment string, source *event.Source) *Envelope {
	rt := source.Runtime
	return &Envelope{
		ID:                   uuid.New().String(),
		EventName:            eventName,
		APIVersion:           APIVersion,
		Timestamp:            source.Timestamp,
		WorkflowCreatedAt:    rt.CreatedAt,
		WorkflowResolvedAt:   rt.ResolvedAt,
		WorkflowDefinitionID: rt.WorkflowDefinitionID,
		WorkflowRuntimeID:    rt.ID,
		WorkflowState:        rt.State,
		BallerineEntityID:    source.EntityID,
		CorrelationID:        source.CorrelationID,
		Environment:          environment,
		Data:                 rt.Context,
	}
}

func documentChangedEnvelope(e *event.ContextChanged, environment string) *Envelope {
	envelope := newEnvelope(EventDocumentChanged, environment, &e.Source)
	envelope.Data = jsondoc.StripDocumentField(e.Runtime.Context, strippedDocumentField)
	return envelope
}

func stateChangedEnvelope(e *event.StateChanged, environment string) *Envelope {
	envelope := newEnvelope(EventStateChanged, environment, &e.Source)
	envelope.PreviousWorkflowState = e.PreviousState
	return envelope
}

func completedEnvelope(e *event.Completed, environment string) *Envelope {
	envelope := newEnvelope(EventCompleted, environment, &e.Source)
	envelope.PreviousWorkflowState = e.PreviousState
	return envelope
}
