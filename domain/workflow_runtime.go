package domain

import (
	"time"

	"backoffice/jsondoc"

	"github.com/fundwit/go-commons/types"
)

type RuntimeStatus string

const (
	RuntimeStatusActive    RuntimeStatus = "active"
	RuntimeStatusCompleted RuntimeStatus = "completed"
	RuntimeStatusFailed    RuntimeStatus = "failed"

	CreatedBySystem = "SYSTEM"
)

func (s RuntimeStatus) Valid() bool {
	return s == RuntimeStatusActive || s == RuntimeStatusCompleted || s == RuntimeStatusFailed
}

// CanTransitTo reports whether the status may move to target: only active may move, and only forward.
func (s RuntimeStatus) CanTransitTo(target RuntimeStatus) bool {
	if s == target {
		return true
	}
	return s == RuntimeStatusActive && (target == RuntimeStatusCompleted || target == RuntimeStatusFailed)
}

type EntityType string

const (
	EntityTypeIndividual EntityType = "individual"
	EntityTypeBusiness   EntityType = "business"
)

// WorkflowRuntimeData is one running workflow, owned by exactly one end user or business.
type WorkflowRuntimeData struct {
	ID                        types.ID `json:"id"`
	WorkflowDefinitionID      types.ID `json:"workflowDefinitionId" gorm:"index"`
	WorkflowDefinitionVersion int      `json:"workflowDefinitionVersion"`

	EndUserID  *types.ID `json:"endUserId" gorm:"index"`
	BusinessID *types.ID `json:"businessId" gorm:"index"`
	AssigneeID *types.ID `json:"assigneeId"`

	Context jsondoc.Document `json:"context" sql:"type:TEXT"`
	Config  jsondoc.Document `json:"config" sql:"type:TEXT"`
	State   *string          `json:"state"`
	Status  RuntimeStatus    `json:"status" gorm:"index"`

	ResolvedAt *time.Time `json:"resolvedAt"`
	AssignedAt *time.Time `json:"assignedAt"`
	CreatedBy  string     `json:"createdBy"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func (r *WorkflowRuntimeData) TableName() string {
	return "workflow_runtime_data"
}

// EntityID returns the owning entity and its type.
func (r *WorkflowRuntimeData) EntityID() (types.ID, EntityType) {
	if r.BusinessID != nil {
		return *r.BusinessID, EntityTypeBusiness
	}
	if r.EndUserID != nil {
		return *r.EndUserID, EntityTypeIndividual
	}
	return 0, ""
}

// CorrelationID reads context.entity.id, the identifier the caller used for the entity.
func (r *WorkflowRuntimeData) CorrelationID() string {
	return r.Context.Get("entity.id").String()
}

func (r *WorkflowRuntimeData) IsActive() bool {
	return r.Status == RuntimeStatusActive
}

// Clone copies the runtime, documents are deep copied so snapshots stay independent.
func (r *WorkflowRuntimeData) Clone() *WorkflowRuntimeData {
	if r == nil {
		return nil
	}
	c := *r
	c.Context = r.Context.Clone()
	c.Config = r.Config.Clone()
	if r.State != nil {
		s := *r.State
		c.State = &s
	}
	return &c
}
