package indices

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backoffice/client/es"
	"backoffice/domain"
	"backoffice/jsondoc"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

var (
	RuntimeIndexName = "workflow_runtimes"
)

// RuntimeDocument is the searchable projection of a workflow runtime.
type RuntimeDocument struct {
	ID                   types.ID             `json:"id"`
	WorkflowDefinitionID types.ID             `json:"workflowDefinitionId"`
	EntityID             types.ID             `json:"entityId"`
	EntityType           domain.EntityType    `json:"entityType"`
	CorrelationID        string               `json:"correlationId"`
	EntityName           string               `json:"entityName"`
	Email                string               `json:"email"`
	AssigneeID           *types.ID            `json:"assigneeId"`
	State                *string              `json:"state"`
	Status               domain.RuntimeStatus `json:"status"`
	DocumentDecisions    []string             `json:"documentDecisions"`
	CreatedAt            time.Time            `json:"createdAt"`
	UpdatedAt            time.Time            `json:"updatedAt"`
	ResolvedAt           *time.Time           `json:"resolvedAt"`
}

func documentOf(rt *domain.WorkflowRuntimeData) RuntimeDocument {
	entityID, entityType := rt.EntityID()
	name := strings.TrimSpace(rt.Context.Get("entity.data.firstName").String() + " " + rt.Context.Get("entity.data.lastName").String())
	if entityType == domain.EntityTypeBusiness {
		name = rt.Context.Get("entity.data.companyName").String()
	}
	decisions := []string{}
	for _, doc := range jsondoc.Documents(rt.Context) {
		if status := jsondoc.DecisionStatus(doc); status != "" {
			decisions = append(decisions, status)
		}
	}
	return RuntimeDocument{
		ID:                   rt.ID,
		WorkflowDefinitionID: rt.WorkflowDefinitionID,
		EntityID:             entityID,
		EntityType:           entityType,
		CorrelationID:        rt.CorrelationID(),
		EntityName:           name,
		Email:                rt.Context.Get("entity.data.email").String(),
		AssigneeID:           rt.AssigneeID,
		State:                rt.State,
		Status:               rt.Status,
		DocumentDecisions:    decisions,
		CreatedAt:            rt.CreatedAt,
		UpdatedAt:            rt.UpdatedAt,
		ResolvedAt:           rt.ResolvedAt,
	}
}

type BatchActionError map[types.ID]error

func (e BatchActionError) Error() string {
	return fmt.Sprintf("%v", map[types.ID]error(e))
}

func IndexRuntimes(ctx context.Context, runtimes []domain.WorkflowRuntimeData) error {
	errs := BatchActionError{}
	for i := range runtimes {
		doc := documentOf(&runtimes[i])
		if err := es.IndexFunc(ctx, RuntimeIndexName, doc.ID, doc); err != nil {
			errs[doc.ID] = err
			logrus.Warnf("index workflow runtime %d: %v", doc.ID, err)
		} else {
			logrus.Debugf("index workflow runtime %d successfully", doc.ID)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
