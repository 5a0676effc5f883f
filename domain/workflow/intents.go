package workflow

import (
	"context"

	"backoffice/bizerror"
	"backoffice/domain"

	"github.com/fundwit/go-commons/types"
)

type IntentResolution struct {
	EntityID   types.ID `json:"entityId" binding:"required"`
	IntentName string   `json:"intentName" binding:"required"`
}

// ResolveIntent starts, or merges into, the workflow an intent is mapped to for an existing entity.
func (m *RuntimeManager) ResolveIntent(ctx context.Context, intent *IntentResolution) (*RunResult, error) {
	definitionID, ok := m.intents.IntentDefinition(intent.IntentName)
	if !ok {
		return nil, &bizerror.ErrUnsupportedFlowType{Name: intent.IntentName}
	}
	id, err := types.ParseID(definitionID)
	if err != nil {
		return nil, &bizerror.ErrUnsupportedFlowType{Name: intent.IntentName}
	}
	entityContext, err := m.entityContext(ctx, intent.EntityID)
	if err != nil {
		return nil, err
	}
	return m.CreateOrUpdateWorkflowRuntime(ctx, &RuntimeRun{WorkflowID: id, Context: entityContext})
}

// entityContext snapshots an end user or business into the shape a run context carries.
func (m *RuntimeManager) entityContext(ctx context.Context, id types.ID) (map[string]interface{}, error) {
	entity := map[string]interface{}{"ballerineEntityId": id.String()}
	if u, err := m.repo.FindEndUser(ctx, id); err == nil {
		entity["id"] = correlationOr(u.CorrelationID, id)
		entity["type"] = string(domain.EntityTypeIndividual)
		entity["data"] = map[string]interface{}{
			"firstName":      u.FirstName,
			"lastName":       u.LastName,
			"email":          u.Email,
			"phone":          u.Phone,
			"dateOfBirth":    u.DateOfBirth,
			"avatarUrl":      u.AvatarURL,
			"approvalState":  u.ApprovalState,
			"additionalInfo": map[string]interface{}(u.AdditionalInfo.Clone()),
		}
	} else if err != bizerror.ErrNotFound {
		return nil, err
	} else {
		b, err := m.repo.FindBusiness(ctx, id)
		if err != nil {
			return nil, err
		}
		entity["id"] = correlationOr(b.CorrelationID, id)
		entity["type"] = string(domain.EntityTypeBusiness)
		entity["data"] = map[string]interface{}{
			"companyName":            b.CompanyName,
			"registrationNumber":     b.RegistrationNumber,
			"legalForm":              b.LegalForm,
			"countryOfIncorporation": b.CountryOfIncorporation,
			"website":                b.Website,
			"approvalState":          b.ApprovalState,
			"additionalInfo":         map[string]interface{}(b.AdditionalInfo.Clone()),
		}
	}
	return map[string]interface{}{"entity": entity, "documents": []interface{}{}}, nil
}

func correlationOr(correlationID *string, id types.ID) string {
	if correlationID != nil && *correlationID != "" {
		return *correlationID
	}
	return id.String()
}
