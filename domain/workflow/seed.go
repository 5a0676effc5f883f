package workflow

import (
	"context"
	"errors"

	"backoffice/config"
	"backoffice/domain"
	"backoffice/jsondoc"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

func reviewStates(collecting string) map[string]interface{} {
	return map[string]interface{}{
		collecting: map[string]interface{}{"on": map[string]interface{}{"submit": "review"}},
		"review": map[string]interface{}{"on": map[string]interface{}{
			"approve": "approved", "reject": "rejected", "revision": "revision",
		}},
		"revision": map[string]interface{}{"on": map[string]interface{}{"resubmit": "review"}},
		"approved": map[string]interface{}{"type": "final"},
		"rejected": map[string]interface{}{"type": "final"},
	}
}

// SeedDefinitions returns the definitions the default intents start.
func SeedDefinitions() []domain.DefinitionCreation {
	kycID, _ := types.ParseID(config.KycSignupDefinitionID)
	kybID, _ := types.ParseID(config.KybSignupDefinitionID)
	return []domain.DefinitionCreation{
		{
			ID: kycID, Name: "kyc_signup", CreatedBy: domain.CreatedBySystem,
			Definition: jsondoc.Document{"id": "kyc_signup", "initial": "idle", "states": reviewStates("idle")},
		},
		{
			ID: kybID, Name: "kyb_signup", CreatedBy: domain.CreatedBySystem,
			Definition: jsondoc.Document{"id": "kyb_signup", "initial": "collecting", "states": reviewStates("collecting")},
		},
	}
}

// Seed creates the seed definitions, definitions already present are left untouched.
func (m *RuntimeManager) Seed(ctx context.Context) (int, error) {
	created := 0
	for _, c := range SeedDefinitions() {
		c := c
		if _, err := m.CreateWorkflowDefinition(ctx, &c); err != nil {
			if errors.Is(err, ErrDefinitionInUse) {
				logrus.Infof("workflow definition %d (%s) already seeded", c.ID, c.Name)
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}
