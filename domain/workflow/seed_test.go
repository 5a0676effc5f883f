package workflow_test

import (
	"context"
	"testing"

	"backoffice/domain"
	"backoffice/domain/workflow"
	"backoffice/jsondoc"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
)

func TestSeed(t *testing.T) {
	RegisterTestingT(t)

	t.Run("seed should be idempotent", func(t *testing.T) {
		f := setup(t)
		defer teardown(t, f)

		created, err := f.manager.Seed(context.Background())
		Expect(err).To(BeNil())
		Expect(created).To(Equal(2))

		created, err = f.manager.Seed(context.Background())
		Expect(err).To(BeNil())
		Expect(created).To(BeZero())

		defs, err := f.manager.QueryWorkflowDefinitions(context.Background())
		Expect(err).To(BeNil())
		Expect(defs).To(HaveLen(2))
	})

	t.Run("seeded definitions should drive intents end to end", func(t *testing.T) {
		f := setup(t)
		defer teardown(t, f)
		_, err := f.manager.Seed(context.Background())
		Expect(err).To(BeNil())

		Expect(f.db.DS.GormDB(nil).Create(&domain.EndUser{ID: 11, FirstName: "Ada", LastName: "Lovelace",
			AdditionalInfo: jsondoc.Document{}}).Error).To(BeNil())

		r, err := f.manager.ResolveIntent(context.Background(), &workflow.IntentResolution{EntityID: 11, IntentName: "kycSignup"})
		Expect(err).To(BeNil())
		Expect(r.WorkflowDefinitionID).To(Equal(types.ID(1001)))

		for _, e := range []string{"submit", "revision", "resubmit", "approve"} {
			_, err := f.manager.SendEvent(context.Background(), r.WorkflowRuntimeID, e)
			Expect(err).To(BeNil())
		}
		rt := loadRuntime(f, r.WorkflowRuntimeID)
		Expect(*rt.State).To(Equal("approved"))
		Expect(rt.Status).To(Equal(domain.RuntimeStatusCompleted))
		Expect(f.recorder.completed).To(HaveLen(1))
	})
}
