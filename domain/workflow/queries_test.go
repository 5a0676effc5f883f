package workflow_test

import (
	"context"
	"testing"

	"backoffice/bizerror"
	"backoffice/config"
	"backoffice/domain"
	"backoffice/domain/filter"
	"backoffice/domain/workflow"
	"backoffice/jsondoc"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
)

func TestQueryWorkflowRuntimes(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should page runtimes with definition names and assignees", func(t *testing.T) {
		f := setup(t)
		defer teardown(t, f)
		ctx := context.Background()
		d := createDefinition(f, 1, "kyc", approvalChart())
		Expect(f.db.DS.GormDB(nil).Create(&domain.User{ID: 7, FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com"}).Error).To(BeNil())

		var ids []types.ID
		for _, c := range []string{"cust-1", "cust-2", "cust-3"} {
			r, err := f.manager.CreateOrUpdateWorkflowRuntime(ctx, &workflow.RuntimeRun{WorkflowID: d.ID, Context: individualContext(c)})
			Expect(err).To(BeNil())
			ids = append(ids, r.WorkflowRuntimeID)
		}
		_, err := f.manager.SendEvent(ctx, ids[0], "approve")
		Expect(err).To(BeNil())
		_, err = f.manager.AssignWorkflow(ctx, ids[1], idPtr(7))
		Expect(err).To(BeNil())

		list, err := f.manager.QueryWorkflowRuntimes(ctx, &workflow.RuntimeQuery{Statuses: []domain.RuntimeStatus{domain.RuntimeStatusActive}})
		Expect(err).To(BeNil())
		Expect(list.Meta).To(Equal(workflow.ListMeta{Total: 2, Pages: 1}))
		Expect(len(list.Results)).To(Equal(2))
		for _, item := range list.Results {
			Expect(item.WorkflowDefinitionName).To(Equal("kyc"))
			if item.ID == ids[1] {
				Expect(*item.Assignee).To(Equal(workflow.Assignee{ID: 7, FirstName: "Grace", LastName: "Hopper"}))
			} else {
				Expect(item.Assignee).To(BeNil())
			}
		}

		list, err = f.manager.QueryWorkflowRuntimes(ctx, &workflow.RuntimeQuery{Limit: 2, Page: 2})
		Expect(err).To(BeNil())
		Expect(list.Meta).To(Equal(workflow.ListMeta{Total: 3, Pages: 2}))
		Expect(len(list.Results)).To(Equal(1))

		list, err = f.manager.QueryWorkflowRuntimes(ctx, &workflow.RuntimeQuery{OrderBy: "status", OrderDirection: "asc"})
		Expect(err).To(BeNil())
		Expect(list.Results[0].Status).To(Equal(domain.RuntimeStatusActive))
		Expect(list.Results[2].Status).To(Equal(domain.RuntimeStatusCompleted))
	})

	t.Run("should reject invalid queries", func(t *testing.T) {
		f := setup(t)
		defer teardown(t, f)
		ctx := context.Background()

		_, err := f.manager.QueryWorkflowRuntimes(ctx, &workflow.RuntimeQuery{OrderBy: "context"})
		assert.Equal(t, bizerror.ErrInvalidOrderBy, err)
		_, err = f.manager.QueryWorkflowRuntimes(ctx, &workflow.RuntimeQuery{OrderDirection: "sideways"})
		assert.Equal(t, bizerror.ErrInvalidOrderBy, err)
		_, err = f.manager.QueryWorkflowRuntimes(ctx, &workflow.RuntimeQuery{Limit: 101})
		assert.IsType(t, &bizerror.ErrBadParam{}, err)
		_, err = f.manager.QueryWorkflowRuntimes(ctx, &workflow.RuntimeQuery{Statuses: []domain.RuntimeStatus{"paused"}})
		assert.IsType(t, &bizerror.ErrBadParam{}, err)
	})
}

func TestQueryWorkflowRuntimesByEntity(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should list every runtime of the entity", func(t *testing.T) {
		f := setup(t)
		defer teardown(t, f)
		ctx := context.Background()
		kyc := createDefinition(f, 1, "kyc", approvalChart())
		other := createDefinition(f, 2, "aml", approvalChart())

		first, err := f.manager.CreateOrUpdateWorkflowRuntime(ctx, &workflow.RuntimeRun{WorkflowID: kyc.ID, Context: individualContext("cust-1")})
		Expect(err).To(BeNil())
		_, err = f.manager.CreateOrUpdateWorkflowRuntime(ctx, &workflow.RuntimeRun{WorkflowID: other.ID, Context: individualContext("cust-1")})
		Expect(err).To(BeNil())
		_, err = f.manager.CreateOrUpdateWorkflowRuntime(ctx, &workflow.RuntimeRun{WorkflowID: kyc.ID, Context: individualContext("cust-2")})
		Expect(err).To(BeNil())

		runtimes, err := f.manager.QueryWorkflowRuntimesByEntity(ctx, first.BallerineEntityID)
		Expect(err).To(BeNil())
		Expect(len(runtimes)).To(Equal(2))

		runtimes, err = f.manager.QueryWorkflowRuntimesByEntity(ctx, 404)
		Expect(err).To(BeNil())
		Expect(runtimes).To(BeEmpty())
	})
}

func TestDetailWorkflowRuntime(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should include definition and next events", func(t *testing.T) {
		f := setup(t)
		defer teardown(t, f)
		ctx := context.Background()
		d := createDefinition(f, 1, "review", reviewChart())

		run, err := f.manager.CreateOrUpdateWorkflowRuntime(ctx, &workflow.RuntimeRun{WorkflowID: d.ID,
			Context: individualContext("cust-1", map[string]interface{}{"id": "d1"})})
		Expect(err).To(BeNil())

		detail, err := f.manager.DetailWorkflowRuntime(ctx, run.WorkflowRuntimeID)
		Expect(err).To(BeNil())
		Expect(detail.NextEvents).To(Equal([]string{"approve", "reject", "request"}))
		Expect(detail.WorkflowDefinition.Name).To(Equal("review"))

		c, err := f.manager.GetWorkflowRuntimeContext(ctx, run.WorkflowRuntimeID)
		Expect(err).To(BeNil())
		Expect(c.Context.Get("documents.0.id").String()).To(Equal("d1"))

		_, err = f.manager.DetailWorkflowRuntime(ctx, 404)
		Expect(err).To(Equal(bizerror.ErrNotFound))
		_, err = f.manager.GetWorkflowRuntimeContext(ctx, 404)
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})
}

func TestQueryWorkflowRuntimesByFilter(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should expand the stored filter", func(t *testing.T) {
		f := setup(t)
		defer teardown(t, f)
		ctx := context.Background()
		d := createDefinition(f, 1, "kyc", approvalChart())

		_, err := f.manager.CreateOrUpdateWorkflowRuntime(ctx, &workflow.RuntimeRun{WorkflowID: d.ID, Context: individualContext("cust-1")})
		Expect(err).To(BeNil())
		done, err := f.manager.CreateOrUpdateWorkflowRuntime(ctx, &workflow.RuntimeRun{WorkflowID: d.ID, Context: individualContext("cust-2")})
		Expect(err).To(BeNil())
		_, err = f.manager.SendEvent(ctx, done.WorkflowRuntimeID, "approve")
		Expect(err).To(BeNil())

		saved, err := filter.CreateFilter(ctx, &filter.FilterCreation{Name: "individuals", Entity: filter.EntityIndividuals,
			Query: jsondoc.Document{"select": map[string]interface{}{"id": true, "status": true,
				"endUser": map[string]interface{}{"select": map[string]interface{}{"firstName": true}}}}})
		Expect(err).To(BeNil())

		result, err := f.manager.QueryWorkflowRuntimesByFilter(ctx, &workflow.FilteredRuntimeQuery{FilterID: saved.ID,
			Statuses: []string{"completed"}})
		Expect(err).To(BeNil())
		Expect(result.Meta).To(Equal(filter.Meta{TotalItems: 1, TotalPages: 1}))
		Expect(result.Data[0]["id"]).To(Equal(done.WorkflowRuntimeID))
		Expect(result.Data[0]["endUser"]).To(Equal(map[string]interface{}{"firstName": "Ada"}))

		_, err = f.manager.QueryWorkflowRuntimesByFilter(ctx, &workflow.FilteredRuntimeQuery{FilterID: saved.ID, OrderBy: "companyName:asc"})
		Expect(err).To(Equal(bizerror.ErrInvalidOrderBy))

		_, err = f.manager.QueryWorkflowRuntimesByFilter(ctx, &workflow.FilteredRuntimeQuery{FilterID: 404})
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})
}

func TestResolveIntent(t *testing.T) {
	RegisterTestingT(t)

	t.Run("should reject unknown intents and entities", func(t *testing.T) {
		f := setup(t)
		defer teardown(t, f)
		ctx := context.Background()

		_, err := f.manager.ResolveIntent(ctx, &workflow.IntentResolution{EntityID: 11, IntentName: "travel"})
		Expect(err).To(Equal(&bizerror.ErrUnsupportedFlowType{Name: "travel"}))

		_, err = f.manager.ResolveIntent(ctx, &workflow.IntentResolution{EntityID: 11, IntentName: "kycSignup"})
		Expect(err).To(Equal(bizerror.ErrNotFound))
	})

	t.Run("should start the mapped definition for an existing entity", func(t *testing.T) {
		f := setup(t)
		defer teardown(t, f)
		ctx := context.Background()
		createDefinition(f, 1001, "kyc_signup", approvalChart())
		correlation := "cust-11"
		Expect(f.db.DS.GormDB(nil).Create(&domain.EndUser{ID: 11, CorrelationID: &correlation, FirstName: "Ada",
			LastName: "Lovelace", AdditionalInfo: jsondoc.Document{}}).Error).To(BeNil())

		result, err := f.manager.ResolveIntent(ctx, &workflow.IntentResolution{EntityID: 11, IntentName: "kycSignup"})
		Expect(err).To(BeNil())
		Expect(result.WorkflowDefinitionID).To(Equal(types.ID(1001)))
		Expect(result.BallerineEntityID).To(Equal(types.ID(11)))
		Expect(result.Created).To(BeTrue())

		rt := loadRuntime(f, result.WorkflowRuntimeID)
		Expect(rt.Context.Get("entity.id").String()).To(Equal("cust-11"))
		Expect(rt.Context.Get("entity.type").String()).To(Equal("individual"))
		Expect(rt.Context.Get("entity.data.firstName").String()).To(Equal("Ada"))

		again, err := f.manager.ResolveIntent(ctx, &workflow.IntentResolution{EntityID: 11, IntentName: "KYCSIGNUP"})
		Expect(err).To(BeNil())
		Expect(again.WorkflowRuntimeID).To(Equal(result.WorkflowRuntimeID))
	})

	t.Run("intents should be taken from configuration", func(t *testing.T) {
		cfg := config.Default()
		id, found := cfg.IntentDefinition("kybSignup")
		Expect(found).To(BeTrue())
		Expect(id).To(Equal(config.KybSignupDefinitionID))
	})
}
