package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backoffice/bizerror"
	"backoffice/common"
	"backoffice/domain"
	"backoffice/event"
	"backoffice/jsondoc"
	"backoffice/metrics"

	"dario.cat/mergo"
	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const mergeStrategyKey = "mergeStrategy"

type RuntimeRun struct {
	WorkflowID    types.ID         `json:"workflowId" binding:"required"`
	Context       jsondoc.Document `json:"context" binding:"required"`
	Config        jsondoc.Document `json:"config"`
	MergeStrategy string           `json:"mergeStrategy" binding:"omitempty,oneof=by-id replace concat"`
}

type RunResult struct {
	WorkflowDefinitionID types.ID `json:"workflowDefinitionId"`
	WorkflowRuntimeID    types.ID `json:"workflowRuntimeId"`
	BallerineEntityID    types.ID `json:"ballerineEntityId"`

	Runtime    *domain.WorkflowRuntimeData `json:"-"`
	Definition *domain.WorkflowDefinition  `json:"-"`
	Created    bool                        `json:"-"`
}

// RuntimeUpdating is a partial update, nil fields are left untouched.
type RuntimeUpdating struct {
	State      *string               `json:"state"`
	Context    jsondoc.Document      `json:"context"`
	Status     *domain.RuntimeStatus `json:"status"`
	AssigneeID *types.ID             `json:"assigneeId"`
	ResolvedAt *time.Time            `json:"resolvedAt"`
}

type ContextPatch struct {
	Context       jsondoc.Document `json:"context" binding:"required"`
	MergeStrategy string           `json:"mergeStrategy" binding:"omitempty,oneof=by-id replace concat"`
}

type RuntimeDetail struct {
	*domain.WorkflowRuntimeData
	WorkflowDefinition *domain.WorkflowDefinition `json:"workflowDefinition"`
	NextEvents         []string                   `json:"nextEvents"`
}

type RuntimeContext struct {
	Context jsondoc.Document `json:"context"`
}

func detailOf(rt *domain.WorkflowRuntimeData, def *compiledDefinition) *RuntimeDetail {
	return &RuntimeDetail{WorkflowRuntimeData: rt, WorkflowDefinition: def.definition, NextEvents: def.chart.NextEvents(rt.State)}
}

// publication is an event waiting for its transaction to commit.
type publication func(ctx context.Context, p event.Publisher)

func (m *RuntimeManager) publish(ctx context.Context, pending []publication) {
	for _, p := range pending {
		p(ctx, m.publisher)
	}
}

func contextChanged(rt, old *domain.WorkflowRuntimeData, changed []string) publication {
	snapshot := rt.Clone()
	return func(ctx context.Context, p event.Publisher) {
		p.PublishContextChanged(ctx, &event.ContextChanged{Source: event.NewSource(snapshot, old.Context), OldRuntime: old, ChangedDocuments: changed})
	}
}

func stateChanged(rt, old *domain.WorkflowRuntimeData, eventName string) publication {
	snapshot := rt.Clone()
	return func(ctx context.Context, p event.Publisher) {
		p.PublishStateChanged(ctx, &event.StateChanged{Source: event.NewSource(snapshot, old.Context), PreviousState: old.State, EventName: eventName})
	}
}

func completed(rt, old *domain.WorkflowRuntimeData, eventName string) publication {
	snapshot := rt.Clone()
	return func(ctx context.Context, p event.Publisher) {
		p.PublishCompleted(ctx, &event.Completed{Source: event.NewSource(snapshot, old.Context), PreviousState: old.State, EventName: eventName})
	}
}

func saved(rt, old *domain.WorkflowRuntimeData, created bool) publication {
	snapshot := rt.Clone()
	var oldContext jsondoc.Document
	if old != nil {
		oldContext = old.Context
	}
	return func(ctx context.Context, p event.Publisher) {
		p.PublishSaved(ctx, &event.Saved{Source: event.NewSource(snapshot, oldContext), Created: created})
	}
}

func runtimeLockKey(id types.ID) string {
	return "workflow-runtime:" + id.String()
}

// entityReference is how a run context names its owning entity.
type entityReference struct {
	// correlationID is context.entity.id, the identifier known to the caller
	correlationID string
	ballerineID   string
	entityType    domain.EntityType
}

func referenceOf(runContext jsondoc.Document) (*entityReference, error) {
	ref := &entityReference{
		correlationID: idString(runContext.Get("entity.id")),
		ballerineID:   idString(runContext.Get("entity.ballerineEntityId")),
		entityType:    domain.EntityTypeIndividual,
	}
	if ref.correlationID == "" && ref.ballerineID == "" {
		return nil, bizerror.ErrMissingEntityID
	}
	if strings.EqualFold(runContext.Get("entity.type").String(), string(domain.EntityTypeBusiness)) {
		ref.entityType = domain.EntityTypeBusiness
	}
	return ref, nil
}

func idString(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return strings.TrimSpace(r.Str)
	case gjson.Number:
		return r.Raw
	}
	return ""
}

func (ref *entityReference) lockKey(definitionID types.ID) string {
	name := ref.correlationID
	if name == "" {
		name = ref.ballerineID
	}
	return fmt.Sprintf("workflow-runtime:%s:%s:%s", ref.entityType, name, definitionID)
}

// resolveEntity finds the owning entity by internal id, then by correlation id, and creates it from
// context.entity.data when neither matches.
func (m *RuntimeManager) resolveEntity(ctx context.Context, repo Repository, ref *entityReference, runContext jsondoc.Document) (types.ID, error) {
	if ref.ballerineID != "" {
		if id, err := types.ParseID(ref.ballerineID); err == nil {
			found, err := entityExists(ctx, repo, ref.entityType, id)
			if err != nil || found {
				return id, err
			}
		}
		if ref.correlationID == "" {
			return 0, bizerror.ErrNotFound
		}
	}

	if id, found, err := findByCorrelationID(ctx, repo, ref.entityType, ref.correlationID); err != nil || found {
		return id, err
	}
	if id, err := types.ParseID(ref.correlationID); err == nil {
		found, err := entityExists(ctx, repo, ref.entityType, id)
		if err != nil || found {
			return id, err
		}
	}
	return m.createEntity(ctx, repo, ref, runContext.Object("entity").Object("data"))
}

func entityExists(ctx context.Context, repo Repository, entityType domain.EntityType, id types.ID) (bool, error) {
	var err error
	if entityType == domain.EntityTypeBusiness {
		_, err = repo.FindBusiness(ctx, id)
	} else {
		_, err = repo.FindEndUser(ctx, id)
	}
	if err == bizerror.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func findByCorrelationID(ctx context.Context, repo Repository, entityType domain.EntityType, correlationID string) (types.ID, bool, error) {
	if entityType == domain.EntityTypeBusiness {
		b, err := repo.FindBusinessByCorrelationID(ctx, correlationID)
		if err == bizerror.ErrNotFound {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		return b.ID, true, nil
	}
	u, err := repo.FindEndUserByCorrelationID(ctx, correlationID)
	if err == bizerror.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return u.ID, true, nil
}

func stringOf(d jsondoc.Document, key string) string {
	s, _ := d[key].(string)
	return s
}

func (m *RuntimeManager) createEntity(ctx context.Context, repo Repository, ref *entityReference, data jsondoc.Document) (types.ID, error) {
	now := time.Now()
	correlationID := ref.correlationID
	id := common.NextId(m.idWorker)
	if ref.entityType == domain.EntityTypeBusiness {
		b := &domain.Business{
			ID:                     id,
			CorrelationID:          &correlationID,
			CompanyName:            stringOf(data, "companyName"),
			RegistrationNumber:     stringOf(data, "registrationNumber"),
			LegalForm:              stringOf(data, "legalForm"),
			CountryOfIncorporation: stringOf(data, "countryOfIncorporation"),
			Website:                stringOf(data, "website"),
			ApprovalState:          domain.ApprovalStateNew,
			AdditionalInfo:         data.Object("additionalInfo"),
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		return id, repo.CreateBusiness(ctx, b)
	}
	u := &domain.EndUser{
		ID:             id,
		CorrelationID:  &correlationID,
		FirstName:      stringOf(data, "firstName"),
		LastName:       stringOf(data, "lastName"),
		Email:          stringOf(data, "email"),
		Phone:          stringOf(data, "phone"),
		DateOfBirth:    stringOf(data, "dateOfBirth"),
		AvatarURL:      stringOf(data, "avatarUrl"),
		ApprovalState:  domain.ApprovalStateNew,
		AdditionalInfo: data.Object("additionalInfo"),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return id, repo.CreateEndUser(ctx, u)
}

// mergeStrategy picks the first strategy named by the request, the run config or the definition config.
func mergeStrategy(requested string, configs ...jsondoc.Document) (jsondoc.ArrayMergeStrategy, error) {
	name := requested
	for _, c := range configs {
		if name != "" {
			break
		}
		name = stringOf(c, mergeStrategyKey)
	}
	strategy, err := jsondoc.ParseArrayMergeStrategy(name)
	if err != nil {
		return "", &bizerror.ErrBadParam{Cause: err}
	}
	return strategy, nil
}

func mergeConfig(current, patch jsondoc.Document) (jsondoc.Document, error) {
	merged := map[string]interface{}(current.Clone())
	if merged == nil {
		merged = map[string]interface{}{}
	}
	if len(patch) == 0 {
		return merged, nil
	}
	if err := mergo.Merge(&merged, map[string]interface{}(patch.Clone()), mergo.WithOverride); err != nil {
		return nil, err
	}
	return merged, nil
}

// CreateOrUpdateWorkflowRuntime starts the definition for the entity named by the run context, or merges the
// run into the entity's active runtime of that definition.
func (m *RuntimeManager) CreateOrUpdateWorkflowRuntime(ctx context.Context, run *RuntimeRun) (*RunResult, error) {
	ref, err := referenceOf(run.Context)
	if err != nil {
		return nil, err
	}

	var result *RunResult
	var pending []publication
	err = m.locker.Synchronized(ctx, ref.lockKey(run.WorkflowID), func(ctx context.Context) error {
		return m.repo.Transaction(ctx, func(repo Repository) error {
			def, err := m.definition(ctx, repo, run.WorkflowID)
			if err != nil {
				return err
			}
			strategy, err := mergeStrategy(run.MergeStrategy, run.Config, def.definition.Config)
			if err != nil {
				return err
			}
			entityID, err := m.resolveEntity(ctx, repo, ref, run.Context)
			if err != nil {
				return err
			}

			runContext := run.Context.Clone()
			entity := runContext.Object("entity")
			if entity == nil {
				entity = jsondoc.Document{}
			}
			entity["ballerineEntityId"] = entityID.String()
			runContext["entity"] = map[string]interface{}(entity)
			jsondoc.EnsureDocumentIDs(runContext)

			existing, err := repo.FindActiveRuntime(ctx, entityID, ref.entityType, def.definition.ID)
			if err != nil {
				return err
			}
			now := time.Now()
			result = &RunResult{WorkflowDefinitionID: def.definition.ID, BallerineEntityID: entityID, Definition: def.definition}

			if existing != nil {
				old := existing.Clone()
				existing.Context = jsondoc.Merge(existing.Context, runContext, strategy)
				jsondoc.EnsureDocumentIDs(existing.Context)
				if existing.Config, err = mergeConfig(existing.Config, run.Config); err != nil {
					return err
				}
				existing.UpdatedAt = now
				if err := repo.SaveRuntime(ctx, existing); err != nil {
					return err
				}
				if changed := jsondoc.ChangedDecisions(old.Context, existing.Context); len(changed) > 0 {
					pending = append(pending, contextChanged(existing, old, changed))
				}
				pending = append(pending, saved(existing, old, false))
				result.WorkflowRuntimeID, result.Runtime = existing.ID, existing
				return nil
			}

			rt := &domain.WorkflowRuntimeData{
				ID:                        common.NextId(m.idWorker),
				WorkflowDefinitionID:      def.definition.ID,
				WorkflowDefinitionVersion: def.definition.Version,
				Context:                   runContext,
				Config:                    run.Config.Clone(),
				Status:                    domain.RuntimeStatusActive,
				CreatedBy:                 domain.CreatedBySystem,
				CreatedAt:                 now,
				UpdatedAt:                 now,
			}
			owner := entityID
			if ref.entityType == domain.EntityTypeBusiness {
				rt.BusinessID = &owner
			} else {
				rt.EndUserID = &owner
			}
			if err := repo.CreateRuntime(ctx, rt); err != nil {
				return err
			}
			pending = append(pending, saved(rt, nil, true))
			result.WorkflowRuntimeID, result.Runtime, result.Created = rt.ID, rt, true
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Created {
		metrics.WorkflowRuntimesCreated.Inc()
		logrus.WithFields(logrus.Fields{"runtimeId": result.WorkflowRuntimeID, "definitionId": result.WorkflowDefinitionID,
			"entityId": result.BallerineEntityID}).Info("workflow runtime created")
	}
	m.publish(ctx, pending)
	return result, nil
}

// SendEvent moves the runtime along the edge named by the event.
func (m *RuntimeManager) SendEvent(ctx context.Context, id types.ID, name string) (*RuntimeDetail, error) {
	var detail *RuntimeDetail
	var pending []publication
	err := m.locker.Synchronized(ctx, runtimeLockKey(id), func(ctx context.Context) error {
		return m.repo.Transaction(ctx, func(repo Repository) error {
			rt, err := repo.FindRuntime(ctx, id, true)
			if err != nil {
				return err
			}
			def, err := m.definition(ctx, repo, rt.WorkflowDefinitionID)
			if err != nil {
				return err
			}
			next, err := def.chart.Next(rt.State, name)
			metrics.RecordTransition(name, err)
			if err != nil {
				return err
			}

			old := rt.Clone()
			now := time.Now()
			rt.State = &next
			rt.UpdatedAt = now
			newlyCompleted := def.chart.IsFinal(next) && rt.IsActive()
			if newlyCompleted {
				rt.Status = domain.RuntimeStatusCompleted
				rt.ResolvedAt = &now
			}
			if err := repo.SaveRuntime(ctx, rt); err != nil {
				return err
			}

			pending = append(pending, stateChanged(rt, old, name))
			if newlyCompleted {
				pending = append(pending, completed(rt, old, name))
			}
			pending = append(pending, saved(rt, old, false))
			detail = detailOf(rt, def)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	m.publish(ctx, pending)
	return detail, nil
}

// UpdateWorkflowRuntime applies a partial update. The context is replaced, a final state completes the runtime.
func (m *RuntimeManager) UpdateWorkflowRuntime(ctx context.Context, id types.ID, patch *RuntimeUpdating) (*RuntimeDetail, error) {
	var detail *RuntimeDetail
	var pending []publication
	err := m.locker.Synchronized(ctx, runtimeLockKey(id), func(ctx context.Context) error {
		return m.repo.Transaction(ctx, func(repo Repository) error {
			rt, err := repo.FindRuntime(ctx, id, true)
			if err != nil {
				return err
			}
			def, err := m.definition(ctx, repo, rt.WorkflowDefinitionID)
			if err != nil {
				return err
			}

			old := rt.Clone()
			now := time.Now()
			target := rt.Status
			if patch.Status != nil {
				if !patch.Status.Valid() {
					return &bizerror.ErrBadParam{Cause: fmt.Errorf("invalid status '%s'", *patch.Status)}
				}
				target = *patch.Status
			}
			if patch.State != nil {
				next := *patch.State
				if len(def.chart.States) > 0 && !def.chart.HasState(next) {
					return fmt.Errorf("%w: '%s'", bizerror.ErrUnknownState, next)
				}
				rt.State = &next
				if def.chart.IsFinal(next) && target == domain.RuntimeStatusActive {
					target = domain.RuntimeStatusCompleted
				}
			}
			if !rt.Status.CanTransitTo(target) {
				return fmt.Errorf("%w: %s to %s", bizerror.ErrStatusTransition, rt.Status, target)
			}
			newlyCompleted := old.IsActive() && target == domain.RuntimeStatusCompleted
			if target != rt.Status {
				rt.Status = target
				if rt.ResolvedAt == nil {
					rt.ResolvedAt = &now
				}
			}
			if patch.ResolvedAt != nil {
				rt.ResolvedAt = patch.ResolvedAt
			}
			if patch.Context != nil {
				rt.Context = patch.Context.Clone()
				jsondoc.EnsureDocumentIDs(rt.Context)
			}
			if patch.AssigneeID != nil && (rt.AssigneeID == nil || *rt.AssigneeID != *patch.AssigneeID) {
				if _, err := repo.FindUser(ctx, *patch.AssigneeID); err != nil {
					return err
				}
				assignee := *patch.AssigneeID
				rt.AssigneeID = &assignee
				rt.AssignedAt = &now
			}
			rt.UpdatedAt = now
			if err := repo.SaveRuntime(ctx, rt); err != nil {
				return err
			}

			if patch.Context != nil {
				if changed := jsondoc.ChangedDecisions(old.Context, rt.Context); len(changed) > 0 {
					pending = append(pending, contextChanged(rt, old, changed))
				}
			}
			if !sameState(old.State, rt.State) {
				pending = append(pending, stateChanged(rt, old, ""))
			}
			if newlyCompleted {
				pending = append(pending, completed(rt, old, ""))
			}
			pending = append(pending, saved(rt, old, false))
			detail = detailOf(rt, def)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	m.publish(ctx, pending)
	return detail, nil
}

func sameState(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// UpdateWorkflowRuntimeContext deep merges a patch into the runtime context.
func (m *RuntimeManager) UpdateWorkflowRuntimeContext(ctx context.Context, id types.ID, patch *ContextPatch) (*RuntimeDetail, error) {
	var detail *RuntimeDetail
	var pending []publication
	err := m.locker.Synchronized(ctx, runtimeLockKey(id), func(ctx context.Context) error {
		return m.repo.Transaction(ctx, func(repo Repository) error {
			rt, err := repo.FindRuntime(ctx, id, true)
			if err != nil {
				return err
			}
			def, err := m.definition(ctx, repo, rt.WorkflowDefinitionID)
			if err != nil {
				return err
			}
			strategy, err := mergeStrategy(patch.MergeStrategy, rt.Config, def.definition.Config)
			if err != nil {
				return err
			}

			old := rt.Clone()
			patchContext := patch.Context.Clone()
			jsondoc.EnsureDocumentIDs(patchContext)
			rt.Context = jsondoc.Merge(rt.Context, patchContext, strategy)
			jsondoc.EnsureDocumentIDs(rt.Context)
			rt.UpdatedAt = time.Now()
			if err := repo.SaveRuntime(ctx, rt); err != nil {
				return err
			}
			if changed := jsondoc.ChangedDecisions(old.Context, rt.Context); len(changed) > 0 {
				pending = append(pending, contextChanged(rt, old, changed))
			}
			pending = append(pending, saved(rt, old, false))
			detail = detailOf(rt, def)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	m.publish(ctx, pending)
	return detail, nil
}

// AssignWorkflow sets the assignee of a runtime, a nil assignee unassigns it.
func (m *RuntimeManager) AssignWorkflow(ctx context.Context, id types.ID, assigneeID *types.ID) (*RuntimeDetail, error) {
	var detail *RuntimeDetail
	var pending []publication
	err := m.locker.Synchronized(ctx, runtimeLockKey(id), func(ctx context.Context) error {
		return m.repo.Transaction(ctx, func(repo Repository) error {
			rt, err := repo.FindRuntime(ctx, id, true)
			if err != nil {
				return err
			}
			def, err := m.definition(ctx, repo, rt.WorkflowDefinitionID)
			if err != nil {
				return err
			}
			old := rt.Clone()
			now := time.Now()
			if assigneeID == nil {
				rt.AssigneeID, rt.AssignedAt = nil, nil
			} else {
				if _, err := repo.FindUser(ctx, *assigneeID); err != nil {
					return err
				}
				assignee := *assigneeID
				rt.AssigneeID, rt.AssignedAt = &assignee, &now
			}
			rt.UpdatedAt = now
			if err := repo.SaveRuntime(ctx, rt); err != nil {
				return err
			}
			pending = append(pending, saved(rt, old, false))
			detail = detailOf(rt, def)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	m.publish(ctx, pending)
	return detail, nil
}
