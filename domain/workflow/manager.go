package workflow

import (
	"context"
	"time"

	"backoffice/domain"
	"backoffice/domain/filter"
	"backoffice/domain/state"
	"backoffice/event"
	"backoffice/locker"

	"github.com/fundwit/go-commons/types"
	"github.com/patrickmn/go-cache"
	"github.com/sony/sonyflake"
)

// IntentResolver maps an intent name to the id of the workflow definition it starts.
type IntentResolver interface {
	IntentDefinition(intent string) (string, bool)
}

type RuntimeManagerTraits interface {
	CreateWorkflowDefinition(ctx context.Context, c *domain.DefinitionCreation) (*domain.WorkflowDefinition, error)
	DetailWorkflowDefinition(ctx context.Context, id types.ID) (*domain.WorkflowDefinition, error)
	QueryWorkflowDefinitions(ctx context.Context) ([]domain.WorkflowDefinition, error)
	DeleteWorkflowDefinition(ctx context.Context, id types.ID) error

	CreateOrUpdateWorkflowRuntime(ctx context.Context, run *RuntimeRun) (*RunResult, error)
	ResolveIntent(ctx context.Context, intent *IntentResolution) (*RunResult, error)
	SendEvent(ctx context.Context, id types.ID, name string) (*RuntimeDetail, error)
	UpdateWorkflowRuntime(ctx context.Context, id types.ID, patch *RuntimeUpdating) (*RuntimeDetail, error)
	UpdateWorkflowRuntimeContext(ctx context.Context, id types.ID, patch *ContextPatch) (*RuntimeDetail, error)
	AssignWorkflow(ctx context.Context, id types.ID, assigneeID *types.ID) (*RuntimeDetail, error)

	DetailWorkflowRuntime(ctx context.Context, id types.ID) (*RuntimeDetail, error)
	GetWorkflowRuntimeContext(ctx context.Context, id types.ID) (*RuntimeContext, error)
	QueryWorkflowRuntimes(ctx context.Context, q *RuntimeQuery) (*RuntimeList, error)
	QueryWorkflowRuntimesByFilter(ctx context.Context, q *FilteredRuntimeQuery) (*filter.Result, error)
	QueryWorkflowRuntimesByEntity(ctx context.Context, entityID types.ID) ([]domain.WorkflowRuntimeData, error)
}

// RuntimeManager owns workflow definitions and runtimes. Every mutation runs in one transaction under a
// lock, events are published after commit.
type RuntimeManager struct {
	repo      Repository
	publisher event.Publisher
	locker    locker.Locker
	intents   IntentResolver
	idWorker  *sonyflake.Sonyflake

	// definitions are immutable, parsed charts are cached by definition id
	definitions *cache.Cache
}

func NewRuntimeManager(repo Repository, publisher event.Publisher, l locker.Locker, intents IntentResolver) *RuntimeManager {
	return &RuntimeManager{
		repo:        repo,
		publisher:   publisher,
		locker:      l,
		intents:     intents,
		idWorker:    sonyflake.NewSonyflake(sonyflake.Settings{}),
		definitions: cache.New(30*time.Minute, time.Hour),
	}
}

type compiledDefinition struct {
	definition *domain.WorkflowDefinition
	chart      *state.StateChart
}

// definition loads a definition with its parsed chart through repo, which may be bound to a transaction.
func (m *RuntimeManager) definition(ctx context.Context, repo Repository, id types.ID) (*compiledDefinition, error) {
	if cached, found := m.definitions.Get(id.String()); found {
		return cached.(*compiledDefinition), nil
	}
	d, err := repo.FindDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	chart, err := state.Parse(d.Definition)
	if err != nil {
		return nil, err
	}
	compiled := &compiledDefinition{definition: d, chart: chart}
	m.definitions.SetDefault(id.String(), compiled)
	return compiled, nil
}
