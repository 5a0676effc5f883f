package workflow

import (
	"context"
	"time"

	"backoffice/bizerror"
	"backoffice/common"
	"backoffice/domain"
	"backoffice/persistence"

	"github.com/fundwit/go-commons/types"
)

var ErrDefinitionInUse = &bizerror.ErrConflict{Message: "Workflow definition id or name and version already in use"}

// CreateWorkflowDefinition stores a definition as is, the chart document is validated when it is first read.
func (m *RuntimeManager) CreateWorkflowDefinition(ctx context.Context, c *domain.DefinitionCreation) (*domain.WorkflowDefinition, error) {
	now := time.Now()
	d := &domain.WorkflowDefinition{
		ID:             c.ID,
		Name:           c.Name,
		Version:        c.Version,
		DefinitionType: c.DefinitionType,
		Definition:     c.Definition,
		Config:         c.Config,
		Extensions:     c.Extensions,
		Backend:        c.Backend,
		PersistStates:  c.PersistStates,
		SubmitStates:   c.SubmitStates,
		CreatedBy:      c.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if d.ID == 0 {
		d.ID = common.NextId(m.idWorker)
	}
	if d.Version == 0 {
		d.Version = domain.DefaultDefinitionVersion
	}
	if d.DefinitionType == "" {
		d.DefinitionType = domain.DefinitionTypeStatechartJSON
	}
	if d.CreatedBy == "" {
		d.CreatedBy = domain.CreatedBySystem
	}

	err := m.repo.Transaction(ctx, func(repo Repository) error {
		exists, err := repo.DefinitionExists(ctx, d.ID, d.Name, d.Version)
		if err != nil {
			return err
		}
		if exists {
			return ErrDefinitionInUse
		}
		return repo.CreateDefinition(ctx, d)
	})
	if persistence.IsUniqueViolation(err) {
		return nil, ErrDefinitionInUse
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (m *RuntimeManager) DetailWorkflowDefinition(ctx context.Context, id types.ID) (*domain.WorkflowDefinition, error) {
	return m.repo.FindDefinition(ctx, id)
}

func (m *RuntimeManager) QueryWorkflowDefinitions(ctx context.Context) ([]domain.WorkflowDefinition, error) {
	return m.repo.ListDefinitions(ctx)
}

// DeleteWorkflowDefinition removes a definition no runtime was started from.
func (m *RuntimeManager) DeleteWorkflowDefinition(ctx context.Context, id types.ID) error {
	err := m.repo.Transaction(ctx, func(repo Repository) error {
		count, err := repo.CountRuntimesByDefinition(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return bizerror.ErrDefinitionReferenced
		}
		return repo.DeleteDefinition(ctx, id)
	})
	if err != nil {
		return err
	}
	m.definitions.Delete(id.String())
	return nil
}
