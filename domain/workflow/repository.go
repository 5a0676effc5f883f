package workflow

import (
	"context"

	"backoffice/bizerror"
	"backoffice/domain"
	"backoffice/persistence"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

// Repository is the persistence gateway of the runtime service. Lookups of a single record return
// bizerror.ErrNotFound when it does not exist.
type Repository interface {
	// Transaction runs f with a repository bound to one database transaction.
	Transaction(ctx context.Context, f func(repo Repository) error) error

	CreateDefinition(ctx context.Context, d *domain.WorkflowDefinition) error
	FindDefinition(ctx context.Context, id types.ID) (*domain.WorkflowDefinition, error)
	DefinitionExists(ctx context.Context, id types.ID, name string, version int) (bool, error)
	ListDefinitions(ctx context.Context) ([]domain.WorkflowDefinition, error)
	DeleteDefinition(ctx context.Context, id types.ID) error
	CountRuntimesByDefinition(ctx context.Context, id types.ID) (int, error)

	CreateRuntime(ctx context.Context, r *domain.WorkflowRuntimeData) error
	// FindRuntime loads a runtime, forUpdate locks the row where the database supports it.
	FindRuntime(ctx context.Context, id types.ID, forUpdate bool) (*domain.WorkflowRuntimeData, error)
	// FindActiveRuntime returns nil when the entity has no active runtime of the definition.
	FindActiveRuntime(ctx context.Context, entityID types.ID, entityType domain.EntityType, definitionID types.ID) (*domain.WorkflowRuntimeData, error)
	SaveRuntime(ctx context.Context, r *domain.WorkflowRuntimeData) error
	QueryRuntimes(ctx context.Context, q *RuntimeQuery) ([]domain.WorkflowRuntimeData, int, error)
	ListRuntimesByEntity(ctx context.Context, entityID types.ID) ([]domain.WorkflowRuntimeData, error)
	ListDefinitionsByIDs(ctx context.Context, ids []types.ID) ([]domain.WorkflowDefinition, error)
	ListUsersByIDs(ctx context.Context, ids []types.ID) ([]domain.User, error)

	FindUser(ctx context.Context, id types.ID) (*domain.User, error)
	FindEndUser(ctx context.Context, id types.ID) (*domain.EndUser, error)
	FindEndUserByCorrelationID(ctx context.Context, correlationID string) (*domain.EndUser, error)
	CreateEndUser(ctx context.Context, u *domain.EndUser) error
	FindBusiness(ctx context.Context, id types.ID) (*domain.Business, error)
	FindBusinessByCorrelationID(ctx context.Context, correlationID string) (*domain.Business, error)
	CreateBusiness(ctx context.Context, b *domain.Business) error
}

type gormRepository struct {
	ds *persistence.DataSourceManager
	tx *gorm.DB
}

func NewGormRepository(ds *persistence.DataSourceManager) Repository {
	return &gormRepository{ds: ds}
}

func (r *gormRepository) db(ctx context.Context) *gorm.DB {
	if r.tx != nil {
		return r.tx
	}
	return r.ds.GormDB(ctx)
}

func (r *gormRepository) Transaction(ctx context.Context, f func(repo Repository) error) error {
	if r.tx != nil {
		return f(r)
	}
	return r.ds.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&gormRepository{ds: r.ds, tx: tx})
	})
}

func notFound(err error) error {
	if gorm.IsRecordNotFoundError(err) {
		return bizerror.ErrNotFound
	}
	return err
}

func (r *gormRepository) CreateDefinition(ctx context.Context, d *domain.WorkflowDefinition) error {
	return r.db(ctx).Create(d).Error
}

func (r *gormRepository) FindDefinition(ctx context.Context, id types.ID) (*domain.WorkflowDefinition, error) {
	d := domain.WorkflowDefinition{}
	if err := r.db(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (r *gormRepository) DefinitionExists(ctx context.Context, id types.ID, name string, version int) (bool, error) {
	var count int
	err := r.db(ctx).Model(&domain.WorkflowDefinition{}).
		Where("id = ? OR (name = ? AND version = ?)", id, name, version).Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) ListDefinitions(ctx context.Context) ([]domain.WorkflowDefinition, error) {
	defs := []domain.WorkflowDefinition{}
	if err := r.db(ctx).Order("name ASC, version DESC").Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}

func (r *gormRepository) DeleteDefinition(ctx context.Context, id types.ID) error {
	q := r.db(ctx).Delete(&domain.WorkflowDefinition{}, "id = ?", id)
	if q.Error != nil {
		return q.Error
	}
	if q.RowsAffected == 0 {
		return bizerror.ErrNotFound
	}
	return nil
}

func (r *gormRepository) CountRuntimesByDefinition(ctx context.Context, id types.ID) (int, error) {
	var count int
	err := r.db(ctx).Model(&domain.WorkflowRuntimeData{}).Where("workflow_definition_id = ?", id).Count(&count).Error
	return count, err
}

func (r *gormRepository) CreateRuntime(ctx context.Context, rt *domain.WorkflowRuntimeData) error {
	return r.db(ctx).Create(rt).Error
}

func (r *gormRepository) forUpdate(db *gorm.DB) *gorm.DB {
	if r.ds.IsMysql() {
		return db.Set("gorm:query_option", "FOR UPDATE")
	}
	return db
}

func (r *gormRepository) FindRuntime(ctx context.Context, id types.ID, forUpdate bool) (*domain.WorkflowRuntimeData, error) {
	db := r.db(ctx)
	if forUpdate {
		db = r.forUpdate(db)
	}
	rt := domain.WorkflowRuntimeData{}
	if err := db.Where("id = ?", id).First(&rt).Error; err != nil {
		return nil, notFound(err)
	}
	return &rt, nil
}

func (r *gormRepository) FindActiveRuntime(ctx context.Context, entityID types.ID, entityType domain.EntityType,
	definitionID types.ID) (*domain.WorkflowRuntimeData, error) {
	column := "end_user_id"
	if entityType == domain.EntityTypeBusiness {
		column = "business_id"
	}
	rt := domain.WorkflowRuntimeData{}
	err := r.forUpdate(r.db(ctx)).
		Where(column+" = ? AND workflow_definition_id = ? AND status = ?", entityID, definitionID, domain.RuntimeStatusActive).
		Order("created_at DESC").First(&rt).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *gormRepository) SaveRuntime(ctx context.Context, rt *domain.WorkflowRuntimeData) error {
	return r.db(ctx).Save(rt).Error
}

func (r *gormRepository) QueryRuntimes(ctx context.Context, q *RuntimeQuery) ([]domain.WorkflowRuntimeData, int, error) {
	db := r.db(ctx).Model(&domain.WorkflowRuntimeData{})
	if len(q.Statuses) > 0 {
		db = db.Where("status IN (?)", q.Statuses)
	}
	total := 0
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	runtimes := []domain.WorkflowRuntimeData{}
	column := sortableRuntimeColumns[q.OrderBy]
	direction := q.OrderDirection
	err := db.Order(column + " " + direction).Order("id " + direction).
		Offset((q.Page - 1) * q.Limit).Limit(q.Limit).Find(&runtimes).Error
	if err != nil {
		return nil, 0, err
	}
	return runtimes, total, nil
}

func (r *gormRepository) ListRuntimesByEntity(ctx context.Context, entityID types.ID) ([]domain.WorkflowRuntimeData, error) {
	runtimes := []domain.WorkflowRuntimeData{}
	err := r.db(ctx).Where("end_user_id = ? OR business_id = ?", entityID, entityID).
		Order("created_at DESC, id DESC").Find(&runtimes).Error
	if err != nil {
		return nil, err
	}
	return runtimes, nil
}

func (r *gormRepository) ListDefinitionsByIDs(ctx context.Context, ids []types.ID) ([]domain.WorkflowDefinition, error) {
	defs := []domain.WorkflowDefinition{}
	if len(ids) == 0 {
		return defs, nil
	}
	if err := r.db(ctx).Where("id IN (?)", ids).Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}

func (r *gormRepository) ListUsersByIDs(ctx context.Context, ids []types.ID) ([]domain.User, error) {
	users := []domain.User{}
	if len(ids) == 0 {
		return users, nil
	}
	if err := r.db(ctx).Where("id IN (?)", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *gormRepository) FindUser(ctx context.Context, id types.ID) (*domain.User, error) {
	u := domain.User{}
	if err := r.db(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *gormRepository) FindEndUser(ctx context.Context, id types.ID) (*domain.EndUser, error) {
	u := domain.EndUser{}
	if err := r.db(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *gormRepository) FindEndUserByCorrelationID(ctx context.Context, correlationID string) (*domain.EndUser, error) {
	u := domain.EndUser{}
	if err := r.db(ctx).Where("correlation_id = ?", correlationID).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *gormRepository) CreateEndUser(ctx context.Context, u *domain.EndUser) error {
	return r.db(ctx).Create(u).Error
}

func (r *gormRepository) FindBusiness(ctx context.Context, id types.ID) (*domain.Business, error) {
	b := domain.Business{}
	if err := r.db(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (r *gormRepository) FindBusinessByCorrelationID(ctx context.Context, correlationID string) (*domain.Business, error) {
	b := domain.Business{}
	if err := r.db(ctx).Where("correlation_id = ?", correlationID).First(&b).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (r *gormRepository) CreateBusiness(ctx context.Context, b *domain.Business) error {
	return r.db(ctx).Create(b).Error
}
