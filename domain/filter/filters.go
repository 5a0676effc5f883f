package filter

import (
	"context"
	"errors"
	"time"

	"backoffice/bizerror"
	"backoffice/common"
	"backoffice/jsondoc"
	"backoffice/persistence"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

type Filter struct {
	ID        types.ID         `json:"id"`
	Name      string           `json:"name" gorm:"unique_index"`
	Entity    Entity           `json:"entity" gorm:"index"`
	Query     jsondoc.Document `json:"query" sql:"type:TEXT"`
	CreatedBy string           `json:"createdBy"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

func (f *Filter) TableName() string {
	return "filters"
}

type FilterCreation struct {
	Name      string           `json:"name" binding:"required,lte=255"`
	Entity    Entity           `json:"entity" binding:"required,oneof=individuals businesses"`
	Query     jsondoc.Document `json:"query" binding:"required"`
	CreatedBy string           `json:"createdBy" binding:"lte=255"`
}

type FilterQuery struct {
	Entity Entity `json:"entity" form:"entity" binding:"omitempty,oneof=individuals businesses"`
}

const defaultCreatedBy = "SYSTEM"

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	errUnknownEntity = errors.New("unknown filter entity")

	CreateFilterFunc = CreateFilter
	DetailFilterFunc = DetailFilter
	QueryFiltersFunc = QueryFilters
	ExpandFunc       = Expand
)

// CreateFilter stores a filter after compiling its query once against the entity schema.
func CreateFilter(ctx context.Context, c *FilterCreation) (*Filter, error) {
	caps, ok := capabilitiesOf(c.Entity)
	if !ok {
		return nil, &bizerror.ErrBadParam{Cause: errUnknownEntity}
	}
	if _, err := compile(caps, c.Query); err != nil {
		return nil, err
	}

	now := time.Now()
	f := &Filter{
		ID:        common.NextId(idWorker),
		Name:      c.Name,
		Entity:    c.Entity,
		Query:     c.Query,
		CreatedBy: c.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if f.CreatedBy == "" {
		f.CreatedBy = defaultCreatedBy
	}

	if err := persistence.ActiveDataSourceManager.GormDB(ctx).Create(f).Error; err != nil {
		if persistence.IsUniqueViolation(err) {
			return nil, bizerror.ErrNameInUse
		}
		return nil, err
	}
	return f, nil
}

func DetailFilter(ctx context.Context, id types.ID) (*Filter, error) {
	f := Filter{}
	if err := persistence.ActiveDataSourceManager.GormDB(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func QueryFilters(ctx context.Context, q *FilterQuery) ([]Filter, error) {
	filters := []Filter{}
	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	if q != nil && q.Entity != "" {
		db = db.Where("entity = ?", q.Entity)
	}
	if err := db.Order("created_at DESC, id DESC").Find(&filters).Error; err != nil {
		return nil, err
	}
	return filters, nil
}
