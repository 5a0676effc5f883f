package workflow

import (
	"context"
	"fmt"
	"math"
	"strings"

	"backoffice/bizerror"
	"backoffice/domain"
	"backoffice/domain/filter"

	"github.com/fundwit/go-commons/types"
)

const (
	defaultRuntimeLimit = 20
	maxRuntimeLimit     = 100
)

var sortableRuntimeColumns = map[string]string{
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
	"resolvedAt": "resolved_at",
	"status":     "status",
	"state":      "state",
}

type RuntimeQuery struct {
	Statuses       []domain.RuntimeStatus `form:"status"`
	OrderBy        string                 `form:"orderBy"`
	OrderDirection string                 `form:"orderDirection"`
	Page           int                    `form:"page"`
	Limit          int                    `form:"limit"`
}

func (q *RuntimeQuery) normalize() error {
	if q.OrderBy == "" {
		q.OrderBy = "createdAt"
	}
	if _, ok := sortableRuntimeColumns[q.OrderBy]; !ok {
		return bizerror.ErrInvalidOrderBy
	}
	q.OrderDirection = strings.ToUpper(q.OrderDirection)
	if q.OrderDirection == "" {
		q.OrderDirection = "DESC"
	}
	if q.OrderDirection != "ASC" && q.OrderDirection != "DESC" {
		return bizerror.ErrInvalidOrderBy
	}
	for _, s := range q.Statuses {
		if !s.Valid() {
			return &bizerror.ErrBadParam{Cause: fmt.Errorf("invalid status '%s'", s)}
		}
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = defaultRuntimeLimit
	}
	if q.Page < 1 || q.Limit < 1 || q.Limit > maxRuntimeLimit {
		return &bizerror.ErrBadParam{Cause: fmt.Errorf("page must be positive and limit between 1 and %d", maxRuntimeLimit)}
	}
	return nil
}

type Assignee struct {
	ID        types.ID `json:"id"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
}

type RuntimeListItem struct {
	domain.WorkflowRuntimeData
	WorkflowDefinitionName string    `json:"workflowDefinitionName"`
	Assignee               *Assignee `json:"assignee"`
}

type ListMeta struct {
	Pages int `json:"pages"`
	Total int `json:"total"`
}

type RuntimeList struct {
	Results []RuntimeListItem `json:"results"`
	Meta    ListMeta          `json:"meta"`
}

type FilteredRuntimeQuery struct {
	FilterID    types.ID
	OrderBy     string
	Page        filter.Page
	AssigneeIDs []types.ID
	Unassigned  bool
	Statuses    []string
}

func (m *RuntimeManager) DetailWorkflowRuntime(ctx context.Context, id types.ID) (*RuntimeDetail, error) {
	rt, err := m.repo.FindRuntime(ctx, id, false)
	if err != nil {
		return nil, err
	}
	def, err := m.definition(ctx, m.repo, rt.WorkflowDefinitionID)
	if err != nil {
		return nil, err
	}
	return detailOf(rt, def), nil
}

func (m *RuntimeManager) GetWorkflowRuntimeContext(ctx context.Context, id types.ID) (*RuntimeContext, error) {
	rt, err := m.repo.FindRuntime(ctx, id, false)
	if err != nil {
		return nil, err
	}
	return &RuntimeContext{Context: rt.Context}, nil
}

// QueryWorkflowRuntimes lists runtimes with the name of their definition and their assignee.
func (m *RuntimeManager) QueryWorkflowRuntimes(ctx context.Context, q *RuntimeQuery) (*RuntimeList, error) {
	if err := q.normalize(); err != nil {
		return nil, err
	}
	runtimes, total, err := m.repo.QueryRuntimes(ctx, q)
	if err != nil {
		return nil, err
	}

	var definitionIDs, assigneeIDs []types.ID
	for _, rt := range runtimes {
		definitionIDs = append(definitionIDs, rt.WorkflowDefinitionID)
		if rt.AssigneeID != nil {
			assigneeIDs = append(assigneeIDs, *rt.AssigneeID)
		}
	}
	defs, err := m.repo.ListDefinitionsByIDs(ctx, definitionIDs)
	if err != nil {
		return nil, err
	}
	names := map[types.ID]string{}
	for _, d := range defs {
		names[d.ID] = d.Name
	}
	users, err := m.repo.ListUsersByIDs(ctx, assigneeIDs)
	if err != nil {
		return nil, err
	}
	assignees := map[types.ID]*Assignee{}
	for _, u := range users {
		assignees[u.ID] = &Assignee{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName}
	}

	list := &RuntimeList{
		Results: make([]RuntimeListItem, 0, len(runtimes)),
		Meta:    ListMeta{Total: total, Pages: int(math.Ceil(float64(total) / float64(q.Limit)))},
	}
	for _, rt := range runtimes {
		item := RuntimeListItem{WorkflowRuntimeData: rt, WorkflowDefinitionName: names[rt.WorkflowDefinitionID]}
		if rt.AssigneeID != nil {
			item.Assignee = assignees[*rt.AssigneeID]
		}
		list.Results = append(list.Results, item)
	}
	return list, nil
}

// QueryWorkflowRuntimesByFilter expands a stored filter into one page of runtimes.
func (m *RuntimeManager) QueryWorkflowRuntimesByFilter(ctx context.Context, q *FilteredRuntimeQuery) (*filter.Result, error) {
	f, err := filter.DetailFilterFunc(ctx, q.FilterID)
	if err != nil {
		return nil, err
	}
	return filter.ExpandFunc(ctx, f.Query, f.Entity, q.OrderBy, q.Page,
		filter.Extra{AssigneeIDs: q.AssigneeIDs, Unassigned: q.Unassigned, Statuses: q.Statuses})
}

func (m *RuntimeManager) QueryWorkflowRuntimesByEntity(ctx context.Context, entityID types.ID) ([]domain.WorkflowRuntimeData, error) {
	return m.repo.ListRuntimesByEntity(ctx, entityID)
}
