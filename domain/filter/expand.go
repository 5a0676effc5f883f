package filter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"backoffice/bizerror"
	"backoffice/jsondoc"
	"backoffice/persistence"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	DefaultOrderBy  = "createdAt:desc"
)

type Page struct {
	Number int `json:"number"`
	Size   int `json:"size"`
}

// Extra carries the list filters the backoffice adds on top of a stored filter.
type Extra struct {
	AssigneeIDs []types.ID
	// Unassigned also matches runtimes without assignee.
	Unassigned bool
	Statuses   []string
}

type Meta struct {
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

type Result struct {
	Data []map[string]interface{} `json:"data"`
	Meta Meta                     `json:"meta"`
}

type plan struct {
	compiler  *compiler
	where     string
	whereArgs []interface{}
}

func compile(caps *capabilities, doc jsondoc.Document) (*plan, error) {
	q, err := ParseQuery(doc)
	if err != nil {
		return nil, err
	}
	c := newCompiler(caps)
	if err := c.compileSelect(nil, q.Select); err != nil {
		return nil, err
	}
	if len(c.columns) == 0 {
		return nil, invalidQuery("select does not include any field")
	}
	p := &plan{compiler: c}
	if q.Where != nil {
		if p.where, p.whereArgs, err = c.compileWhere(nil, q.Where); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (c *compiler) orderBy(orderBy string) (string, string, error) {
	if orderBy == "" {
		orderBy = DefaultOrderBy
	}
	fieldName, direction := orderBy, "asc"
	if i := strings.Index(orderBy, ":"); i >= 0 {
		fieldName, direction = orderBy[:i], strings.ToLower(orderBy[i+1:])
	}
	if direction != "asc" && direction != "desc" {
		return "", "", bizerror.ErrInvalidOrderBy
	}
	sc, ok := c.caps.sortable[fieldName]
	if !ok {
		return "", "", bizerror.ErrInvalidOrderBy
	}
	alias, _, err := c.resolve(sc.path)
	if err != nil {
		return "", "", err
	}
	return alias + "." + sc.column + " " + strings.ToUpper(direction), strings.ToUpper(direction), nil
}

func normalizePage(page Page) (Page, error) {
	if page.Number == 0 {
		page.Number = 1
	}
	if page.Size == 0 {
		page.Size = DefaultPageSize
	}
	if page.Number < 1 {
		return page, &bizerror.ErrBadParam{Cause: fmt.Errorf("page number must be greater than 0")}
	}
	if page.Size < 1 || page.Size > MaxPageSize {
		return page, &bizerror.ErrBadParam{Cause: fmt.Errorf("page size must be between 1 and %d", MaxPageSize)}
	}
	return page, nil
}

// Expand runs a stored filter query and returns one page of nested rows shaped like the select tree.
func Expand(ctx context.Context, query jsondoc.Document, entity Entity, orderBy string, page Page, extra Extra) (*Result, error) {
	caps, ok := capabilitiesOf(entity)
	if !ok {
		return nil, &bizerror.ErrBadParam{Cause: errUnknownEntity}
	}
	page, err := normalizePage(page)
	if err != nil {
		return nil, err
	}
	p, err := compile(caps, query)
	if err != nil {
		return nil, err
	}
	order, direction, err := p.compiler.orderBy(orderBy)
	if err != nil {
		return nil, err
	}

	db := persistence.ActiveDataSourceManager.GormDB(ctx).Table(caps.root.table + " AS " + rootAlias)
	for _, join := range p.compiler.joins {
		db = db.Joins(join)
	}
	db = db.Where(rootAlias + "." + caps.scope + " IS NOT NULL")
	if p.where != "" {
		db = db.Where(p.where, p.whereArgs...)
	}
	if len(extra.AssigneeIDs) > 0 && extra.Unassigned {
		db = db.Where("("+rootAlias+".assignee_id IN (?) OR "+rootAlias+".assignee_id IS NULL)", idValues(extra.AssigneeIDs))
	} else if len(extra.AssigneeIDs) > 0 {
		db = db.Where(rootAlias+".assignee_id IN (?)", idValues(extra.AssigneeIDs))
	} else if extra.Unassigned {
		db = db.Where(rootAlias + ".assignee_id IS NULL")
	}
	if len(extra.Statuses) > 0 {
		db = db.Where(rootAlias+".status IN (?)", extra.Statuses)
	}

	total := 0
	if err := db.Count(&total).Error; err != nil {
		return nil, err
	}
	result := &Result{
		Data: []map[string]interface{}{},
		Meta: Meta{TotalItems: total, TotalPages: int(math.Ceil(float64(total) / float64(page.Size)))},
	}
	if total == 0 || (page.Number-1)*page.Size >= total {
		return result, nil
	}

	rows, err := db.Select(p.compiler.selectExpressions()).
		Order(order).Order(rootAlias + ".id " + direction).
		Offset((page.Number - 1) * page.Size).Limit(page.Size).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		row, err := p.compiler.scanRow(rows)
		if err != nil {
			return nil, err
		}
		result.Data = append(result.Data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func idValues(ids []types.ID) []interface{} {
	values := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		values = append(values, uint64(id))
	}
	return values
}

func (c *compiler) scanRow(rows *sql.Rows) (map[string]interface{}, error) {
	values := make([]interface{}, len(c.columns))
	pointers := make([]interface{}, len(c.columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	if err := rows.Scan(pointers...); err != nil {
		return nil, err
	}

	row := map[string]interface{}{}
	// relations keyed by path, a relation whose columns are all null is rendered as null
	relations := map[string]bool{}
	for i, col := range c.columns {
		node := row
		for _, name := range col.path {
			child, ok := node[name].(map[string]interface{})
			if !ok {
				child = map[string]interface{}{}
				node[name] = child
			}
			node = child
		}
		v := convertValue(col.field.kind, values[i])
		node[col.name] = v
		if len(col.path) > 0 {
			key := strings.Join(col.path, ".")
			relations[key] = relations[key] || v != nil
		}
	}
	for key, present := range relations {
		if present {
			continue
		}
		path := strings.Split(key, ".")
		node := row
		for _, name := range path[:len(path)-1] {
			next, ok := node[name].(map[string]interface{})
			if !ok {
				node = nil
				break
			}
			node = next
		}
		if node != nil {
			node[path[len(path)-1]] = nil
		}
	}
	return row, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func convertValue(kind fieldKind, v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil
	}
	switch kind {
	case kindID:
		switch id := v.(type) {
		case int64:
			return types.ID(id)
		case uint64:
			return types.ID(id)
		case string:
			if parsed, err := types.ParseID(id); err == nil {
				return parsed
			}
		}
	case kindNumber:
		if s, ok := v.(string); ok {
			if n, err := strconv.ParseFloat(s, 64); err == nil {
				return n
			}
		}
	case kindTime:
		if s, ok := v.(string); ok {
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t
				}
			}
		}
	case kindJSON:
		if s, ok := v.(string); ok {
			if s == "" {
				return nil
			}
			var parsed interface{}
			if err := json.Unmarshal([]byte(s), &parsed); err != nil {
				logrus.WithField("value", s).Warnf("filter column is not valid json: %v", err)
				return s
			}
			return parsed
		}
	}
	return v
}
