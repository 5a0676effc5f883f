package filter

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"backoffice/bizerror"
	"backoffice/jsondoc"

	"github.com/fundwit/go-commons/types"
)

// Query is a stored filter document: which fields to return and which runtimes to match.
type Query struct {
	Select map[string]interface{} `json:"select"`
	Where  map[string]interface{} `json:"where"`
}

func ParseQuery(doc jsondoc.Document) (*Query, error) {
	q := &Query{}
	sel, ok := doc["select"].(map[string]interface{})
	if !ok || len(sel) == 0 {
		return nil, invalidQuery("select must be a non-empty object")
	}
	q.Select = sel
	if w, found := doc["where"]; found && w != nil {
		where, ok := w.(map[string]interface{})
		if !ok {
			return nil, invalidQuery("where must be an object")
		}
		q.Where = where
	}
	for key := range doc {
		if key != "select" && key != "where" {
			return nil, invalidQuery("unknown query key '%s'", key)
		}
	}
	return q, nil
}

func invalidQuery(format string, args ...interface{}) error {
	return &bizerror.ErrInvalidFilterQuery{Cause: fmt.Errorf(format, args...)}
}

const rootAlias = "r"

type selectedColumn struct {
	path  []string
	name  string
	alias string
	field field
}

// compiler turns a query into joins, select expressions and a parameterised where clause.
// Every identifier written into SQL comes from the capability tables, user values are only bound.
type compiler struct {
	caps    *capabilities
	joins   []string
	aliases map[string]string
	columns []selectedColumn
}

func newCompiler(caps *capabilities) *compiler {
	return &compiler{caps: caps, aliases: map[string]string{"": rootAlias}}
}

// resolve walks a relation path from the root, joining every relation on the way.
func (c *compiler) resolve(path []string) (string, *schema, error) {
	alias := rootAlias
	s := c.caps.root
	for i, name := range path {
		rel, ok := s.relations[name]
		if !ok {
			return "", nil, invalidQuery("unknown relation '%s'", strings.Join(path[:i+1], "."))
		}
		key := strings.Join(path[:i+1], ".")
		childAlias, joined := c.aliases[key]
		if !joined {
			childAlias = fmt.Sprintf("j%d", len(c.joins))
			c.joins = append(c.joins, fmt.Sprintf("LEFT JOIN %s AS %s ON %s", rel.schema.table, childAlias, rel.join(alias, childAlias)))
			c.aliases[key] = childAlias
		}
		alias = childAlias
		s = rel.schema
	}
	return alias, s, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFieldNames(fields map[string]field) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *compiler) compileSelect(path []string, sel map[string]interface{}) error {
	alias, s, err := c.resolve(path)
	if err != nil {
		return err
	}
	for _, key := range sortedKeys(sel) {
		value := sel[key]
		if f, ok := s.fields[key]; ok {
			include, ok := value.(bool)
			if !ok {
				return invalidQuery("select.%s must be a boolean", qualified(path, key))
			}
			if include {
				c.addColumn(path, key, alias, f)
			}
			continue
		}
		rel, ok := s.relations[key]
		if !ok {
			return invalidQuery("field '%s' is not allowed in select", qualified(path, key))
		}
		childPath := append(append([]string{}, path...), key)
		switch v := value.(type) {
		case bool:
			if !v {
				continue
			}
			childAlias, _, err := c.resolve(childPath)
			if err != nil {
				return err
			}
			for _, name := range sortedFieldNames(rel.schema.fields) {
				c.addColumn(childPath, name, childAlias, rel.schema.fields[name])
			}
		case map[string]interface{}:
			nested, ok := v["select"].(map[string]interface{})
			if !ok || len(v) != 1 {
				return invalidQuery("select.%s must be true or {\"select\": {...}}", qualified(path, key))
			}
			if err := c.compileSelect(childPath, nested); err != nil {
				return err
			}
		default:
			return invalidQuery("select.%s must be true or {\"select\": {...}}", qualified(path, key))
		}
	}
	return nil
}

func (c *compiler) addColumn(path []string, name, alias string, f field) {
	c.columns = append(c.columns, selectedColumn{
		path:  path,
		name:  name,
		alias: fmt.Sprintf("c%d", len(c.columns)),
		field: field{column: alias + "." + f.column, kind: f.kind},
	})
}

func (c *compiler) selectExpressions() string {
	exprs := make([]string, 0, len(c.columns))
	for _, col := range c.columns {
		exprs = append(exprs, col.field.column+" AS "+col.alias)
	}
	return strings.Join(exprs, ", ")
}

func qualified(path []string, key string) string {
	return strings.Join(append(append([]string{}, path...), key), ".")
}

const matchNothing = "1 = 0"

// compileWhere renders a where object as one SQL boolean expression, "" when it has no condition.
func (c *compiler) compileWhere(path []string, where map[string]interface{}) (string, []interface{}, error) {
	alias, s, err := c.resolve(path)
	if err != nil {
		return "", nil, err
	}

	var parts []string
	var args []interface{}
	for _, key := range sortedKeys(where) {
		value := where[key]
		var (
			part     string
			partArgs []interface{}
			err      error
		)
		switch key {
		case "AND", "OR", "NOT":
			part, partArgs, err = c.compileGroup(path, value, key)
		default:
			if f, ok := s.fields[key]; ok {
				if !f.filterable() {
					return "", nil, invalidQuery("field '%s' can not be filtered", qualified(path, key))
				}
				part, partArgs, err = compileCondition(alias+"."+f.column, f.kind, value)
			} else if _, ok := s.relations[key]; ok {
				part, partArgs, err = c.compileRelation(append(append([]string{}, path...), key), value)
			} else {
				return "", nil, invalidQuery("field '%s' is not allowed in where", qualified(path, key))
			}
		}
		if err != nil {
			return "", nil, err
		}
		if part != "" {
			parts = append(parts, part)
			args = append(args, partArgs...)
		}
	}
	if len(parts) == 0 {
		return "", nil, nil
	}
	if len(parts) == 1 {
		return parts[0], args, nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", args, nil
}

// compileGroup renders a logical operator over one where object or a list of them.
// AND of nothing matches everything, OR of nothing matches nothing, NOT a list matches none of its items.
func (c *compiler) compileGroup(path []string, value interface{}, operator string) (string, []interface{}, error) {
	var items []map[string]interface{}
	switch v := value.(type) {
	case map[string]interface{}:
		items = append(items, v)
	case []interface{}:
		for _, e := range v {
			m, ok := e.(map[string]interface{})
			if !ok {
				return "", nil, invalidQuery("logical operators only accept where objects")
			}
			items = append(items, m)
		}
	default:
		return "", nil, invalidQuery("logical operators only accept where objects")
	}
	if operator == "OR" && len(items) == 0 {
		return matchNothing, nil, nil
	}

	var parts []string
	var args []interface{}
	matchAll := false
	for _, item := range items {
		part, partArgs, err := c.compileWhere(path, item)
		if err != nil {
			return "", nil, err
		}
		switch {
		case part == "" && operator == "OR":
			matchAll = true
			continue
		case part == "" && operator == "NOT":
			part = matchNothing
		case part == "":
			continue
		case operator == "NOT":
			part = "NOT (" + part + ")"
		}
		parts = append(parts, part)
		args = append(args, partArgs...)
	}
	if matchAll || len(parts) == 0 {
		return "", nil, nil
	}
	if operator == "NOT" && len(parts) == 1 {
		return parts[0], args, nil
	}
	separator := " AND "
	if operator == "OR" {
		separator = " OR "
	}
	return "(" + strings.Join(parts, separator) + ")", args, nil
}

func (c *compiler) compileRelation(path []string, value interface{}) (string, []interface{}, error) {
	m, ok := value.(map[string]interface{})
	if !ok {
		return "", nil, invalidQuery("where.%s must be an object", strings.Join(path, "."))
	}
	if is, found := m["is"]; found && len(m) == 1 {
		if is == nil {
			alias, _, err := c.resolve(path)
			if err != nil {
				return "", nil, err
			}
			return alias + ".id IS NULL", nil, nil
		}
		return c.compileRelation(path, is)
	}
	if isNot, found := m["isNot"]; found && len(m) == 1 {
		if isNot == nil {
			alias, _, err := c.resolve(path)
			if err != nil {
				return "", nil, err
			}
			return alias + ".id IS NOT NULL", nil, nil
		}
		part, args, err := c.compileRelation(path, isNot)
		if err != nil || part == "" {
			return part, args, err
		}
		return "NOT (" + part + ")", args, nil
	}
	return c.compileWhere(path, m)
}

var operators = map[string]bool{
	"equals": true, "not": true, "in": true, "notIn": true,
	"contains": true, "startsWith": true, "endsWith": true,
	"gt": true, "gte": true, "lt": true, "lte": true,
}

func compileCondition(column string, kind fieldKind, value interface{}) (string, []interface{}, error) {
	if value == nil {
		return column + " IS NULL", nil, nil
	}
	ops, ok := value.(map[string]interface{})
	if !ok {
		v, err := bindValue(kind, value)
		if err != nil {
			return "", nil, err
		}
		return column + " = ?", []interface{}{v}, nil
	}
	if len(ops) == 0 {
		return "", nil, invalidQuery("empty operator object on '%s'", column)
	}

	var parts []string
	var args []interface{}
	for _, op := range sortedKeys(ops) {
		if !operators[op] {
			return "", nil, invalidQuery("unsupported operator '%s'", op)
		}
		operand := ops[op]
		switch op {
		case "equals", "not":
			if operand == nil {
				parts = append(parts, column+map[string]string{"equals": " IS NULL", "not": " IS NOT NULL"}[op])
				continue
			}
			v, err := bindValue(kind, operand)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, column+map[string]string{"equals": " = ?", "not": " <> ?"}[op])
			args = append(args, v)
		case "in", "notIn":
			list, ok := operand.([]interface{})
			if !ok {
				return "", nil, invalidQuery("operator '%s' requires an array", op)
			}
			if len(list) == 0 {
				if op == "in" {
					parts = append(parts, matchNothing)
				}
				continue
			}
			values := make([]interface{}, 0, len(list))
			for _, e := range list {
				v, err := bindValue(kind, e)
				if err != nil {
					return "", nil, err
				}
				values = append(values, v)
			}
			parts = append(parts, column+map[string]string{"in": " IN (?)", "notIn": " NOT IN (?)"}[op])
			args = append(args, values)
		case "contains", "startsWith", "endsWith":
			s, ok := operand.(string)
			if !ok || kind != kindString {
				return "", nil, invalidQuery("operator '%s' requires a string field and a string value", op)
			}
			pattern := escapeLike(s)
			switch op {
			case "contains":
				pattern = "%" + pattern + "%"
			case "startsWith":
				pattern = pattern + "%"
			case "endsWith":
				pattern = "%" + pattern
			}
			parts = append(parts, column+" LIKE ? ESCAPE '!'")
			args = append(args, pattern)
		default:
			v, err := bindValue(kind, operand)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, column+map[string]string{"gt": " > ?", "gte": " >= ?", "lt": " < ?", "lte": " <= ?"}[op])
			args = append(args, v)
		}
	}
	if len(parts) == 0 {
		return "", nil, nil
	}
	if len(parts) == 1 {
		return parts[0], args, nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", args, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

var errNotScalar = errors.New("only scalar values can be compared")

func bindValue(kind fieldKind, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		switch kind {
		case kindID:
			id, err := types.ParseID(v)
			if err != nil {
				return nil, invalidQuery("invalid id '%s'", v)
			}
			return uint64(id), nil
		case kindTime:
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return nil, invalidQuery("invalid time '%s'", v)
			}
			return t, nil
		}
		return v, nil
	case float64:
		if kind == kindID {
			return uint64(v), nil
		}
		return v, nil
	case bool, int, int64, uint64:
		return v, nil
	case types.ID:
		return uint64(v), nil
	}
	return nil, &bizerror.ErrInvalidFilterQuery{Cause: errNotScalar}
}
