package db

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/ps"
	"github.com/nickyhof/SqlLikeMem/sql"
)

// eval computes an expression against one row scope. sc may be nil for
// expressions that reference no columns, such as VALUES rows.
func (ctx *execContext) eval(expr sql.Expr, sc *scope) (any, error) {
	switch e := expr.(type) {
	case nil:
		return nil, nil
	case sql.Literal:
		return e.Value, nil
	case sql.Param:
		return ctx.param(e)
	case sql.ColumnRef:
		if sc == nil {
			return nil, core.UnknownColumn(e.String())
		}
		return sc.lookup(e)
	case sql.StarExpr:
		return nil, fmt.Errorf("'%s' is only allowed in a projection or COUNT(*)", e.String())
	case sql.DefaultExpr:
		return nil, fmt.Errorf("DEFAULT is only allowed in VALUES and SET")
	case sql.BinaryExpr:
		return ctx.evalBinary(e, sc)
	case sql.UnaryExpr:
		return ctx.evalUnary(e, sc)
	case sql.IsNullExpr:
		value, err := ctx.eval(e.Operand, sc)
		if err != nil {
			return nil, err
		}
		return (value == nil) != e.Not, nil
	case sql.InExpr:
		return ctx.evalIn(e, sc)
	case sql.BetweenExpr:
		return ctx.evalBetween(e, sc)
	case sql.LikeExpr:
		return ctx.evalLike(e, sc)
	case sql.ExistsExpr:
		rel, err := ctx.child().executeQuery(e.Query, sc)
		if err != nil {
			return nil, err
		}
		return (len(rel.rows) > 0) != e.Not, nil
	case sql.SubqueryExpr:
		rel, err := ctx.child().executeQuery(e.Query, sc)
		if err != nil {
			return nil, err
		}
		if len(rel.rows) == 0 || len(rel.rows[0]) == 0 {
			return nil, nil
		}
		return rel.rows[0][0], nil
	case sql.FuncCall:
		if isAggregate(e.Name) {
			return ctx.evalAggregate(e, sc)
		}
		return ctx.callFunction(e, sc)
	case sql.CaseExpr:
		return ctx.evalCase(e, sc)
	case sql.CastExpr:
		value, err := ctx.eval(e.Operand, sc)
		if err != nil {
			return nil, err
		}
		return castValue(value, e.TypeName)
	case sql.WindowExpr:
		for current := sc; current != nil; current = current.outer {
			if value, ok := current.windows[e.String()]; ok {
				return value, nil
			}
		}
		return nil, fmt.Errorf("window function '%s' is only allowed in the select list", e.Func.Name)
	}
	return nil, fmt.Errorf("unsupported expression: %T", expr)
}

// evalCondition evaluates a predicate. Unknown counts as false.
func (ctx *execContext) evalCondition(expr sql.Expr, sc *scope) (bool, error) {
	if expr == nil {
		return true, nil
	}
	value, err := ctx.eval(expr, sc)
	if err != nil {
		return false, err
	}
	result, known := truth(value)
	return known && result, nil
}

func (ctx *execContext) evalBinary(e sql.BinaryExpr, sc *scope) (any, error) {
	switch e.Op {
	case core.OpAnd, core.OpOr:
		return ctx.evalLogical(e, sc)
	}

	left, err := ctx.eval(e.Left, sc)
	if err != nil {
		return nil, err
	}
	right, err := ctx.eval(e.Right, sc)
	if err != nil {
		return nil, err
	}
	dialect := ctx.dialect()

	switch e.Op {
	case core.OpNullSafeEq:
		if left == nil || right == nil {
			return left == nil && right == nil, nil
		}
		return compareValues(dialect, left, right) == 0, nil
	case core.OpEq, core.OpNeq, core.OpGreater, core.OpGreaterOrEqual, core.OpLess, core.OpLessOrEqual:
		if left == nil || right == nil {
			return nil, nil
		}
		cmp := compareValues(dialect, left, right)
		switch e.Op {
		case core.OpEq:
			return cmp == 0, nil
		case core.OpNeq:
			return cmp != 0, nil
		case core.OpGreater:
			return cmp > 0, nil
		case core.OpGreaterOrEqual:
			return cmp >= 0, nil
		case core.OpLess:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	case core.OpConcat:
		if left == nil || right == nil {
			return nil, nil
		}
		return ps.ToText(left) + ps.ToText(right), nil
	case core.OpJsonExtract, core.OpJsonExtractText:
		if left == nil || right == nil {
			return nil, nil
		}
		value, found, err := extractJSON(left, ps.ToText(right))
		if err != nil || !found {
			return nil, err
		}
		return jsonResult(value, e.Op == core.OpJsonExtractText)
	}
	return arithmetic(dialect, e.Op, left, right), nil
}

// evalLogical implements three-valued AND and OR with short circuit.
func (ctx *execContext) evalLogical(e sql.BinaryExpr, sc *scope) (any, error) {
	left, err := ctx.eval(e.Left, sc)
	if err != nil {
		return nil, err
	}
	l, lKnown := truth(left)
	if e.Op == core.OpAnd && lKnown && !l {
		return false, nil
	}
	if e.Op == core.OpOr && lKnown && l {
		return true, nil
	}

	right, err := ctx.eval(e.Right, sc)
	if err != nil {
		return nil, err
	}
	r, rKnown := truth(right)
	if e.Op == core.OpAnd {
		if rKnown && !r {
			return false, nil
		}
		if lKnown && rKnown {
			return true, nil
		}
		return nil, nil
	}
	if rKnown && r {
		return true, nil
	}
	if lKnown && rKnown {
		return false, nil
	}
	return nil, nil
}

func (ctx *execContext) evalUnary(e sql.UnaryExpr, sc *scope) (any, error) {
	value, err := ctx.eval(e.Operand, sc)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	if strings.EqualFold(e.Op, "NOT") {
		result, _ := truth(value)
		return !result, nil
	}
	switch number := toNumber(value).(type) {
	case int64:
		return -number, nil
	case float64:
		return -number, nil
	}
	return nil, nil
}

func (ctx *execContext) evalIn(e sql.InExpr, sc *scope) (any, error) {
	operand, err := ctx.eval(e.Operand, sc)
	if err != nil {
		return nil, err
	}

	var candidates []any
	if e.Subquery != nil {
		rel, err := ctx.child().executeQuery(e.Subquery, sc)
		if err != nil {
			return nil, err
		}
		if len(rel.columns) != 1 {
			return nil, fmt.Errorf("IN subquery must return exactly one column, got %d", len(rel.columns))
		}
		for _, row := range rel.rows {
			candidates = append(candidates, row[0])
		}
	} else {
		for _, item := range e.List {
			value, err := ctx.eval(item, sc)
			if err != nil {
				return nil, err
			}
			if items, ok := expandList(value); ok {
				candidates = append(candidates, items...)
				continue
			}
			candidates = append(candidates, value)
		}
	}

	if operand == nil {
		return nil, nil
	}
	sawNull := false
	for _, candidate := range candidates {
		if candidate == nil {
			sawNull = true
			continue
		}
		if compareValues(ctx.dialect(), operand, candidate) == 0 {
			return !e.Not, nil
		}
	}
	if sawNull {
		return nil, nil
	}
	return e.Not, nil
}

func (ctx *execContext) evalBetween(e sql.BetweenExpr, sc *scope) (any, error) {
	operand, err := ctx.eval(e.Operand, sc)
	if err != nil {
		return nil, err
	}
	low, err := ctx.eval(e.Low, sc)
	if err != nil {
		return nil, err
	}
	high, err := ctx.eval(e.High, sc)
	if err != nil {
		return nil, err
	}
	if operand == nil || low == nil || high == nil {
		return nil, nil
	}
	dialect := ctx.dialect()
	inside := compareValues(dialect, operand, low) >= 0 && compareValues(dialect, operand, high) <= 0
	return inside != e.Not, nil
}

func (ctx *execContext) evalLike(e sql.LikeExpr, sc *scope) (any, error) {
	operand, err := ctx.eval(e.Operand, sc)
	if err != nil {
		return nil, err
	}
	pattern, err := ctx.eval(e.Pattern, sc)
	if err != nil {
		return nil, err
	}
	if operand == nil || pattern == nil {
		return nil, nil
	}
	matched := matchLike(ps.ToText(operand), ps.ToText(pattern), ctx.dialect().LikeIsCaseInsensitive)
	return matched != e.Not, nil
}

func (ctx *execContext) evalCase(e sql.CaseExpr, sc *scope) (any, error) {
	var operand any
	if e.Operand != nil {
		value, err := ctx.eval(e.Operand, sc)
		if err != nil {
			return nil, err
		}
		operand = value
	}
	for _, when := range e.Whens {
		if e.Operand != nil {
			candidate, err := ctx.eval(when.Condition, sc)
			if err != nil {
				return nil, err
			}
			if operand == nil || candidate == nil || compareValues(ctx.dialect(), operand, candidate) != 0 {
				continue
			}
		} else {
			matched, err := ctx.evalCondition(when.Condition, sc)
			if err != nil {
				return nil, err
			}
			if !matched {
				continue
			}
		}
		return ctx.eval(when.Result, sc)
	}
	return ctx.eval(e.Else, sc)
}

func castValue(value any, typeName string) (any, error) {
	if value == nil {
		return nil, nil
	}
	var dbType core.DbType
	switch strings.ToUpper(typeName) {
	case "SIGNED", "UNSIGNED", "SIGNED INTEGER", "UNSIGNED INTEGER":
		dbType = core.BigIntType
	case "CHAR", "NCHAR", "VARCHAR", "NVARCHAR", "TEXT":
		return ps.ToText(value), nil
	default:
		parsed, ok := core.ParseDbType(typeName)
		if !ok {
			return nil, fmt.Errorf("unknown CAST type '%s'", typeName)
		}
		dbType = parsed
	}
	column := ps.ColumnDef{Name: "CAST", Type: dbType, Nullable: true}
	return column.Coerce(value)
}

// extractJSON walks a path such as $.a.b[0] or $."key" through a JSON document.
func extractJSON(document any, path string) (any, bool, error) {
	var root any
	switch doc := document.(type) {
	case string:
		decoder := json.NewDecoder(strings.NewReader(doc))
		decoder.UseNumber()
		if err := decoder.Decode(&root); err != nil {
			return nil, false, fmt.Errorf("invalid JSON document: %w", err)
		}
	case []byte:
		return extractJSON(string(doc), path)
	default:
		root = doc
	}

	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "$") {
		return nil, false, fmt.Errorf("invalid JSON path '%s'", path)
	}
	current := root
	rest := path[1:]
	for rest != "" {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			var key string
			if strings.HasPrefix(rest, `"`) {
				end := strings.Index(rest[1:], `"`)
				if end < 0 {
					return nil, false, fmt.Errorf("invalid JSON path '%s'", path)
				}
				key = rest[1 : end+1]
				rest = rest[end+2:]
			} else {
				end := strings.IndexAny(rest, ".[")
				if end < 0 {
					end = len(rest)
				}
				key = rest[:end]
				rest = rest[end:]
			}
			object, ok := current.(map[string]any)
			if !ok {
				return nil, false, nil
			}
			if current, ok = object[key]; !ok {
				return nil, false, nil
			}
		case '[':
			end := strings.Index(rest, "]")
			if end < 0 {
				return nil, false, fmt.Errorf("invalid JSON path '%s'", path)
			}
			position, ok := ps.ToInt(strings.TrimSpace(rest[1:end]))
			if !ok {
				return nil, false, fmt.Errorf("invalid JSON path '%s'", path)
			}
			rest = rest[end+1:]
			array, isArray := current.([]any)
			if !isArray || position < 0 || int(position) >= len(array) {
				return nil, false, nil
			}
			current = array[position]
		default:
			return nil, false, fmt.Errorf("invalid JSON path '%s'", path)
		}
	}
	return current, true, nil
}

// jsonScalar unquotes a JSON value: strings lose their quotes and numbers
// become int64 or float64. Objects and arrays stay as JSON text.
func jsonScalar(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string, bool:
		return v
	case json.Number:
		return normalizeValue(v)
	}
	text, err := marshalJSON(value)
	if err != nil {
		return nil
	}
	return text
}

// jsonResult converts an extracted JSON value to a column value. Numbers,
// booleans and null come back as scalars; strings stay JSON-quoted unless
// unquote is set; objects and arrays are JSON text.
func jsonResult(value any, unquote bool) (any, error) {
	switch value.(type) {
	case string:
		if unquote {
			return value, nil
		}
		return marshalJSON(value)
	case map[string]any, []any:
		return marshalJSON(value)
	}
	return jsonScalar(value), nil
}

func marshalJSON(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON value: %w", err)
	}
	return string(data), nil
}
