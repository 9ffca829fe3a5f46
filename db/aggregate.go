package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/ps"
	"github.com/nickyhof/SqlLikeMem/sql"
)

func isAggregate(name string) bool {
	switch strings.ToUpper(name) {
	case "COUNT", "SUM", "AVG", "MIN", "MAX", "GROUP_CONCAT", "STRING_AGG", "LISTAGG":
		return true
	}
	return false
}

// groupScope finds the nearest scope holding a group of rows.
func groupScope(sc *scope) *scope {
	for current := sc; current != nil; current = current.outer {
		if current.grouped {
			return current
		}
	}
	return nil
}

// evalAggregate computes an aggregate over the rows of the current group.
// NULL inputs are skipped.
func (ctx *execContext) evalAggregate(call sql.FuncCall, sc *scope) (any, error) {
	name := strings.ToUpper(call.Name)
	group := groupScope(sc)
	if group == nil {
		return nil, fmt.Errorf("invalid use of aggregate function %s", name)
	}

	if name == "COUNT" && len(call.Args) == 1 {
		if _, star := call.Args[0].(sql.StarExpr); star {
			return int64(len(group.group)), nil
		}
	}
	if len(call.Args) == 0 {
		return nil, fmt.Errorf("aggregate function %s requires an argument", name)
	}

	separator := ","
	valueArgs := call.Args
	switch name {
	case "GROUP_CONCAT":
		if len(call.Args) > 1 {
			valueArgs = call.Args[:len(call.Args)-1]
			sep, err := ctx.eval(call.Args[len(call.Args)-1], group)
			if err != nil {
				return nil, err
			}
			separator = ps.ToText(sep)
		}
	case "STRING_AGG", "LISTAGG":
		if len(call.Args) > 1 {
			valueArgs = call.Args[:1]
			sep, err := ctx.eval(call.Args[1], group)
			if err != nil {
				return nil, err
			}
			separator = ps.ToText(sep)
		}
	}

	dialect := ctx.dialect()
	seen := make(map[string]bool)
	var values []any
	for _, row := range group.group {
		rowScope := newScope(group.columns, row, group.outer)
		parts := make([]any, len(valueArgs))
		skip := false
		for i, arg := range valueArgs {
			value, err := ctx.eval(arg, rowScope)
			if err != nil {
				return nil, err
			}
			if value == nil {
				skip = true
				break
			}
			parts[i] = value
		}
		if skip {
			continue
		}
		value := parts[0]
		if len(parts) > 1 {
			var sb strings.Builder
			for _, part := range parts {
				sb.WriteString(ps.ToText(part))
			}
			value = sb.String()
		}
		if call.Distinct {
			key := valueKey(dialect, value)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		values = append(values, value)
	}

	switch name {
	case "COUNT":
		return int64(len(values)), nil
	case "SUM":
		return sumValues(values), nil
	case "AVG":
		if len(values) == 0 {
			return nil, nil
		}
		return asFloat(toNumber(sumValues(values))) / float64(len(values)), nil
	case "MIN", "MAX":
		var best any
		for _, value := range values {
			cmp := 0
			if best != nil {
				cmp = compareValues(dialect, value, best)
			}
			if best == nil || (name == "MIN" && cmp < 0) || (name == "MAX" && cmp > 0) {
				best = value
			}
		}
		return best, nil
	default:
		if len(values) == 0 {
			return nil, nil
		}
		texts := make([]string, len(values))
		for i, value := range values {
			texts[i] = ps.ToText(value)
		}
		return strings.Join(texts, separator), nil
	}
}

// sumValues adds numbers, staying in int64 while every input is an integer.
func sumValues(values []any) any {
	if len(values) == 0 {
		return nil
	}
	var total int64
	var fraction float64
	integral := true
	for _, value := range values {
		switch number := toNumber(value).(type) {
		case int64:
			total += number
		case float64:
			integral = false
			fraction += number
		}
	}
	if integral {
		return total
	}
	return float64(total) + fraction
}

// resolveHaving rewrites integer literals in ordinal position to the SELECT
// item they name. A literal is in ordinal position when it is the left
// operand of a comparison or the operand of BETWEEN, IN or LIKE.
func resolveHaving(expr sql.Expr, items []sql.SelectItem) (sql.Expr, error) {
	ordinal := func(operand sql.Expr) (sql.Expr, error) {
		literal, ok := operand.(sql.Literal)
		if !ok {
			return resolveHaving(operand, items)
		}
		position, isInt := literal.Value.(int64)
		if !isInt {
			return operand, nil
		}
		if position <= 0 || position > int64(len(items)) {
			return nil, core.NewRuntimeReferenceError(fmt.Sprint(position),
				"HAVING ordinal %d is out of range; SELECT has %d item(s)", position, len(items))
		}
		item := items[position-1].Expr
		if _, star := item.(sql.StarExpr); star {
			return nil, core.NewRuntimeReferenceError(fmt.Sprint(position),
				"HAVING ordinal %d refers to '*'", position)
		}
		return item, nil
	}

	var err error
	switch e := expr.(type) {
	case sql.BinaryExpr:
		if e.Op.IsComparison() {
			if e.Left, err = ordinal(e.Left); err != nil {
				return nil, err
			}
		} else if e.Left, err = resolveHaving(e.Left, items); err != nil {
			return nil, err
		}
		if e.Right, err = resolveHaving(e.Right, items); err != nil {
			return nil, err
		}
		return e, nil
	case sql.BetweenExpr:
		if e.Operand, err = ordinal(e.Operand); err != nil {
			return nil, err
		}
		return e, nil
	case sql.InExpr:
		if e.Operand, err = ordinal(e.Operand); err != nil {
			return nil, err
		}
		return e, nil
	case sql.LikeExpr:
		if e.Operand, err = ordinal(e.Operand); err != nil {
			return nil, err
		}
		return e, nil
	case sql.UnaryExpr:
		if e.Operand, err = resolveHaving(e.Operand, items); err != nil {
			return nil, err
		}
		return e, nil
	case sql.IsNullExpr:
		if e.Operand, err = resolveHaving(e.Operand, items); err != nil {
			return nil, err
		}
		return e, nil
	case sql.CaseExpr:
		if e.Operand != nil {
			if e.Operand, err = resolveHaving(e.Operand, items); err != nil {
				return nil, err
			}
		}
		whens := make([]sql.WhenClause, len(e.Whens))
		for i, when := range e.Whens {
			if when.Condition, err = resolveHaving(when.Condition, items); err != nil {
				return nil, err
			}
			if when.Result, err = resolveHaving(when.Result, items); err != nil {
				return nil, err
			}
			whens[i] = when
		}
		e.Whens = whens
		if e.Else != nil {
			if e.Else, err = resolveHaving(e.Else, items); err != nil {
				return nil, err
			}
		}
		return e, nil
	}
	return expr, nil
}

// havingError reports an unresolved column in HAVING as a reference error.
func havingError(err error) error {
	var schemaErr *core.SchemaError
	if errors.As(err, &schemaErr) && schemaErr.Num == core.ErrNumUnknownColumn {
		return core.NewRuntimeReferenceError(schemaErr.Object,
			"HAVING reference '%s' does not match a SELECT alias, grouped column or aggregate", schemaErr.Object)
	}
	return err
}
