package db

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/ps"
	"github.com/nickyhof/SqlLikeMem/sql"
)

type scalarFunction func(ctx *execContext, args []any) (any, error)

var scalarFunctions map[string]scalarFunction

func init() {
	scalarFunctions = map[string]scalarFunction{
		"UPPER":       nullIn(func(args []any) any { return strings.ToUpper(ps.ToText(args[0])) }),
		"UCASE":       nullIn(func(args []any) any { return strings.ToUpper(ps.ToText(args[0])) }),
		"LOWER":       nullIn(func(args []any) any { return strings.ToLower(ps.ToText(args[0])) }),
		"LCASE":       nullIn(func(args []any) any { return strings.ToLower(ps.ToText(args[0])) }),
		"LENGTH":      nullIn(func(args []any) any { return int64(len(ps.ToText(args[0]))) }),
		"CHAR_LENGTH": nullIn(func(args []any) any { return int64(utf8.RuneCountInString(ps.ToText(args[0]))) }),
		"LEN": nullIn(func(args []any) any {
			return int64(utf8.RuneCountInString(strings.TrimRight(ps.ToText(args[0]), " ")))
		}),
		"TRIM":      nullIn(func(args []any) any { return strings.TrimSpace(ps.ToText(args[0])) }),
		"LTRIM":     nullIn(func(args []any) any { return strings.TrimLeft(ps.ToText(args[0]), " \t\r\n") }),
		"RTRIM":     nullIn(func(args []any) any { return strings.TrimRight(ps.ToText(args[0]), " \t\r\n") }),
		"REPLACE":   nullIn(replaceText),
		"LEFT":      nullIn(leftText),
		"RIGHT":     nullIn(rightText),
		"SUBSTRING": nullIn(substring),
		"SUBSTR":    nullIn(substring),
		"CONCAT":    concat,
		"CONCAT_WS": concatWS,

		"COALESCE": coalesce,
		"NULLIF":   nullIf,
		"IF":       ifThen,
		"IIF":      ifThen,

		"ABS":     nullIn(absolute),
		"ROUND":   nullIn(round),
		"FLOOR":   nullIn(func(args []any) any { return roundWith(args[0], math.Floor) }),
		"CEILING": nullIn(func(args []any) any { return roundWith(args[0], math.Ceil) }),
		"CEIL":    nullIn(func(args []any) any { return roundWith(args[0], math.Ceil) }),
		"MOD": func(ctx *execContext, args []any) (any, error) {
			return arithmetic(ctx.dialect(), core.OpMod, args[0], args[1]), nil
		},
		"GREATEST": extreme(1),
		"LEAST":    extreme(-1),

		"NOW":               now,
		"GETDATE":           now,
		"SYSDATE":           now,
		"SYSDATETIME":       now,
		"CURRENT_TIMESTAMP": now,
		"CURRENT_DATE":      today,
		"CURDATE":           today,
		"YEAR":              datePart(func(t time.Time) int64 { return int64(t.Year()) }),
		"MONTH":             datePart(func(t time.Time) int64 { return int64(t.Month()) }),
		"DAY":               datePart(func(t time.Time) int64 { return int64(t.Day()) }),

		"JSON_EXTRACT": jsonExtract(false),
		"JSON_VALUE":   jsonExtract(true),

		"UUID":  newGuid,
		"NEWID": newGuid,

		"CURRENT_USER": currentUser,
		"USER":         currentUser,
		"SYSTEM_USER":  currentUser,
	}
}

// arity bounds the argument count of each function; max -1 means no upper bound.
var arity = map[string][2]int{
	"UPPER": {1, 1}, "UCASE": {1, 1}, "LOWER": {1, 1}, "LCASE": {1, 1},
	"LENGTH": {1, 1}, "CHAR_LENGTH": {1, 1}, "LEN": {1, 1},
	"TRIM": {1, 1}, "LTRIM": {1, 1}, "RTRIM": {1, 1},
	"REPLACE": {3, 3}, "LEFT": {2, 2}, "RIGHT": {2, 2},
	"SUBSTRING": {2, 3}, "SUBSTR": {2, 3},
	"CONCAT": {1, -1}, "CONCAT_WS": {2, -1},
	"COALESCE": {1, -1}, "NULLIF": {2, 2}, "IF": {3, 3}, "IIF": {3, 3},
	"ABS": {1, 1}, "ROUND": {1, 2}, "FLOOR": {1, 1}, "CEILING": {1, 1}, "CEIL": {1, 1},
	"MOD": {2, 2}, "GREATEST": {1, -1}, "LEAST": {1, -1},
	"YEAR": {1, 1}, "MONTH": {1, 1}, "DAY": {1, 1},
	"JSON_EXTRACT": {2, 2}, "JSON_VALUE": {2, 2},
}

// callFunction evaluates a scalar function call.
func (ctx *execContext) callFunction(call sql.FuncCall, sc *scope) (any, error) {
	name := strings.ToUpper(call.Name)
	dialect := ctx.dialect()

	switch name {
	case "VALUES":
		return ctx.insertedValue(call, sc)
	case "IFNULL", "ISNULL", "NVL", "VALUE":
		if name == "ISNULL" && len(call.Args) == 1 {
			value, err := ctx.eval(call.Args[0], sc)
			if err != nil {
				return nil, err
			}
			return value == nil, nil
		}
		if !dialect.IsNullSubstitute(name) {
			return nil, core.NewUnsupportedFeatureError(name, dialect)
		}
		if len(call.Args) != 2 {
			return nil, fmt.Errorf("function %s expects 2 arguments, got %d", name, len(call.Args))
		}
		name = "COALESCE"
	}

	function, ok := scalarFunctions[name]
	if !ok {
		return nil, fmt.Errorf("unknown function '%s'", call.Name)
	}
	if bounds, ok := arity[name]; ok {
		if len(call.Args) < bounds[0] || (bounds[1] >= 0 && len(call.Args) > bounds[1]) {
			return nil, fmt.Errorf("incorrect parameter count in the call to function '%s'", call.Name)
		}
	}

	args := make([]any, len(call.Args))
	for i, arg := range call.Args {
		value, err := ctx.eval(arg, sc)
		if err != nil {
			return nil, err
		}
		args[i] = value
	}
	return function(ctx, args)
}

// insertedValue resolves VALUES(col) inside ON DUPLICATE KEY UPDATE.
func (ctx *execContext) insertedValue(call sql.FuncCall, sc *scope) (any, error) {
	if len(call.Args) != 1 {
		return nil, fmt.Errorf("VALUES() expects one column")
	}
	ref, ok := call.Args[0].(sql.ColumnRef)
	if !ok {
		return nil, fmt.Errorf("VALUES() expects a column name")
	}
	for current := sc; current != nil; current = current.outer {
		if current.excluded == nil {
			continue
		}
		if value, ok := current.excluded[strings.ToLower(ref.Name)]; ok {
			return value, nil
		}
		return nil, core.UnknownColumn(ref.Name)
	}
	return nil, fmt.Errorf("VALUES() is only allowed in ON DUPLICATE KEY UPDATE")
}

// nullIn wraps a function that returns NULL whenever an argument is NULL.
func nullIn(fn func(args []any) any) scalarFunction {
	return func(ctx *execContext, args []any) (any, error) {
		for _, arg := range args {
			if arg == nil {
				return nil, nil
			}
		}
		return fn(args), nil
	}
}

func replaceText(args []any) any {
	return strings.ReplaceAll(ps.ToText(args[0]), ps.ToText(args[1]), ps.ToText(args[2]))
}

func leftText(args []any) any {
	runes := []rune(ps.ToText(args[0]))
	n, _ := ps.ToInt(args[1])
	n = max(0, min(n, int64(len(runes))))
	return string(runes[:n])
}

func rightText(args []any) any {
	runes := []rune(ps.ToText(args[0]))
	n, _ := ps.ToInt(args[1])
	n = max(0, min(n, int64(len(runes))))
	return string(runes[int64(len(runes))-n:])
}

// substring is 1-based. A negative start counts from the end.
func substring(args []any) any {
	runes := []rune(ps.ToText(args[0]))
	start, _ := ps.ToInt(args[1])
	length := int64(len(runes))
	switch {
	case start < 0:
		start = length + start
	case start > 0:
		start--
	}
	start = max(0, min(start, length))
	end := length
	if len(args) > 2 {
		count, _ := ps.ToInt(args[2])
		end = max(start, min(start+count, length))
	}
	return string(runes[start:end])
}

// concat joins its arguments. SQL Server treats NULL as empty text; the
// other dialects return NULL as soon as one argument is NULL.
func concat(ctx *execContext, args []any) (any, error) {
	var sb strings.Builder
	for _, arg := range args {
		if arg == nil {
			if ctx.dialect().Name == core.SQLServerName {
				continue
			}
			return nil, nil
		}
		sb.WriteString(ps.ToText(arg))
	}
	return sb.String(), nil
}

func concatWS(ctx *execContext, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	var parts []string
	for _, arg := range args[1:] {
		if arg != nil {
			parts = append(parts, ps.ToText(arg))
		}
	}
	return strings.Join(parts, ps.ToText(args[0])), nil
}

func coalesce(ctx *execContext, args []any) (any, error) {
	for _, arg := range args {
		if arg != nil {
			return arg, nil
		}
	}
	return nil, nil
}

func nullIf(ctx *execContext, args []any) (any, error) {
	if args[0] != nil && args[1] != nil && compareValues(ctx.dialect(), args[0], args[1]) == 0 {
		return nil, nil
	}
	return args[0], nil
}

func ifThen(ctx *execContext, args []any) (any, error) {
	if result, known := truth(args[0]); known && result {
		return args[1], nil
	}
	return args[2], nil
}

func absolute(args []any) any {
	switch number := toNumber(args[0]).(type) {
	case int64:
		if number < 0 {
			return -number
		}
		return number
	case float64:
		return math.Abs(number)
	}
	return nil
}

func round(args []any) any {
	places := int64(0)
	if len(args) > 1 {
		places, _ = ps.ToInt(args[1])
	}
	switch number := toNumber(args[0]).(type) {
	case int64:
		return number
	case float64:
		scale := math.Pow(10, float64(places))
		return math.Round(number*scale) / scale
	}
	return nil
}

func roundWith(value any, fn func(float64) float64) any {
	switch number := toNumber(value).(type) {
	case int64:
		return number
	case float64:
		return int64(fn(number))
	}
	return nil
}

func extreme(direction int) scalarFunction {
	return func(ctx *execContext, args []any) (any, error) {
		var best any
		for _, arg := range args {
			if arg == nil {
				return nil, nil
			}
			if best == nil || compareValues(ctx.dialect(), arg, best)*direction > 0 {
				best = arg
			}
		}
		return best, nil
	}
}

func now(ctx *execContext, args []any) (any, error) {
	return ctx.now, nil
}

func today(ctx *execContext, args []any) (any, error) {
	return time.Date(ctx.now.Year(), ctx.now.Month(), ctx.now.Day(), 0, 0, 0, 0, ctx.now.Location()), nil
}

func datePart(part func(time.Time) int64) scalarFunction {
	return func(ctx *execContext, args []any) (any, error) {
		if args[0] == nil {
			return nil, nil
		}
		when, ok := ps.ToTime(args[0])
		if !ok {
			return nil, nil
		}
		return part(when), nil
	}
}

func jsonExtract(unquote bool) scalarFunction {
	return func(ctx *execContext, args []any) (any, error) {
		if args[0] == nil || args[1] == nil {
			return nil, nil
		}
		value, found, err := extractJSON(args[0], ps.ToText(args[1]))
		if err != nil || !found {
			return nil, err
		}
		return jsonResult(value, unquote)
	}
}

func newGuid(ctx *execContext, args []any) (any, error) {
	return uuid.NewString(), nil
}

func currentUser(ctx *execContext, args []any) (any, error) {
	return ctx.engine.Identity().String(), nil
}
