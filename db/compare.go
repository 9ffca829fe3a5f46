package db

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/ps"
)

func isNumber(value any) bool {
	switch value.(type) {
	case int64, float64, bool:
		return true
	}
	return false
}

func asFloat(value any) float64 {
	number, _ := ps.ToFloat(value)
	return number
}

// compareValues orders two non-NULL values under the dialect's rules.
func compareValues(dialect core.Dialect, a, b any) int {
	if isNumber(a) && isNumber(b) {
		return compareNumbers(a, b)
	}

	switch x := a.(type) {
	case string:
		switch y := b.(type) {
		case string:
			return dialect.CompareText(x, y)
		case time.Time:
			if when, ok := ps.ToTime(x); ok {
				return when.Compare(y)
			}
		default:
			if isNumber(b) && dialect.SupportsImplicitNumericStringComparison {
				if number, ok := ps.ToFloat(x); ok {
					return compareFloats(number, asFloat(b))
				}
			}
		}
	case time.Time:
		if when, ok := ps.ToTime(b); ok {
			return x.Compare(when)
		}
	case []byte:
		if y, ok := b.([]byte); ok {
			return bytes.Compare(x, y)
		}
	default:
		if _, ok := b.(string); ok && isNumber(a) {
			return -compareValues(dialect, b, a)
		}
		if _, ok := b.(time.Time); ok {
			return -compareValues(dialect, b, a)
		}
	}
	return dialect.CompareText(ps.ToText(a), ps.ToText(b))
}

func compareNumbers(a, b any) int {
	x, xInt := a.(int64)
	y, yInt := b.(int64)
	if xInt && yInt {
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
	return compareFloats(asFloat(a), asFloat(b))
}

func compareFloats(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// compareNullable orders values with NULL first.
func compareNullable(dialect core.Dialect, a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return compareValues(dialect, a, b)
}

// truth converts a value to a SQL boolean. NULL is unknown.
func truth(value any) (result bool, known bool) {
	if value == nil {
		return false, false
	}
	if flag, ok := ps.ToBool(value); ok {
		return flag, true
	}
	return false, true
}

// toNumber reads a value as int64 or float64. Text that is not a number counts as 0.
func toNumber(value any) any {
	switch v := value.(type) {
	case int64, float64:
		return v
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	case string:
		text := strings.TrimSpace(v)
		if number, err := strconv.ParseInt(text, 10, 64); err == nil {
			return number
		}
		if number, err := strconv.ParseFloat(text, 64); err == nil {
			return number
		}
		return int64(0)
	}
	if number, ok := ps.ToInt(value); ok {
		if f, isFloat := value.(float32); isFloat {
			return float64(f)
		}
		return number
	}
	return int64(0)
}

// arithmetic applies + - * / %. NULL in gives NULL out, and so does a zero divisor.
func arithmetic(dialect core.Dialect, op core.BinaryOperator, a, b any) any {
	if a == nil || b == nil {
		return nil
	}
	if op == core.OpAdd && dialect.Name == core.SQLServerName {
		x, xText := a.(string)
		y, yText := b.(string)
		if xText && yText {
			return x + y
		}
	}

	left, right := toNumber(a), toNumber(b)
	x, xInt := left.(int64)
	y, yInt := right.(int64)
	if xInt && yInt {
		switch op {
		case core.OpAdd:
			return x + y
		case core.OpSub:
			return x - y
		case core.OpMul:
			return x * y
		case core.OpMod:
			if y == 0 {
				return nil
			}
			return x % y
		case core.OpDiv:
			if y == 0 {
				return nil
			}
			if dialect.Name == core.MySQLName {
				return float64(x) / float64(y)
			}
			return x / y
		}
	}

	fx, fy := asFloat(left), asFloat(right)
	switch op {
	case core.OpAdd:
		return fx + fy
	case core.OpSub:
		return fx - fy
	case core.OpMul:
		return fx * fy
	case core.OpMod:
		if fy == 0 {
			return nil
		}
		return math.Mod(fx, fy)
	case core.OpDiv:
		if fy == 0 {
			return nil
		}
		return fx / fy
	}
	return nil
}

// matchLike matches text against a LIKE pattern where % is any run of
// characters and _ exactly one.
func matchLike(text, pattern string, caseInsensitive bool) bool {
	if caseInsensitive {
		text = strings.ToLower(text)
		pattern = strings.ToLower(pattern)
	}
	t := []rune(text)
	p := []rune(pattern)

	ti, pi := 0, 0
	star, mark := -1, 0
	for ti < len(t) {
		switch {
		case pi < len(p) && p[pi] == '%':
			star = pi
			mark = ti
			pi++
		case pi < len(p) && (p[pi] == '_' || p[pi] == t[ti]):
			ti++
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			ti = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '%' {
		pi++
	}
	return pi == len(p)
}

// valueKey identifies a value for DISTINCT, GROUP BY and UNION. Values that
// compare equal under the dialect share a key.
func valueKey(dialect core.Dialect, value any) string {
	switch v := value.(type) {
	case nil:
		return "n:"
	case int64:
		return "i:" + strconv.FormatInt(v, 10)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return "i:" + strconv.FormatInt(int64(v), 10)
		}
		return "f:" + strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		if v {
			return "i:1"
		}
		return "i:0"
	case time.Time:
		return "t:" + v.UTC().Format(time.RFC3339Nano)
	case []byte:
		return "b:" + string(v)
	case string:
		if dialect.CaseInsensitiveText {
			return "s:" + strings.ToLower(v)
		}
		return "s:" + v
	}
	return "s:" + ps.ToText(value)
}

func rowKey(dialect core.Dialect, values []any) string {
	var sb strings.Builder
	for _, value := range values {
		key := valueKey(dialect, value)
		sb.WriteString(strconv.Itoa(len(key)))
		sb.WriteString(key)
	}
	return sb.String()
}

// typeOfValue infers the column type of a computed output value.
func typeOfValue(value any) core.DbType {
	switch value.(type) {
	case int64:
		return core.BigIntType
	case float64:
		return core.DoubleType
	case bool:
		return core.BoolType
	case time.Time:
		return core.DateTimeType
	case []byte:
		return core.BinaryType
	}
	return core.StringType
}
