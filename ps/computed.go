package ps

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/sql"
)

// computedFunctions are the helpers generated column programs call. SQL
// operators are mapped onto them so NULL propagates the way SQL expects.
var computedFunctions = []expr.Option{
	expr.Function("ADD", numericOp(func(a, b float64) float64 { return a + b })),
	expr.Function("SUB", numericOp(func(a, b float64) float64 { return a - b })),
	expr.Function("MUL", numericOp(func(a, b float64) float64 { return a * b })),
	expr.Function("DIV", func(params ...any) (any, error) {
		if params[0] == nil || params[1] == nil {
			return nil, nil
		}
		a, okA := ToFloat(params[0])
		b, okB := ToFloat(params[1])
		if !okA || !okB || b == 0 {
			return nil, nil
		}
		return a / b, nil
	}),
	expr.Function("MOD", numericOp(math.Mod)),
	expr.Function("NEG", func(params ...any) (any, error) {
		if params[0] == nil {
			return nil, nil
		}
		if isIntegral(params[0]) {
			number, _ := ToInt(params[0])
			return -number, nil
		}
		number, ok := ToFloat(params[0])
		if !ok {
			return nil, fmt.Errorf("cannot negate %v", params[0])
		}
		return -number, nil
	}),
	expr.Function("CONCAT", func(params ...any) (any, error) {
		var sb strings.Builder
		for _, param := range params {
			if param == nil {
				return nil, nil
			}
			sb.WriteString(ToText(param))
		}
		return sb.String(), nil
	}),
	expr.Function("CMP", func(params ...any) (any, error) {
		if params[0] == nil || params[1] == nil {
			return nil, nil
		}
		op, _ := params[2].(string)
		cmp := compareComputed(params[0], params[1])
		switch op {
		case "=":
			return cmp == 0, nil
		case "<>":
			return cmp != 0, nil
		case "<":
			return cmp < 0, nil
		case "<=":
			return cmp <= 0, nil
		case ">":
			return cmp > 0, nil
		case ">=":
			return cmp >= 0, nil
		}
		return nil, fmt.Errorf("unsupported comparison %s", op)
	}),
	expr.Function("TRUTHY", func(params ...any) (any, error) {
		flag, _ := ToBool(params[0])
		return params[0] != nil && flag, nil
	}),
	expr.Function("UPPER", stringOp(strings.ToUpper)),
	expr.Function("LOWER", stringOp(strings.ToLower)),
	expr.Function("TRIM", stringOp(strings.TrimSpace)),
	expr.Function("LENGTH", func(params ...any) (any, error) {
		if params[0] == nil {
			return nil, nil
		}
		return int64(len([]rune(ToText(params[0])))), nil
	}),
	expr.Function("COALESCE", func(params ...any) (any, error) {
		for _, param := range params {
			if param != nil {
				return param, nil
			}
		}
		return nil, nil
	}),
	expr.Function("ABS", func(params ...any) (any, error) {
		if params[0] == nil {
			return nil, nil
		}
		if number, ok := params[0].(int64); ok {
			if number < 0 {
				return -number, nil
			}
			return number, nil
		}
		number, _ := ToFloat(params[0])
		return math.Abs(number), nil
	}),
	expr.Function("ROUND", func(params ...any) (any, error) {
		if params[0] == nil {
			return nil, nil
		}
		number, _ := ToFloat(params[0])
		places := int64(0)
		if len(params) > 1 {
			places, _ = ToInt(params[1])
		}
		scale := math.Pow(10, float64(places))
		return math.Round(number*scale) / scale, nil
	}),
}

func numericOp(fn func(a, b float64) float64) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		if params[0] == nil || params[1] == nil {
			return nil, nil
		}
		a, okA := ToFloat(params[0])
		b, okB := ToFloat(params[1])
		if !okA || !okB {
			return nil, fmt.Errorf("non-numeric operand in %v, %v", params[0], params[1])
		}
		result := fn(a, b)
		if isIntegral(params[0]) && isIntegral(params[1]) && result == math.Trunc(result) {
			return int64(result), nil
		}
		return result, nil
	}
}

func isIntegral(value any) bool {
	switch value.(type) {
	case int, int64:
		return true
	}
	return false
}

func stringOp(fn func(string) string) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		if params[0] == nil {
			return nil, nil
		}
		return fn(ToText(params[0])), nil
	}
}

func compareComputed(a, b any) int {
	x, okA := ToFloat(a)
	y, okB := ToFloat(b)
	if okA && okB {
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
	return strings.Compare(strings.ToLower(ToText(a)), strings.ToLower(ToText(b)))
}

// compileComputed parses the generated column expression and compiles it to
// an expr program. Column references become variables named c{ordinal}.
func (table *Table) compileComputed(column *ColumnDef) error {
	parsed, err := sql.ParseExpression(column.Computed, table.dialect())
	if err != nil {
		return fmt.Errorf("failed to parse computed column '%s': %w", column.Name, err)
	}

	translator := computedTranslator{table: table}
	source, err := translator.translate(parsed)
	if err != nil {
		return fmt.Errorf("failed to translate computed column '%s': %w", column.Name, err)
	}

	env := make(map[string]any, len(table.columnOrder))
	for _, other := range table.columnOrder {
		env[variableName(other.Index)] = nil
	}
	options := append([]expr.Option{expr.Env(env), expr.AllowUndefinedVariables()}, computedFunctions...)
	program, err := expr.Compile(source, options...)
	if err != nil {
		return fmt.Errorf("failed to compile computed column '%s': %w", column.Name, err)
	}

	column.program = program
	column.refs = translator.refs
	return nil
}

// evaluateComputed runs the column program against row.
func (table *Table) evaluateComputed(column *ColumnDef, row Row) (any, error) {
	env := make(map[string]any, len(column.refs))
	for _, ordinal := range column.refs {
		env[variableName(ordinal)] = row[ordinal]
	}
	value, err := expr.Run(column.program, env)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate computed column '%s': %w", column.Name, err)
	}
	switch v := value.(type) {
	case int:
		value = int64(v)
	case float64:
		if column.Type == core.IntType || column.Type == core.BigIntType {
			value = int64(math.Round(v))
		}
	}
	return column.Coerce(value)
}

func variableName(ordinal int) string {
	return "c" + strconv.Itoa(ordinal)
}

type computedTranslator struct {
	table *Table
	refs  []int
}

func (translator *computedTranslator) translate(node sql.Expr) (string, error) {
	switch e := node.(type) {
	case sql.Literal:
		switch v := e.Value.(type) {
		case nil:
			return "nil", nil
		case string:
			return strconv.Quote(v), nil
		case bool:
			return strconv.FormatBool(v), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		}
		return "", fmt.Errorf("unsupported literal %v", e.Value)

	case sql.ColumnRef:
		column, ok := translator.table.Column(e.Name)
		if !ok {
			return "", core.UnknownColumn(e.Name)
		}
		translator.refs = append(translator.refs, column.Index)
		return variableName(column.Index), nil

	case sql.UnaryExpr:
		operand, err := translator.translate(e.Operand)
		if err != nil {
			return "", err
		}
		if e.Op == "NOT" {
			return "!TRUTHY(" + operand + ")", nil
		}
		return "NEG(" + operand + ")", nil

	case sql.BinaryExpr:
		left, err := translator.translate(e.Left)
		if err != nil {
			return "", err
		}
		right, err := translator.translate(e.Right)
		if err != nil {
			return "", err
		}
		switch e.Op {
		case core.OpAdd:
			return "ADD(" + left + ", " + right + ")", nil
		case core.OpSub:
			return "SUB(" + left + ", " + right + ")", nil
		case core.OpMul:
			return "MUL(" + left + ", " + right + ")", nil
		case core.OpDiv:
			return "DIV(" + left + ", " + right + ")", nil
		case core.OpMod:
			return "MOD(" + left + ", " + right + ")", nil
		case core.OpConcat:
			return "CONCAT(" + left + ", " + right + ")", nil
		case core.OpAnd:
			return "(TRUTHY(" + left + ") && TRUTHY(" + right + "))", nil
		case core.OpOr:
			return "(TRUTHY(" + left + ") || TRUTHY(" + right + "))", nil
		}
		if e.Op.IsComparison() && e.Op != core.OpNullSafeEq {
			return "CMP(" + left + ", " + right + ", " + strconv.Quote(e.Op.String()) + ")", nil
		}
		return "", fmt.Errorf("operator %s is not allowed in a computed column", e.Op)

	case sql.IsNullExpr:
		operand, err := translator.translate(e.Operand)
		if err != nil {
			return "", err
		}
		if e.Not {
			return "(" + operand + " != nil)", nil
		}
		return "(" + operand + " == nil)", nil

	case sql.CaseExpr:
		return translator.translateCase(e)

	case sql.FuncCall:
		args := make([]string, len(e.Args))
		for i, arg := range e.Args {
			translated, err := translator.translate(arg)
			if err != nil {
				return "", err
			}
			args[i] = translated
		}
		name := e.Name
		switch name {
		case "IFNULL", "ISNULL", "NVL":
			name = "COALESCE"
		case "LEN", "CHAR_LENGTH":
			name = "LENGTH"
		case "IF", "IIF":
			if len(args) != 3 {
				return "", fmt.Errorf("%s requires 3 arguments", name)
			}
			return "(TRUTHY(" + args[0] + ") ? " + args[1] + " : " + args[2] + ")", nil
		case "UPPER", "LOWER", "TRIM", "LENGTH", "COALESCE", "CONCAT", "ABS", "ROUND":
		default:
			return "", fmt.Errorf("function %s is not allowed in a computed column", name)
		}
		return name + "(" + strings.Join(args, ", ") + ")", nil
	}
	return "", fmt.Errorf("expression %s is not allowed in a computed column", node.String())
}

func (translator *computedTranslator) translateCase(e sql.CaseExpr) (string, error) {
	result := "nil"
	if e.Else != nil {
		translated, err := translator.translate(e.Else)
		if err != nil {
			return "", err
		}
		result = translated
	}
	var operand string
	if e.Operand != nil {
		translated, err := translator.translate(e.Operand)
		if err != nil {
			return "", err
		}
		operand = translated
	}
	for i := len(e.Whens) - 1; i >= 0; i-- {
		condition, err := translator.translate(e.Whens[i].Condition)
		if err != nil {
			return "", err
		}
		value, err := translator.translate(e.Whens[i].Result)
		if err != nil {
			return "", err
		}
		if operand != "" {
			condition = "CMP(" + operand + ", " + condition + ", \"=\")"
		}
		result = "(TRUTHY(" + condition + ") ? " + value + " : " + result + ")"
	}
	return result, nil
}
