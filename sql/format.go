package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nickyhof/SqlLikeMem/core"
)

// String renders expressions back to SQL-like text. The output is used for
// result column names and plan output, so it is stable but not dialect-quoted.

func (e Literal) String() string {
	switch v := e.Value.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func (e ColumnRef) String() string {
	if e.Table != "" {
		return e.Table + "." + e.Name
	}
	return e.Name
}

func (e StarExpr) String() string {
	if e.Table != "" {
		return e.Table + ".*"
	}
	return "*"
}

func (e Param) String() string {
	if e.Name == "" {
		return "?"
	}
	return "@" + e.Name
}

func (e BinaryExpr) String() string {
	return "(" + e.Left.String() + " " + e.Op.String() + " " + e.Right.String() + ")"
}

func (e UnaryExpr) String() string {
	if e.Op == "NOT" {
		return "NOT " + e.Operand.String()
	}
	return e.Op + e.Operand.String()
}

func (e IsNullExpr) String() string {
	if e.Not {
		return e.Operand.String() + " IS NOT NULL"
	}
	return e.Operand.String() + " IS NULL"
}

func (e InExpr) String() string {
	var sb strings.Builder
	sb.WriteString(e.Operand.String())
	if e.Not {
		sb.WriteString(" NOT")
	}
	sb.WriteString(" IN (")
	if e.Subquery != nil {
		sb.WriteString("subquery")
	} else {
		sb.WriteString(joinExprs(e.List))
	}
	sb.WriteString(")")
	return sb.String()
}

func (e BetweenExpr) String() string {
	not := ""
	if e.Not {
		not = "NOT "
	}
	return e.Operand.String() + " " + not + "BETWEEN " + e.Low.String() + " AND " + e.High.String()
}

func (e LikeExpr) String() string {
	if e.Not {
		return e.Operand.String() + " NOT LIKE " + e.Pattern.String()
	}
	return e.Operand.String() + " LIKE " + e.Pattern.String()
}

func (e ExistsExpr) String() string {
	if e.Not {
		return "NOT EXISTS (subquery)"
	}
	return "EXISTS (subquery)"
}

func (e SubqueryExpr) String() string {
	return "(subquery)"
}

func (e FuncCall) String() string {
	var sb strings.Builder
	sb.WriteString(e.Name)
	sb.WriteString("(")
	if e.Distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(joinExprs(e.Args))
	sb.WriteString(")")
	return sb.String()
}

func (e CaseExpr) String() string {
	var sb strings.Builder
	sb.WriteString("CASE")
	if e.Operand != nil {
		sb.WriteString(" " + e.Operand.String())
	}
	for _, when := range e.Whens {
		sb.WriteString(" WHEN " + when.Condition.String() + " THEN " + when.Result.String())
	}
	if e.Else != nil {
		sb.WriteString(" ELSE " + e.Else.String())
	}
	sb.WriteString(" END")
	return sb.String()
}

func (e WindowExpr) String() string {
	var parts []string
	if len(e.PartitionBy) > 0 {
		parts = append(parts, "PARTITION BY "+joinExprs(e.PartitionBy))
	}
	if len(e.OrderBy) > 0 {
		parts = append(parts, "ORDER BY "+FormatOrderBy(e.OrderBy))
	}
	return e.Func.String() + " OVER (" + strings.Join(parts, " ") + ")"
}

func (e CastExpr) String() string {
	return "CAST(" + e.Operand.String() + " AS " + e.TypeName + ")"
}

func (e DefaultExpr) String() string {
	return "DEFAULT"
}

// FormatOrderBy renders an ORDER BY list without the keyword.
func FormatOrderBy(items []OrderItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.Expr.String()
		if item.Descending {
			parts[i] += " DESC"
		}
	}
	return strings.Join(parts, ", ")
}

// FormatLimit renders a row limit in the syntax it was written in.
func FormatLimit(limit *LimitClause) string {
	if limit == nil {
		return ""
	}
	switch limit.Syntax {
	case LimitSyntaxTop:
		return "TOP " + limit.Count.String()
	case LimitSyntaxFetch:
		var parts []string
		if limit.Offset != nil {
			parts = append(parts, "OFFSET "+limit.Offset.String()+" ROWS")
		}
		if limit.Count != nil {
			parts = append(parts, "FETCH NEXT "+limit.Count.String()+" ROWS ONLY")
		}
		return strings.Join(parts, " ")
	default:
		text := "LIMIT " + limit.Count.String()
		if limit.Offset != nil {
			text += " OFFSET " + limit.Offset.String()
		}
		return text
	}
}

// SourceName describes a table source for display.
func SourceName(source TableSource) string {
	name := source.Table.String()
	if source.Subquery != nil {
		name = "(subquery)"
	}
	if source.Alias != "" {
		return name + " " + source.Alias
	}
	return name
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, expr := range exprs {
		parts[i] = expr.String()
	}
	return strings.Join(parts, ", ")
}

// ParseExpression parses a standalone expression such as a computed column body.
func ParseExpression(text string, dialect core.Dialect) (Expr, error) {
	parser, err := NewParser(text, dialect)
	if err != nil {
		return nil, err
	}
	expr, err := parser.parseExpr()
	if err != nil {
		return nil, err
	}
	if parser.peek().Type != EOF {
		return nil, parser.errorf("unexpected input after expression")
	}
	return expr, nil
}
