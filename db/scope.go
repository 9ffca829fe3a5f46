package db

import (
	"slices"
	"strings"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/sql"
)

// ordinalColumn is the hidden column carrying the row ordinal of the table
// an UPDATE or DELETE targets.
const ordinalColumn = "\x00ordinal"

// maxViewDepth bounds view and CTE nesting.
const maxViewDepth = 32

type boundColumn struct {
	Source   string
	Name     string
	Alias    string
	Type     core.DbType
	Nullable bool
}

func (column boundColumn) label() string {
	if column.Alias != "" {
		return column.Alias
	}
	return column.Name
}

func (column boundColumn) hidden() bool {
	return column.Name == ordinalColumn
}

// relation is an intermediate row set. Rows are positional and follow columns.
type relation struct {
	columns []boundColumn
	rows    [][]any
}

// rebind returns the relation addressed under a new source label, with
// columns optionally renamed.
func (rel *relation) rebind(source string, names []string) *relation {
	columns := make([]boundColumn, len(rel.columns))
	for i, column := range rel.columns {
		name := column.label()
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		columns[i] = boundColumn{Source: source, Name: name, Type: column.Type, Nullable: column.Nullable}
	}
	return &relation{columns: columns, rows: rel.rows}
}

// scope is the evaluation environment of one row: its columns and values,
// the enclosing query row for correlated subqueries and, once grouped, the
// rows of the group.
type scope struct {
	columns []boundColumn
	values  []any
	outer   *scope

	grouped bool
	group   [][]any

	windows  map[string]any
	aliases  map[string]any
	excluded map[string]any
}

func newScope(columns []boundColumn, values []any, outer *scope) *scope {
	return &scope{columns: columns, values: values, outer: outer}
}

// find locates a column in this scope only.
func (sc *scope) find(ref sql.ColumnRef) (int, bool) {
	i, ok, _ := sc.match(ref)
	return i, ok
}

// match is find that also reports an unqualified name bound by columns of
// two different sources.
func (sc *scope) match(ref sql.ColumnRef) (int, bool, bool) {
	found := -1
	for i, column := range sc.columns {
		if column.hidden() {
			continue
		}
		if ref.Table != "" && !strings.EqualFold(ref.Table, column.Source) {
			continue
		}
		if !strings.EqualFold(ref.Name, column.label()) {
			continue
		}
		if found < 0 {
			found = i
			if ref.Table != "" {
				break
			}
			continue
		}
		if !strings.EqualFold(sc.columns[found].Source, column.Source) {
			return found, true, true
		}
	}
	return found, found >= 0, false
}

// resolve finds the scope and position binding ref, walking outward. A
// negative position means ref names a SELECT alias.
func (sc *scope) resolve(ref sql.ColumnRef) (*scope, int, error) {
	for current := sc; current != nil; current = current.outer {
		i, ok, ambiguous := current.match(ref)
		if ambiguous {
			return nil, 0, core.AmbiguousColumn(ref.Name)
		}
		if ok {
			return current, i, nil
		}
		if ref.Table == "" && current.aliases != nil {
			if _, ok := current.aliases[strings.ToLower(ref.Name)]; ok {
				return current, -1, nil
			}
		}
	}
	return nil, 0, core.UnknownColumn(ref.String())
}

func (sc *scope) lookup(ref sql.ColumnRef) (any, error) {
	owner, i, err := sc.resolve(ref)
	if err != nil {
		return nil, err
	}
	if i < 0 {
		return owner.aliases[strings.ToLower(ref.Name)], nil
	}
	if i < len(owner.values) {
		return owner.values[i], nil
	}
	return nil, nil
}

// checkColumns fails on the first column reference in expr that binds
// neither to columns, to an outer scope nor to one of names. It lets
// unknown columns surface before any row is read.
func checkColumns(expr sql.Expr, columns []boundColumn, outer *scope, names ...string) error {
	if expr == nil {
		return nil
	}
	sc := newScope(columns, nil, outer)
	var err error
	walkExpr(expr, func(node sql.Expr) bool {
		if err != nil {
			return false
		}
		ref, ok := node.(sql.ColumnRef)
		if !ok {
			return true
		}
		if ref.Table == "" && slices.ContainsFunc(names, func(name string) bool {
			return strings.EqualFold(name, ref.Name)
		}) {
			return false
		}
		_, _, err = sc.resolve(ref)
		return false
	})
	return err
}

func (sc *scope) setAlias(name string, value any) {
	if sc.aliases == nil {
		sc.aliases = make(map[string]any)
	}
	sc.aliases[strings.ToLower(name)] = value
}

// walkExpr visits expr and its children depth first. Subquery bodies are
// not entered. Returning false from visit skips the children of a node.
func walkExpr(expr sql.Expr, visit func(sql.Expr) bool) {
	if expr == nil || !visit(expr) {
		return
	}
	switch e := expr.(type) {
	case sql.BinaryExpr:
		walkExpr(e.Left, visit)
		walkExpr(e.Right, visit)
	case sql.UnaryExpr:
		walkExpr(e.Operand, visit)
	case sql.IsNullExpr:
		walkExpr(e.Operand, visit)
	case sql.InExpr:
		walkExpr(e.Operand, visit)
		for _, item := range e.List {
			walkExpr(item, visit)
		}
	case sql.BetweenExpr:
		walkExpr(e.Operand, visit)
		walkExpr(e.Low, visit)
		walkExpr(e.High, visit)
	case sql.LikeExpr:
		walkExpr(e.Operand, visit)
		walkExpr(e.Pattern, visit)
	case sql.FuncCall:
		for _, arg := range e.Args {
			walkExpr(arg, visit)
		}
	case sql.CaseExpr:
		walkExpr(e.Operand, visit)
		for _, when := range e.Whens {
			walkExpr(when.Condition, visit)
			walkExpr(when.Result, visit)
		}
		walkExpr(e.Else, visit)
	case sql.CastExpr:
		walkExpr(e.Operand, visit)
	case sql.WindowExpr:
		for _, arg := range e.Func.Args {
			walkExpr(arg, visit)
		}
		for _, partition := range e.PartitionBy {
			walkExpr(partition, visit)
		}
		for _, item := range e.OrderBy {
			walkExpr(item.Expr, visit)
		}
	}
}

// hasAggregate reports whether expr calls an aggregate outside a window.
func hasAggregate(expr sql.Expr) bool {
	found := false
	walkExpr(expr, func(node sql.Expr) bool {
		switch e := node.(type) {
		case sql.WindowExpr:
			return false
		case sql.FuncCall:
			if isAggregate(e.Name) {
				found = true
				return false
			}
		}
		return !found
	})
	return found
}

func windowsOf(expr sql.Expr) []sql.WindowExpr {
	var windows []sql.WindowExpr
	walkExpr(expr, func(node sql.Expr) bool {
		if window, ok := node.(sql.WindowExpr); ok {
			windows = append(windows, window)
			return false
		}
		return true
	})
	return windows
}

// conjuncts splits an expression on its top-level ANDs.
func conjuncts(expr sql.Expr) []sql.Expr {
	if expr == nil {
		return nil
	}
	if binary, ok := expr.(sql.BinaryExpr); ok && binary.Op == core.OpAnd {
		return append(conjuncts(binary.Left), conjuncts(binary.Right)...)
	}
	return []sql.Expr{expr}
}
