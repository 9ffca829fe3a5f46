package plan

import (
	"fmt"
	"strings"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/sql"
)

const (
	confidenceEquality = 80
	confidenceRange    = 70
	confidenceOrderBy  = 60
)

// recommendIndexes suggests one index for a single-table SELECT whose filter
// and sort columns are not already the leading columns of an index.
func recommendIndexes(statement sql.QueryStatement, metrics Metrics, catalog Catalog) []IndexRecommendation {
	s, ok := statement.(sql.SelectStatement)
	if !ok || catalog == nil || s.From == nil || s.From.Subquery != nil || len(s.Joins) > 0 {
		return nil
	}
	if metrics.EstimatedRowsRead < minRowsForWarning {
		return nil
	}
	indexes, ok := catalog(s.From.Table)
	if !ok {
		return nil
	}

	label := s.From.Label()
	var columns []string
	seen := make(map[string]bool)
	add := func(ref sql.ColumnRef) {
		if ref.Table != "" && !strings.EqualFold(ref.Table, label) {
			return
		}
		key := strings.ToLower(ref.Name)
		if !seen[key] {
			seen[key] = true
			columns = append(columns, ref.Name)
		}
	}

	equality, ranged := false, false
	for _, predicate := range conjuncts(s.Where) {
		ref, isEquality, ok := filterColumn(predicate)
		if !ok {
			continue
		}
		if isEquality {
			equality = true
		} else {
			ranged = true
		}
		add(ref)
	}
	for _, item := range s.OrderBy {
		if ref, ok := item.Expr.(sql.ColumnRef); ok {
			add(ref)
		}
	}
	if len(columns) == 0 {
		return nil
	}

	for _, index := range indexes {
		if hasPrefix(index, columns) {
			return nil
		}
	}

	confidence := confidenceOrderBy
	reason := fmt.Sprintf("ORDER BY on %s is not backed by an index.", strings.Join(columns, ", "))
	switch {
	case equality:
		confidence = confidenceEquality
		reason = fmt.Sprintf("Equality filter on %s is not backed by an index.", strings.Join(columns, ", "))
	case ranged:
		confidence = confidenceRange
		reason = fmt.Sprintf("Range filter on %s is not backed by an index.", strings.Join(columns, ", "))
	}

	table := s.From.Table.Name
	return []IndexRecommendation{{
		Table:   table,
		Columns: columns,
		SuggestedIndex: fmt.Sprintf("CREATE INDEX IX_%s_%s ON %s (%s);",
			table, strings.Join(columns, "_"), table, strings.Join(columns, ", ")),
		Reason:                  reason,
		Confidence:              confidence,
		EstimatedRowsReadBefore: metrics.EstimatedRowsRead,
		EstimatedRowsReadAfter:  int64(max(metrics.ActualRows, 1)),
	}}
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

// filterColumn finds the column a predicate filters on.
func filterColumn(predicate sql.Expr) (sql.ColumnRef, bool, bool) {
	switch e := predicate.(type) {
	case sql.BinaryExpr:
		if !e.Op.IsComparison() || e.Op == core.OpNeq {
			return sql.ColumnRef{}, false, false
		}
		equality := e.Op == core.OpEq || e.Op == core.OpNullSafeEq
		if ref, ok := e.Left.(sql.ColumnRef); ok && !isColumn(e.Right) {
			return ref, equality, true
		}
		if ref, ok := e.Right.(sql.ColumnRef); ok && !isColumn(e.Left) {
			return ref, equality, true
		}
	case sql.BetweenExpr:
		if ref, ok := e.Operand.(sql.ColumnRef); ok && !e.Not {
			return ref, false, true
		}
	case sql.InExpr:
		if ref, ok := e.Operand.(sql.ColumnRef); ok && !e.Not {
			return ref, true, true
		}
	}
	return sql.ColumnRef{}, false, false
}

func isColumn(expr sql.Expr) bool {
	_, ok := expr.(sql.ColumnRef)
	return ok
}

// hasPrefix reports whether columns are the leading key columns of index.
func hasPrefix(index []string, columns []string) bool {
	if len(columns) > len(index) {
		return false
	}
	for i, column := range columns {
		if !strings.EqualFold(index[i], column) {
			return false
		}
	}
	return true
}
