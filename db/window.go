package db

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/sql"
)

// applyWindows computes every window call of the select list for each row
// scope and stores the results in the scope's windows map.
func (ctx *execContext) applyWindows(items []sql.SelectItem, scopes []*scope) error {
	var windows []sql.WindowExpr
	seen := make(map[string]bool)
	for _, item := range items {
		for _, window := range windowsOf(item.Expr) {
			if key := window.String(); !seen[key] {
				seen[key] = true
				windows = append(windows, window)
			}
		}
	}
	if len(windows) == 0 {
		return nil
	}
	for _, sc := range scopes {
		if sc.windows == nil {
			sc.windows = make(map[string]any, len(windows))
		}
	}
	for _, window := range windows {
		if err := ctx.applyWindow(window, scopes); err != nil {
			return err
		}
	}
	return nil
}

type windowRow struct {
	position  int
	partition string
	order     []any
}

func (ctx *execContext) applyWindow(window sql.WindowExpr, scopes []*scope) error {
	dialect := ctx.dialect()
	rows := make([]windowRow, len(scopes))
	for i, sc := range scopes {
		partition := make([]any, len(window.PartitionBy))
		for j, expr := range window.PartitionBy {
			value, err := ctx.eval(expr, sc)
			if err != nil {
				return err
			}
			partition[j] = value
		}
		order := make([]any, len(window.OrderBy))
		for j, item := range window.OrderBy {
			value, err := ctx.eval(item.Expr, sc)
			if err != nil {
				return err
			}
			order[j] = value
		}
		rows[i] = windowRow{position: i, partition: rowKey(dialect, partition), order: order}
	}

	partitions := make(map[string][]windowRow)
	var partitionOrder []string
	for _, row := range rows {
		if _, ok := partitions[row.partition]; !ok {
			partitionOrder = append(partitionOrder, row.partition)
		}
		partitions[row.partition] = append(partitions[row.partition], row)
	}

	key := window.String()
	name := strings.ToUpper(window.Func.Name)
	for _, partitionKey := range partitionOrder {
		members := partitions[partitionKey]
		sort.SliceStable(members, func(i, j int) bool {
			return compareOrder(dialect, window.OrderBy, members[i].order, members[j].order) < 0
		})

		switch name {
		case "ROW_NUMBER", "RANK", "DENSE_RANK":
			rank, dense := int64(0), int64(0)
			for i, member := range members {
				if i == 0 || compareOrder(dialect, window.OrderBy, members[i-1].order, member.order) != 0 {
					rank = int64(i + 1)
					dense++
				}
				var value int64
				switch name {
				case "ROW_NUMBER":
					value = int64(i + 1)
				case "RANK":
					value = rank
				default:
					value = dense
				}
				scopes[member.position].windows[key] = value
			}
		default:
			if !isAggregate(name) {
				return fmt.Errorf("function '%s' cannot be used as a window function", window.Func.Name)
			}
			group := make([][]any, len(members))
			for i, member := range members {
				group[i] = scopes[member.position].values
			}
			first := scopes[members[0].position]
			partitionScope := &scope{columns: first.columns, values: first.values, outer: first.outer, grouped: true, group: group}
			value, err := ctx.evalAggregate(window.Func, partitionScope)
			if err != nil {
				return err
			}
			for _, member := range members {
				scopes[member.position].windows[key] = value
			}
		}
	}
	return nil
}

// compareOrder compares two ORDER BY key tuples. NULL sorts first ascending.
func compareOrder(dialect core.Dialect, items []sql.OrderItem, a, b []any) int {
	for i, item := range items {
		cmp := compareNullable(dialect, a[i], b[i])
		if item.Descending {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp
		}
	}
	return 0
}
