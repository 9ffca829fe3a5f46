package db

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/op"
	"github.com/nickyhof/SqlLikeMem/ps"
	"github.com/nickyhof/SqlLikeMem/sql"
)

// executeQuery runs a SELECT or UNION chain. outer is the row scope of the
// enclosing query and is nil at the top level.
func (ctx *execContext) executeQuery(query sql.QueryStatement, outer *scope) (*relation, error) {
	if ctx.depth > maxViewDepth {
		return nil, fmt.Errorf("query nesting exceeds %d levels", maxViewDepth)
	}
	switch q := query.(type) {
	case sql.SelectStatement:
		return ctx.executeSelect(q, outer)
	case sql.UnionStatement:
		return ctx.executeUnion(q, outer)
	}
	return nil, fmt.Errorf("unsupported query: %T", query)
}

// outputRow is a projected row together with the scope it was computed in,
// which ORDER BY evaluates against.
type outputRow struct {
	values []any
	sc     *scope
}

func (ctx *execContext) executeSelect(statement sql.SelectStatement, outer *scope) (*relation, error) {
	scoped, err := ctx.withCTEs(statement.With)
	if err != nil {
		return nil, err
	}

	source, err := scoped.buildSource(statement.From, statement.Joins, statement.Where, outer)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(statement.Where, source.columns, outer); err != nil {
		return nil, err
	}
	for _, item := range statement.Items {
		if _, star := item.Expr.(sql.StarExpr); star {
			continue
		}
		if err := checkColumns(item.Expr, source.columns, outer); err != nil {
			return nil, err
		}
	}

	var filtered [][]any
	for _, row := range source.rows {
		matched, err := scoped.evalCondition(statement.Where, newScope(source.columns, row, outer))
		if err != nil {
			return nil, err
		}
		if matched {
			filtered = append(filtered, row)
		}
	}

	var scopes []*scope
	if scoped.isGrouped(statement) {
		scopes, err = scoped.group(statement, source.columns, filtered, outer)
		if err != nil {
			return nil, err
		}
		if scopes, err = scoped.having(statement, source.columns, outer, scopes); err != nil {
			return nil, err
		}
	} else {
		scopes = make([]*scope, len(filtered))
		for i, row := range filtered {
			scopes[i] = newScope(source.columns, row, outer)
		}
	}

	if err := scoped.applyWindows(statement.Items, scopes); err != nil {
		return nil, err
	}

	columns, err := projectColumns(statement.Items, source.columns)
	if err != nil {
		return nil, err
	}
	if err := checkOrderBy(statement.OrderBy, source.columns, columns, outer); err != nil {
		return nil, err
	}
	rows := make([]outputRow, len(scopes))
	for i, sc := range scopes {
		values, err := scoped.project(statement.Items, columns, sc)
		if err != nil {
			return nil, err
		}
		rows[i] = outputRow{values: values, sc: sc}
	}
	inferTypes(columns, rows)

	if statement.Distinct {
		rows = distinctRows(scoped.dialect(), rows)
	}
	if len(statement.OrderBy) > 0 {
		if err := scoped.orderRows(statement.OrderBy, columns, rows); err != nil {
			return nil, err
		}
	}
	if rows, err = scoped.paginate(statement.Limit, rows); err != nil {
		return nil, err
	}

	result := &relation{columns: columns, rows: make([][]any, len(rows))}
	for i, row := range rows {
		result.rows[i] = row.values
	}
	ctx.stats.ops += len(source.rows)
	return result, nil
}

func (ctx *execContext) executeUnion(statement sql.UnionStatement, outer *scope) (*relation, error) {
	scoped, err := ctx.withCTEs(statement.With)
	if err != nil {
		return nil, err
	}

	var result *relation
	for i, part := range statement.Parts {
		rel, err := scoped.executeSelect(part, outer)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			result = &relation{columns: rel.columns, rows: append([][]any(nil), rel.rows...)}
			continue
		}
		if len(rel.columns) != len(result.columns) {
			return nil, core.UnionColumnCountMismatch()
		}
		result.rows = append(result.rows, rel.rows...)
		if i-1 < len(statement.All) && !statement.All[i-1] {
			result.rows = distinctValues(scoped.dialect(), result.rows)
		}
	}
	if result == nil {
		return &relation{}, nil
	}

	if err := checkOrderBy(statement.OrderBy, result.columns, result.columns, outer); err != nil {
		return nil, err
	}
	rows := make([]outputRow, len(result.rows))
	for i, values := range result.rows {
		rows[i] = outputRow{values: values, sc: newScope(result.columns, values, outer)}
	}
	if len(statement.OrderBy) > 0 {
		if err := scoped.orderRows(statement.OrderBy, result.columns, rows); err != nil {
			return nil, err
		}
	}
	if rows, err = scoped.paginate(statement.Limit, rows); err != nil {
		return nil, err
	}
	result.rows = make([][]any, len(rows))
	for i, row := range rows {
		result.rows[i] = row.values
	}
	return result, nil
}

// buildSource loads FROM and joins it with every JOIN clause. Without FROM
// the source is a single row with no columns.
func (ctx *execContext) buildSource(from *sql.TableSource, joins []sql.JoinClause, where sql.Expr, outer *scope) (*relation, error) {
	if from == nil {
		return &relation{rows: [][]any{{}}}, nil
	}
	rel, err := ctx.loadSource(*from, where, len(joins) == 0)
	if err != nil {
		return nil, err
	}
	for _, join := range joins {
		right, err := ctx.loadSource(join.Source, nil, false)
		if err != nil {
			return nil, err
		}
		if rel, err = ctx.join(rel, right, join, outer); err != nil {
			return nil, err
		}
	}
	return rel, nil
}

// loadSource resolves a FROM or JOIN source in the order derived query,
// CTE, view, temporary table, schema table.
func (ctx *execContext) loadSource(source sql.TableSource, where sql.Expr, single bool) (*relation, error) {
	label := source.Label()
	ctx.stats.inputTables++

	if source.Subquery != nil {
		rel, err := ctx.child().executeQuery(source.Subquery, nil)
		if err != nil {
			return nil, err
		}
		ctx.stats.rowsRead += int64(len(rel.rows))
		return rel.rebind(label, nil), nil
	}

	if source.Table.Schema == "" {
		if cte, ok := ctx.ctes[strings.ToLower(source.Table.Name)]; ok {
			ctx.stats.rowsRead += int64(len(cte.rows))
			return cte.rebind(label, nil), nil
		}
	}

	database := ctx.engine.database
	if schema, err := database.Schema(source.Table.Schema); err == nil {
		if view, ok := schema.View(source.Table.Name); ok {
			if ctx.depth >= maxViewDepth {
				return nil, fmt.Errorf("view '%s' nests deeper than %d levels", view.Name, maxViewDepth)
			}
			viewCtx := ctx.child()
			viewCtx.ctes = make(map[string]*relation)
			rel, err := viewCtx.executeQuery(view.Query, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to evaluate view '%s': %w", view.Name, err)
			}
			return rel.rebind(label, view.Columns), nil
		}
	}

	tableOp, err := op.GetTable(database, source.Table.Schema, source.Table.Name)
	if err != nil {
		return nil, err
	}
	return ctx.readTable(tableOp, label, where, single), nil
}

// readTable copies the rows of a table into a relation, seeking through an
// index when WHERE pins every key column of one.
func (ctx *execContext) readTable(tableOp *op.TableOp, label string, where sql.Expr, single bool) *relation {
	table := tableOp.Table
	tableColumns := table.Columns()
	columns := make([]boundColumn, 0, len(tableColumns)+1)
	for _, column := range tableColumns {
		columns = append(columns, boundColumn{Source: label, Name: column.Name, Type: column.Type, Nullable: column.Nullable})
	}
	tracked := ctx.track != "" && strings.EqualFold(ctx.track, label)
	if tracked {
		columns = append(columns, boundColumn{Source: label, Name: ordinalColumn, Type: core.BigIntType})
	}

	rows := tableOp.Scan()
	if index, values, ok := ctx.chooseIndex(table, label, where, single); ok {
		rows = tableOp.Seek(index, values...)
	}

	rel := &relation{columns: columns}
	for ordinal, row := range rows {
		values := make([]any, len(columns))
		for _, column := range tableColumns {
			values[column.Index] = row[column.Index]
		}
		if tracked {
			values[len(columns)-1] = int64(ordinal)
		}
		rel.rows = append(rel.rows, values)
	}
	ctx.stats.rowsRead += int64(len(rel.rows))
	return rel
}

// chooseIndex picks the index whose key columns are all bound by equality
// conjuncts of where, preferring the widest. Text keys are skipped when the
// dialect compares text case-insensitively, since index keys are exact.
func (ctx *execContext) chooseIndex(table *ps.Table, label string, where sql.Expr, single bool) (*ps.IndexDef, []any, bool) {
	if where == nil {
		return nil, nil, false
	}
	dialect := ctx.dialect()
	bound := make(map[string]any)
	for _, conjunct := range conjuncts(where) {
		binary, ok := conjunct.(sql.BinaryExpr)
		if !ok || binary.Op != core.OpEq {
			continue
		}
		ref, value, ok := ctx.equalityBinding(binary.Left, binary.Right)
		if !ok {
			ref, value, ok = ctx.equalityBinding(binary.Right, binary.Left)
		}
		if !ok {
			continue
		}
		if ref.Table == "" && !single {
			continue
		}
		if ref.Table != "" && !strings.EqualFold(ref.Table, label) {
			continue
		}
		bound[strings.ToLower(ref.Name)] = value
	}
	if len(bound) == 0 {
		return nil, nil, false
	}

	var best *ps.IndexDef
	var bestValues []any
	for _, index := range table.Indexes() {
		values := make([]any, 0, len(index.Columns))
		usable := true
		for _, name := range index.Columns {
			column, ok := table.Column(name)
			value, isBound := bound[strings.ToLower(name)]
			if !ok || !isBound || (dialect.CaseInsensitiveText && isTextType(column.Type)) {
				usable = false
				break
			}
			coerced, err := column.Coerce(value)
			if err != nil || coerced == nil || compareValues(dialect, coerced, value) != 0 {
				usable = false
				break
			}
			values = append(values, value)
		}
		if usable && (best == nil || len(index.Columns) > len(best.Columns)) {
			best = index
			bestValues = values
		}
	}
	return best, bestValues, best != nil
}

func (ctx *execContext) equalityBinding(left, right sql.Expr) (sql.ColumnRef, any, bool) {
	ref, ok := left.(sql.ColumnRef)
	if !ok {
		return sql.ColumnRef{}, nil, false
	}
	var value any
	switch e := right.(type) {
	case sql.Literal:
		value = e.Value
	case sql.Param:
		bound, err := ctx.param(e)
		if err != nil {
			return sql.ColumnRef{}, nil, false
		}
		value = bound
	default:
		return sql.ColumnRef{}, nil, false
	}
	if value == nil {
		return sql.ColumnRef{}, nil, false
	}
	if _, isList := expandList(value); isList {
		return sql.ColumnRef{}, nil, false
	}
	return ref, value, true
}

func isTextType(dbType core.DbType) bool {
	switch dbType {
	case core.StringType, core.EnumType, core.SetType, core.GuidType, core.JsonType:
		return true
	}
	return false
}

// join combines two relations with nested loops. ON is evaluated against
// the combined row.
func (ctx *execContext) join(left, right *relation, join sql.JoinClause, outer *scope) (*relation, error) {
	columns := make([]boundColumn, 0, len(left.columns)+len(right.columns))
	columns = append(columns, left.columns...)
	columns = append(columns, right.columns...)
	result := &relation{columns: columns}

	if join.Type != sql.CrossJoin {
		if err := checkColumns(join.On, columns, outer); err != nil {
			return nil, err
		}
	}

	combine := func(l, r []any) []any {
		row := make([]any, 0, len(columns))
		if l == nil {
			l = make([]any, len(left.columns))
		}
		if r == nil {
			r = make([]any, len(right.columns))
		}
		row = append(row, l...)
		return append(row, r...)
	}
	matches := func(row []any) (bool, error) {
		if join.Type == sql.CrossJoin || join.On == nil {
			return true, nil
		}
		return ctx.evalCondition(join.On, newScope(columns, row, outer))
	}

	if join.Type == sql.RightJoin {
		for _, r := range right.rows {
			matched := false
			for _, l := range left.rows {
				row := combine(l, r)
				ok, err := matches(row)
				if err != nil {
					return nil, err
				}
				if ok {
					matched = true
					result.rows = append(result.rows, row)
				}
			}
			if !matched {
				result.rows = append(result.rows, combine(nil, r))
			}
		}
		return result, nil
	}

	for _, l := range left.rows {
		matched := false
		for _, r := range right.rows {
			row := combine(l, r)
			ok, err := matches(row)
			if err != nil {
				return nil, err
			}
			if ok {
				matched = true
				result.rows = append(result.rows, row)
			}
		}
		if !matched && join.Type == sql.LeftJoin {
			result.rows = append(result.rows, combine(l, nil))
		}
	}
	return result, nil
}

func (ctx *execContext) isGrouped(statement sql.SelectStatement) bool {
	if len(statement.GroupBy) > 0 || statement.Having != nil {
		return true
	}
	for _, item := range statement.Items {
		if hasAggregate(item.Expr) {
			return true
		}
	}
	return false
}

// group partitions rows by the GROUP BY keys, keeping groups in first-seen
// order. Without GROUP BY every row, possibly none, forms one group.
func (ctx *execContext) group(statement sql.SelectStatement, columns []boundColumn, rows [][]any, outer *scope) ([]*scope, error) {
	keys := make([]sql.Expr, len(statement.GroupBy))
	for i, expr := range statement.GroupBy {
		resolved, err := resolveGroupExpr(expr, statement.Items, columns)
		if err != nil {
			return nil, err
		}
		if err := checkColumns(resolved, columns, outer); err != nil {
			return nil, err
		}
		keys[i] = resolved
	}

	if len(keys) == 0 {
		first := make([]any, len(columns))
		if len(rows) > 0 {
			first = rows[0]
		}
		return []*scope{{columns: columns, values: first, outer: outer, grouped: true, group: rows}}, nil
	}

	dialect := ctx.dialect()
	groups := make(map[string]*scope)
	var ordered []*scope
	for _, row := range rows {
		sc := newScope(columns, row, outer)
		values := make([]any, len(keys))
		for i, key := range keys {
			value, err := ctx.eval(key, sc)
			if err != nil {
				return nil, err
			}
			values[i] = value
		}
		groupKey := rowKey(dialect, values)
		existing, ok := groups[groupKey]
		if !ok {
			existing = &scope{columns: columns, values: row, outer: outer, grouped: true}
			groups[groupKey] = existing
			ordered = append(ordered, existing)
		}
		existing.group = append(existing.group, row)
	}
	return ordered, nil
}

// resolveGroupExpr maps a GROUP BY ordinal or SELECT alias to its expression.
func resolveGroupExpr(expr sql.Expr, items []sql.SelectItem, columns []boundColumn) (sql.Expr, error) {
	switch e := expr.(type) {
	case sql.Literal:
		position, ok := e.Value.(int64)
		if !ok {
			return expr, nil
		}
		if position <= 0 || position > int64(len(items)) {
			return nil, core.UnknownColumn(fmt.Sprint(position))
		}
		return items[position-1].Expr, nil
	case sql.ColumnRef:
		if e.Table != "" {
			return expr, nil
		}
		if _, ok := newScope(columns, nil, nil).find(e); ok {
			return expr, nil
		}
		for _, item := range items {
			if item.Alias != "" && strings.EqualFold(item.Alias, e.Name) {
				return item.Expr, nil
			}
		}
	}
	return expr, nil
}

// having computes SELECT aliases for each group, then filters groups by the
// HAVING predicate with ordinals resolved.
func (ctx *execContext) having(statement sql.SelectStatement, columns []boundColumn, outer *scope, scopes []*scope) ([]*scope, error) {
	if statement.Having == nil {
		return scopes, nil
	}
	predicate, err := resolveHaving(statement.Having, statement.Items)
	if err != nil {
		return nil, err
	}
	var aliases []string
	for _, item := range statement.Items {
		if item.Alias != "" {
			aliases = append(aliases, item.Alias)
		}
	}
	if err := checkColumns(predicate, columns, outer, aliases...); err != nil {
		return nil, havingError(err)
	}

	var kept []*scope
	for _, sc := range scopes {
		for _, item := range statement.Items {
			if item.Alias == "" || len(windowsOf(item.Expr)) > 0 {
				continue
			}
			value, err := ctx.eval(item.Expr, sc)
			if err != nil {
				return nil, err
			}
			sc.setAlias(item.Alias, value)
		}
		matched, err := ctx.evalCondition(predicate, sc)
		if err != nil {
			return nil, havingError(err)
		}
		if matched {
			kept = append(kept, sc)
		}
	}
	return kept, nil
}

// projectColumns lays out the output columns, expanding * and t.*.
func projectColumns(items []sql.SelectItem, source []boundColumn) ([]boundColumn, error) {
	sourceScope := newScope(source, nil, nil)
	var columns []boundColumn
	for _, item := range items {
		switch e := item.Expr.(type) {
		case sql.StarExpr:
			found := false
			for _, column := range source {
				if column.hidden() {
					continue
				}
				if e.Table != "" && !strings.EqualFold(e.Table, column.Source) {
					continue
				}
				found = true
				columns = append(columns, boundColumn{Source: column.Source, Name: column.Name, Type: column.Type, Nullable: column.Nullable})
			}
			if !found && e.Table != "" {
				return nil, core.UnknownTable(e.Table)
			}
		case sql.ColumnRef:
			column := boundColumn{Name: e.Name, Alias: item.Alias, Type: -1, Nullable: true}
			if i, ok := sourceScope.find(e); ok {
				column.Source = source[i].Source
				column.Name = source[i].Name
				column.Type = source[i].Type
				column.Nullable = source[i].Nullable
			}
			columns = append(columns, column)
		default:
			columns = append(columns, boundColumn{Name: item.Expr.String(), Alias: item.Alias, Type: -1, Nullable: true})
		}
	}
	return columns, nil
}

// project evaluates the select list for one scope and records each output
// value as an alias so ORDER BY can refer to it.
func (ctx *execContext) project(items []sql.SelectItem, columns []boundColumn, sc *scope) ([]any, error) {
	values := make([]any, 0, len(columns))
	for _, item := range items {
		if star, ok := item.Expr.(sql.StarExpr); ok {
			for i, column := range sc.columns {
				if column.hidden() {
					continue
				}
				if star.Table != "" && !strings.EqualFold(star.Table, column.Source) {
					continue
				}
				if i < len(sc.values) {
					values = append(values, sc.values[i])
				} else {
					values = append(values, nil)
				}
			}
			continue
		}
		value, err := ctx.eval(item.Expr, sc)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	for i, column := range columns {
		if i < len(values) && (column.Alias != "" || column.Source == "") {
			sc.setAlias(column.label(), values[i])
		}
	}
	return values, nil
}

// inferTypes fills in the type of computed columns from their first non-NULL value.
func inferTypes(columns []boundColumn, rows []outputRow) {
	for i := range columns {
		if columns[i].Type >= 0 {
			continue
		}
		columns[i].Type = core.StringType
		for _, row := range rows {
			if row.values[i] != nil {
				columns[i].Type = typeOfValue(row.values[i])
				break
			}
		}
	}
}

func distinctRows(dialect core.Dialect, rows []outputRow) []outputRow {
	seen := make(map[string]bool, len(rows))
	kept := rows[:0:0]
	for _, row := range rows {
		key := rowKey(dialect, row.values)
		if !seen[key] {
			seen[key] = true
			kept = append(kept, row)
		}
	}
	return kept
}

func distinctValues(dialect core.Dialect, rows [][]any) [][]any {
	seen := make(map[string]bool, len(rows))
	kept := make([][]any, 0, len(rows))
	for _, row := range rows {
		key := rowKey(dialect, row)
		if !seen[key] {
			seen[key] = true
			kept = append(kept, row)
		}
	}
	return kept
}

// checkOrderBy verifies ORDER BY references against the source columns and
// the output labels.
func checkOrderBy(items []sql.OrderItem, source, output []boundColumn, outer *scope) error {
	labels := make([]string, 0, len(output))
	for _, column := range output {
		labels = append(labels, column.label())
	}
	for _, item := range items {
		if ref, ok := item.Expr.(sql.ColumnRef); ok && ref.Table != "" {
			if slices.ContainsFunc(output, func(column boundColumn) bool {
				return strings.EqualFold(column.label(), ref.Name) && strings.EqualFold(column.Source, ref.Table)
			}) {
				continue
			}
		}
		if err := checkColumns(item.Expr, source, outer, labels...); err != nil {
			return err
		}
	}
	return nil
}

// orderRows sorts stably by the ORDER BY keys. A key is a 1-based ordinal,
// an output column label or an expression over the row scope.
func (ctx *execContext) orderRows(items []sql.OrderItem, columns []boundColumn, rows []outputRow) error {
	keys := make([][]any, len(rows))
	for i, row := range rows {
		keys[i] = make([]any, len(items))
		for j, item := range items {
			value, err := ctx.orderValue(item.Expr, columns, row)
			if err != nil {
				return err
			}
			keys[i][j] = value
		}
	}

	dialect := ctx.dialect()
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return compareOrder(dialect, items, keys[order[i]], keys[order[j]]) < 0
	})
	sorted := make([]outputRow, len(rows))
	for i, position := range order {
		sorted[i] = rows[position]
	}
	copy(rows, sorted)
	return nil
}

func (ctx *execContext) orderValue(expr sql.Expr, columns []boundColumn, row outputRow) (any, error) {
	switch e := expr.(type) {
	case sql.Literal:
		if position, ok := e.Value.(int64); ok {
			if position <= 0 || position > int64(len(columns)) {
				return nil, core.UnknownColumn(fmt.Sprint(position))
			}
			return row.values[position-1], nil
		}
	case sql.ColumnRef:
		if e.Table == "" {
			for i, column := range columns {
				if column.Alias != "" && strings.EqualFold(column.Alias, e.Name) {
					return row.values[i], nil
				}
			}
		}
		if _, ok, ambiguous := row.sc.match(e); !ok || ambiguous {
			for i, column := range columns {
				if strings.EqualFold(column.label(), e.Name) && (e.Table == "" || strings.EqualFold(e.Table, column.Source)) {
					return row.values[i], nil
				}
			}
		}
	}
	return ctx.eval(expr, row.sc)
}

// paginate applies OFFSET and then the row count.
func (ctx *execContext) paginate(limit *sql.LimitClause, rows []outputRow) ([]outputRow, error) {
	if limit == nil {
		return rows, nil
	}
	offset, err := ctx.limitValue(limit.Offset)
	if err != nil {
		return nil, err
	}
	if offset >= int64(len(rows)) {
		return nil, nil
	}
	rows = rows[offset:]
	if limit.Count != nil {
		count, err := ctx.limitValue(limit.Count)
		if err != nil {
			return nil, err
		}
		if count < int64(len(rows)) {
			rows = rows[:count]
		}
	}
	return rows, nil
}

func (ctx *execContext) limitValue(expr sql.Expr) (int64, error) {
	if expr == nil {
		return 0, nil
	}
	value, err := ctx.eval(expr, nil)
	if err != nil {
		return 0, err
	}
	number, ok := ps.ToInt(value)
	if !ok || number < 0 {
		return 0, fmt.Errorf("invalid row limit '%s'", ps.ToText(value))
	}
	return number, nil
}
