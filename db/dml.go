package db

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/op"
	"github.com/nickyhof/SqlLikeMem/ps"
	"github.com/nickyhof/SqlLikeMem/sql"
)

// insertRow is one candidate row of an INSERT. Columns set to DEFAULT are
// absent from values; explicit NULLs are listed in nulls.
type insertRow struct {
	values ps.Row
	nulls  []int
}

func (engine *Engine) executeInsertStatement(ctx *execContext, statement sql.InsertStatement) (CommitResult, error) {
	startTime := time.Now()

	tableOp, err := op.GetTable(engine.database, statement.Table.Schema, statement.Table.Name)
	if err != nil {
		return CommitResult{}, err
	}
	table := tableOp.Table

	targets, err := insertTargets(table, statement.Columns)
	if err != nil {
		return CommitResult{}, err
	}

	var rows []insertRow
	if statement.Select != nil {
		rel, err := ctx.executeQuery(statement.Select, nil)
		if err != nil {
			return CommitResult{}, err
		}
		if len(rel.columns) != len(targets) {
			return CommitResult{}, core.ColumnCountMismatch(1)
		}
		for _, values := range rel.rows {
			row := insertRow{values: make(ps.Row, len(targets))}
			for i, column := range targets {
				row.values[column.Index] = values[i]
				if values[i] == nil {
					row.nulls = append(row.nulls, column.Index)
				}
			}
			rows = append(rows, row)
		}
	} else {
		for i, exprs := range statement.Rows {
			if len(exprs) != len(targets) {
				return CommitResult{}, core.ColumnCountMismatch(i + 1)
			}
			row := insertRow{values: make(ps.Row, len(targets))}
			for j, expr := range exprs {
				if _, isDefault := expr.(sql.DefaultExpr); isDefault {
					continue
				}
				value, err := ctx.eval(expr, nil)
				if err != nil {
					return CommitResult{}, err
				}
				row.values[targets[j].Index] = value
				if value == nil {
					row.nulls = append(row.nulls, targets[j].Index)
				}
			}
			rows = append(rows, row)
		}
	}

	for _, row := range rows {
		for _, ordinal := range row.nulls {
			column := table.Columns()[ordinal]
			if !column.Nullable && !column.Identity {
				return CommitResult{}, core.ColumnCannotBeNull(column.Name)
			}
		}
	}

	atomic := len(rows) > 1 || statement.Select != nil || len(statement.OnDuplicate) > 0
	if atomic {
		table.Backup()
		defer table.ClearBackup()
	}

	result := CommitResult{}
	for _, row := range rows {
		written, affected, lastId, err := engine.insertOne(ctx, table, row, statement.OnDuplicate)
		if err != nil {
			if atomic {
				if restoreErr := table.Restore(); restoreErr != nil {
					return CommitResult{}, fmt.Errorf("failed to restore table '%s': %w", table.Name, restoreErr)
				}
			}
			return CommitResult{}, err
		}
		result.RecordsWritten += written
		result.RowsAffected += affected
		if lastId != 0 {
			result.LastInsertId = lastId
		}
	}

	result.ExecutionTimeSec = time.Since(startTime).Seconds()
	result.ExecutionOps = len(rows)
	return result, nil
}

// insertTargets returns the columns an INSERT writes: the listed ones, or
// every stored column in table order.
func insertTargets(table *ps.Table, names []string) ([]*ps.ColumnDef, error) {
	if len(names) == 0 {
		var targets []*ps.ColumnDef
		for _, column := range table.Columns() {
			if !column.IsComputed() {
				targets = append(targets, column)
			}
		}
		return targets, nil
	}
	targets := make([]*ps.ColumnDef, len(names))
	for i, name := range names {
		column, ok := table.Column(name)
		if !ok {
			return nil, core.UnknownColumn(name)
		}
		if column.IsComputed() {
			return nil, fmt.Errorf("the value specified for generated column '%s' in table '%s' is not allowed", column.Name, table.Name)
		}
		targets[i] = column
	}
	return targets, nil
}

// insertOne writes a single row, or applies ON DUPLICATE KEY UPDATE to the
// row it collides with.
func (engine *Engine) insertOne(ctx *execContext, table *ps.Table, row insertRow, onDuplicate []sql.Assignment) (written, affected int, lastId int64, err error) {
	if len(onDuplicate) > 0 {
		candidate := make(ps.Row, len(row.values))
		for ordinal, value := range row.values {
			coerced, err := table.Columns()[ordinal].Coerce(value)
			if err != nil {
				return 0, 0, 0, err
			}
			candidate[ordinal] = coerced
		}
		if conflict, ok := table.FindConflict(candidate, -1); ok {
			if err := ctx.applyDuplicateUpdate(table, conflict.Ordinal, candidate, onDuplicate); err != nil {
				return 0, 0, 0, err
			}
			return 1, 2, 0, nil
		}
	}

	ordinal, err := table.Add(row.values)
	if err != nil {
		return 0, 0, 0, err
	}

	stored, _ := table.Row(ordinal)
	for _, column := range table.Columns() {
		if column.Identity {
			if value, ok := ps.ToInt(stored[column.Index]); ok {
				lastId = value
			}
		}
	}
	return 1, 1, lastId, nil
}

// applyDuplicateUpdate evaluates the ON DUPLICATE KEY UPDATE assignments
// against the existing row. VALUES(col) reads the rejected candidate.
func (ctx *execContext) applyDuplicateUpdate(table *ps.Table, ordinal int, candidate ps.Row, assignments []sql.Assignment) error {
	existing, ok := table.Row(ordinal)
	if !ok {
		return fmt.Errorf("row %d out of range for table '%s'", ordinal, table.Name)
	}
	columns := make([]boundColumn, 0, len(table.Columns()))
	values := make([]any, 0, len(table.Columns()))
	excluded := make(map[string]any, len(table.Columns()))
	for _, column := range table.Columns() {
		columns = append(columns, boundColumn{Source: table.Name, Name: column.Name, Type: column.Type, Nullable: column.Nullable})
		values = append(values, existing[column.Index])
		excluded[strings.ToLower(column.Name)] = candidate[column.Index]
	}
	sc := newScope(columns, values, nil)
	sc.excluded = excluded

	changes, err := ctx.assignments(table, table.Name, assignments, sc)
	if err != nil {
		return err
	}
	return table.UpdateRow(ordinal, changes)
}

// assignments evaluates SET clauses into changes keyed by column ordinal.
func (ctx *execContext) assignments(table *ps.Table, target string, assignments []sql.Assignment, sc *scope) (map[int]any, error) {
	changes := make(map[int]any, len(assignments))
	for _, assignment := range assignments {
		if assignment.Column.Table != "" && !strings.EqualFold(assignment.Column.Table, target) &&
			!strings.EqualFold(assignment.Column.Table, table.Name) {
			return nil, core.UnknownColumn(assignment.Column.String())
		}
		column, ok := table.Column(assignment.Column.Name)
		if !ok {
			return nil, core.UnknownColumn(assignment.Column.String())
		}
		if column.IsComputed() {
			return nil, fmt.Errorf("the value specified for generated column '%s' in table '%s' is not allowed", column.Name, table.Name)
		}
		if _, isDefault := assignment.Value.(sql.DefaultExpr); isDefault {
			changes[column.Index] = column.DefaultValue
			continue
		}
		value, err := ctx.eval(assignment.Value, sc)
		if err != nil {
			return nil, err
		}
		if value == nil && !column.Nullable {
			return nil, core.ColumnCannotBeNull(column.Name)
		}
		changes[column.Index] = value
	}
	return changes, nil
}

// targetRows runs the FROM, JOIN and WHERE part of an UPDATE or DELETE and
// returns the matching rows with the ordinal of the target table row in each.
func (engine *Engine) targetRows(ctx *execContext, target string, source sql.TableSource, joins []sql.JoinClause, where sql.Expr) (*ps.Table, *relation, int, error) {
	var targetSource *sql.TableSource
	for _, candidate := range append([]sql.TableSource{source}, joinSources(joins)...) {
		if strings.EqualFold(candidate.Label(), target) || (candidate.Alias == "" && strings.EqualFold(candidate.Table.Name, target)) {
			targetSource = &candidate
			break
		}
	}
	if targetSource == nil {
		return nil, nil, 0, core.UnknownTable(target)
	}
	if targetSource.Subquery != nil {
		return nil, nil, 0, fmt.Errorf("the target table %s of the statement is not updatable", target)
	}
	table, err := engine.database.ResolveTable(targetSource.Table.Schema, targetSource.Table.Name)
	if err != nil {
		return nil, nil, 0, err
	}

	ctx.track = targetSource.Label()
	rel, err := ctx.buildSource(&source, joins, where, nil)
	ctx.track = ""
	if err != nil {
		return nil, nil, 0, err
	}

	if err := checkColumns(where, rel.columns, nil); err != nil {
		return nil, nil, 0, err
	}

	hidden := slices.IndexFunc(rel.columns, func(column boundColumn) bool {
		return column.hidden() && strings.EqualFold(column.Source, targetSource.Label())
	})
	if hidden < 0 {
		return nil, nil, 0, fmt.Errorf("the target table %s of the statement is not updatable", target)
	}

	matched := &relation{columns: rel.columns}
	for _, row := range rel.rows {
		ok, err := ctx.evalCondition(where, newScope(rel.columns, row, nil))
		if err != nil {
			return nil, nil, 0, err
		}
		if ok && row[hidden] != nil {
			matched.rows = append(matched.rows, row)
		}
	}
	return table, matched, hidden, nil
}

func joinSources(joins []sql.JoinClause) []sql.TableSource {
	sources := make([]sql.TableSource, len(joins))
	for i, join := range joins {
		sources[i] = join.Source
	}
	return sources
}

func (engine *Engine) executeUpdateStatement(ctx *execContext, statement sql.UpdateStatement) (CommitResult, error) {
	startTime := time.Now()

	dialect := engine.database.Dialect
	if len(statement.Joins) > 0 && !dialect.SupportsUpdateDeleteJoinRuntime {
		return CommitResult{}, core.NewUnsupportedFeatureError("UPDATE with JOIN", dialect)
	}
	target := statement.Target
	if target == "" {
		target = statement.Table.Label()
	}

	table, rel, hidden, err := engine.targetRows(ctx, target, statement.Table, statement.Joins, statement.Where)
	if err != nil {
		return CommitResult{}, err
	}
	for _, assignment := range statement.Set {
		if _, ok := table.Column(assignment.Column.Name); !ok {
			return CommitResult{}, core.UnknownColumn(assignment.Column.String())
		}
		if err := checkColumns(assignment.Value, rel.columns, nil); err != nil {
			return CommitResult{}, err
		}
	}

	// The first joined row wins when a target row matches several.
	pending := make(map[int]map[int]any)
	var ordinals []int
	for _, row := range rel.rows {
		ordinal := int(row[hidden].(int64))
		if _, seen := pending[ordinal]; seen {
			continue
		}
		changes, err := ctx.assignments(table, target, statement.Set, newScope(rel.columns, row, nil))
		if err != nil {
			return CommitResult{}, err
		}
		pending[ordinal] = changes
		ordinals = append(ordinals, ordinal)
	}
	slices.Sort(ordinals)

	if len(ordinals) > 0 {
		table.Backup()
		defer table.ClearBackup()
	}
	for _, ordinal := range ordinals {
		if err := table.UpdateRow(ordinal, pending[ordinal]); err != nil {
			if restoreErr := table.Restore(); restoreErr != nil {
				return CommitResult{}, fmt.Errorf("failed to restore table '%s': %w", table.Name, restoreErr)
			}
			return CommitResult{}, err
		}
	}

	return CommitResult{
		RecordsWritten:   len(ordinals),
		RowsAffected:     len(ordinals),
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     len(rel.rows),
	}, nil
}

func (engine *Engine) executeDeleteStatement(ctx *execContext, statement sql.DeleteStatement) (CommitResult, error) {
	startTime := time.Now()

	dialect := engine.database.Dialect
	if len(statement.Joins) > 0 && !dialect.SupportsUpdateDeleteJoinRuntime {
		return CommitResult{}, core.NewUnsupportedFeatureError("DELETE with JOIN", dialect)
	}
	target := statement.Target
	if target == "" {
		target = statement.Table.Label()
	}

	table, rel, hidden, err := engine.targetRows(ctx, target, statement.Table, statement.Joins, statement.Where)
	if err != nil {
		return CommitResult{}, err
	}

	seen := make(map[int]bool)
	var ordinals []int
	for _, row := range rel.rows {
		ordinal := int(row[hidden].(int64))
		if !seen[ordinal] {
			seen[ordinal] = true
			ordinals = append(ordinals, ordinal)
		}
	}

	deleted, err := table.DeleteRows(ordinals)
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		RecordsDeleted:   deleted,
		RowsAffected:     deleted,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     len(rel.rows),
	}, nil
}
