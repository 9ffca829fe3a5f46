package db

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/sql"
)

type queryStats struct {
	rowsRead    int64
	inputTables int
	ops         int
}

// execContext carries what one statement needs while it runs: bound
// parameters, visible CTEs and the counters the plan is built from.
type execContext struct {
	engine *Engine
	params map[string]any
	ctes   map[string]*relation
	stats  *queryStats
	depth  int
	// track is the source label whose row ordinals travel in ordinalColumn.
	track string
	now   time.Time
}

func (engine *Engine) newContext(params map[string]any) *execContext {
	return &execContext{
		engine: engine,
		params: normalizeParams(params),
		ctes:   make(map[string]*relation),
		stats:  &queryStats{},
		now:    time.Now(),
	}
}

func (ctx *execContext) dialect() core.Dialect {
	return ctx.engine.database.Dialect
}

// child returns a context for a nested query sharing params and counters.
func (ctx *execContext) child() *execContext {
	ctes := make(map[string]*relation, len(ctx.ctes))
	for name, rel := range ctx.ctes {
		ctes[name] = rel
	}
	return &execContext{
		engine: ctx.engine,
		params: ctx.params,
		ctes:   ctes,
		stats:  ctx.stats,
		depth:  ctx.depth + 1,
		now:    ctx.now,
	}
}

// withCTEs materializes the WITH list in order; later CTEs see earlier ones.
func (ctx *execContext) withCTEs(ctes []sql.CTE) (*execContext, error) {
	if len(ctes) == 0 {
		return ctx, nil
	}
	if ctx.depth > maxViewDepth {
		return nil, fmt.Errorf("query nesting exceeds %d levels", maxViewDepth)
	}
	scoped := ctx.child()
	scoped.track = ctx.track
	for _, cte := range ctes {
		rel, err := scoped.child().executeQuery(cte.Query, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate CTE '%s': %w", cte.Name, err)
		}
		if len(cte.Columns) > 0 && len(cte.Columns) != len(rel.columns) {
			return nil, fmt.Errorf("CTE '%s' names %d columns but its query returns %d", cte.Name, len(cte.Columns), len(rel.columns))
		}
		scoped.ctes[strings.ToLower(cte.Name)] = rel.rebind(cte.Name, cte.Columns)
	}
	return scoped, nil
}

func (ctx *execContext) param(param sql.Param) (any, error) {
	key := sql.ParamKey(param.Name)
	if param.Name == "" {
		key = strconv.Itoa(param.Position)
	}
	value, ok := ctx.params[key]
	if !ok {
		return nil, core.ParameterNotFound(param.String())
	}
	return value, nil
}

// normalizeParams keys the bound values by normalized parameter name and
// converts Go numbers to the engine's int64 and float64.
func normalizeParams(params map[string]any) map[string]any {
	normalized := make(map[string]any, len(params))
	for name, value := range params {
		normalized[sql.ParamKey(name)] = normalizeValue(value)
	}
	return normalized
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case nil, int64, float64, string, bool, time.Time, []byte:
		return v
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)
	case json.Number:
		if number, err := v.Int64(); err == nil {
			return number
		}
		if number, err := v.Float64(); err == nil {
			return number
		}
		return v.String()
	case fmt.Stringer:
		return v.String()
	}
	return value
}

// expandList flattens a slice-valued parameter into its elements.
func expandList(value any) ([]any, bool) {
	if value == nil {
		return nil, false
	}
	if _, isBytes := value.([]byte); isBytes {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = normalizeValue(rv.Index(i).Interface())
	}
	return items, true
}
