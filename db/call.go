package db

import (
	"errors"
	"time"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/ps"
	"github.com/nickyhof/SqlLikeMem/sql"
)

// executeCallStatement validates a CALL or EXEC against the registered
// procedure signature. Procedures have no body; OUT parameters come back
// with their defaults.
func (engine *Engine) executeCallStatement(ctx *execContext, statement sql.CallStatement) (CommitResult, error) {
	startTime := time.Now()

	schema, err := engine.database.Schema(statement.Procedure.Schema)
	if err != nil {
		return CommitResult{}, core.ProcedureNotFound(statement.Procedure.String())
	}
	procedure, ok := schema.Procedure(statement.Procedure.Name)
	if !ok {
		return CommitResult{}, core.ProcedureNotFound(statement.Procedure.String())
	}

	args := make([]ps.ProcedureArg, len(statement.Args))
	for i, arg := range statement.Args {
		value, err := ctx.eval(arg.Value, nil)
		if err != nil {
			// An OUT argument may name a variable nobody bound yet.
			var refErr *core.RuntimeReferenceError
			if !arg.Output || !errors.As(err, &refErr) {
				return CommitResult{}, err
			}
			value = nil
		}
		args[i] = ps.ProcedureArg{Name: arg.Name, Value: value, Output: arg.Output}
	}

	outputs, err := procedure.Validate(args)
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{
		OutParams:        outputs,
		ExecutionTimeSec: time.Since(startTime).Seconds(),
		ExecutionOps:     1,
	}, nil
}
