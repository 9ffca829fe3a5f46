package ps

import (
	"strings"
	"time"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/sql"
)

type ProcParam struct {
	Name string
	Type core.DbType
}

// ProcedureDef is a stored procedure signature. Calls are validated against
// it and have no other effect.
type ProcedureDef struct {
	Name        string
	RequiredIn  []ProcParam
	OptionalIn  []ProcParam
	OutParams   []ProcParam
	ReturnParam *ProcParam
}

// ProcedureArg is one argument of a CALL or EXEC. Positional arguments have
// an empty Name.
type ProcedureArg struct {
	Name   string
	Value  any
	Output bool
}

// Validate checks the call shape: every required input is present and not
// NULL, there are no unknown or surplus arguments (1318) and every OUT
// parameter is passed as an output (1414). It returns the OUT parameters
// with their default values.
func (procedure *ProcedureDef) Validate(args []ProcedureArg) (map[string]any, error) {
	expected := len(procedure.RequiredIn) + len(procedure.OptionalIn) + len(procedure.OutParams)
	if len(args) > expected {
		return nil, core.ProcedureArgCount(procedure.Name, expected, len(args))
	}

	positional := procedure.parameterOrder()
	byName := make(map[string]ProcedureArg, len(args))
	for i, arg := range args {
		name := sql.ParamKey(arg.Name)
		if name == "" {
			name = sql.ParamKey(positional[i].Name)
		}
		if !procedure.hasParameter(name) {
			return nil, core.ProcedureArgCount(procedure.Name, expected, len(args))
		}
		byName[name] = arg
	}

	for _, param := range procedure.RequiredIn {
		arg, ok := byName[sql.ParamKey(param.Name)]
		if !ok {
			return nil, core.ProcedureArgCount(procedure.Name, expected, len(args))
		}
		if arg.Value == nil {
			return nil, &core.ConstraintError{
				Num:     core.ErrNumColumnCannotBeNull,
				Message: "Parameter '" + sql.NormalizeParamName(param.Name) + "' cannot be null",
				Key:     param.Name,
			}
		}
	}

	outputs := make(map[string]any, len(procedure.OutParams))
	for _, param := range procedure.OutParams {
		arg, ok := byName[sql.ParamKey(param.Name)]
		if !ok {
			return nil, core.ProcedureArgCount(procedure.Name, expected, len(args))
		}
		if !arg.Output {
			return nil, core.OutParameter(procedure.Name, sql.NormalizeParamName(param.Name))
		}
		value := arg.Value
		if value == nil {
			value = zeroValue(param.Type)
		}
		outputs[sql.NormalizeParamName(param.Name)] = value
	}
	return outputs, nil
}

func (procedure *ProcedureDef) parameterOrder() []ProcParam {
	params := make([]ProcParam, 0, len(procedure.RequiredIn)+len(procedure.OptionalIn)+len(procedure.OutParams))
	params = append(params, procedure.RequiredIn...)
	params = append(params, procedure.OptionalIn...)
	return append(params, procedure.OutParams...)
}

func (procedure *ProcedureDef) hasParameter(key string) bool {
	for _, param := range procedure.parameterOrder() {
		if strings.EqualFold(sql.ParamKey(param.Name), key) {
			return true
		}
	}
	return false
}

func zeroValue(dbType core.DbType) any {
	switch dbType {
	case core.IntType, core.BigIntType:
		return int64(0)
	case core.DecimalType, core.CurrencyType, core.DoubleType:
		return float64(0)
	case core.BoolType:
		return false
	case core.GuidType:
		return "00000000-0000-0000-0000-000000000000"
	case core.DateTimeType, core.DateType:
		return time.Time{}
	default:
		return ""
	}
}
