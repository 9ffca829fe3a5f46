package ps

import (
	"fmt"
	"slices"

	"github.com/expr-lang/expr/vm"
	"github.com/nickyhof/SqlLikeMem/core"
)

// Row holds the values of one table row keyed by column ordinal.
type Row map[int]any

// Clone returns a shallow copy of the row. Values are treated as immutable.
func (row Row) Clone() Row {
	clone := make(Row, len(row))
	for ordinal, value := range row {
		clone[ordinal] = value
	}
	return clone
}

type ColumnDef struct {
	Name          string
	Index         int
	Type          core.DbType
	Nullable      bool
	Size          *int
	DecimalPlaces *int
	Identity      bool
	DefaultValue  any
	EnumValues    []string
	// Computed is the expression text of a generated column. Persisted columns
	// keep their value in the row store; virtual columns are recomputed on
	// every write and are left out of fixture snapshots.
	Computed  string
	Persisted bool

	program *vm.Program
	refs    []int
}

// clone copies the column. The compiled program is shared; it is never
// modified in place.
func (column *ColumnDef) clone() ColumnDef {
	copied := *column
	copied.EnumValues = slices.Clone(column.EnumValues)
	copied.refs = slices.Clone(column.refs)
	return copied
}

func (column *ColumnDef) IsComputed() bool {
	return column.Computed != ""
}

func (column *ColumnDef) validate() error {
	if column.Name == "" {
		return fmt.Errorf("column name is required")
	}
	if column.Type.RequiresSize() && column.Size == nil {
		return fmt.Errorf("column '%s' of type %s requires a size", column.Name, column.Type)
	}
	if column.Type.RequiresDecimalPlaces() && column.DecimalPlaces == nil {
		return fmt.Errorf("column '%s' of type %s requires decimal places", column.Name, column.Type)
	}
	if (column.Type == core.EnumType || column.Type == core.SetType) && len(column.EnumValues) == 0 {
		return fmt.Errorf("column '%s' of type %s requires a value list", column.Name, column.Type)
	}
	return nil
}

// Schema describes the column in its serialized form.
func (column *ColumnDef) Schema() core.ColumnSchema {
	return core.ColumnSchema{
		Name:          column.Name,
		Type:          column.Type,
		Nullable:      column.Nullable,
		Size:          column.Size,
		DecimalPlaces: column.DecimalPlaces,
		Identity:      column.Identity,
		Default:       column.DefaultValue,
		EnumValues:    column.EnumValues,
		Computed:      column.Computed,
		Persisted:     column.Persisted,
	}
}

// ColumnFromSchema is the inverse of ColumnDef.Schema.
func ColumnFromSchema(schema core.ColumnSchema) ColumnDef {
	return ColumnDef{
		Name:          schema.Name,
		Type:          schema.Type,
		Nullable:      schema.Nullable,
		Size:          schema.Size,
		DecimalPlaces: schema.DecimalPlaces,
		Identity:      schema.Identity,
		DefaultValue:  schema.Default,
		EnumValues:    schema.EnumValues,
		Computed:      schema.Computed,
		Persisted:     schema.Persisted,
	}
}
