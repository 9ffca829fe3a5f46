package core

import (
	"errors"
	"fmt"
)

// Vendor error numbers. They follow the MySQL server error catalogue and are
// used by every dialect so golden outputs stay comparable.
const (
	ErrNumColumnCannotBeNull  = 1048
	ErrNumTableExists         = 1050
	ErrNumAmbiguousColumn     = 1052
	ErrNumUnknownColumn       = 1054
	ErrNumDuplicateKey        = 1062
	ErrNumUnknownTable        = 1146
	ErrNumOutOfRange          = 1264
	ErrNumDataTruncated       = 1265
	ErrNumProcedureNotFound   = 1305
	ErrNumProcedureArgCount   = 1318
	ErrNumIncorrectValue      = 1366
	ErrNumDataTooLong         = 1406
	ErrNumOutParameter        = 1414
	ErrNumRowIsReferenced     = 1451
	ErrNumNoReferencedRow     = 1452
	ErrNumSyntax              = 1064
	ErrNumUnsupportedFeature  = 1235
	ErrNumUnknownReference    = 1247
	ErrNumNonUniqueTableAlias = 1066
	ErrNumColumnCount         = 1136
	ErrNumUnionColumnCount    = 1222
)

// EngineError is implemented by every error in the taxonomy.
type EngineError interface {
	error
	Code() string
	Number() int
}

// SyntaxError is raised while tokenizing or parsing.
type SyntaxError struct {
	Fragment string
	Message  string
}

func (e *SyntaxError) Error() string {
	if e.Fragment != "" {
		return fmt.Sprintf("syntax error: %s near '%s'", e.Message, e.Fragment)
	}
	return fmt.Sprintf("syntax error: %s", e.Message)
}

func (e *SyntaxError) Code() string {
	return "SYNTAX_ERROR"
}

func (e *SyntaxError) Number() int {
	return ErrNumSyntax
}

func NewSyntaxError(fragment, message string) *SyntaxError {
	return &SyntaxError{Fragment: fragment, Message: message}
}

// SchemaError reports an unknown or conflicting catalog object.
type SchemaError struct {
	Object  string
	Message string
	Num     int
}

func (e *SchemaError) Error() string {
	return e.Message
}

func (e *SchemaError) Code() string {
	return "SCHEMA_ERROR"
}

func (e *SchemaError) Number() int {
	return e.Num
}

func UnknownTable(name string) *SchemaError {
	return &SchemaError{Object: name, Message: fmt.Sprintf("Table '%s' doesn't exist", name), Num: ErrNumUnknownTable}
}

func UnknownColumn(name string) *SchemaError {
	return &SchemaError{Object: name, Message: fmt.Sprintf("Unknown column '%s'", name), Num: ErrNumUnknownColumn}
}

func AmbiguousColumn(name string) *SchemaError {
	return &SchemaError{Object: name, Message: fmt.Sprintf("Column '%s' in field list is ambiguous", name), Num: ErrNumAmbiguousColumn}
}

func TableExists(name string) *SchemaError {
	return &SchemaError{Object: name, Message: fmt.Sprintf("Table '%s' already exists", name), Num: ErrNumTableExists}
}

func ColumnCountMismatch(row int) *SchemaError {
	return &SchemaError{Object: "VALUES", Message: fmt.Sprintf("Column count doesn't match value count at row %d", row), Num: ErrNumColumnCount}
}

func UnionColumnCountMismatch() *SchemaError {
	return &SchemaError{Object: "UNION", Message: "The used SELECT statements have a different number of columns", Num: ErrNumUnionColumnCount}
}

func NewSchemaError(object, message string) *SchemaError {
	return &SchemaError{Object: object, Message: message, Num: ErrNumUnknownTable}
}

// ConstraintError is a data-integrity violation with a vendor error number.
type ConstraintError struct {
	Num     int
	Message string
	Table   string
	Key     string
}

func (e *ConstraintError) Error() string {
	return e.Message
}

func (e *ConstraintError) Code() string {
	return "CONSTRAINT_VIOLATION"
}

func (e *ConstraintError) Number() int {
	return e.Num
}

func DuplicateKey(table, key string, value any) *ConstraintError {
	return &ConstraintError{
		Num:     ErrNumDuplicateKey,
		Message: fmt.Sprintf("Duplicate entry '%v' for key '%s'", value, key),
		Table:   table,
		Key:     key,
	}
}

func ColumnCannotBeNull(column string) *ConstraintError {
	return &ConstraintError{Num: ErrNumColumnCannotBeNull, Message: fmt.Sprintf("Column '%s' cannot be null", column), Key: column}
}

func ForeignKeyFails(column, referencedTable string) *ConstraintError {
	return &ConstraintError{
		Num:     ErrNumNoReferencedRow,
		Message: fmt.Sprintf("Cannot add or update a child row: a foreign key constraint fails (%s -> %s)", column, referencedTable),
		Table:   referencedTable,
		Key:     column,
	}
}

func ReferencedRow(table string) *ConstraintError {
	return &ConstraintError{
		Num:     ErrNumRowIsReferenced,
		Message: fmt.Sprintf("Cannot delete or update a parent row: a foreign key constraint fails (child referencing '%s')", table),
		Table:   table,
	}
}

func DataTooLong(column string) *ConstraintError {
	return &ConstraintError{Num: ErrNumDataTooLong, Message: fmt.Sprintf("Data too long for column '%s'", column), Key: column}
}

func DataTruncated(column string) *ConstraintError {
	return &ConstraintError{Num: ErrNumDataTruncated, Message: fmt.Sprintf("Data truncated for column '%s'", column), Key: column}
}

func OutOfRange(column string) *ConstraintError {
	return &ConstraintError{Num: ErrNumOutOfRange, Message: fmt.Sprintf("Out of range value for column '%s'", column), Key: column}
}

func IncorrectValue(column string, value any) *ConstraintError {
	return &ConstraintError{Num: ErrNumIncorrectValue, Message: fmt.Sprintf("Incorrect value '%v' for column '%s'", value, column), Key: column}
}

func ProcedureNotFound(name string) *ConstraintError {
	return &ConstraintError{Num: ErrNumProcedureNotFound, Message: fmt.Sprintf("PROCEDURE %s does not exist", name), Key: name}
}

func ProcedureArgCount(name string, expected, got int) *ConstraintError {
	return &ConstraintError{
		Num:     ErrNumProcedureArgCount,
		Message: fmt.Sprintf("Incorrect number of arguments for PROCEDURE %s; expected %d, got %d", name, expected, got),
		Key:     name,
	}
}

func OutParameter(name, param string) *ConstraintError {
	return &ConstraintError{
		Num:     ErrNumOutParameter,
		Message: fmt.Sprintf("OUT or INOUT argument %s for routine %s is not a variable", param, name),
		Key:     param,
	}
}

// UnsupportedFeatureError is a construct that parsed but cannot run under the active dialect.
type UnsupportedFeatureError struct {
	Feature string
	Dialect string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("%s is not supported by dialect %s", e.Feature, e.Dialect)
}

func (e *UnsupportedFeatureError) Code() string {
	return "UNSUPPORTED_FEATURE"
}

func (e *UnsupportedFeatureError) Number() int {
	return ErrNumUnsupportedFeature
}

func NewUnsupportedFeatureError(feature string, dialect Dialect) *UnsupportedFeatureError {
	return &UnsupportedFeatureError{Feature: feature, Dialect: dialect.String()}
}

// RuntimeReferenceError is a reference that could only be checked during execution,
// such as a HAVING alias or ordinal, or a parameter with no bound value.
type RuntimeReferenceError struct {
	Reference string
	Message   string
}

func (e *RuntimeReferenceError) Error() string {
	return e.Message
}

func (e *RuntimeReferenceError) Code() string {
	return "RUNTIME_REFERENCE"
}

func (e *RuntimeReferenceError) Number() int {
	return ErrNumUnknownReference
}

func NewRuntimeReferenceError(reference, format string, args ...any) *RuntimeReferenceError {
	return &RuntimeReferenceError{Reference: reference, Message: fmt.Sprintf(format, args...)}
}

func ParameterNotFound(name string) *RuntimeReferenceError {
	return NewRuntimeReferenceError(name, "Parameter '%s' not found", name)
}

// ErrorNumber returns the vendor number carried by err, or 0 when err is outside the taxonomy.
func ErrorNumber(err error) int {
	var engineErr EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Number()
	}
	return 0
}
