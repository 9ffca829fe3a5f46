package driver

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/nickyhof/SqlLikeMem/core"
)

// Error carries an engine error together with its MySQL driver form, so
// errors.As matches both *core.ConstraintError (or any taxonomy type) and
// *mysql.MySQLError.
type Error struct {
	cause  error
	native *mysql.MySQLError
}

func (e *Error) Error() string {
	return e.cause.Error()
}

func (e *Error) Unwrap() []error {
	return []error{e.cause, e.native}
}

// MySQL returns the error as the MySQL driver would have reported it.
func (e *Error) MySQL() *mysql.MySQLError {
	return e.native
}

var sqlStates = map[int]string{
	core.ErrNumColumnCannotBeNull: "23000",
	core.ErrNumDuplicateKey:       "23000",
	core.ErrNumRowIsReferenced:    "23000",
	core.ErrNumNoReferencedRow:    "23000",
	core.ErrNumUnknownTable:       "42S02",
	core.ErrNumUnknownColumn:      "42S22",
	core.ErrNumTableExists:        "42S01",
	core.ErrNumSyntax:             "42000",
	core.ErrNumDataTooLong:        "22001",
	core.ErrNumOutOfRange:         "22003",
}

// translateError wraps taxonomy errors with their MySQL driver form when
// the dialect is MySQL. Other errors and dialects pass through unchanged.
func translateError(dialect core.Dialect, err error) error {
	if err == nil || dialect.Name != core.MySQLName {
		return err
	}
	var engineErr core.EngineError
	if !errors.As(err, &engineErr) || engineErr.Number() == 0 {
		return err
	}

	native := &mysql.MySQLError{
		Number:  uint16(engineErr.Number()),
		Message: engineErr.Error(),
	}
	state, ok := sqlStates[engineErr.Number()]
	if !ok {
		state = "HY000"
	}
	copy(native.SQLState[:], state)

	return &Error{cause: err, native: native}
}
