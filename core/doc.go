// Package core provides the types shared by the parser, the storage layer
// and the executor.
//
// # Dialects
//
// A Dialect describes one vendor at one version: keywords, quoting,
// operators and the feature gates the parser and executor consult.
//
//	dialect := core.MySQL(8)
//	dialect, err := core.DialectByName("sqlserver", 2019)
//
// Version 0 selects the dialect default.
//
// # Identity
//
// Identity names the session user. It is returned by CURRENT_USER() and
// authors fixture snapshots:
//
//	identity := core.Identity{
//	    Name:  "John Doe",
//	    Email: "john@example.com",
//	}
//
// # Column Types
//
// Type names from every dialect map onto a small set of storage types
// through ParseDbType:
//   - StringType: VARCHAR, NVARCHAR, CHAR, TEXT, CLOB
//   - IntType, BigIntType: integers
//   - DecimalType, CurrencyType, DoubleType: fixed and floating point
//   - BoolType: BOOL, BOOLEAN, BIT
//   - DateTimeType, DateType: date and time values
//   - GuidType, JsonType, BinaryType, EnumType, SetType
//
// # Errors
//
// Every engine failure is one of the error types in errors.go. Each carries
// a MySQL-compatible number and a code; ErrorNumber extracts the number
// from any wrapped error.
package core
