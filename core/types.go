package core

import (
	"fmt"
	"strings"
)

// DbType is the storage type of a column.
type DbType int

const (
	StringType DbType = iota
	IntType
	BigIntType
	DecimalType
	CurrencyType
	DoubleType
	BoolType
	DateTimeType
	DateType
	GuidType
	JsonType
	BinaryType
	EnumType
	SetType
)

func (t DbType) String() string {
	switch t {
	case StringType:
		return "STRING"
	case IntType:
		return "INT"
	case BigIntType:
		return "BIGINT"
	case DecimalType:
		return "DECIMAL"
	case CurrencyType:
		return "CURRENCY"
	case DoubleType:
		return "DOUBLE"
	case BoolType:
		return "BOOL"
	case DateTimeType:
		return "DATETIME"
	case DateType:
		return "DATE"
	case GuidType:
		return "GUID"
	case JsonType:
		return "JSON"
	case BinaryType:
		return "BINARY"
	case EnumType:
		return "ENUM"
	case SetType:
		return "SET"
	default:
		return "UNKNOWN"
	}
}

// IsNumeric reports whether values of the type are stored as numbers.
func (t DbType) IsNumeric() bool {
	switch t {
	case IntType, BigIntType, DecimalType, CurrencyType, DoubleType:
		return true
	}
	return false
}

// RequiresSize reports whether a column of the type must declare a size bound.
func (t DbType) RequiresSize() bool {
	return t == StringType
}

// RequiresDecimalPlaces reports whether a column of the type must declare a scale.
func (t DbType) RequiresDecimalPlaces() bool {
	return t == DecimalType || t == CurrencyType || t == DoubleType
}

// ParseDbType maps a SQL type name from any supported dialect to a DbType.
func ParseDbType(typeName string) (DbType, bool) {
	switch strings.ToUpper(typeName) {
	case "VARCHAR", "NVARCHAR", "CHAR", "NCHAR", "STRING", "TEXT", "NTEXT", "LONGTEXT",
		"MEDIUMTEXT", "TINYTEXT", "CLOB", "VARCHAR2", "CHARACTER", "GRAPHIC", "VARGRAPHIC":
		return StringType, true
	case "INT", "INTEGER", "SMALLINT", "TINYINT", "MEDIUMINT":
		return IntType, true
	case "BIGINT":
		return BigIntType, true
	case "DECIMAL", "NUMERIC", "DEC":
		return DecimalType, true
	case "MONEY", "SMALLMONEY", "CURRENCY":
		return CurrencyType, true
	case "DOUBLE", "FLOAT", "REAL", "DECFLOAT":
		return DoubleType, true
	case "BOOL", "BOOLEAN", "BIT":
		return BoolType, true
	case "DATETIME", "DATETIME2", "TIMESTAMP", "SMALLDATETIME", "DATETIMEOFFSET", "TIME":
		return DateTimeType, true
	case "DATE":
		return DateType, true
	case "UNIQUEIDENTIFIER", "UUID", "GUID":
		return GuidType, true
	case "JSON":
		return JsonType, true
	case "BINARY", "VARBINARY", "BLOB", "IMAGE", "LONGBLOB":
		return BinaryType, true
	case "ENUM":
		return EnumType, true
	case "SET":
		return SetType, true
	default:
		return StringType, false
	}
}

func (t DbType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *DbType) UnmarshalText(text []byte) error {
	parsed, ok := ParseDbType(string(text))
	if !ok {
		return fmt.Errorf("unknown column type: %s", text)
	}
	*t = parsed
	return nil
}
