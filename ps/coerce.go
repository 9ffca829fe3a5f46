package ps

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/nickyhof/SqlLikeMem/core"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-01-02-15.04.05.999999",
}

// Coerce converts value to the storage representation of the column:
// string, int64, float64, bool, time.Time or []byte. NULL stays nil; the
// nullability check happens when the row is written.
func (column *ColumnDef) Coerce(value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch column.Type {
	case core.StringType:
		text := ToText(value)
		if column.Size != nil && utf8.RuneCountInString(text) > *column.Size {
			return nil, core.DataTooLong(column.Name)
		}
		return text, nil

	case core.IntType, core.BigIntType:
		number, ok := ToInt(value)
		if !ok {
			return nil, core.IncorrectValue(column.Name, value)
		}
		return number, nil

	case core.DecimalType, core.CurrencyType, core.DoubleType:
		number, ok := ToFloat(value)
		if !ok {
			return nil, core.IncorrectValue(column.Name, value)
		}
		if column.DecimalPlaces != nil && decimalPlaces(number) > *column.DecimalPlaces {
			return nil, core.OutOfRange(column.Name)
		}
		return number, nil

	case core.BoolType:
		flag, ok := ToBool(value)
		if !ok {
			return nil, core.IncorrectValue(column.Name, value)
		}
		return flag, nil

	case core.DateTimeType, core.DateType:
		when, ok := ToTime(value)
		if !ok {
			return nil, core.IncorrectValue(column.Name, value)
		}
		if column.Type == core.DateType {
			when = time.Date(when.Year(), when.Month(), when.Day(), 0, 0, 0, 0, when.Location())
		}
		return when, nil

	case core.GuidType:
		text := ToText(value)
		if _, err := uuid.Parse(text); err != nil {
			return nil, core.IncorrectValue(column.Name, value)
		}
		return text, nil

	case core.JsonType:
		if text, ok := value.(string); ok {
			if !json.Valid([]byte(text)) {
				return nil, core.IncorrectValue(column.Name, value)
			}
			return text, nil
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, core.IncorrectValue(column.Name, value)
		}
		return string(data), nil

	case core.BinaryType:
		switch v := value.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
		return nil, core.IncorrectValue(column.Name, value)

	case core.EnumType:
		text := ToText(value)
		member, ok := column.enumMember(text)
		if !ok {
			return nil, core.DataTruncated(column.Name)
		}
		return member, nil

	case core.SetType:
		text := ToText(value)
		if text == "" {
			return "", nil
		}
		selected := make(map[string]bool)
		for _, part := range strings.Split(text, ",") {
			member, ok := column.enumMember(strings.TrimSpace(part))
			if !ok {
				return nil, core.DataTruncated(column.Name)
			}
			selected[member] = true
		}
		var members []string
		for _, member := range column.EnumValues {
			if selected[member] {
				members = append(members, member)
			}
		}
		return strings.Join(members, ","), nil
	}
	return value, nil
}

func (column *ColumnDef) enumMember(text string) (string, bool) {
	for _, member := range column.EnumValues {
		if strings.EqualFold(member, text) {
			return member, true
		}
	}
	return "", false
}

func decimalPlaces(number float64) int {
	text := strconv.FormatFloat(number, 'f', -1, 64)
	if dot := strings.IndexByte(text, '.'); dot >= 0 {
		return len(text) - dot - 1
	}
	return 0
}

// ToText renders a value in its invariant text form.
func ToText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format("2006-01-02")
		}
		return v.Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// ToInt converts numbers, booleans and numeric text to int64. Fractions are rounded.
func ToInt(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float32:
		return int64(math.Round(float64(v))), true
	case float64:
		return int64(math.Round(v)), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		text := strings.TrimSpace(v)
		if number, err := strconv.ParseInt(text, 10, 64); err == nil {
			return number, true
		}
		if number, err := strconv.ParseFloat(text, 64); err == nil {
			return int64(math.Round(number)), true
		}
	case []byte:
		return ToInt(string(v))
	case json.Number:
		if number, err := v.Int64(); err == nil {
			return number, true
		}
		if number, err := v.Float64(); err == nil {
			return int64(math.Round(number)), true
		}
	}
	return 0, false
}

// ToFloat converts numbers, booleans and numeric text to float64.
func ToFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case string:
		number, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return number, err == nil
	case []byte:
		return ToFloat(string(v))
	case json.Number:
		number, err := v.Float64()
		return number, err == nil
	}
	if number, ok := ToInt(value); ok {
		return float64(number), true
	}
	return 0, false
}

func ToBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "t", "yes", "y", "on":
			return true, true
		case "0", "false", "f", "no", "n", "off":
			return false, true
		}
		return false, false
	}
	if number, ok := ToFloat(value); ok {
		return number != 0, true
	}
	return false, false
}

func ToTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		text := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if when, err := time.Parse(layout, text); err == nil {
				return when, true
			}
		}
	}
	return time.Time{}, false
}
