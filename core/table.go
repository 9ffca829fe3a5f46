package core

// ColumnSchema is the serialized form of a column definition. It is what
// fixture snapshots and table exports write next to the row data.
type ColumnSchema struct {
	Name          string   `json:"name"`
	Type          DbType   `json:"type"`
	Nullable      bool     `json:"nullable"`
	Size          *int     `json:"size,omitempty"`
	DecimalPlaces *int     `json:"decimalPlaces,omitempty"`
	Identity      bool     `json:"identity,omitempty"`
	Default       any      `json:"default,omitempty"`
	EnumValues    []string `json:"enumValues,omitempty"`
	Computed      string   `json:"computed,omitempty"`
	Persisted     bool     `json:"persisted,omitempty"`
}

type IndexSchema struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Include []string `json:"include,omitempty"`
	Unique  bool     `json:"unique"`
}

type ForeignKeySchema struct {
	Name       string   `json:"name"`
	Columns    []string `json:"columns"`
	RefSchema  string   `json:"refSchema,omitempty"`
	RefTable   string   `json:"refTable"`
	RefColumns []string `json:"refColumns"`
}

type TableSchema struct {
	Schema       string             `json:"schema"`
	Name         string             `json:"name"`
	Columns      []ColumnSchema     `json:"columns"`
	PrimaryKey   []string           `json:"primaryKey,omitempty"`
	Indexes      []IndexSchema      `json:"indexes,omitempty"`
	ForeignKeys  []ForeignKeySchema `json:"foreignKeys,omitempty"`
	NextIdentity int64              `json:"nextIdentity"`
}

// TableDocument is a table schema together with its rows, keyed by column name.
type TableDocument struct {
	Table TableSchema      `json:"table"`
	Rows  []map[string]any `json:"rows"`
}
