package core

import "time"

// ViewSchema is the serialized form of a view. Query holds the SELECT text
// the view was created with; it is parsed again when the view is loaded.
type ViewSchema struct {
	Schema    string    `json:"schema"`
	Name      string    `json:"name"`
	Query     string    `json:"query"`
	Columns   []string  `json:"columns,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
