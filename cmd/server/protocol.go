// Package main provides a TCP SQL server for SqlLikeMem.
package main

import (
	"encoding/json"
	"strings"
)

// Request represents a SQL statement from the client. A line that starts
// with '{' is decoded as a Request; any other line is the query itself.
type Request struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params,omitempty"`
}

// Response represents the server's response to a request.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Code    int             `json:"code,omitempty"`
	Type    string          `json:"type,omitempty"` // "query", "commit", "plan" or "auth"
	Result  json.RawMessage `json:"result,omitempty"`
}

// QueryResponse contains tabular query results.
type QueryResponse struct {
	Columns     []string   `json:"columns"`
	Data        [][]string `json:"data"`
	RecordsRead int        `json:"records_read"`
	TimeMs      float64    `json:"time_ms"`
}

// CommitResponse contains the results of statements that return no rows.
type CommitResponse struct {
	Transaction    string         `json:"transaction,omitempty"`
	TablesCreated  int            `json:"tables_created,omitempty"`
	TablesDeleted  int            `json:"tables_deleted,omitempty"`
	RecordsWritten int            `json:"records_written,omitempty"`
	RecordsDeleted int            `json:"records_deleted,omitempty"`
	RowsAffected   int            `json:"rows_affected"`
	LastInsertId   int64          `json:"last_insert_id,omitempty"`
	OutParams      map[string]any `json:"out_params,omitempty"`
	Message        string         `json:"message,omitempty"`
	TimeMs         float64        `json:"time_ms"`
}

// AuthResponse reports a successful AUTH command.
type AuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity"`
	ExpiresIn     int    `json:"expires_in,omitempty"`
}

// EncodeResponse serializes a Response to JSON with a newline.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeRequest parses a request line.
func DecodeRequest(line []byte) (Request, error) {
	text := strings.TrimSpace(string(line))
	if !strings.HasPrefix(text, "{") {
		return Request{Query: text}, nil
	}
	var req Request
	err := json.Unmarshal([]byte(text), &req)
	return req, err
}
