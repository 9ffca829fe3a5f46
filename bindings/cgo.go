package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"encoding/json"
	"sync"
	"unsafe"

	"github.com/nickyhof/SqlLikeMem"
	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/db"
	"github.com/nickyhof/SqlLikeMem/plan"
	"github.com/nickyhof/SqlLikeMem/ps"
)

// Handle represents an open database instance
type Handle struct {
	instance *SqlLikeMem.Instance
	engine   *db.Engine
}

var (
	handlesMu  sync.Mutex
	handles    = make(map[int]*Handle)
	nextHandle = 1
)

var bindingIdentity = core.Identity{
	Name:  "SqlLikeMem Python",
	Email: "python@sqllikemem.local",
}

// Response mirrors the server protocol for consistency
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Code    int             `json:"code,omitempty"`
	Type    string          `json:"type,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

type QueryResponse struct {
	Columns         []string   `json:"columns"`
	Data            [][]string `json:"data"`
	RecordsRead     int        `json:"records_read"`
	ExecutionTimeMs float64    `json:"execution_time_ms"`
}

type CommitResponse struct {
	TablesCreated   int            `json:"tables_created,omitempty"`
	TablesDeleted   int            `json:"tables_deleted,omitempty"`
	RecordsWritten  int            `json:"records_written,omitempty"`
	RecordsDeleted  int            `json:"records_deleted,omitempty"`
	RowsAffected    int            `json:"rows_affected"`
	LastInsertId    int64          `json:"last_insert_id,omitempty"`
	OutParams       map[string]any `json:"out_params,omitempty"`
	Message         string         `json:"message,omitempty"`
	ExecutionTimeMs float64        `json:"execution_time_ms"`
}

func register(instance *SqlLikeMem.Instance) C.int {
	handlesMu.Lock()
	defer handlesMu.Unlock()

	handle := nextHandle
	nextHandle++
	handles[handle] = &Handle{
		instance: instance,
		engine:   instance.Engine(bindingIdentity),
	}
	return C.int(handle)
}

func lookup(handle C.int) (*Handle, bool) {
	handlesMu.Lock()
	defer handlesMu.Unlock()
	h, ok := handles[int(handle)]
	return h, ok
}

//export sqllikemem_open
func sqllikemem_open(dialect *C.char, version C.int) C.int {
	d, err := core.DialectByName(C.GoString(dialect), int(version))
	if err != nil {
		return -1
	}
	fixtures, err := ps.NewMemoryFixtureStore()
	if err != nil {
		return -1
	}
	return register(SqlLikeMem.Attach(ps.NewDatabase(d, ps.WithThreadSafe(true)), fixtures))
}

//export sqllikemem_open_fixtures
func sqllikemem_open_fixtures(dialect *C.char, version C.int, path *C.char) C.int {
	d, err := core.DialectByName(C.GoString(dialect), int(version))
	if err != nil {
		return -1
	}
	fixtures, err := ps.NewFileFixtureStore(C.GoString(path), nil)
	if err != nil {
		return -1
	}
	return register(SqlLikeMem.Attach(ps.NewDatabase(d, ps.WithThreadSafe(true)), fixtures))
}

//export sqllikemem_close
func sqllikemem_close(handle C.int) {
	handlesMu.Lock()
	defer handlesMu.Unlock()
	delete(handles, int(handle))
}

// sqllikemem_execute runs one statement. params is a JSON object keyed by
// parameter name, or NULL.
//
//export sqllikemem_execute
func sqllikemem_execute(handle C.int, query *C.char, params *C.char) *C.char {
	h, ok := lookup(handle)
	if !ok {
		return makeErrorResponse("Invalid handle", 0)
	}

	var bound map[string]any
	if params != nil {
		if err := json.Unmarshal([]byte(C.GoString(params)), &bound); err != nil {
			return makeErrorResponse("invalid params: "+err.Error(), 0)
		}
	}

	result, err := h.engine.Execute(C.GoString(query), bound)
	if err != nil {
		return makeErrorResponse(err.Error(), core.ErrorNumber(err))
	}

	var resp Response

	switch r := result.(type) {
	case db.QueryResult:
		qr := QueryResponse{
			Columns:         r.ColumnNames(),
			Data:            r.Data(),
			RecordsRead:     r.RecordsRead,
			ExecutionTimeMs: r.ExecutionTimeSec * 1000,
		}
		data, _ := json.Marshal(qr)
		resp = Response{
			Success: true,
			Type:    "query",
			Result:  data,
		}

	case db.CommitResult:
		cr := CommitResponse{
			TablesCreated:   r.TablesCreated,
			TablesDeleted:   r.TablesDeleted,
			RecordsWritten:  r.RecordsWritten,
			RecordsDeleted:  r.RecordsDeleted,
			RowsAffected:    r.RowsAffected,
			LastInsertId:    r.LastInsertId,
			OutParams:       r.OutParams,
			Message:         r.Message,
			ExecutionTimeMs: r.ExecutionTimeSec * 1000,
		}
		data, _ := json.Marshal(cr)
		resp = Response{
			Success: true,
			Type:    "commit",
			Result:  data,
		}

	default:
		resp = Response{
			Success: true,
			Type:    "unknown",
		}
	}

	jsonData, _ := json.Marshal(resp)
	return C.CString(string(jsonData))
}

//export sqllikemem_explain
func sqllikemem_explain(handle C.int, query *C.char) *C.char {
	h, ok := lookup(handle)
	if !ok {
		return makeErrorResponse("Invalid handle", 0)
	}

	p, err := h.engine.Explain(C.GoString(query), nil)
	if err != nil {
		return makeErrorResponse(err.Error(), core.ErrorNumber(err))
	}
	data, err := plan.FormatJSON(p)
	if err != nil {
		return makeErrorResponse(err.Error(), 0)
	}

	jsonData, _ := json.Marshal(Response{Success: true, Type: "plan", Result: data})
	return C.CString(string(jsonData))
}

//export sqllikemem_snapshot
func sqllikemem_snapshot(handle C.int, tag *C.char) *C.char {
	h, ok := lookup(handle)
	if !ok {
		return makeErrorResponse("Invalid handle", 0)
	}

	name := C.GoString(tag)
	commit, err := h.instance.Op().Snapshot(bindingIdentity, "Snapshot "+name, name)
	if err != nil {
		return makeErrorResponse(err.Error(), 0)
	}

	data, _ := json.Marshal(map[string]string{"commit": commit.Id, "tag": name})
	jsonData, _ := json.Marshal(Response{Success: true, Type: "snapshot", Result: data})
	return C.CString(string(jsonData))
}

//export sqllikemem_restore
func sqllikemem_restore(handle C.int, ref *C.char) *C.char {
	h, ok := lookup(handle)
	if !ok {
		return makeErrorResponse("Invalid handle", 0)
	}

	if err := h.instance.Op().Restore(C.GoString(ref)); err != nil {
		return makeErrorResponse(err.Error(), 0)
	}

	jsonData, _ := json.Marshal(Response{Success: true, Type: "restore"})
	return C.CString(string(jsonData))
}

//export sqllikemem_free
func sqllikemem_free(ptr *C.char) {
	C.free(unsafe.Pointer(ptr))
}

func makeErrorResponse(msg string, code int) *C.char {
	resp := Response{
		Success: false,
		Error:   msg,
		Code:    code,
	}
	jsonData, _ := json.Marshal(resp)
	return C.CString(string(jsonData))
}

func main() {}
