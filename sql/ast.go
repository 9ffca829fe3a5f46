package sql

import (
	"github.com/nickyhof/SqlLikeMem/core"
)

// Expr is any scalar or boolean expression node.
type Expr interface {
	exprNode()
	String() string
}

type Literal struct {
	Value any // nil, int64, float64, string or bool
}

type ColumnRef struct {
	Table string
	Name  string
}

// StarExpr is * or t.* in a projection, or the argument of COUNT(*).
type StarExpr struct {
	Table string
}

type Param struct {
	Name     string
	Position int // 1-based position of a bare ?, zero otherwise
}

type BinaryExpr struct {
	Op    core.BinaryOperator
	Left  Expr
	Right Expr
}

type UnaryExpr struct {
	Op      string // NOT or -
	Operand Expr
}

type IsNullExpr struct {
	Operand Expr
	Not     bool
}

type InExpr struct {
	Operand  Expr
	List     []Expr
	Subquery QueryStatement
	Not      bool
}

type BetweenExpr struct {
	Operand Expr
	Low     Expr
	High    Expr
	Not     bool
}

type LikeExpr struct {
	Operand Expr
	Pattern Expr
	Not     bool
}

type ExistsExpr struct {
	Query QueryStatement
	Not   bool
}

type SubqueryExpr struct {
	Query QueryStatement
}

type FuncCall struct {
	Name     string
	Args     []Expr
	Distinct bool
}

type WhenClause struct {
	Condition Expr
	Result    Expr
}

type CaseExpr struct {
	Operand Expr
	Whens   []WhenClause
	Else    Expr
}

// WindowExpr is a ranking function with an OVER clause.
type WindowExpr struct {
	Func        FuncCall
	PartitionBy []Expr
	OrderBy     []OrderItem
}

type CastExpr struct {
	Operand  Expr
	TypeName string
}

// DefaultExpr is the DEFAULT keyword in a VALUES row or SET assignment.
type DefaultExpr struct{}

func (Literal) exprNode()      {}
func (ColumnRef) exprNode()    {}
func (StarExpr) exprNode()     {}
func (Param) exprNode()        {}
func (BinaryExpr) exprNode()   {}
func (UnaryExpr) exprNode()    {}
func (IsNullExpr) exprNode()   {}
func (InExpr) exprNode()       {}
func (BetweenExpr) exprNode()  {}
func (LikeExpr) exprNode()     {}
func (ExistsExpr) exprNode()   {}
func (SubqueryExpr) exprNode() {}
func (FuncCall) exprNode()     {}
func (CaseExpr) exprNode()     {}
func (WindowExpr) exprNode()   {}
func (CastExpr) exprNode()     {}
func (DefaultExpr) exprNode()  {}

type StatementType int

const (
	SelectStatementType StatementType = iota
	UnionStatementType
	InsertStatementType
	UpdateStatementType
	DeleteStatementType
	CreateTableStatementType
	CreateTemporaryTableStatementType
	CreateViewStatementType
	CreateIndexStatementType
	DropTableStatementType
	DropViewStatementType
	DropIndexStatementType
	AlterTableStatementType
	BeginStatementType
	CommitStatementType
	RollbackStatementType
	SavepointStatementType
	ReleaseSavepointStatementType
	SetTransactionStatementType
	CallStatementType
)

func (t StatementType) String() string {
	switch t {
	case SelectStatementType:
		return "SELECT"
	case UnionStatementType:
		return "UNION"
	case InsertStatementType:
		return "INSERT"
	case UpdateStatementType:
		return "UPDATE"
	case DeleteStatementType:
		return "DELETE"
	case CreateTableStatementType:
		return "CREATE TABLE"
	case CreateTemporaryTableStatementType:
		return "CREATE TEMPORARY TABLE"
	case CreateViewStatementType:
		return "CREATE VIEW"
	case CreateIndexStatementType:
		return "CREATE INDEX"
	case DropTableStatementType:
		return "DROP TABLE"
	case DropViewStatementType:
		return "DROP VIEW"
	case DropIndexStatementType:
		return "DROP INDEX"
	case AlterTableStatementType:
		return "ALTER TABLE"
	case BeginStatementType:
		return "BEGIN"
	case CommitStatementType:
		return "COMMIT"
	case RollbackStatementType:
		return "ROLLBACK"
	case SavepointStatementType:
		return "SAVEPOINT"
	case ReleaseSavepointStatementType:
		return "RELEASE SAVEPOINT"
	case SetTransactionStatementType:
		return "SET TRANSACTION"
	case CallStatementType:
		return "CALL"
	default:
		return "UNKNOWN"
	}
}

type Statement interface {
	Type() StatementType
}

// QueryStatement is a statement that produces rows: a SELECT or a UNION chain.
type QueryStatement interface {
	Statement
	queryNode()
}

// TableName is a possibly schema-qualified object name.
type TableName struct {
	Schema string
	Name   string
}

func (name TableName) String() string {
	if name.Schema != "" {
		return name.Schema + "." + name.Name
	}
	return name.Name
}

// TableSource is a FROM or JOIN source: a named table or view, or a derived query.
type TableSource struct {
	Table    TableName
	Subquery QueryStatement
	Alias    string
}

// Label is the name the source is addressed by in column references.
func (source TableSource) Label() string {
	if source.Alias != "" {
		return source.Alias
	}
	return source.Table.Name
}

type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	CrossJoin
)

func (t JoinType) String() string {
	switch t {
	case LeftJoin:
		return "LEFT"
	case RightJoin:
		return "RIGHT"
	case CrossJoin:
		return "CROSS"
	default:
		return "INNER"
	}
}

type JoinClause struct {
	Type   JoinType
	Source TableSource
	On     Expr
}

type SelectItem struct {
	Expr  Expr
	Alias string
}

type OrderItem struct {
	Expr       Expr
	Descending bool
}

// LimitSyntax records which pagination form the query used.
type LimitSyntax int

const (
	LimitSyntaxLimit LimitSyntax = iota
	LimitSyntaxTop
	LimitSyntaxFetch
)

func (s LimitSyntax) String() string {
	switch s {
	case LimitSyntaxTop:
		return "TOP"
	case LimitSyntaxFetch:
		return "FETCH"
	default:
		return "LIMIT"
	}
}

type LimitClause struct {
	Count  Expr // nil when only an offset was given
	Offset Expr
	Syntax LimitSyntax
}

type CTE struct {
	Name    string
	Columns []string
	Query   QueryStatement
}

type SelectStatement struct {
	With     []CTE
	Distinct bool
	Items    []SelectItem
	From     *TableSource
	Joins    []JoinClause
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderItem
	Limit    *LimitClause
}

// UnionStatement chains SELECTs. All[i] tells whether Parts[i] and
// Parts[i+1] are combined with UNION ALL.
type UnionStatement struct {
	With    []CTE
	Parts   []SelectStatement
	All     []bool
	OrderBy []OrderItem
	Limit   *LimitClause
}

type Assignment struct {
	Column ColumnRef
	Value  Expr
}

type InsertStatement struct {
	Table       TableName
	Columns     []string
	Rows        [][]Expr
	Select      QueryStatement
	OnDuplicate []Assignment
}

// UpdateStatement covers UPDATE t SET ... and the join forms
// UPDATE t JOIN s ON ... SET ... and UPDATE a SET ... FROM t a JOIN s ON ...
type UpdateStatement struct {
	Target string
	Table  TableSource
	Joins  []JoinClause
	Set    []Assignment
	Where  Expr
}

// DeleteStatement covers DELETE [FROM] t and DELETE a FROM t a JOIN s ON ...
type DeleteStatement struct {
	Target string
	Table  TableSource
	Joins  []JoinClause
	Where  Expr
}

type ColumnSpec struct {
	Name          string
	TypeName      string
	Type          core.DbType
	Size          *int
	DecimalPlaces *int
	Nullable      bool
	PrimaryKey    bool
	Unique        bool
	Identity      bool
	Default       Expr
	EnumValues    []string
	Computed      string
	Persisted     bool
	References    *ForeignKeySpec
}

type IndexSpec struct {
	Name    string
	Columns []string
	Unique  bool
}

type ForeignKeySpec struct {
	Name       string
	Columns    []string
	RefTable   TableName
	RefColumns []string
}

type CreateTableStatement struct {
	Table       TableName
	IfNotExists bool
	Columns     []ColumnSpec
	PrimaryKey  []string
	Indexes     []IndexSpec
	ForeignKeys []ForeignKeySpec
	AsSelect    QueryStatement
}

type CreateTemporaryTableStatement struct {
	Table       TableName
	Global      bool
	IfNotExists bool
	ColumnNames []string
	Columns     []ColumnSpec
	AsSelect    QueryStatement
}

type CreateViewStatement struct {
	View      TableName
	OrReplace bool
	Columns   []string
	Query     QueryStatement
	// Text is the query as written, kept for fixture snapshots.
	Text string
}

type CreateIndexStatement struct {
	Name    string
	Table   TableName
	Columns []string
	Include []string
	Unique  bool
}

type DropTableStatement struct {
	Table     TableName
	IfExists  bool
	Temporary bool
}

type DropViewStatement struct {
	View     TableName
	IfExists bool
}

type DropIndexStatement struct {
	Name     string
	Table    TableName
	IfExists bool
}

type AlterTableStatement struct {
	Table      TableName
	Action     string // ADD or DROP
	Column     ColumnSpec
	ColumnName string
}

type BeginStatement struct {
	Isolation string
}

type CommitStatement struct{}

type RollbackStatement struct {
	Savepoint string
}

type SavepointStatement struct {
	Name string
}

type ReleaseSavepointStatement struct {
	Name string
}

type SetTransactionStatement struct {
	Isolation string
}

type CallArg struct {
	Name   string
	Value  Expr
	Output bool
}

type CallStatement struct {
	Procedure TableName
	Args      []CallArg
}

func (s SelectStatement) Type() StatementType               { return SelectStatementType }
func (s UnionStatement) Type() StatementType                { return UnionStatementType }
func (s InsertStatement) Type() StatementType               { return InsertStatementType }
func (s UpdateStatement) Type() StatementType               { return UpdateStatementType }
func (s DeleteStatement) Type() StatementType               { return DeleteStatementType }
func (s CreateTableStatement) Type() StatementType          { return CreateTableStatementType }
func (s CreateTemporaryTableStatement) Type() StatementType { return CreateTemporaryTableStatementType }
func (s CreateViewStatement) Type() StatementType           { return CreateViewStatementType }
func (s CreateIndexStatement) Type() StatementType          { return CreateIndexStatementType }
func (s DropTableStatement) Type() StatementType            { return DropTableStatementType }
func (s DropViewStatement) Type() StatementType             { return DropViewStatementType }
func (s DropIndexStatement) Type() StatementType            { return DropIndexStatementType }
func (s AlterTableStatement) Type() StatementType           { return AlterTableStatementType }
func (s BeginStatement) Type() StatementType                { return BeginStatementType }
func (s CommitStatement) Type() StatementType               { return CommitStatementType }
func (s RollbackStatement) Type() StatementType             { return RollbackStatementType }
func (s SavepointStatement) Type() StatementType            { return SavepointStatementType }
func (s ReleaseSavepointStatement) Type() StatementType     { return ReleaseSavepointStatementType }
func (s SetTransactionStatement) Type() StatementType       { return SetTransactionStatementType }
func (s CallStatement) Type() StatementType                 { return CallStatementType }

func (SelectStatement) queryNode() {}
func (UnionStatement) queryNode()  {}
