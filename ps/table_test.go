package ps

import (
	"testing"

	"github.com/nickyhof/SqlLikeMem/core"
)

func intPtr(value int) *int {
	return &value
}

func newTestDatabase() *Database {
	return NewDatabase(core.MySQL(8))
}

// newUsersTable creates users(id INT identity PK, name VARCHAR(10), email VARCHAR(50) unique, active BOOL default true).
func newUsersTable(t *testing.T, database *Database) *Table {
	t.Helper()

	table, err := database.DefaultSchema().CreateTable("users")
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	columns := []ColumnDef{
		{Name: "id", Type: core.IntType, Identity: true},
		{Name: "name", Type: core.StringType, Size: intPtr(10)},
		{Name: "email", Type: core.StringType, Size: intPtr(50), Nullable: true},
		{Name: "active", Type: core.BoolType, DefaultValue: true},
	}
	for _, column := range columns {
		if _, err := table.AddColumn(column); err != nil {
			t.Fatalf("Failed to add column %s: %v", column.Name, err)
		}
	}
	if err := table.SetPrimaryKey("id"); err != nil {
		t.Fatalf("Failed to set primary key: %v", err)
	}
	if _, err := table.CreateIndex("ux_users_email", []string{"email"}, nil, true); err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	return table
}

func TestTableAddAssignsIdentityAndDefaults(t *testing.T) {
	table := newUsersTable(t, newTestDatabase())

	ordinal, err := table.Add(Row{1: "alice"})
	if err != nil {
		t.Fatalf("Failed to add row: %v", err)
	}

	row, _ := table.Row(ordinal)
	if row[0] != int64(1) {
		t.Errorf("Expected identity 1, got %v", row[0])
	}
	if row[3] != true {
		t.Errorf("Expected default true, got %v", row[3])
	}
	if table.NextIdentity != 2 {
		t.Errorf("Expected NextIdentity 2, got %d", table.NextIdentity)
	}

	// explicit identity values move the counter past them
	if _, err := table.Add(Row{0: 10, 1: "bob"}); err != nil {
		t.Fatalf("Failed to add row: %v", err)
	}
	if table.NextIdentity != 11 {
		t.Errorf("Expected NextIdentity 11, got %d", table.NextIdentity)
	}
}

func TestTableFailedInsertDoesNotConsumeIdentity(t *testing.T) {
	table := newUsersTable(t, newTestDatabase())

	if _, err := table.Add(Row{1: "this name is too long"}); err == nil {
		t.Fatal("Expected data too long error")
	}
	if table.NextIdentity != 1 {
		t.Errorf("Expected NextIdentity 1 after failed insert, got %d", table.NextIdentity)
	}
}

func TestTableConstraintErrors(t *testing.T) {
	tests := []struct {
		name    string
		row     Row
		wantNum int
		wantMsg string
	}{
		{
			name:    "duplicate primary key",
			row:     Row{0: 1, 1: "dup"},
			wantNum: core.ErrNumDuplicateKey,
			wantMsg: "Duplicate entry 'id: 1' for key 'PRIMARY'",
		},
		{
			name:    "duplicate unique key",
			row:     Row{1: "dup", 2: "a@example.com"},
			wantNum: core.ErrNumDuplicateKey,
		},
		{
			name:    "null in not null column",
			row:     Row{2: "x@example.com"},
			wantNum: core.ErrNumColumnCannotBeNull,
			wantMsg: "Column 'name' cannot be null",
		},
		{
			name:    "string longer than size",
			row:     Row{1: "abcdefghijk"},
			wantNum: core.ErrNumDataTooLong,
		},
		{
			name:    "incorrect boolean",
			row:     Row{1: "eve", 3: "maybe"},
			wantNum: core.ErrNumIncorrectValue,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			table := newUsersTable(t, newTestDatabase())
			if _, err := table.Add(Row{1: "alice", 2: "a@example.com"}); err != nil {
				t.Fatalf("Failed to add seed row: %v", err)
			}

			_, err := table.Add(test.row)
			if err == nil {
				t.Fatal("Test Failed: expected an error")
			}
			if got := core.ErrorNumber(err); got != test.wantNum {
				t.Errorf("Test Failed: expected error %d, got %d (%v)", test.wantNum, got, err)
			}
			if test.wantMsg != "" && err.Error() != test.wantMsg {
				t.Errorf("Test Failed: expected message %q, got %q", test.wantMsg, err.Error())
			}
			if table.Count() != 1 {
				t.Errorf("Test Failed: expected 1 row after rejected insert, got %d", table.Count())
			}
		})
	}
}

func TestUniqueIndexAllowsMultipleNulls(t *testing.T) {
	table := newUsersTable(t, newTestDatabase())

	for _, name := range []string{"alice", "bob"} {
		if _, err := table.Add(Row{1: name}); err != nil {
			t.Fatalf("Failed to add %s: %v", name, err)
		}
	}
	if table.Count() != 2 {
		t.Errorf("Expected 2 rows, got %d", table.Count())
	}
}

func TestTableExplicitNullKeepsNull(t *testing.T) {
	table, err := newTestDatabase().DefaultSchema().CreateTable("codes")
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	table.AddColumn(ColumnDef{Name: "id", Type: core.IntType})
	table.AddColumn(ColumnDef{Name: "code", Type: core.IntType, Nullable: true, DefaultValue: int64(0)})
	if _, err := table.CreateIndex("uq_code", []string{"code"}, nil, true); err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}

	if _, err := table.Add(Row{0: int64(1)}); err != nil {
		t.Fatalf("Failed to add defaulted row: %v", err)
	}
	ordinal, err := table.Add(Row{0: int64(2), 1: nil})
	if err != nil {
		t.Fatalf("Expected explicit NULL not to take the default, got %v", err)
	}
	if row, _ := table.Row(ordinal); row[1] != nil {
		t.Errorf("Expected NULL code, got %v", row[1])
	}
	if _, err := table.Add(Row{0: int64(3)}); core.ErrorNumber(err) != core.ErrNumDuplicateKey {
		t.Errorf("Expected omitted code to default and collide, got %v", err)
	}
}

func TestTableUpdateRow(t *testing.T) {
	table := newUsersTable(t, newTestDatabase())
	table.Add(Row{1: "alice", 2: "a@example.com"})
	table.Add(Row{1: "bob", 2: "b@example.com"})

	if err := table.UpdateRow(1, map[int]any{2: "a@example.com"}); core.ErrorNumber(err) != core.ErrNumDuplicateKey {
		t.Errorf("Expected duplicate key error, got %v", err)
	}

	if err := table.UpdateRow(1, map[int]any{2: "bobby@example.com"}); err != nil {
		t.Fatalf("Failed to update row: %v", err)
	}

	index, _ := table.Index("ux_users_email")
	if got := index.Lookup("b@example.com"); len(got) != 0 {
		t.Errorf("Expected old key to be gone, got %v", got)
	}
	if got := index.Lookup("bobby@example.com"); len(got) != 1 || got[0] != 1 {
		t.Errorf("Expected new key at ordinal 1, got %v", got)
	}
}

func TestTableDeleteRowsRebuildsIndexes(t *testing.T) {
	table := newUsersTable(t, newTestDatabase())
	for _, name := range []string{"a", "b", "c"} {
		table.Add(Row{1: name})
	}

	deleted, err := table.DeleteRows([]int{0})
	if err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted row, got %d", deleted)
	}

	primary, _ := table.Index(PrimaryKeyName)
	if got := primary.Lookup(3); len(got) != 1 || got[0] != 1 {
		t.Errorf("Expected id 3 at ordinal 1, got %v", got)
	}
	if got := primary.Lookup(1); len(got) != 0 {
		t.Errorf("Expected id 1 to be gone, got %v", got)
	}
}

func TestForeignKeys(t *testing.T) {
	database := newTestDatabase()
	users := newUsersTable(t, database)
	users.Add(Row{1: "alice"})

	orders, _ := database.DefaultSchema().CreateTable("orders")
	orders.AddColumn(ColumnDef{Name: "id", Type: core.IntType, Identity: true})
	orders.AddColumn(ColumnDef{Name: "user_id", Type: core.IntType, Nullable: true})
	orders.SetPrimaryKey("id")
	if _, err := orders.CreateForeignKey("fk_orders_users", []string{"user_id"}, users, []string{"id"}); err != nil {
		t.Fatalf("Failed to create foreign key: %v", err)
	}

	if _, err := orders.Add(Row{1: 1}); err != nil {
		t.Fatalf("Failed to add child row: %v", err)
	}
	if _, err := orders.Add(Row{1: nil}); err != nil {
		t.Errorf("Expected NULL reference to be accepted, got %v", err)
	}
	if _, err := orders.Add(Row{1: 99}); core.ErrorNumber(err) != core.ErrNumNoReferencedRow {
		t.Errorf("Expected error 1452, got %v", err)
	}

	if _, err := users.DeleteRows([]int{0}); core.ErrorNumber(err) != core.ErrNumRowIsReferenced {
		t.Errorf("Expected error 1451, got %v", err)
	}
	if err := users.UpdateRow(0, map[int]any{0: 5}); core.ErrorNumber(err) != core.ErrNumRowIsReferenced {
		t.Errorf("Expected error 1451 on key update, got %v", err)
	}
	if err := database.DefaultSchema().DropTable("users"); core.ErrorNumber(err) != core.ErrNumRowIsReferenced {
		t.Errorf("Expected referenced table drop to fail, got %v", err)
	}
}

func TestComputedColumn(t *testing.T) {
	table, _ := newTestDatabase().DefaultSchema().CreateTable("items")
	table.AddColumn(ColumnDef{Name: "price", Type: core.DecimalType, DecimalPlaces: intPtr(2)})
	table.AddColumn(ColumnDef{Name: "qty", Type: core.IntType})
	if _, err := table.AddColumn(ColumnDef{
		Name:          "total",
		Type:          core.DecimalType,
		DecimalPlaces: intPtr(2),
		Nullable:      true,
		Computed:      "price * qty",
	}); err != nil {
		t.Fatalf("Failed to add computed column: %v", err)
	}

	ordinal, err := table.Add(Row{0: 2.5, 1: 3, 2: 1000})
	if err != nil {
		t.Fatalf("Failed to add row: %v", err)
	}
	row, _ := table.Row(ordinal)
	if row[2] != 7.5 {
		t.Errorf("Expected total 7.5, got %v", row[2])
	}

	if err := table.UpdateRow(ordinal, map[int]any{1: 4}); err != nil {
		t.Fatalf("Failed to update row: %v", err)
	}
	row, _ = table.Row(ordinal)
	if row[2] != 10.0 {
		t.Errorf("Expected total 10, got %v", row[2])
	}

	if err := table.DropColumn("qty"); err == nil {
		t.Error("Expected dropping a referenced column to fail")
	}
}

func TestDropColumnShiftsOrdinals(t *testing.T) {
	table := newUsersTable(t, newTestDatabase())
	table.Add(Row{1: "alice", 2: "a@example.com"})

	if err := table.DropColumn("email"); err != nil {
		t.Fatalf("Failed to drop column: %v", err)
	}
	if _, ok := table.Index("ux_users_email"); ok {
		t.Error("Expected covering index to be dropped")
	}

	active, _ := table.Column("active")
	if active.Index != 2 {
		t.Errorf("Expected active at ordinal 2, got %d", active.Index)
	}
	row, _ := table.Row(0)
	if row[2] != true {
		t.Errorf("Expected shifted value true, got %v", row[2])
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		column  ColumnDef
		value   any
		want    any
		wantNum int
	}{
		{name: "int from text", column: ColumnDef{Name: "c", Type: core.IntType}, value: "42", want: int64(42)},
		{name: "int rounds fraction", column: ColumnDef{Name: "c", Type: core.IntType}, value: 2.6, want: int64(3)},
		{name: "bad int", column: ColumnDef{Name: "c", Type: core.IntType}, value: "abc", wantNum: core.ErrNumIncorrectValue},
		{name: "decimal scale", column: ColumnDef{Name: "c", Type: core.DecimalType, DecimalPlaces: intPtr(2)}, value: 1.234, wantNum: core.ErrNumOutOfRange},
		{name: "enum member", column: ColumnDef{Name: "c", Type: core.EnumType, EnumValues: []string{"Red", "Blue"}}, value: "red", want: "Red"},
		{name: "enum miss", column: ColumnDef{Name: "c", Type: core.EnumType, EnumValues: []string{"Red"}}, value: "green", wantNum: core.ErrNumDataTruncated},
		{name: "set members in declared order", column: ColumnDef{Name: "c", Type: core.SetType, EnumValues: []string{"a", "b", "c"}}, value: "c,a", want: "a,c"},
		{name: "guid", column: ColumnDef{Name: "c", Type: core.GuidType}, value: "not-a-guid", wantNum: core.ErrNumIncorrectValue},
		{name: "json", column: ColumnDef{Name: "c", Type: core.JsonType}, value: `{"a":1}`, want: `{"a":1}`},
		{name: "null stays null", column: ColumnDef{Name: "c", Type: core.IntType}, value: nil, want: nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := test.column.Coerce(test.value)
			if test.wantNum != 0 {
				if core.ErrorNumber(err) != test.wantNum {
					t.Errorf("Test Failed: expected error %d, got %v", test.wantNum, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Test Failed: unexpected error: %v", err)
			}
			if got != test.want {
				t.Errorf("Test Failed: expected %v (%T), got %v (%T)", test.want, test.want, got, got)
			}
		})
	}
}
