package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nickyhof/SqlLikeMem"
	"github.com/nickyhof/SqlLikeMem/config"
	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/db"
	"github.com/nickyhof/SqlLikeMem/plan"
	"github.com/nickyhof/SqlLikeMem/ps"
	"github.com/nickyhof/SqlLikeMem/sql"
)

const (
	PromptColor  = "\033[36m" // Cyan
	ErrorColor   = "\033[31m" // Red
	SuccessColor = "\033[32m" // Green
	ResetColor   = "\033[0m"
	BoldColor    = "\033[1m"
)

// Version is set at build time via -ldflags
var Version = "dev"

// CLI holds the CLI state
type CLI struct {
	engine      *db.Engine
	instance    *SqlLikeMem.Instance
	identity    core.Identity
	remoteAuth  *ps.RemoteAuth
	history     []string
	historyFile string
}

func main() {
	configPath := flag.String("config", "", "Path to the YAML config file (default sqllikemem.yaml if present)")
	dialectName := flag.String("dialect", "", "Dialect: mysql, sqlserver or db2 (overrides config)")
	dialectVersion := flag.Int("dialect-version", 0, "Dialect version, 0 for the dialect default")
	fixtureDir := flag.String("fixtures", "", "Directory of the fixture repository (overrides config)")
	fixtureRemote := flag.String("remote", "", "Git URL to sync fixtures from and publish to (overrides config)")
	sqlFile := flag.String("sqlFile", "", "SQL file to execute (non-interactive)")
	userName := flag.String("name", "SqlLikeMem", "User name for the session and fixture commits")
	userEmail := flag.String("email", "cli@sqllikemem.local", "User email for the session and fixture commits")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("%sError: %v%s\n", ErrorColor, err, ResetColor)
		os.Exit(1)
	}
	if *dialectName != "" {
		cfg.Database.Dialect = *dialectName
		cfg.Database.Version = *dialectVersion
	}
	if *fixtureDir != "" {
		cfg.Database.FixtureDir = *fixtureDir
	}
	if *fixtureRemote != "" {
		cfg.Database.FixtureRemote = *fixtureRemote
	}

	database, err := cfg.NewDatabase()
	if err != nil {
		fmt.Printf("%sError: %v%s\n", ErrorColor, err, ResetColor)
		os.Exit(1)
	}

	printBanner()
	fmt.Printf("%sDialect: %s%s\n", SuccessColor, database.Dialect, ResetColor)

	if cfg.Database.FixtureDir != "" {
		fmt.Printf("%sUsing fixture repository: %s%s\n", SuccessColor, cfg.Database.FixtureDir, ResetColor)
	}
	fixtures, err := cfg.OpenFixtures(context.Background())
	if err != nil {
		fmt.Printf("%sError: %v%s\n", ErrorColor, err, ResetColor)
		os.Exit(1)
	}

	identity := core.Identity{
		Name:  *userName,
		Email: *userEmail,
	}
	cli := newCLI(SqlLikeMem.Attach(database, fixtures), identity)
	cli.remoteAuth = cfg.RemoteAuth()
	cli.historyFile = getHistoryPath()
	cli.loadHistory()

	// Execute SQL file if provided
	if *sqlFile != "" {
		err := cli.importFile(*sqlFile)
		if err != nil {
			fmt.Printf("%sError importing file: %v%s\n", ErrorColor, err, ResetColor)
			os.Exit(1)
		}
		return
	}

	cli.run()
}

func newCLI(instance *SqlLikeMem.Instance, identity core.Identity) *CLI {
	return &CLI{
		engine:   instance.Engine(identity),
		instance: instance,
		identity: identity,
		history:  make([]string, 0),
	}
}

func printBanner() {
	fmt.Println()
	bannerWidth := 39 // inner width of the banner box
	versionLine := fmt.Sprintf("SqlLikeMem v%s", Version)
	padding := bannerWidth - len(versionLine) - 2 // -2 for "  " margins
	if padding < 0 {
		padding = 0
	}
	leftPad := padding / 2
	rightPad := padding - leftPad

	fmt.Printf("%s%s╔═══════════════════════════════════════╗%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Printf("%s%s║ %*s%s%*s ║%s\n", BoldColor, PromptColor, leftPad, "", versionLine, rightPad, "", ResetColor)
	fmt.Printf("%s%s║   In-memory SQL for tests             ║%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Printf("%s%s╚═══════════════════════════════════════╝%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println()
	fmt.Println("Type .help for commands, .quit to exit")
	fmt.Println()
}

func (cli *CLI) run() {
	reader := bufio.NewReader(os.Stdin)
	var multiLineBuffer strings.Builder

	for {
		prompt := cli.getPrompt(multiLineBuffer.Len() > 0)
		fmt.Print(prompt)

		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Printf("\n%sGoodbye!%s\n", SuccessColor, ResetColor)
			cli.saveHistory()
			return
		}

		input = strings.TrimSuffix(input, "\n")
		input = strings.TrimSuffix(input, "\r")

		if strings.TrimSpace(input) == "" {
			continue
		}

		// Special commands only outside multi-line mode
		if multiLineBuffer.Len() == 0 && strings.HasPrefix(input, ".") {
			if cli.handleCommand(input) {
				continue
			}
		}

		// Accumulate until the statement ends with a semicolon
		multiLineBuffer.WriteString(input)

		trimmed := strings.TrimSpace(multiLineBuffer.String())
		if !strings.HasSuffix(trimmed, ";") {
			multiLineBuffer.WriteString(" ")
			continue
		}

		query := strings.TrimSuffix(trimmed, ";")
		multiLineBuffer.Reset()

		if strings.TrimSpace(query) == "" {
			continue
		}

		cli.addToHistory(query + ";")

		result, err := cli.engine.Execute(query, nil)
		if err != nil {
			cli.printError(err)
		} else {
			result.Display()
		}
	}
}

func (cli *CLI) getPrompt(multiLine bool) string {
	if multiLine {
		return fmt.Sprintf("%s   ...>%s ", PromptColor, ResetColor)
	}

	txPart := ""
	if cli.engine.Transaction() != nil {
		txPart = "*"
	}

	return fmt.Sprintf("%ssqllikemem (%s)%s>%s ", PromptColor, cli.engine.Dialect().Name, txPart, ResetColor)
}

func (cli *CLI) printError(err error) {
	if number := core.ErrorNumber(err); number != 0 {
		fmt.Printf("%s✗ Error %d: %v%s\n", ErrorColor, number, err, ResetColor)
		return
	}
	fmt.Printf("%s✗ Error: %v%s\n", ErrorColor, err, ResetColor)
}

func (cli *CLI) handleCommand(input string) bool {
	parts := strings.Fields(strings.TrimSpace(input))

	if len(parts) == 0 {
		return true
	}

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit", ".q":
		fmt.Printf("%sGoodbye!%s\n", SuccessColor, ResetColor)
		cli.saveHistory()
		os.Exit(0)

	case ".help", ".h", ".?":
		cli.printHelp()

	case ".tables":
		schema := ""
		if len(parts) > 1 {
			schema = parts[1]
		}
		cli.showTables(schema)

	case ".schemas":
		cli.showSchemas()

	case ".plan", ".explain":
		cli.showPlan()

	case ".clear", ".cls":
		fmt.Print("\033[H\033[2J")

	case ".history":
		cli.printHistory()

	case ".version":
		fmt.Printf("SqlLikeMem version %s (%s)\n", Version, cli.engine.Dialect())

	case ".read", ".source":
		if len(parts) > 1 {
			if err := cli.importFile(parts[1]); err != nil {
				cli.printError(err)
			}
		} else {
			fmt.Printf("%s✗ Usage: .read <file.sql>%s\n", ErrorColor, ResetColor)
		}

	case ".export":
		if len(parts) > 2 {
			cli.exportTable(parts[1], parts[2])
		} else {
			fmt.Printf("%s✗ Usage: .export <schema.table> <location>%s\n", ErrorColor, ResetColor)
		}

	case ".import":
		switch len(parts) {
		case 2:
			cli.importTable(parts[1], "")
		case 3:
			cli.importTable(parts[1], parts[2])
		default:
			fmt.Printf("%s✗ Usage: .import <location> [schema]%s\n", ErrorColor, ResetColor)
		}

	case ".snapshot":
		if len(parts) > 1 {
			cli.snapshot(parts[1])
		} else {
			fmt.Printf("%s✗ Usage: .snapshot <tag>%s\n", ErrorColor, ResetColor)
		}

	case ".restore":
		if len(parts) > 1 {
			cli.restore(parts[1])
		} else {
			fmt.Printf("%s✗ Usage: .restore <tag|commit>%s\n", ErrorColor, ResetColor)
		}

	case ".fixtures":
		cli.showFixtures()

	case ".publish":
		cli.publish()

	case ".sync":
		cli.sync()

	default:
		fmt.Printf("%s✗ Unknown command: %s (type .help for commands)%s\n", ErrorColor, parts[0], ResetColor)
	}

	return true
}

func (cli *CLI) printHelp() {
	fmt.Println()
	fmt.Printf("%s%sSpecial Commands:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println("  .help, .h                  Show this help message")
	fmt.Println("  .quit, .exit               Exit the CLI")
	fmt.Println("  .schemas                   List schemas")
	fmt.Println("  .tables [schema]           List tables")
	fmt.Println("  .plan                      Show the plan of the last SELECT")
	fmt.Println("  .read <file>               Execute SQL statements from a file")
	fmt.Println("  .export <table> <location> Write a table to a file, http(s):// or s3:// URL")
	fmt.Println("  .import <location> [schema] Load a table written by .export")
	fmt.Println("  .snapshot <tag>            Commit the database to the fixture repository")
	fmt.Println("  .restore <tag|commit>      Replace the database with a fixture")
	fmt.Println("  .fixtures                  List fixture tags and recent commits")
	fmt.Println("  .publish                   Push fixtures and tags to the remote")
	fmt.Println("  .sync                      Fetch fixture tags from the remote")
	fmt.Println("  .history                   Show command history")
	fmt.Println("  .clear                     Clear the screen")
	fmt.Println("  .version                   Show version info")
	fmt.Println()
	fmt.Printf("%s%sSQL Commands:%s\n", BoldColor, PromptColor, ResetColor)
	fmt.Println("  CREATE [TEMPORARY] TABLE <table> (<column> <type>, ...);")
	fmt.Println("  CREATE VIEW <name> AS SELECT ...;")
	fmt.Println("  CREATE [UNIQUE] INDEX <name> ON <table> (<cols>);")
	fmt.Println("  ALTER TABLE <table> ADD|DROP COLUMN ...;")
	fmt.Println("  DROP TABLE|VIEW|INDEX ...;")
	fmt.Println("  INSERT INTO <table> (<cols>) VALUES (<vals>) [ON DUPLICATE KEY UPDATE ...];")
	fmt.Println("  SELECT ... FROM ... [JOIN ...] [WHERE ...] [GROUP BY ...] [ORDER BY ...];")
	fmt.Println("  UPDATE <table> SET <col>=<val> [WHERE ...];")
	fmt.Println("  DELETE FROM <table> [WHERE ...];")
	fmt.Println("  BEGIN; COMMIT; ROLLBACK; SAVEPOINT <name>;")
	fmt.Println("  CALL <procedure>(<args>);")
	fmt.Println()
	fmt.Printf("%s%sAggregates:%s SUM, AVG, MIN, MAX, COUNT, GROUP_CONCAT, GROUP BY, HAVING\n", BoldColor, PromptColor, ResetColor)
	fmt.Printf("%s%sJoins:%s INNER, LEFT, RIGHT, CROSS\n", BoldColor, PromptColor, ResetColor)
	fmt.Println()
}

func (cli *CLI) showSchemas() {
	database := cli.instance.Database
	database.RLock()
	defer database.RUnlock()

	for _, schema := range database.Schemas() {
		marker := ""
		if schema == database.DefaultSchema() {
			marker = " (default)"
		}
		fmt.Printf("  %s%s\n", schema.Name, marker)
	}
}

func (cli *CLI) showTables(schema string) {
	database := cli.instance.Database
	database.RLock()
	defer database.RUnlock()

	count := 0
	for _, table := range database.Tables() {
		if schema != "" && !strings.EqualFold(table.Schema().Name, schema) {
			continue
		}
		kind := ""
		if table.Temporary {
			kind = " (temporary)"
		}
		fmt.Printf("  %s.%s  %d rows%s\n", table.Schema().Name, table.Name, table.Count(), kind)
		count++
	}
	if count == 0 {
		fmt.Println("No tables")
	}
}

func (cli *CLI) showPlan() {
	last := cli.engine.LastPlan()
	if last == nil {
		fmt.Println("No plan yet: run a SELECT first")
		return
	}
	fmt.Println(plan.Format(last))
}

func (cli *CLI) exportTable(name, location string) {
	table := parseTableName(name)
	rows, err := cli.engine.ExportTable(context.Background(), table, location, nil)
	if err != nil {
		cli.printError(err)
		return
	}
	fmt.Printf("%s✓ Exported %d rows from %s to %s%s\n", SuccessColor, rows, table, location, ResetColor)
}

func (cli *CLI) importTable(location, schema string) {
	table, err := cli.engine.ImportTable(context.Background(), schema, location, nil)
	if err != nil {
		cli.printError(err)
		return
	}
	fmt.Printf("%s✓ Imported %s.%s (%d rows)%s\n", SuccessColor, table.Schema().Name, table.Name, table.Count(), ResetColor)
}

func (cli *CLI) snapshot(tag string) {
	commit, err := cli.instance.Op().Snapshot(cli.identity, "Snapshot "+tag, tag)
	if err != nil {
		cli.printError(err)
		return
	}
	fmt.Printf("%s✓ Snapshot %s at %s%s\n", SuccessColor, tag, commit.Id, ResetColor)
}

func (cli *CLI) restore(ref string) {
	if cli.engine.Transaction() != nil {
		fmt.Printf("%s✗ Commit or roll back the open transaction first%s\n", ErrorColor, ResetColor)
		return
	}
	if err := cli.instance.Op().Restore(ref); err != nil {
		cli.printError(err)
		return
	}
	fmt.Printf("%s✓ Restored %s%s\n", SuccessColor, ref, ResetColor)
}

func (cli *CLI) showFixtures() {
	fixtures := cli.instance.Fixtures
	if fixtures == nil {
		fmt.Println("No fixture repository")
		return
	}
	tags, err := fixtures.Tags()
	if err != nil {
		cli.printError(err)
		return
	}
	if len(tags) > 0 {
		fmt.Printf("Tags: %s\n", strings.Join(tags, ", "))
	}
	commits, err := fixtures.History(10)
	if err != nil {
		cli.printError(err)
		return
	}
	for _, commit := range commits {
		fmt.Printf("  %s  %s  %s\n", truncate(commit.Id, 10), commit.When.Format("2006-01-02 15:04"), commit.Message)
	}
}

func (cli *CLI) publish() {
	if err := cli.instance.Fixtures.Publish(context.Background(), cli.remoteAuth); err != nil {
		cli.printError(err)
		return
	}
	url, _ := cli.instance.Fixtures.RemoteURL()
	fmt.Printf("%s✓ Published fixtures to %s%s\n", SuccessColor, url, ResetColor)
}

func (cli *CLI) sync() {
	if err := cli.instance.Fixtures.Sync(context.Background(), cli.remoteAuth); err != nil {
		cli.printError(err)
		return
	}
	fmt.Printf("%s✓ Synced fixtures%s\n", SuccessColor, ResetColor)
	cli.showFixtures()
}

// parseTableName splits "schema.table"; a bare name selects the default schema.
func parseTableName(name string) sql.TableName {
	schema, table, found := strings.Cut(name, ".")
	if !found {
		return sql.TableName{Name: schema}
	}
	return sql.TableName{Schema: schema, Name: table}
}

func (cli *CLI) addToHistory(cmd string) {
	// Don't add duplicates of the last command
	if len(cli.history) > 0 && cli.history[len(cli.history)-1] == cmd {
		return
	}
	cli.history = append(cli.history, cmd)

	if len(cli.history) > 1000 {
		cli.history = cli.history[len(cli.history)-1000:]
	}
}

func (cli *CLI) printHistory() {
	if len(cli.history) == 0 {
		fmt.Println("No command history")
		return
	}

	start := 0
	if len(cli.history) > 20 {
		start = len(cli.history) - 20
	}

	for i := start; i < len(cli.history); i++ {
		fmt.Printf("  %3d  %s\n", i+1, cli.history[i])
	}
}

func getHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sqllikemem_history")
}

func (cli *CLI) loadHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Open(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		cli.history = append(cli.history, scanner.Text())
	}
}

func (cli *CLI) saveHistory() {
	if cli.historyFile == "" {
		return
	}

	file, err := os.Create(cli.historyFile)
	if err != nil {
		return
	}
	defer file.Close()

	start := 0
	if len(cli.history) > 1000 {
		start = len(cli.history) - 1000
	}

	for i := start; i < len(cli.history); i++ {
		_, _ = file.WriteString(cli.history[i] + "\n")
	}
}

// importFile reads and executes SQL statements from a file
func (cli *CLI) importFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	statements := splitStatements(string(data))

	successCount := 0
	errorCount := 0

	for i, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}

		result, err := cli.engine.Execute(stmt, nil)
		if err != nil {
			fmt.Printf("%s[%d] ✗ %s%s\n", ErrorColor, i+1, truncate(stmt, 50), ResetColor)
			fmt.Printf("      Error: %v\n", err)
			errorCount++
			continue
		}
		successCount++

		switch r := result.(type) {
		case db.CommitResult:
			var details []string
			if r.TablesCreated > 0 {
				details = append(details, fmt.Sprintf("%d table created", r.TablesCreated))
			}
			if r.TablesDeleted > 0 {
				details = append(details, fmt.Sprintf("%d table deleted", r.TablesDeleted))
			}
			if r.RecordsWritten > 0 {
				details = append(details, fmt.Sprintf("%d written", r.RecordsWritten))
			}
			if r.RecordsDeleted > 0 {
				details = append(details, fmt.Sprintf("%d deleted", r.RecordsDeleted))
			}
			detailStr := ""
			if len(details) > 0 {
				detailStr = " (" + strings.Join(details, ", ") + ")"
			}
			fmt.Printf("%s[%d] ✓ %s%s%s\n", SuccessColor, i+1, truncate(stmt, 50), detailStr, ResetColor)
		case db.QueryResult:
			fmt.Printf("%s[%d] ✓ %s (%d rows)%s\n", SuccessColor, i+1, truncate(stmt, 50), len(r.Rows), ResetColor)
		default:
			fmt.Printf("%s[%d] ✓ %s%s\n", SuccessColor, i+1, truncate(stmt, 50), ResetColor)
		}
	}

	fmt.Printf("\n%s✓ Import complete: %d succeeded, %d failed%s\n",
		SuccessColor, successCount, errorCount, ResetColor)

	return nil
}

// splitStatements splits SQL content into individual statements
func splitStatements(content string) []string {
	var statements []string
	var current strings.Builder
	inString := false
	stringChar := byte(0)

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if (ch == '\'' || ch == '"' || ch == '`') && (i == 0 || content[i-1] != '\\') {
			if !inString {
				inString = true
				stringChar = ch
			} else if ch == stringChar {
				inString = false
			}
		}

		// Line comments run to end of line
		if !inString && ch == '-' && i+1 < len(content) && content[i+1] == '-' {
			for i < len(content) && content[i] != '\n' {
				i++
			}
			continue
		}

		if !inString && ch == ';' {
			stmt := strings.TrimSpace(current.String())
			if stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
			continue
		}

		current.WriteByte(ch)
	}

	// Last statement without semicolon
	stmt := strings.TrimSpace(current.String())
	if stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}

// truncate shortens a string to max length with ellipsis
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
