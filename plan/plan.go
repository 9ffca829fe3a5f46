package plan

import (
	"strings"

	"github.com/nickyhof/SqlLikeMem/sql"
)

// Severity orders warnings from informational to high impact.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityHigh
)

func (severity Severity) String() string {
	switch severity {
	case SeverityWarning:
		return "Warning"
	case SeverityHigh:
		return "High"
	default:
		return "Info"
	}
}

func (severity Severity) MarshalText() ([]byte, error) {
	return []byte(severity.String()), nil
}

// lower returns the severity one tier down, stopping at Info.
func (severity Severity) lower() Severity {
	if severity > SeverityInfo {
		return severity - 1
	}
	return SeverityInfo
}

// Metrics are the runtime figures collected while executing a query.
type Metrics struct {
	InputTables       int   `json:"inputTables"`
	EstimatedRowsRead int64 `json:"estimatedRowsRead"`
	ActualRows        int   `json:"actualRows"`
	ElapsedMs         int64 `json:"elapsedMs"`
}

// SelectivityPct is the share of rows read that made it into the result.
func (metrics Metrics) SelectivityPct() float64 {
	if metrics.EstimatedRowsRead == 0 {
		return 0
	}
	return float64(metrics.ActualRows) / float64(metrics.EstimatedRowsRead) * 100
}

func (metrics Metrics) RowsPerMs() float64 {
	if metrics.ElapsedMs <= 0 {
		return float64(metrics.ActualRows)
	}
	return float64(metrics.ActualRows) / float64(metrics.ElapsedMs)
}

type Warning struct {
	Code            string   `json:"code"`
	Message         string   `json:"message"`
	Reason          string   `json:"reason"`
	SuggestedAction string   `json:"suggestedAction"`
	Severity        Severity `json:"severity"`
	MetricName      string   `json:"metricName"`
	ObservedValue   string   `json:"observedValue"`
	Threshold       string   `json:"threshold"`
}

type IndexRecommendation struct {
	Table                   string   `json:"table"`
	Columns                 []string `json:"columns"`
	SuggestedIndex          string   `json:"suggestedIndex"`
	Reason                  string   `json:"reason"`
	Confidence              int      `json:"confidence"`
	EstimatedRowsReadBefore int64    `json:"estimatedRowsReadBefore"`
	EstimatedRowsReadAfter  int64    `json:"estimatedRowsReadAfter"`
}

func (recommendation IndexRecommendation) EstimatedGainPct() float64 {
	if recommendation.EstimatedRowsReadBefore <= 0 {
		return 0
	}
	before := float64(recommendation.EstimatedRowsReadBefore)
	return (before - float64(recommendation.EstimatedRowsReadAfter)) / before * 100
}

// Field is one metadata line of a plan.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Plan describes one executed query: its shape, what it cost and what could
// be done about it.
type Plan struct {
	Statement            sql.QueryStatement
	QueryType            string
	EstimatedCost        int
	Metrics              Metrics
	Warnings             []Warning
	IndexRecommendations []IndexRecommendation
	Metadata             []Field
	Context              string

	riskScore int
}

// Meta returns the value of a metadata field.
func (plan *Plan) Meta(name string) (string, bool) {
	for _, field := range plan.Metadata {
		if strings.EqualFold(field.Name, name) {
			return field.Value, true
		}
	}
	return "", false
}

// RiskScore sums the warning weights, capped at 100.
func (plan *Plan) RiskScore() int {
	return plan.riskScore
}

// Catalog reports the key columns of every index on a table, or false when
// the name is not a base table.
type Catalog func(name sql.TableName) (indexes [][]string, ok bool)

type options struct {
	catalog  Catalog
	context  string
	previous *Plan
}

type Option func(*options)

func WithCatalog(catalog Catalog) Option {
	return func(o *options) {
		o.catalog = catalog
	}
}

// WithContext selects the severity hint context, "dev" or "prod".
func WithContext(context string) Option {
	return func(o *options) {
		if context != "" {
			o.context = strings.ToLower(context)
		}
	}
}

// WithPrevious adds a PlanDelta against an earlier plan.
func WithPrevious(previous *Plan) Option {
	return func(o *options) {
		o.previous = previous
	}
}

// Analyze builds the plan of an executed query from its AST and runtime metrics.
func Analyze(statement sql.QueryStatement, metrics Metrics, opts ...Option) *Plan {
	o := options{context: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	plan := &Plan{
		Statement:     statement,
		QueryType:     statement.Type().String(),
		EstimatedCost: EstimatedCost(statement),
		Metrics:       metrics,
		Context:       o.context,
	}
	plan.Warnings = analyzeWarnings(shapeOf(statement), metrics)
	plan.IndexRecommendations = recommendIndexes(statement, metrics, o.catalog)
	plan.riskScore = riskScore(plan.Warnings)
	plan.Metadata = buildMetadata(plan, o.previous)
	return plan
}
