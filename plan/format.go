package plan

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nickyhof/SqlLikeMem/sql"
)

// Labels maps a label id to the text printed for it. Format falls back to
// the id for labels a table leaves out.
type Labels map[string]string

var DefaultLabels = Labels{
	"Title":                   "Execution plan",
	"QueryType":               "QueryType",
	"EstimatedCost":           "EstimatedCost",
	"CTEs":                    "CTEs",
	"From":                    "FROM",
	"Join":                    "JOIN",
	"Where":                   "WHERE",
	"GroupBy":                 "GROUP BY",
	"Having":                  "HAVING",
	"Projection":              "Projection",
	"Distinct":                "DISTINCT",
	"OrderBy":                 "ORDER BY",
	"Parts":                   "Parts",
	"Part":                    "Part",
	"Combine":                 "Combine",
	"InputTables":             "InputTables",
	"EstimatedRowsRead":       "EstimatedRowsRead",
	"ActualRows":              "ActualRows",
	"SelectivityPct":          "SelectivityPct",
	"RowsPerMs":               "RowsPerMs",
	"ElapsedMs":               "ElapsedMs",
	"IndexRecommendations":    "IndexRecommendations",
	"Table":                   "Table",
	"SuggestedIndex":          "SuggestedIndex",
	"Reason":                  "Reason",
	"Confidence":              "Confidence",
	"EstimatedRowsReadBefore": "EstimatedRowsReadBefore",
	"EstimatedRowsReadAfter":  "EstimatedRowsReadAfter",
	"EstimatedGainPct":        "EstimatedGainPct",
	"Warnings":                "Warnings",
	"Code":                    "Code",
	"Message":                 "Message",
	"SuggestedAction":         "SuggestedAction",
	"Severity":                "Severity",
	"MetricName":              "MetricName",
	"ObservedValue":           "ObservedValue",
	"Threshold":               "Threshold",
}

func (labels Labels) get(id string) string {
	if text, ok := labels[id]; ok && text != "" {
		return text
	}
	return id
}

// Format renders the plan as indented text using DefaultLabels.
func Format(plan *Plan) string {
	return FormatWith(plan, DefaultLabels)
}

func FormatWith(plan *Plan, labels Labels) string {
	w := &planWriter{labels: labels}
	w.sb.WriteString(labels.get("Title"))
	w.sb.WriteString("\n")
	w.line("QueryType", plan.QueryType)
	w.line("EstimatedCost", strconv.Itoa(plan.EstimatedCost))

	switch s := plan.Statement.(type) {
	case sql.SelectStatement:
		w.selectShape(s)
	case sql.UnionStatement:
		if len(s.With) > 0 {
			w.line("CTEs", cteNames(s.With))
		}
		w.line("Parts", strconv.Itoa(len(s.Parts)))
		for i, part := range s.Parts {
			w.line(fmt.Sprintf("%s[%d]", labels.get("Part"), i+1), "SELECT from "+fromText(part.From))
		}
		for i, all := range s.All {
			combine := "UNION DISTINCT"
			if all {
				combine = "UNION ALL"
			}
			w.line(fmt.Sprintf("%s[%d]", labels.get("Combine"), i+1), combine)
		}
		if len(s.OrderBy) > 0 {
			w.line("OrderBy", orderText(s.OrderBy))
		}
		if s.Limit != nil {
			w.limit(s.Limit)
		}
	}

	w.line("InputTables", strconv.Itoa(plan.Metrics.InputTables))
	w.line("EstimatedRowsRead", strconv.FormatInt(plan.Metrics.EstimatedRowsRead, 10))
	w.line("ActualRows", strconv.Itoa(plan.Metrics.ActualRows))
	w.line("SelectivityPct", fmt.Sprintf("%.2f", plan.Metrics.SelectivityPct()))
	w.line("RowsPerMs", fmt.Sprintf("%.2f", plan.Metrics.RowsPerMs()))
	w.line("ElapsedMs", strconv.FormatInt(plan.Metrics.ElapsedMs, 10))
	for _, field := range plan.Metadata {
		w.line(field.Name, field.Value)
	}

	if len(plan.IndexRecommendations) > 0 {
		w.header("IndexRecommendations")
		for _, recommendation := range plan.IndexRecommendations {
			w.first("Table", recommendation.Table)
			w.field("SuggestedIndex", recommendation.SuggestedIndex)
			w.field("Reason", recommendation.Reason)
			w.field("Confidence", strconv.Itoa(recommendation.Confidence))
			w.field("EstimatedRowsReadBefore", strconv.FormatInt(recommendation.EstimatedRowsReadBefore, 10))
			w.field("EstimatedRowsReadAfter", strconv.FormatInt(recommendation.EstimatedRowsReadAfter, 10))
			w.field("EstimatedGainPct", fmt.Sprintf("%.2f", recommendation.EstimatedGainPct()))
		}
	}

	if len(plan.Warnings) > 0 {
		w.header("Warnings")
		for _, warning := range plan.Warnings {
			w.first("Code", warning.Code)
			w.field("Message", warning.Message)
			w.field("Reason", warning.Reason)
			w.field("SuggestedAction", warning.SuggestedAction)
			w.field("Severity", warning.Severity.String())
			w.field("MetricName", warning.MetricName)
			w.field("ObservedValue", warning.ObservedValue)
			w.field("Threshold", warning.Threshold)
		}
	}
	return w.sb.String()
}

type planWriter struct {
	sb     strings.Builder
	labels Labels
}

func (w *planWriter) line(id, value string) {
	fmt.Fprintf(&w.sb, "- %s: %s\n", w.labels.get(id), value)
}

func (w *planWriter) header(id string) {
	fmt.Fprintf(&w.sb, "- %s:\n", w.labels.get(id))
}

func (w *planWriter) first(id, value string) {
	fmt.Fprintf(&w.sb, "  - %s: %s\n", w.labels.get(id), value)
}

// field prints a nested line; empty values are left out.
func (w *planWriter) field(id, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(&w.sb, "    %s: %s\n", w.labels.get(id), value)
}

func (w *planWriter) selectShape(s sql.SelectStatement) {
	if len(s.With) > 0 {
		w.line("CTEs", cteNames(s.With))
	}
	w.line("From", fromText(s.From))
	for _, join := range s.Joins {
		text := join.Type.String() + " " + sourceText(join.Source)
		if join.On != nil {
			text += " ON " + join.On.String()
		}
		w.line("Join", text)
	}
	if s.Where != nil {
		w.line("Where", s.Where.String())
	}
	if len(s.GroupBy) > 0 {
		parts := make([]string, len(s.GroupBy))
		for i, expr := range s.GroupBy {
			parts[i] = expr.String()
		}
		w.line("GroupBy", strings.Join(parts, ", "))
	}
	if s.Having != nil {
		w.line("Having", s.Having.String())
	}
	w.line("Projection", projectionText(s.Items))
	if s.Distinct {
		w.line("Distinct", "true")
	}
	if len(s.OrderBy) > 0 {
		w.line("OrderBy", orderText(s.OrderBy))
	}
	if s.Limit != nil {
		w.limit(s.Limit)
	}
}

func (w *planWriter) limit(limit *sql.LimitClause) {
	count := "ALL"
	if limit.Count != nil {
		count = limit.Count.String()
	}
	switch limit.Syntax {
	case sql.LimitSyntaxTop:
		fmt.Fprintf(&w.sb, "- TOP: TOP %s\n", count)
	case sql.LimitSyntaxFetch:
		text := "FETCH " + count
		if limit.Offset != nil {
			text += " OFFSET " + limit.Offset.String()
		}
		fmt.Fprintf(&w.sb, "- FETCH: %s\n", text)
	default:
		text := "LIMIT " + count
		if limit.Offset != nil {
			text += " OFFSET " + limit.Offset.String()
		}
		fmt.Fprintf(&w.sb, "- LIMIT: %s\n", text)
	}
}

func cteNames(ctes []sql.CTE) string {
	names := make([]string, len(ctes))
	for i, cte := range ctes {
		names[i] = cte.Name
	}
	return strings.Join(names, ", ")
}

func fromText(from *sql.TableSource) string {
	if from == nil {
		return "(none)"
	}
	return sourceText(*from)
}

func sourceText(source sql.TableSource) string {
	if source.Subquery != nil {
		return "subquery AS " + source.Label()
	}
	if source.Alias != "" {
		return source.Table.String() + " AS " + source.Alias
	}
	return source.Table.String()
}

func projectionText(items []sql.SelectItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.Expr.String()
		if item.Alias != "" {
			parts[i] += " AS " + item.Alias
		}
	}
	return strings.Join(parts, ", ")
}

func orderText(items []sql.OrderItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		direction := "ASC"
		if item.Descending {
			direction = "DESC"
		}
		parts[i] = item.Expr.String() + " " + direction
	}
	return strings.Join(parts, ", ")
}

type jsonRecommendation struct {
	IndexRecommendation
	EstimatedGainPct float64 `json:"estimatedGainPct"`
}

type jsonPlan struct {
	QueryType            string               `json:"queryType"`
	EstimatedCost        int                  `json:"estimatedCost"`
	Statement            string               `json:"statement,omitempty"`
	InputTables          int                  `json:"inputTables"`
	EstimatedRowsRead    int64                `json:"estimatedRowsRead"`
	ActualRows           int                  `json:"actualRows"`
	SelectivityPct       float64              `json:"selectivityPct"`
	RowsPerMs            float64              `json:"rowsPerMs"`
	ElapsedMs            int64                `json:"elapsedMs"`
	Metadata             map[string]string    `json:"metadata"`
	IndexRecommendations []jsonRecommendation `json:"indexRecommendations"`
	Warnings             []Warning            `json:"warnings"`
}

// FormatJSON renders the same information as Format as camelCase JSON.
func FormatJSON(plan *Plan) ([]byte, error) {
	out := jsonPlan{
		QueryType:            plan.QueryType,
		EstimatedCost:        plan.EstimatedCost,
		InputTables:          plan.Metrics.InputTables,
		EstimatedRowsRead:    plan.Metrics.EstimatedRowsRead,
		ActualRows:           plan.Metrics.ActualRows,
		SelectivityPct:       round2(plan.Metrics.SelectivityPct()),
		RowsPerMs:            round2(plan.Metrics.RowsPerMs()),
		ElapsedMs:            plan.Metrics.ElapsedMs,
		Metadata:             make(map[string]string, len(plan.Metadata)),
		IndexRecommendations: []jsonRecommendation{},
		Warnings:             []Warning{},
	}
	if s, ok := plan.Statement.(sql.SelectStatement); ok {
		out.Statement = "SELECT " + projectionText(s.Items) + " FROM " + fromText(s.From)
	}
	for _, field := range plan.Metadata {
		out.Metadata[lowerFirst(field.Name)] = field.Value
	}
	for _, recommendation := range plan.IndexRecommendations {
		out.IndexRecommendations = append(out.IndexRecommendations, jsonRecommendation{
			IndexRecommendation: recommendation,
			EstimatedGainPct:    round2(recommendation.EstimatedGainPct()),
		})
	}
	out.Warnings = append(out.Warnings, plan.Warnings...)

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plan: %w", err)
	}
	return data, nil
}

func round2(value float64) float64 {
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(value, 'f', 2, 64), 64)
	return rounded
}

func lowerFirst(name string) string {
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}
