package plan

import (
	"fmt"
	"strconv"

	"github.com/nickyhof/SqlLikeMem/sql"
)

const (
	CodeSortWithoutLimit = "PW001"
	CodeLowSelectivity   = "PW002"
	CodeSelectStar       = "PW003"
	CodeFullScan         = "PW004"
	CodeDistinct         = "PW005"
)

// minRowsForWarning is the number of rows read below which no warning fires.
const minRowsForWarning = 100

// shape is what the warning rules need to know about a query.
type shape struct {
	hasOrderBy bool
	hasLimit   bool
	hasWhere   bool
	selectStar bool
	distinct   bool
}

func shapeOf(statement sql.QueryStatement) shape {
	switch s := statement.(type) {
	case sql.SelectStatement:
		return shape{
			hasOrderBy: len(s.OrderBy) > 0,
			hasLimit:   s.Limit != nil && s.Limit.Count != nil,
			hasWhere:   s.Where != nil,
			selectStar: hasStar(s.Items),
			distinct:   s.Distinct,
		}
	case sql.UnionStatement:
		result := shape{
			hasOrderBy: len(s.OrderBy) > 0,
			hasLimit:   s.Limit != nil && s.Limit.Count != nil,
			hasWhere:   len(s.Parts) > 0,
		}
		for _, part := range s.Parts {
			if part.Where == nil {
				result.hasWhere = false
			}
			if hasStar(part.Items) {
				result.selectStar = true
			}
			if part.Distinct {
				result.distinct = true
			}
		}
		for _, all := range s.All {
			if !all {
				result.distinct = true
			}
		}
		return result
	}
	return shape{}
}

func hasStar(items []sql.SelectItem) bool {
	for _, item := range items {
		if _, ok := item.Expr.(sql.StarExpr); ok {
			return true
		}
	}
	return false
}

func analyzeWarnings(s shape, metrics Metrics) []Warning {
	rows := metrics.EstimatedRowsRead
	if rows < minRowsForWarning {
		return nil
	}
	observedRows := strconv.FormatInt(rows, 10)

	var warnings []Warning
	if s.hasOrderBy && !s.hasLimit {
		warnings = append(warnings, Warning{
			Code:            CodeSortWithoutLimit,
			Message:         "ORDER BY without a row limit sorts the whole input.",
			Reason:          fmt.Sprintf("%d rows are read and sorted and no LIMIT, TOP or FETCH bounds the result.", rows),
			SuggestedAction: "Add LIMIT/TOP/FETCH or an index that matches the ORDER BY columns.",
			Severity:        SeverityHigh,
			MetricName:      "EstimatedRowsRead",
			ObservedValue:   observedRows,
			Threshold:       "gte:100",
		})
	}

	if s.hasWhere {
		selectivity := metrics.SelectivityPct()
		if selectivity >= 60 {
			severity := SeverityWarning
			if selectivity >= 85 {
				severity = SeverityHigh
			}
			warnings = append(warnings, Warning{
				Code:            CodeLowSelectivity,
				Message:         "The WHERE clause keeps most of the rows it reads.",
				Reason:          fmt.Sprintf("%.2f%% of %d rows read pass the filter.", selectivity, rows),
				SuggestedAction: "Narrow the predicate or filter on an indexed, more selective column.",
				Severity:        severity,
				MetricName:      "SelectivityPct",
				ObservedValue:   fmt.Sprintf("%.2f", selectivity),
				Threshold:       "gte:60;highImpactGte:85",
			})
		}
	}

	if s.selectStar {
		severity := SeverityInfo
		switch {
		case rows >= 5000:
			severity = SeverityHigh
		case rows >= 1000:
			severity = SeverityWarning
		}
		warnings = append(warnings, Warning{
			Code:            CodeSelectStar,
			Message:         "SELECT * returns every column.",
			Reason:          fmt.Sprintf("The projection is not limited and %d rows are read.", rows),
			SuggestedAction: "List only the columns the caller needs.",
			Severity:        severity,
			MetricName:      "EstimatedRowsRead",
			ObservedValue:   observedRows,
			Threshold:       "warningGte:1000;highGte:5000",
		})
	}

	if !s.hasWhere && !s.distinct {
		warnings = append(warnings, Warning{
			Code:            CodeFullScan,
			Message:         "The query reads every row without a filter.",
			Reason:          fmt.Sprintf("No WHERE clause and %d rows are read.", rows),
			SuggestedAction: "Add a WHERE clause or a row limit.",
			Severity:        scanSeverity(rows),
			MetricName:      "EstimatedRowsRead",
			ObservedValue:   observedRows,
			Threshold:       "gte:100;highGte:5000",
		})
	}

	if s.distinct {
		warnings = append(warnings, Warning{
			Code:            CodeDistinct,
			Message:         "DISTINCT removes duplicates after reading every candidate row.",
			Reason:          fmt.Sprintf("%d rows are read and compared for duplicates.", rows),
			SuggestedAction: "Remove DISTINCT when the rows are already unique, or deduplicate with GROUP BY on a key.",
			Severity:        scanSeverity(rows),
			MetricName:      "EstimatedRowsRead",
			ObservedValue:   observedRows,
			Threshold:       "gte:100;highGte:5000",
		})
	}
	return warnings
}

func scanSeverity(rows int64) Severity {
	if rows >= 5000 {
		return SeverityHigh
	}
	return SeverityWarning
}

var causeGroups = map[string]string{
	CodeSortWithoutLimit: "SortWithoutLimit",
	CodeLowSelectivity:   "LowSelectivity",
	CodeSelectStar:       "WideProjection",
	CodeFullScan:         "FullScan",
	CodeDistinct:         "DistinctOverhead",
}

var topActions = map[string]string{
	CodeSortWithoutLimit: "AddRowLimit",
	CodeLowSelectivity:   "RefineFilter",
	CodeSelectStar:       "ProjectColumns",
	CodeFullScan:         "AddFilter",
	CodeDistinct:         "ReviewDistinct",
}

func severityWeight(severity Severity) int {
	switch severity {
	case SeverityHigh:
		return 50
	case SeverityWarning:
		return 30
	default:
		return 10
	}
}

func riskScore(warnings []Warning) int {
	score := 0
	for _, warning := range warnings {
		score += severityWeight(warning.Severity)
	}
	return min(score, 100)
}
