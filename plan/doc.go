// Package plan analyzes executed queries.
//
// Analyze takes the AST of a SELECT or UNION together with the metrics the
// executor collected and produces a Plan: an estimated cost, warnings
// PW001-PW005, at most one index recommendation and a list of metadata
// fields. Format and FormatJSON render it.
//
//	p := plan.Analyze(statement, plan.Metrics{EstimatedRowsRead: 120, ActualRows: 120},
//		plan.WithContext("prod"))
//	fmt.Print(plan.Format(p))
//
// Warning thresholds are written as "name:value" pairs joined by ";", for
// example "gte:100;highGte:5000".
package plan
