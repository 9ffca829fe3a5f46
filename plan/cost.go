package plan

import "github.com/nickyhof/SqlLikeMem/sql"

// EstimatedCost scores the shape of a query. It does not look at data.
func EstimatedCost(statement sql.QueryStatement) int {
	switch s := statement.(type) {
	case sql.SelectStatement:
		return selectCost(s)
	case sql.UnionStatement:
		cost := 12
		for _, part := range s.Parts {
			cost += selectCost(part)
		}
		for _, all := range s.All {
			if !all {
				cost += 20
			}
		}
		if len(s.OrderBy) > 0 {
			cost += 15
		}
		if s.Limit != nil {
			cost -= 2
		}
		return max(cost, 1)
	}
	return 1
}

func selectCost(s sql.SelectStatement) int {
	cost := 10
	cost += 5 * len(s.With)
	cost += 25 * len(s.Joins)
	if s.Where != nil {
		cost += 8
	}
	if len(s.GroupBy) > 0 {
		cost += 20
	}
	if s.Having != nil {
		cost += 10
	}
	if len(s.OrderBy) > 0 {
		cost += 15
	}
	if s.Distinct {
		cost += 10
	}
	if s.Limit != nil {
		cost -= 3
	}
	return max(cost, 1)
}
