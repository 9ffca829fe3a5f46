package plan

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const metadataVersion = 1

const (
	bandFast     = "Fast"
	bandModerate = "Moderate"
	bandSlow     = "Slow"
)

func performanceBand(elapsedMs int64) string {
	switch {
	case elapsedMs <= 5:
		return bandFast
	case elapsedMs <= 30:
		return bandModerate
	default:
		return bandSlow
	}
}

// qualityGrade maps the risk score to A-D and degrades it for slow queries.
func qualityGrade(risk int, band string) string {
	grade := 3
	switch {
	case risk <= 20:
		grade = 0
	case risk <= 50:
		grade = 1
	case risk <= 80:
		grade = 2
	}
	switch band {
	case bandModerate:
		grade++
	case bandSlow:
		grade += 2
	}
	return string(rune('A' + min(grade, 3)))
}

// ranked returns the warnings ordered worst first, then by code.
func ranked(warnings []Warning) []Warning {
	sorted := make([]Warning, len(warnings))
	copy(sorted, warnings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Severity != sorted[j].Severity {
			return sorted[i].Severity > sorted[j].Severity
		}
		return sorted[i].Code < sorted[j].Code
	})
	return sorted
}

func buildMetadata(plan *Plan, previous *Plan) []Field {
	band := performanceBand(plan.Metrics.ElapsedMs)
	fields := []Field{
		{Name: "PlanMetadataVersion", Value: strconv.Itoa(metadataVersion)},
		{Name: "PlanCorrelationId", Value: strings.ReplaceAll(uuid.NewString(), "-", "")},
		{Name: "PlanFlags", Value: fmt.Sprintf("hasWarnings:%t;hasIndexRecommendations:%t",
			len(plan.Warnings) > 0, len(plan.IndexRecommendations) > 0)},
		{Name: "PlanPerformanceBand", Value: band},
	}

	if len(plan.Warnings) > 0 {
		byCode := make([]Warning, len(plan.Warnings))
		copy(byCode, plan.Warnings)
		sort.SliceStable(byCode, func(i, j int) bool {
			return byCode[i].Code < byCode[j].Code
		})
		summary := make([]string, len(byCode))
		counts := map[Severity]int{}
		metrics := make(map[string]bool)
		for i, warning := range byCode {
			summary[i] = warning.Code + ":" + warning.Severity.String()
			counts[warning.Severity]++
			metrics[warning.MetricName] = true
		}
		noise := float64(len(plan.Warnings)-len(metrics)) / float64(len(plan.Warnings)) * 100

		worst := ranked(plan.Warnings)
		var actions []string
		for _, warning := range worst[:min(len(worst), 3)] {
			actions = append(actions, warning.Code+":"+topActions[warning.Code])
		}
		if len(plan.IndexRecommendations) > 0 {
			actions = append(actions, "IDX:CreateSuggestedIndex")
		}

		primary := worst[0]
		level := primary.Severity
		if plan.Context != "prod" {
			level = level.lower()
		}

		fields = append(fields,
			Field{Name: "PlanRiskScore", Value: strconv.Itoa(plan.riskScore)},
			Field{Name: "PlanQualityGrade", Value: qualityGrade(plan.riskScore, band)},
			Field{Name: "PlanWarningSummary", Value: strings.Join(summary, ";")},
			Field{Name: "PlanWarningCounts", Value: fmt.Sprintf("high:%d;warning:%d;info:%d",
				counts[SeverityHigh], counts[SeverityWarning], counts[SeverityInfo])},
			Field{Name: "PlanNoiseScore", Value: fmt.Sprintf("%.2f", noise)},
			Field{Name: "PlanTopActions", Value: strings.Join(actions, ";")},
			Field{Name: "PlanPrimaryWarning", Value: primary.Code},
			Field{Name: "PlanPrimaryCauseGroup", Value: causeGroups[primary.Code]},
			Field{Name: "PlanSeverityHint", Value: fmt.Sprintf("context:%s;level:%s", plan.Context, level)},
		)
	}

	if previous != nil {
		fields = append(fields, Field{Name: "PlanDelta", Value: fmt.Sprintf("riskDelta:%+d;elapsedMsDelta:%+d",
			plan.riskScore-previous.riskScore, plan.Metrics.ElapsedMs-previous.Metrics.ElapsedMs)})
	}

	if len(plan.IndexRecommendations) > 0 {
		totalConfidence := 0
		maxGain := 0.0
		primary := plan.IndexRecommendations[0]
		for _, recommendation := range plan.IndexRecommendations {
			totalConfidence += recommendation.Confidence
			maxGain = max(maxGain, recommendation.EstimatedGainPct())
			if recommendation.Confidence > primary.Confidence ||
				(recommendation.Confidence == primary.Confidence && recommendation.EstimatedGainPct() > primary.EstimatedGainPct()) {
				primary = recommendation
			}
		}
		average := float64(totalConfidence) / float64(len(plan.IndexRecommendations))
		fields = append(fields,
			Field{Name: "IndexRecommendationSummary", Value: fmt.Sprintf("count:%d;avgConfidence:%.2f;maxGainPct:%.2f",
				len(plan.IndexRecommendations), average, maxGain)},
			Field{Name: "IndexPrimaryRecommendation", Value: fmt.Sprintf("table:%s;confidence:%d;gainPct:%.2f",
				primary.Table, primary.Confidence, primary.EstimatedGainPct())},
			Field{Name: "IndexRecommendationEvidence", Value: fmt.Sprintf("table:%s;indexCols:%s;confidence:%d;gainPct:%.2f",
				primary.Table, strings.Join(primary.Columns, ","), primary.Confidence, primary.EstimatedGainPct())},
		)
	}
	return fields
}
