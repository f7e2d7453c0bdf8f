// Package coverage scores how well an audited entity set covers a
// reference fused graph and turns the gaps into ranked suggestions.
// Everything here is a pure function of its inputs.
package coverage

import (
	"sort"

	"github.com/kg-audit/weaver/backend/pkg/common"
)

// Score computes the importance-weighted coverage of auditedIDs over the
// reference graph. An empty reference graph, or one whose total
// importance is zero, is trivially satisfied and scores 1.0. Missing
// entities are returned most important first, ties broken by id so the
// report is deterministic.
func Score(reference *common.FusedGraph, auditedIDs map[string]struct{}) common.CoverageReport {
	report := common.CoverageReport{
		Covered: make([]string, 0),
		Missing: make([]common.Entity, 0),
	}

	if reference == nil || len(reference.Entities) == 0 {
		report.Score = 1.0
		return report
	}

	total := 0.0
	covered := 0.0
	for _, e := range reference.Entities {
		total += e.Importance
		if _, ok := auditedIDs[e.ID]; ok {
			covered += e.Importance
			report.Covered = append(report.Covered, e.ID)
		} else {
			report.Missing = append(report.Missing, e)
		}
	}

	sort.Strings(report.Covered)
	sort.Slice(report.Missing, func(i, j int) bool {
		a, b := report.Missing[i], report.Missing[j]
		if a.Importance != b.Importance {
			return a.Importance > b.Importance
		}
		return a.ID < b.ID
	})

	if total == 0 {
		report.Score = 1.0
		return report
	}
	report.Score = covered / total
	if report.Score < 0 {
		report.Score = 0
	}
	if report.Score > 1 {
		report.Score = 1
	}
	return report
}
