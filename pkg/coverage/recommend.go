package coverage

import (
	"fmt"
	"strings"

	"github.com/kg-audit/weaver/backend/pkg/common"
)

const defaultMaxRecommendations = 10

// RecommendOptions bounds and shapes recommendation generation.
type RecommendOptions struct {
	// Max caps the number of suggestions; 0 means the default of 10.
	Max int

	// TopicalTypes marks entity types that denote a topic or category
	// rather than a concrete instance; missing entities carrying one get
	// a "cover subtopic" suggestion instead of "include entity".
	// Nil means DefaultTopicalTypes.
	TopicalTypes []string
}

// DefaultTopicalTypes returns the stock set of topical entity types.
func DefaultTopicalTypes() []string {
	return []string{"TOPIC", "CATEGORY", "FIELD", "DISCIPLINE"}
}

// Recommend maps a coverage report to a bounded, ordered list of
// suggestions for the most important missing entities. Pure function;
// the report's own ordering (importance desc, id asc) carries through.
func Recommend(report common.CoverageReport, opts RecommendOptions) []common.Recommendation {
	max := opts.Max
	if max <= 0 {
		max = defaultMaxRecommendations
	}
	topical := opts.TopicalTypes
	if topical == nil {
		topical = DefaultTopicalTypes()
	}
	topicalSet := make(map[string]struct{}, len(topical))
	for _, t := range topical {
		topicalSet[strings.ToUpper(t)] = struct{}{}
	}

	out := make([]common.Recommendation, 0, max)
	for _, e := range report.Missing {
		if len(out) == max {
			break
		}
		if isTopical(e.Types, topicalSet) {
			out = append(out, common.Recommendation{
				Kind:     common.RecommendationCoverSubtopic,
				EntityID: e.ID,
				Message:  fmt.Sprintf("cover subtopic: %s", e.Name),
			})
			continue
		}
		out = append(out, common.Recommendation{
			Kind:     common.RecommendationIncludeEntity,
			EntityID: e.ID,
			Message:  fmt.Sprintf("include entity: %s", e.Name),
		})
	}
	return out
}

// isTopical compares case-insensitively; entity types carry whatever
// casing their source used.
func isTopical(types []string, topical map[string]struct{}) bool {
	for _, t := range types {
		if _, ok := topical[strings.ToUpper(t)]; ok {
			return true
		}
	}
	return false
}
