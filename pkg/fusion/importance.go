package fusion

import (
	"github.com/kg-audit/weaver/backend/pkg/common"
)

// ComputeImportance recomputes every entity's importance in place:
// half normalized degree centrality, half normalized incoming weight sum,
// both min-max scaled over the current graph. Isolated entities score 0.
// Called after every (re)fusion; the values are only meaningful relative
// to the graph they were computed on.
func ComputeImportance(entities []common.Entity, relations []common.Relation) {
	degree := make(map[string]float64, len(entities))
	incoming := make(map[string]float64, len(entities))

	for _, rel := range relations {
		degree[rel.SubjectID]++
		degree[rel.ObjectID]++
		incoming[rel.ObjectID] += rel.Weight
	}

	normDegree := minMaxNormalize(entities, degree)
	normIncoming := minMaxNormalize(entities, incoming)

	for i := range entities {
		e := &entities[i]
		if degree[e.ID] == 0 {
			e.Importance = 0
			continue
		}
		e.Importance = 0.5*normDegree[e.ID] + 0.5*normIncoming[e.ID]
	}
}

// minMaxNormalize scales values to [0,1] over the given entities. When
// every value is equal the scale degenerates; non-zero values map to 1
// so a uniformly-connected graph does not zero out entirely.
func minMaxNormalize(entities []common.Entity, values map[string]float64) map[string]float64 {
	if len(entities) == 0 {
		return nil
	}
	min, max := values[entities[0].ID], values[entities[0].ID]
	for _, e := range entities[1:] {
		v := values[e.ID]
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	out := make(map[string]float64, len(entities))
	for _, e := range entities {
		v := values[e.ID]
		switch {
		case max > min:
			out[e.ID] = (v - min) / (max - min)
		case v > 0:
			out[e.ID] = 1
		default:
			out[e.ID] = 0
		}
	}
	return out
}
