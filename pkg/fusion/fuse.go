package fusion

import (
	"sort"
	"strings"

	"github.com/kg-audit/weaver/backend/pkg/common"
)

// Fuse merges relation candidates between resolved entities into
// canonical weighted edges. Endpoints are mapped through the resolution's
// RefMap; candidates with an endpoint that never resolved are dropped and
// counted, as are self-loops (a deliberate simplification: the model has
// no use for an entity related to itself). Repeated candidates for the
// same (subject, object, type) triple extend the edge's evidence; the
// combined weight is a noisy-OR over all contributions, so corroboration
// from independent sources raises it monotonically without ever passing 1.
func Fuse(
	res *Resolution,
	candidates []common.RelationCandidate,
	existing []common.Relation,
	cfg Config,
) ([]common.Relation, common.FuseStats) {
	stats := common.FuseStats{}

	relations := make([]common.Relation, 0, len(existing)+len(candidates))
	index := make(map[string]int, len(existing))
	for _, rel := range existing {
		copied := rel
		copied.Evidence = append([]common.Evidence(nil), rel.Evidence...)
		relations = append(relations, copied)
		index[relationKey(copied.SubjectID, copied.ObjectID, copied.Type)] = len(relations) - 1
	}

	for _, idx := range canonicalRelationOrder(candidates, cfg) {
		cand := candidates[idx]
		if strings.TrimSpace(cand.SubjectRef) == "" ||
			strings.TrimSpace(cand.ObjectRef) == "" ||
			!common.ValidRelationType(cand.Type) {
			stats.SkippedCandidates++
			continue
		}

		subjectID, okS := res.lookupRef(cand.SubjectRef)
		objectID, okO := res.lookupRef(cand.ObjectRef)
		if !okS || !okO {
			stats.DroppedRelations++
			continue
		}
		if subjectID == objectID {
			stats.SelfLoops++
			continue
		}

		ev := common.Evidence{Source: cand.SourceID, Weight: clamp01(cand.EvidenceWeight)}
		key := relationKey(subjectID, objectID, cand.Type)
		if i, ok := index[key]; ok {
			relations[i].Evidence = append(relations[i].Evidence, ev)
			continue
		}
		relations = append(relations, common.Relation{
			SubjectID: subjectID,
			ObjectID:  objectID,
			Type:      cand.Type,
			Evidence:  []common.Evidence{ev},
		})
		index[key] = len(relations) - 1
	}

	for i := range relations {
		relations[i].Weight = combineWeight(relations[i].Evidence, cfg)
	}

	return relations, stats
}

// lookupRef resolves a relation endpoint: first as an external ref or
// entity id, then by normalized name.
func (r *Resolution) lookupRef(ref string) (string, bool) {
	if id, ok := r.RefMap[ref]; ok {
		return id, true
	}
	if id, ok := r.RefMap[NormalizeName(ref)]; ok {
		return id, true
	}
	return "", false
}

func relationKey(subject, object string, t common.RelationType) string {
	return subject + "\x00" + object + "\x00" + string(t)
}

func canonicalRelationOrder(candidates []common.RelationCandidate, cfg Config) []int {
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := candidates[order[a]], candidates[order[b]]
		pa, pb := cfg.priority(ca.SourceID), cfg.priority(cb.SourceID)
		if pa != pb {
			return pa < pb
		}
		if ca.SubjectRef != cb.SubjectRef {
			return ca.SubjectRef < cb.SubjectRef
		}
		if ca.ObjectRef != cb.ObjectRef {
			return ca.ObjectRef < cb.ObjectRef
		}
		return ca.Type < cb.Type
	})
	return order
}

// combineWeight implements the noisy-OR combination
// 1 − Π(1 − reliability·evidence) over all contributions. Unlike an
// average, agreement across sources only ever increases the result.
func combineWeight(evidence []common.Evidence, cfg Config) float64 {
	q := 1.0
	for _, ev := range evidence {
		q *= 1 - cfg.reliability(ev.Source)*clamp01(ev.Weight)
	}
	return clamp01(1 - q)
}
