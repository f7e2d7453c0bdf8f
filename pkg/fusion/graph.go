package fusion

import (
	"github.com/kg-audit/weaver/backend/pkg/common"
)

// BuildGraph runs the full pipeline over one candidate batch: resolve
// entities, fuse relations, recompute importance. The returned graph is a
// fresh value; existing is never mutated, so callers can fuse
// incrementally by passing a previous result back in.
//
// BuildGraph is a pure, deterministic transformation with no I/O and no
// shared state; it is safe to call concurrently on independent inputs.
func BuildGraph(
	entityCandidates []common.EntityCandidate,
	relationCandidates []common.RelationCandidate,
	existing *common.FusedGraph,
	cfg Config,
) (common.FusedGraph, common.FuseStats) {
	res, stats := Resolve(entityCandidates, existing, cfg)

	var existingRelations []common.Relation
	if existing != nil {
		existingRelations = existing.Relations
	}
	relations, relStats := Fuse(res, relationCandidates, existingRelations, cfg)
	stats.Add(relStats)

	ComputeImportance(res.Entities, relations)

	return common.FusedGraph{
		Entities:  res.Entities,
		Relations: relations,
	}, stats
}
