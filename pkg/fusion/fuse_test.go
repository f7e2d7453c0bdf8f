package fusion

import (
	"math"
	"reflect"
	"testing"

	"github.com/kg-audit/weaver/backend/pkg/common"
)

func resolveTestEntities(t *testing.T) *Resolution {
	t.Helper()
	candidates := []common.EntityCandidate{
		{SourceID: SourceCurated, ExternalRefs: []string{"kb:a"}, Name: "Alpha", TypeHints: []string{"Concept"}},
		{SourceID: SourceCurated, ExternalRefs: []string{"kb:b"}, Name: "Beta", TypeHints: []string{"Concept"}},
	}
	res, _ := Resolve(candidates, nil, DefaultConfig())
	return res
}

func TestFuseNoisyOrWeight(t *testing.T) {
	res := resolveTestEntities(t)
	cfg := DefaultConfig()

	candidates := []common.RelationCandidate{
		{SourceID: SourceCurated, SubjectRef: "kb:a", ObjectRef: "kb:b", Type: common.RelationRelatedTo, EvidenceWeight: 0.9},
		{SourceID: SourceWikidata, SubjectRef: "kb:a", ObjectRef: "kb:b", Type: common.RelationRelatedTo, EvidenceWeight: 0.5},
	}

	relations, stats := Fuse(res, candidates, nil, cfg)

	if stats.DroppedRelations != 0 || stats.SelfLoops != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(relations) != 1 {
		t.Fatalf("expected 1 relation, got %d", len(relations))
	}

	// 1 - (1 - 1.0*0.9) * (1 - 0.8*0.5) = 0.94
	want := 0.94
	if math.Abs(relations[0].Weight-want) > 1e-9 {
		t.Errorf("weight = %v, want %v", relations[0].Weight, want)
	}
	if len(relations[0].Evidence) != 2 {
		t.Errorf("evidence entries = %d, want 2", len(relations[0].Evidence))
	}
}

func TestFuseWeightMonotonicity(t *testing.T) {
	res := resolveTestEntities(t)
	cfg := DefaultConfig()

	base := []common.RelationCandidate{
		{SourceID: SourceText, SubjectRef: "kb:a", ObjectRef: "kb:b", Type: common.RelationRelatedTo, EvidenceWeight: 0.4},
	}

	prev := 0.0
	var batch []common.RelationCandidate
	for i := 0; i < 50; i++ {
		batch = append(batch, base[0])
		relations, _ := Fuse(res, batch, nil, cfg)
		if len(relations) != 1 {
			t.Fatalf("expected 1 relation, got %d", len(relations))
		}
		w := relations[0].Weight
		if w < prev {
			t.Fatalf("weight decreased after %d corroborations: %v < %v", i+1, w, prev)
		}
		if w < 0 || w > 1 {
			t.Fatalf("weight out of bounds: %v", w)
		}
		prev = w
	}
}

func TestFuseDropsUnresolvedEndpoints(t *testing.T) {
	res := resolveTestEntities(t)

	candidates := []common.RelationCandidate{
		{SourceID: SourceText, SubjectRef: "kb:a", ObjectRef: "never-seen", Type: common.RelationRelatedTo, EvidenceWeight: 0.5},
		{SourceID: SourceText, SubjectRef: "ghost", ObjectRef: "kb:b", Type: common.RelationRelatedTo, EvidenceWeight: 0.5},
	}

	relations, stats := Fuse(res, candidates, nil, DefaultConfig())

	if len(relations) != 0 {
		t.Errorf("expected no relations, got %d", len(relations))
	}
	if stats.DroppedRelations != 2 {
		t.Errorf("dropped = %d, want 2", stats.DroppedRelations)
	}
}

func TestFuseDiscardsSelfLoops(t *testing.T) {
	res := resolveTestEntities(t)

	candidates := []common.RelationCandidate{
		// "Alpha" resolves to the same entity as kb:a.
		{SourceID: SourceText, SubjectRef: "kb:a", ObjectRef: "Alpha", Type: common.RelationRelatedTo, EvidenceWeight: 0.5},
	}

	relations, stats := Fuse(res, candidates, nil, DefaultConfig())

	if len(relations) != 0 {
		t.Errorf("expected no relations, got %d", len(relations))
	}
	if stats.SelfLoops != 1 {
		t.Errorf("self loops = %d, want 1", stats.SelfLoops)
	}
}

func TestFuseSkipsMalformedCandidates(t *testing.T) {
	res := resolveTestEntities(t)

	candidates := []common.RelationCandidate{
		{SourceID: SourceText, SubjectRef: "", ObjectRef: "kb:b", Type: common.RelationRelatedTo, EvidenceWeight: 0.5},
		{SourceID: SourceText, SubjectRef: "kb:a", ObjectRef: "kb:b", Type: common.RelationType("FRIENDS_WITH"), EvidenceWeight: 0.5},
	}

	relations, stats := Fuse(res, candidates, nil, DefaultConfig())

	if len(relations) != 0 {
		t.Errorf("expected no relations, got %d", len(relations))
	}
	if stats.SkippedCandidates != 2 {
		t.Errorf("skipped = %d, want 2", stats.SkippedCandidates)
	}
}

func TestFuseUpdatesExistingRelation(t *testing.T) {
	res := resolveTestEntities(t)
	cfg := DefaultConfig()

	first, _ := Fuse(res, []common.RelationCandidate{
		{SourceID: SourceText, SubjectRef: "kb:a", ObjectRef: "kb:b", Type: common.RelationPartOf, EvidenceWeight: 0.6},
	}, nil, cfg)

	second, _ := Fuse(res, []common.RelationCandidate{
		{SourceID: SourceCurated, SubjectRef: "kb:a", ObjectRef: "kb:b", Type: common.RelationPartOf, EvidenceWeight: 0.8},
	}, first, cfg)

	if len(second) != 1 {
		t.Fatalf("expected the existing edge to be updated, got %d relations", len(second))
	}
	if second[0].Weight <= first[0].Weight {
		t.Errorf("corroborated weight %v not above %v", second[0].Weight, first[0].Weight)
	}

	wantEvidence := []common.Evidence{
		{Source: SourceText, Weight: 0.6},
		{Source: SourceCurated, Weight: 0.8},
	}
	if !reflect.DeepEqual(second[0].Evidence, wantEvidence) {
		t.Errorf("evidence = %v, want %v", second[0].Evidence, wantEvidence)
	}

	// The input relation set keeps its own evidence slice.
	if len(first[0].Evidence) != 1 {
		t.Errorf("existing relations were mutated: %v", first[0].Evidence)
	}
}

func TestFuseDistinctTypesStaySeparate(t *testing.T) {
	res := resolveTestEntities(t)

	candidates := []common.RelationCandidate{
		{SourceID: SourceCurated, SubjectRef: "kb:a", ObjectRef: "kb:b", Type: common.RelationPartOf, EvidenceWeight: 0.9},
		{SourceID: SourceCurated, SubjectRef: "kb:a", ObjectRef: "kb:b", Type: common.RelationRelatedTo, EvidenceWeight: 0.9},
	}

	relations, _ := Fuse(res, candidates, nil, DefaultConfig())

	if len(relations) != 2 {
		t.Errorf("expected 2 relations for distinct types, got %d", len(relations))
	}
}
