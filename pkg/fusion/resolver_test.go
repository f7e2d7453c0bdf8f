package fusion

import (
	"reflect"
	"testing"

	"github.com/kg-audit/weaver/backend/pkg/common"
)

func TestResolveMergesSharedExternalRef(t *testing.T) {
	candidates := []common.EntityCandidate{
		{
			SourceID:     SourceWikidata,
			ExternalRefs: []string{"Q11660"},
			Name:         "Artificial intelligence",
			TypeHints:    []string{"Field"},
			Aliases:      []string{"AI"},
			Confidence:   1.0,
		},
		{
			SourceID:     SourceWikidata,
			ExternalRefs: []string{"Q11660"},
			Name:         "Artificial Intelligence",
			TypeHints:    []string{"Field"},
			Aliases:      []string{"Machine Intelligence"},
			Confidence:   1.0,
		},
	}

	res, stats := Resolve(candidates, nil, DefaultConfig())

	if stats.SkippedCandidates != 0 {
		t.Fatalf("unexpected skipped candidates: %d", stats.SkippedCandidates)
	}
	if len(res.Entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(res.Entities))
	}
	if res.EntityIDs[0] != res.EntityIDs[1] {
		t.Errorf("candidates resolved to different entities: %q vs %q", res.EntityIDs[0], res.EntityIDs[1])
	}

	wantAliases := []string{"AI", "Machine Intelligence"}
	if !reflect.DeepEqual(res.Entities[0].Aliases, wantAliases) {
		t.Errorf("aliases = %v, want %v", res.Entities[0].Aliases, wantAliases)
	}
}

func TestResolveCrossSourceIdentifier(t *testing.T) {
	// The curated record embeds the Wikidata id as an additional ref, so
	// both observations denote the same real-world thing.
	candidates := []common.EntityCandidate{
		{
			SourceID:     SourceCurated,
			ExternalRefs: []string{"kb:ai-001", "Q11660"},
			Name:         "Artificial Intelligence",
			TypeHints:    []string{"Field"},
			Description:  "The study of intelligent agents.",
		},
		{
			SourceID:     SourceWikidata,
			ExternalRefs: []string{"Q11660"},
			Name:         "artificial intelligence",
			TypeHints:    []string{"Field"},
		},
	}

	res, _ := Resolve(candidates, nil, DefaultConfig())

	if len(res.Entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(res.Entities))
	}
	e := res.Entities[0]

	wantProvenance := []common.ProvenanceEntry{
		{Source: SourceCurated, Ref: "kb:ai-001"},
		{Source: SourceCurated, Ref: "Q11660"},
		{Source: SourceWikidata, Ref: "Q11660"},
	}
	if !reflect.DeepEqual(e.Provenance, wantProvenance) {
		t.Errorf("provenance = %v, want %v", e.Provenance, wantProvenance)
	}
	if e.Description != "The study of intelligent agents." {
		t.Errorf("description = %q, want curated description", e.Description)
	}
}

func TestResolveNameAndTypeMatch(t *testing.T) {
	// Spec example: same name from two sources, one carrying a ref, one
	// without, sharing the type hint "Field".
	candidates := []common.EntityCandidate{
		{
			SourceID:     SourceWikidata,
			ExternalRefs: []string{"Q11660"},
			Name:         "Artificial Intelligence",
			TypeHints:    []string{"Field"},
		},
		{
			SourceID:  SourceText,
			Name:      "artificial  intelligence",
			TypeHints: []string{"Field"},
		},
	}

	res, _ := Resolve(candidates, nil, DefaultConfig())

	if len(res.Entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(res.Entities))
	}
	sources := make([]string, 0, 2)
	for _, p := range res.Entities[0].Provenance {
		sources = append(sources, p.Source)
	}
	want := []string{SourceWikidata, SourceText}
	if !reflect.DeepEqual(sources, want) {
		t.Errorf("provenance sources = %v, want %v", sources, want)
	}
}

func TestResolveNameMatchRequiresTypeOverlap(t *testing.T) {
	candidates := []common.EntityCandidate{
		{SourceID: SourceCurated, Name: "Mercury", TypeHints: []string{"Planet"}},
		{SourceID: SourceText, Name: "Mercury", TypeHints: []string{"Element"}},
	}

	res, _ := Resolve(candidates, nil, DefaultConfig())

	if len(res.Entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(res.Entities))
	}
}

func TestResolveSameSourceDisjointTypesSeedSeparately(t *testing.T) {
	// Ref-less candidates from one source sharing a name but no type match
	// no cascade rule, so each must seed its own entity with its own types.
	candidates := []common.EntityCandidate{
		{SourceID: SourceText, Name: "Mercury", TypeHints: []string{"Planet"}},
		{SourceID: SourceText, Name: "Mercury", TypeHints: []string{"Element"}},
	}

	res, _ := Resolve(candidates, nil, DefaultConfig())

	if len(res.Entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(res.Entities))
	}
	if res.Entities[0].ID == res.Entities[1].ID {
		t.Fatalf("expected distinct entity ids, both got %s", res.Entities[0].ID)
	}
	for _, e := range res.Entities {
		if len(e.Types) != 1 {
			t.Fatalf("entity %s: expected a single type, got %v", e.ID, e.Types)
		}
	}
}

func TestResolveAliasJaccard(t *testing.T) {
	tests := []struct {
		name         string
		aliases      []string
		wantEntities int
	}{
		{
			name:         "similar alias sets merge",
			aliases:      []string{"ML", "statistical learning"},
			wantEntities: 1,
		},
		{
			name:         "dissimilar alias sets stay separate",
			aliases:      []string{"deep learning"},
			wantEntities: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates := []common.EntityCandidate{
				{
					SourceID:  SourceCurated,
					Name:      "Machine Learning",
					TypeHints: []string{"Field"},
					Aliases:   []string{"ML", "statistical learning"},
				},
				{
					SourceID:  SourceText,
					Name:      "Learning Machines",
					TypeHints: []string{"Field"},
					Aliases:   tt.aliases,
				},
			}

			res, _ := Resolve(candidates, nil, DefaultConfig())
			if len(res.Entities) != tt.wantEntities {
				t.Errorf("entities = %d, want %d", len(res.Entities), tt.wantEntities)
			}
		})
	}
}

func TestResolveSkipsMalformedCandidates(t *testing.T) {
	candidates := []common.EntityCandidate{
		{SourceID: SourceCurated, Name: "   "},
		{SourceID: SourceCurated, Name: "Valid", TypeHints: []string{"Concept"}},
	}

	res, stats := Resolve(candidates, nil, DefaultConfig())

	if stats.SkippedCandidates != 1 {
		t.Errorf("skipped = %d, want 1", stats.SkippedCandidates)
	}
	if res.EntityIDs[0] != "" {
		t.Errorf("skipped candidate got entity id %q", res.EntityIDs[0])
	}
	if len(res.Entities) != 1 {
		t.Errorf("entities = %d, want 1", len(res.Entities))
	}
}

func TestResolveAgainstExistingGraph(t *testing.T) {
	seedCandidates := []common.EntityCandidate{
		{
			SourceID:     SourceCurated,
			ExternalRefs: []string{"kb:go-001"},
			Name:         "Go",
			TypeHints:    []string{"Language"},
		},
	}
	first, _ := BuildGraph(seedCandidates, nil, nil, DefaultConfig())

	candidates := []common.EntityCandidate{
		{
			SourceID:     SourceCurated,
			ExternalRefs: []string{"kb:go-001"},
			Name:         "Go Programming Language",
			TypeHints:    []string{"Language"},
			Aliases:      []string{"Golang"},
		},
	}
	res, _ := Resolve(candidates, &first, DefaultConfig())

	if len(res.Entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(res.Entities))
	}
	if res.Entities[0].ID != first.Entities[0].ID {
		t.Errorf("merge created a new id: %q vs %q", res.Entities[0].ID, first.Entities[0].ID)
	}
	if res.Entities[0].Name != "Go" {
		t.Errorf("canonical name changed to %q", res.Entities[0].Name)
	}
	// The seeded graph must not have been mutated.
	if len(first.Entities[0].Aliases) != 0 {
		t.Errorf("existing graph was mutated: %v", first.Entities[0].Aliases)
	}
}

func TestResolveOrderIndependence(t *testing.T) {
	base := []common.EntityCandidate{
		{SourceID: SourceCurated, ExternalRefs: []string{"kb:1", "Q1"}, Name: "Alpha", TypeHints: []string{"Concept"}},
		{SourceID: SourceWikidata, ExternalRefs: []string{"Q1"}, Name: "Alpha Prime", TypeHints: []string{"Concept"}},
		{SourceID: SourceText, Name: "alpha", TypeHints: []string{"Concept"}},
		{SourceID: SourceText, Name: "Beta", TypeHints: []string{"Concept"}},
		{SourceID: SourceWikidata, ExternalRefs: []string{"Q2"}, Name: "Beta", TypeHints: []string{"Concept"}},
	}

	permutations := [][]int{
		{0, 1, 2, 3, 4},
		{4, 3, 2, 1, 0},
		{2, 4, 0, 3, 1},
		{1, 0, 4, 2, 3},
	}

	var want []common.Entity
	for i, perm := range permutations {
		shuffled := make([]common.EntityCandidate, len(base))
		for j, idx := range perm {
			shuffled[j] = base[idx]
		}
		res, _ := Resolve(shuffled, nil, DefaultConfig())
		if i == 0 {
			want = res.Entities
			continue
		}
		if !reflect.DeepEqual(res.Entities, want) {
			t.Errorf("permutation %v produced different entities:\ngot  %+v\nwant %+v", perm, res.Entities, want)
		}
	}
}

func TestResolveIdempotence(t *testing.T) {
	candidates := []common.EntityCandidate{
		{SourceID: SourceCurated, ExternalRefs: []string{"kb:1"}, Name: "Alpha", TypeHints: []string{"Concept"}},
		{SourceID: SourceText, Name: "Beta", TypeHints: []string{"Concept"}},
	}
	relations := []common.RelationCandidate{
		{SourceID: SourceCurated, SubjectRef: "kb:1", ObjectRef: "Beta", Type: common.RelationRelatedTo, EvidenceWeight: 0.9},
	}

	first, firstStats := BuildGraph(candidates, relations, nil, DefaultConfig())
	second, secondStats := BuildGraph(candidates, relations, nil, DefaultConfig())

	if !reflect.DeepEqual(first, second) {
		t.Errorf("two runs over the same batch differ:\nfirst  %+v\nsecond %+v", first, second)
	}
	if !reflect.DeepEqual(firstStats, secondStats) {
		t.Errorf("stats differ: %+v vs %+v", firstStats, secondStats)
	}
}
