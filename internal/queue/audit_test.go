package queue

import (
	"context"
	"reflect"
	"testing"

	"github.com/kg-audit/weaver/backend/pkg/common"
)

func TestMatchAuditedEntities_Deterministic(t *testing.T) {
	graph := &common.FusedGraph{
		Entities: []common.Entity{
			{
				ID:      "e1",
				Name:    "Machine Learning",
				Aliases: []string{"ML"},
				Provenance: []common.ProvenanceEntry{
					{Source: "wikidata", Ref: "Q2539"},
				},
			},
			{
				ID:   "e2",
				Name: "Neural Network",
				Provenance: []common.ProvenanceEntry{
					{Source: "curated", Ref: "nn-1"},
				},
			},
		},
	}

	tests := []struct {
		name       string
		candidates []common.EntityCandidate
		want       map[string]struct{}
	}{
		{
			name: "match by external ref",
			candidates: []common.EntityCandidate{
				{Name: "something else", ExternalRefs: []string{"Q2539"}},
			},
			want: map[string]struct{}{"e1": {}},
		},
		{
			name: "match by normalized name",
			candidates: []common.EntityCandidate{
				{Name: "machine learning"},
			},
			want: map[string]struct{}{"e1": {}},
		},
		{
			name: "match by alias on either side",
			candidates: []common.EntityCandidate{
				{Name: "ML"},
				{Name: "unknown", Aliases: []string{"Neural Network"}},
			},
			want: map[string]struct{}{"e1": {}, "e2": {}},
		},
		{
			name: "unmatched names stay out without an AI client",
			candidates: []common.EntityCandidate{
				{Name: "Quantum Computing"},
			},
			want: map[string]struct{}{},
		},
		{
			name: "duplicate hits collapse onto one entity",
			candidates: []common.EntityCandidate{
				{Name: "Machine Learning"},
				{Name: "ml"},
			},
			want: map[string]struct{}{"e1": {}},
		},
	}

	h := &Handler{}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := h.matchAuditedEntities(context.Background(), "ai", graph, tc.candidates)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("matchAuditedEntities() = %v, want %v", got, tc.want)
			}
		})
	}
}
