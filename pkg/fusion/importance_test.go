package fusion

import (
	"math"
	"testing"

	"github.com/kg-audit/weaver/backend/pkg/common"
)

func TestComputeImportance(t *testing.T) {
	entities := []common.Entity{
		{ID: "hub"},
		{ID: "leaf-a"},
		{ID: "leaf-b"},
		{ID: "isolated"},
	}
	relations := []common.Relation{
		{SubjectID: "leaf-a", ObjectID: "hub", Weight: 0.9},
		{SubjectID: "leaf-b", ObjectID: "hub", Weight: 0.8},
	}

	ComputeImportance(entities, relations)

	byID := make(map[string]float64, len(entities))
	for _, e := range entities {
		byID[e.ID] = e.Importance
	}

	// Hub: max degree (2) and max incoming weight -> 1.0.
	if math.Abs(byID["hub"]-1.0) > 1e-9 {
		t.Errorf("hub importance = %v, want 1.0", byID["hub"])
	}
	if byID["isolated"] != 0 {
		t.Errorf("isolated importance = %v, want 0", byID["isolated"])
	}
	// Leaves: degree 1 of max 2 -> 0.5 normalized, no incoming weight.
	want := 0.5 * 0.5
	if math.Abs(byID["leaf-a"]-want) > 1e-9 {
		t.Errorf("leaf importance = %v, want %v", byID["leaf-a"], want)
	}
	if byID["leaf-a"] != byID["leaf-b"] {
		t.Errorf("symmetric leaves differ: %v vs %v", byID["leaf-a"], byID["leaf-b"])
	}

	for _, e := range entities {
		if e.Importance < 0 || e.Importance > 1 {
			t.Errorf("importance out of bounds for %s: %v", e.ID, e.Importance)
		}
	}
}

func TestComputeImportanceUniformGraph(t *testing.T) {
	entities := []common.Entity{{ID: "a"}, {ID: "b"}}
	relations := []common.Relation{
		{SubjectID: "a", ObjectID: "b", Weight: 0.5},
		{SubjectID: "b", ObjectID: "a", Weight: 0.5},
	}

	ComputeImportance(entities, relations)

	for _, e := range entities {
		if e.Importance != 1.0 {
			t.Errorf("importance for %s = %v, want 1.0 in a uniform graph", e.ID, e.Importance)
		}
	}
}

func TestComputeImportanceEmptyGraph(t *testing.T) {
	ComputeImportance(nil, nil)

	entities := []common.Entity{{ID: "only"}}
	ComputeImportance(entities, nil)
	if entities[0].Importance != 0 {
		t.Errorf("importance = %v, want 0 without relations", entities[0].Importance)
	}
}
