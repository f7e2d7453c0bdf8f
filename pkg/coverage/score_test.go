package coverage

import (
	"math"
	"reflect"
	"testing"

	"github.com/kg-audit/weaver/backend/pkg/common"
)

func TestScore(t *testing.T) {
	reference := &common.FusedGraph{
		Entities: []common.Entity{
			{ID: "a", Name: "A", Importance: 0.6},
			{ID: "b", Name: "B", Importance: 0.4},
		},
	}

	tests := []struct {
		name        string
		audited     map[string]struct{}
		wantScore   float64
		wantMissing []string
		wantCovered []string
	}{
		{
			name:        "partial coverage",
			audited:     map[string]struct{}{"a": {}},
			wantScore:   0.6,
			wantMissing: []string{"b"},
			wantCovered: []string{"a"},
		},
		{
			name:        "full coverage",
			audited:     map[string]struct{}{"a": {}, "b": {}},
			wantScore:   1.0,
			wantMissing: []string{},
			wantCovered: []string{"a", "b"},
		},
		{
			name:        "no overlap",
			audited:     map[string]struct{}{"z": {}},
			wantScore:   0.0,
			wantMissing: []string{"a", "b"},
			wantCovered: []string{},
		},
		{
			name:        "empty audited set",
			audited:     map[string]struct{}{},
			wantScore:   0.0,
			wantMissing: []string{"a", "b"},
			wantCovered: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Score(reference, tt.audited)

			if math.Abs(report.Score-tt.wantScore) > 1e-9 {
				t.Errorf("score = %v, want %v", report.Score, tt.wantScore)
			}
			missing := make([]string, 0, len(report.Missing))
			for _, e := range report.Missing {
				missing = append(missing, e.ID)
			}
			if !reflect.DeepEqual(missing, tt.wantMissing) {
				t.Errorf("missing = %v, want %v", missing, tt.wantMissing)
			}
			if !reflect.DeepEqual(report.Covered, tt.wantCovered) {
				t.Errorf("covered = %v, want %v", report.Covered, tt.wantCovered)
			}
		})
	}
}

func TestScoreEmptyReferenceGraph(t *testing.T) {
	report := Score(&common.FusedGraph{}, map[string]struct{}{"x": {}})
	if report.Score != 1.0 {
		t.Errorf("score = %v, want 1.0 for empty reference", report.Score)
	}

	report = Score(nil, nil)
	if report.Score != 1.0 {
		t.Errorf("score = %v, want 1.0 for nil reference", report.Score)
	}
}

func TestScoreZeroImportanceGraph(t *testing.T) {
	// All-isolated reference: nothing carries importance, trivially covered.
	reference := &common.FusedGraph{
		Entities: []common.Entity{
			{ID: "a", Importance: 0},
			{ID: "b", Importance: 0},
		},
	}

	report := Score(reference, map[string]struct{}{})
	if report.Score != 1.0 {
		t.Errorf("score = %v, want 1.0 for zero total importance", report.Score)
	}
	if len(report.Missing) != 2 {
		t.Errorf("missing = %d entities, want 2", len(report.Missing))
	}
}

func TestScoreMissingOrderedByImportanceThenID(t *testing.T) {
	reference := &common.FusedGraph{
		Entities: []common.Entity{
			{ID: "c", Importance: 0.2},
			{ID: "b", Importance: 0.5},
			{ID: "a", Importance: 0.2},
			{ID: "d", Importance: 0.9},
		},
	}

	report := Score(reference, map[string]struct{}{})

	got := make([]string, 0, len(report.Missing))
	for _, e := range report.Missing {
		got = append(got, e.ID)
	}
	want := []string{"d", "b", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("missing order = %v, want %v", got, want)
	}
}

func TestScoreBounds(t *testing.T) {
	reference := &common.FusedGraph{
		Entities: []common.Entity{
			{ID: "a", Importance: 0.3},
			{ID: "b", Importance: 0.7},
			{ID: "c", Importance: 0.1},
		},
	}

	auditedSets := []map[string]struct{}{
		{},
		{"a": {}},
		{"a": {}, "b": {}},
		{"a": {}, "b": {}, "c": {}},
		{"a": {}, "unknown": {}},
	}

	for _, audited := range auditedSets {
		report := Score(reference, audited)
		if report.Score < 0 || report.Score > 1 {
			t.Errorf("score out of bounds for %v: %v", audited, report.Score)
		}
	}
}
