package sources

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kg-audit/weaver/backend/pkg/common"
)

type stubAdapter struct {
	id        string
	entities  []common.EntityCandidate
	relations []common.RelationCandidate
	err       error
	delay     time.Duration
}

func (s *stubAdapter) ID() string { return s.id }

func (s *stubAdapter) Fetch(ctx context.Context, keyword string) ([]common.EntityCandidate, []common.RelationCandidate, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.entities, s.relations, nil
}

func TestFetchAllPreservesAdapterOrder(t *testing.T) {
	adapters := []Adapter{
		&stubAdapter{
			id:    "slow",
			delay: 20 * time.Millisecond,
			entities: []common.EntityCandidate{
				{SourceID: "slow", Name: "First"},
			},
		},
		&stubAdapter{
			id: "fast",
			entities: []common.EntityCandidate{
				{SourceID: "fast", Name: "Second"},
			},
			relations: []common.RelationCandidate{
				{SourceID: "fast", SubjectRef: "a", ObjectRef: "b", Type: common.RelationRelatedTo},
			},
		},
	}

	entities, relations, err := FetchAll(context.Background(), "topic", adapters)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	wantNames := []string{"First", "Second"}
	gotNames := make([]string, len(entities))
	for i, e := range entities {
		gotNames[i] = e.Name
	}
	if !reflect.DeepEqual(gotNames, wantNames) {
		t.Errorf("entity order = %v, want %v", gotNames, wantNames)
	}
	if len(relations) != 1 || relations[0].SourceID != "fast" {
		t.Errorf("unexpected relations: %+v", relations)
	}
}

func TestFetchAllPropagatesError(t *testing.T) {
	sourceErr := errors.New("endpoint down")
	adapters := []Adapter{
		&stubAdapter{id: "ok", entities: []common.EntityCandidate{{Name: "A"}}},
		&stubAdapter{id: "broken", err: sourceErr},
	}

	_, _, err := FetchAll(context.Background(), "topic", adapters)
	if !errors.Is(err, sourceErr) {
		t.Fatalf("err = %v, want wrapped %v", err, sourceErr)
	}
}

func TestFetchAllEmpty(t *testing.T) {
	entities, relations, err := FetchAll(context.Background(), "topic", nil)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(entities) != 0 || len(relations) != 0 {
		t.Errorf("expected empty result, got %d entities, %d relations", len(entities), len(relations))
	}
}
