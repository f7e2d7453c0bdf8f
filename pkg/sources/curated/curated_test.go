package curated

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/kg-audit/weaver/backend/pkg/common"
)

func TestFetchMapsRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("keyword"); got != "artificial intelligence" {
			t.Errorf("keyword = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode(searchResponse{
			Records: []record{
				{
					Ref:         "kb:ai-001",
					Name:        "Artificial Intelligence",
					Types:       []string{"FIELD"},
					Description: "Study of intelligent agents.",
					Aliases:     []string{"AI"},
					WikidataID:  "Q11660",
					Relations: []recordRelation{
						{SubjectRef: "kb:ml-001", ObjectRef: "kb:ai-001", Type: "SUBCLASS_OF"},
					},
				},
				{
					Ref:  "kb:ml-001",
					Name: "Machine Learning",
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(NewClientParams{BaseURL: srv.URL, ApiKey: "secret"})
	entities, relations, err := client.Fetch(context.Background(), "artificial intelligence")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	wantEntities := []common.EntityCandidate{
		{
			SourceID:     "curated",
			ExternalRefs: []string{"kb:ai-001", "Q11660"},
			Name:         "Artificial Intelligence",
			TypeHints:    []string{"FIELD"},
			Description:  "Study of intelligent agents.",
			Aliases:      []string{"AI"},
			Confidence:   1.0,
		},
		{
			SourceID:     "curated",
			ExternalRefs: []string{"kb:ml-001"},
			Name:         "Machine Learning",
			Confidence:   1.0,
		},
	}
	if !reflect.DeepEqual(entities, wantEntities) {
		t.Errorf("entities:\ngot  %+v\nwant %+v", entities, wantEntities)
	}

	wantRelations := []common.RelationCandidate{
		{
			SourceID:       "curated",
			SubjectRef:     "kb:ml-001",
			ObjectRef:      "kb:ai-001",
			Type:           common.RelationSubclassOf,
			EvidenceWeight: 1.0,
		},
	}
	if !reflect.DeepEqual(relations, wantRelations) {
		t.Errorf("relations:\ngot  %+v\nwant %+v", relations, wantRelations)
	}
}

func TestFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(NewClientParams{BaseURL: srv.URL})
	if _, _, err := client.Fetch(context.Background(), "anything"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}
