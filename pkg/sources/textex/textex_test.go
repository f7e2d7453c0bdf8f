package textex

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/kg-audit/weaver/backend/pkg/ai"
	"github.com/kg-audit/weaver/backend/pkg/common"
)

type stubAIClient struct {
	result extractionResult
	calls  int
}

func (s *stubAIClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", nil
}

func (s *stubAIClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	s.calls++
	*(out.(*extractionResult)) = s.result
	return nil
}

func (s *stubAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return nil, nil
}

func (s *stubAIClient) ResetMetrics()               {}
func (s *stubAIClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

func TestExtract(t *testing.T) {
	client := &stubAIClient{
		result: extractionResult{
			Entities: []extractedEntity{
				{
					Name:        "Machine Learning",
					Types:       []string{"FIELD"},
					Description: "Learning from data.",
					Aliases:     []string{"ML"},
					Confidence:  0.9,
				},
			},
			Relations: []extractedRelation{
				{
					Subject:    "Machine Learning",
					Object:     "Artificial Intelligence",
					Type:       "SUBCLASS_OF",
					Confidence: 0.8,
				},
			},
		},
	}

	extractor := NewExtractor(NewExtractorParams{Client: client})
	entities, relations, err := extractor.Extract(
		context.Background(),
		[]byte("Machine learning is a subfield of artificial intelligence."),
		"artificial intelligence",
	)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if client.calls != 1 {
		t.Errorf("expected 1 extraction call for a short text, got %d", client.calls)
	}

	wantEntities := []common.EntityCandidate{
		{
			SourceID:    "text",
			Name:        "Machine Learning",
			TypeHints:   []string{"FIELD"},
			Description: "Learning from data.",
			Aliases:     []string{"ML"},
			Confidence:  0.9,
		},
	}
	if !reflect.DeepEqual(entities, wantEntities) {
		t.Errorf("entities:\ngot  %+v\nwant %+v", entities, wantEntities)
	}

	wantRelations := []common.RelationCandidate{
		{
			SourceID:       "text",
			SubjectRef:     "Machine Learning",
			ObjectRef:      "Artificial Intelligence",
			Type:           common.RelationSubclassOf,
			EvidenceWeight: 0.8,
		},
	}
	if !reflect.DeepEqual(relations, wantRelations) {
		t.Errorf("relations:\ngot  %+v\nwant %+v", relations, wantRelations)
	}
}

func TestExtractEmptyText(t *testing.T) {
	extractor := NewExtractor(NewExtractorParams{Client: &stubAIClient{}})
	entities, relations, err := extractor.Extract(context.Background(), []byte("   \n"), "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if entities != nil || relations != nil {
		t.Errorf("expected no candidates for empty text, got %d entities, %d relations", len(entities), len(relations))
	}
}

func TestChunkText(t *testing.T) {
	short, err := chunkText("a short sentence", 100, 10)
	if err != nil {
		t.Fatalf("chunkText: %v", err)
	}
	if len(short) != 1 {
		t.Fatalf("short text chunks = %d, want 1", len(short))
	}

	long := strings.Repeat("graph fusion combines knowledge sources. ", 200)
	chunks, err := chunkText(long, 100, 10)
	if err != nil {
		t.Fatalf("chunkText: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("long text chunks = %d, want >= 2", len(chunks))
	}
	// Overlap means consecutive chunks share text at the boundary.
	for i := 1; i < len(chunks); i++ {
		tail := chunks[i-1][len(chunks[i-1])-20:]
		if !strings.Contains(chunks[i-1]+chunks[i], tail) {
			t.Fatalf("chunk %d lost boundary text", i)
		}
	}
}

func TestMapResultsDeduplicates(t *testing.T) {
	results := []extractionResult{
		{
			Entities: []extractedEntity{
				{Name: "Neural Networks", Types: []string{"CONCEPT"}, Confidence: 0.6, Description: "first pass"},
			},
		},
		{
			Entities: []extractedEntity{
				{Name: "neural networks", Types: []string{"FIELD"}, Aliases: []string{"NN"}, Confidence: 0.9, Description: "second pass"},
			},
		},
	}

	got := mapResults(results)
	if len(got) != 1 {
		t.Fatalf("entities = %d, want 1", len(got))
	}
	e := got[0]
	if e.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9 (higher confidence wins)", e.Confidence)
	}
	if e.Description != "second pass" {
		t.Errorf("description = %q, want the higher-confidence one", e.Description)
	}
	if !reflect.DeepEqual(e.TypeHints, []string{"CONCEPT", "FIELD"}) {
		t.Errorf("type hints = %v, want union", e.TypeHints)
	}
	if !reflect.DeepEqual(e.Aliases, []string{"NN"}) {
		t.Errorf("aliases = %v, want [NN]", e.Aliases)
	}
}

func TestMapRelationsSkipsBlankEndpoints(t *testing.T) {
	results := []extractionResult{
		{
			Relations: []extractedRelation{
				{Subject: "", Object: "B", Type: "RELATED_TO", Confidence: 0.5},
				{Subject: "A", Object: "B", Type: "RELATED_TO", Confidence: 0.5},
				{Subject: "a", Object: "b", Type: "RELATED_TO", Confidence: 0.7},
			},
		},
	}

	got := mapRelations(results)
	if len(got) != 1 {
		t.Fatalf("relations = %d, want 1 (blank skipped, duplicate folded)", len(got))
	}
	if got[0].EvidenceWeight != 0.5 {
		t.Errorf("weight = %v, want first occurrence kept", got[0].EvidenceWeight)
	}
}
