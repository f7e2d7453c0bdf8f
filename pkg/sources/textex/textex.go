// Package textex extracts entity and relation candidates from free text
// using an LLM with schema-constrained output. It backs both the text
// knowledge source and the audit pipeline's document side.
package textex

import (
	"context"
	"fmt"
	"strings"

	"github.com/kg-audit/weaver/backend/pkg/ai"
	"github.com/kg-audit/weaver/backend/pkg/common"
	"github.com/kg-audit/weaver/backend/pkg/fusion"
	"github.com/kg-audit/weaver/backend/pkg/loader"

	"github.com/pkoukk/tiktoken-go"
	"golang.org/x/sync/errgroup"
)

const (
	defaultChunkTokens   = 1200
	defaultOverlapTokens = 100
	encodingName         = "o200k_base"
)

// extractedEntity is the structured-output shape the model fills per entity.
type extractedEntity struct {
	Name        string   `json:"name" jsonschema_description:"Canonical name of the entity as used in the text"`
	Types       []string `json:"types" jsonschema_description:"Upper-case type labels such as PERSON, CONCEPT, FIELD, TOPIC"`
	Description string   `json:"description" jsonschema_description:"One-sentence description grounded in the text"`
	Aliases     []string `json:"aliases" jsonschema_description:"Alternative names and abbreviations mentioned in the text"`
	Confidence  float64  `json:"confidence" jsonschema_description:"Extraction confidence between 0 and 1"`
}

type extractedRelation struct {
	Subject    string  `json:"subject" jsonschema_description:"Name of the subject entity"`
	Object     string  `json:"object" jsonschema_description:"Name of the object entity"`
	Type       string  `json:"type" jsonschema:"enum=RELATED_TO,enum=INSTANCE_OF,enum=SUBCLASS_OF,enum=PART_OF,enum=HAS_PART"`
	Confidence float64 `json:"confidence" jsonschema_description:"Extraction confidence between 0 and 1"`
}

type extractionResult struct {
	Entities  []extractedEntity   `json:"entities"`
	Relations []extractedRelation `json:"relations"`
}

// Extractor turns free text into fusion candidates. Chunks are extracted
// concurrently; the AI client's internal semaphore bounds actual parallelism.
type Extractor struct {
	client        ai.ExtractionAIClient
	chunkTokens   int
	overlapTokens int
}

// NewExtractorParams configures an Extractor.
type NewExtractorParams struct {
	Client        ai.ExtractionAIClient
	ChunkTokens   int
	OverlapTokens int
}

// NewExtractor creates a text extractor backed by the given AI client.
func NewExtractor(params NewExtractorParams) *Extractor {
	chunkTokens := params.ChunkTokens
	if chunkTokens <= 0 {
		chunkTokens = defaultChunkTokens
	}
	overlapTokens := params.OverlapTokens
	if overlapTokens < 0 || overlapTokens >= chunkTokens {
		overlapTokens = defaultOverlapTokens
	}
	return &Extractor{
		client:        params.Client,
		chunkTokens:   chunkTokens,
		overlapTokens: overlapTokens,
	}
}

// Extract chunks the text and runs structured extraction over every chunk.
// Topic, when non-empty, focuses the model on entities relevant to it.
// Extracted candidates carry no external refs; the resolver matches them by
// normalized name and type overlap.
func (e *Extractor) Extract(
	ctx context.Context,
	text []byte,
	topic string,
) ([]common.EntityCandidate, []common.RelationCandidate, error) {
	chunks, err := chunkText(string(text), e.chunkTokens, e.overlapTokens)
	if err != nil {
		return nil, nil, err
	}
	if len(chunks) == 0 {
		return nil, nil, nil
	}

	results := make([]extractionResult, len(chunks))
	eg, ectx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		idx := i
		text := chunk
		eg.Go(func() error {
			var out extractionResult
			err := e.client.GenerateCompletionWithFormat(
				ectx,
				"extraction",
				"entities and relations extracted from the text",
				buildPrompt(text, topic),
				&out,
				ai.WithSystemPrompts(extractionSystemPrompt),
			)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", idx, err)
			}
			results[idx] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	return mapResults(results), mapRelations(results), nil
}

// ID returns the source identifier recorded in candidate provenance.
func (e *Extractor) ID() string {
	return fusion.SourceText
}

// DocumentAdapter wraps the extractor and a document into a sources.Adapter,
// so fusion can include a text source alongside curated and collaborative
// ones. The fetch keyword becomes the topical focus of the extraction.
type DocumentAdapter struct {
	extractor *Extractor
	doc       loader.Document
}

// NewDocumentAdapter creates an adapter extracting candidates from doc.
func NewDocumentAdapter(extractor *Extractor, doc loader.Document) *DocumentAdapter {
	return &DocumentAdapter{extractor: extractor, doc: doc}
}

// ID returns the source identifier recorded in candidate provenance.
func (a *DocumentAdapter) ID() string {
	return fusion.SourceText
}

// Fetch loads the document and extracts candidates focused on the keyword.
func (a *DocumentAdapter) Fetch(
	ctx context.Context,
	keyword string,
) ([]common.EntityCandidate, []common.RelationCandidate, error) {
	text, err := a.doc.GetText(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load document %s: %w", a.doc.ID, err)
	}
	return a.extractor.Extract(ctx, text, keyword)
}

const extractionSystemPrompt = `You are an information extraction system. ` +
	`You identify the entities a text is about and the relations it asserts ` +
	`between them. You only extract what the text actually states; you never ` +
	`invent entities or relations.`

func buildPrompt(chunk string, topic string) string {
	var b strings.Builder
	b.WriteString("Extract all entities and relations from the following text.\n")
	if topic != "" {
		b.WriteString("Focus on entities relevant to the topic: ")
		b.WriteString(topic)
		b.WriteString("\n")
	}
	b.WriteString("\nText:\n")
	b.WriteString(chunk)
	return b.String()
}

// chunkText splits text into windows of at most chunkTokens tokens with
// overlapTokens of lookback, so entities mentioned near a boundary appear
// whole in at least one chunk.
func chunkText(text string, chunkTokens, overlapTokens int) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, err
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= chunkTokens {
		return []string{text}, nil
	}

	step := chunkTokens - overlapTokens
	chunks := make([]string, 0, (len(tokens)+step-1)/step)
	for start := 0; start < len(tokens); start += step {
		end := start + chunkTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, enc.Decode(tokens[start:end]))
		if end == len(tokens) {
			break
		}
	}
	return chunks, nil
}

// mapResults folds chunk results into entity candidates, deduplicating on
// normalized name. Overlapping chunks re-extract the same entity; the copy
// with the higher confidence wins and aliases union.
func mapResults(results []extractionResult) []common.EntityCandidate {
	var out []common.EntityCandidate
	index := map[string]int{}

	for _, res := range results {
		for _, ent := range res.Entities {
			if strings.TrimSpace(ent.Name) == "" {
				continue
			}
			key := fusion.NormalizeName(ent.Name)
			if idx, ok := index[key]; ok {
				existing := &out[idx]
				if ent.Confidence > existing.Confidence {
					existing.Confidence = ent.Confidence
					existing.Description = ent.Description
				}
				existing.Aliases = mergeStrings(existing.Aliases, ent.Aliases)
				existing.TypeHints = mergeStrings(existing.TypeHints, ent.Types)
				continue
			}
			index[key] = len(out)
			out = append(out, common.EntityCandidate{
				SourceID:    fusion.SourceText,
				Name:        ent.Name,
				TypeHints:   ent.Types,
				Description: ent.Description,
				Aliases:     ent.Aliases,
				Confidence:  clampConfidence(ent.Confidence),
			})
		}
	}
	return out
}

// mapRelations folds chunk results into relation candidates referencing
// subject and object by name. The evidence weight is the model confidence.
func mapRelations(results []extractionResult) []common.RelationCandidate {
	var out []common.RelationCandidate
	seen := map[string]bool{}

	for _, res := range results {
		for _, rel := range res.Relations {
			if strings.TrimSpace(rel.Subject) == "" || strings.TrimSpace(rel.Object) == "" {
				continue
			}
			key := fusion.NormalizeName(rel.Subject) + "\x00" +
				fusion.NormalizeName(rel.Object) + "\x00" + rel.Type
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, common.RelationCandidate{
				SourceID:       fusion.SourceText,
				SubjectRef:     rel.Subject,
				ObjectRef:      rel.Object,
				Type:           common.RelationType(rel.Type),
				EvidenceWeight: clampConfidence(rel.Confidence),
			})
		}
	}
	return out
}

func mergeStrings(a, b []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func clampConfidence(v float64) float64 {
	if v <= 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
