package common

// RelationType classifies the semantic relation carried by an edge.
// The set is fixed; source adapters are responsible for mapping their
// native vocabulary (e.g. Wikidata P31/P279) onto it.
type RelationType string

const (
	RelationRelatedTo  RelationType = "RELATED_TO"
	RelationInstanceOf RelationType = "INSTANCE_OF"
	RelationSubclassOf RelationType = "SUBCLASS_OF"
	RelationPartOf     RelationType = "PART_OF"
	RelationHasPart    RelationType = "HAS_PART"
)

// ValidRelationType reports whether t is one of the fixed relation types.
func ValidRelationType(t RelationType) bool {
	switch t {
	case RelationRelatedTo, RelationInstanceOf, RelationSubclassOf,
		RelationPartOf, RelationHasPart:
		return true
	}
	return false
}

// EntityCandidate is a single source's unverified observation of a
// real-world entity, prior to resolution. Candidates are ephemeral:
// they are produced per request by a source adapter, consumed exactly
// once by the resolver and then discarded.
//
// ExternalRefs holds the source-native identifier first, followed by any
// cross-source identifiers the record embeds (e.g. a curated entry that
// carries a Wikidata Q-id). Surfacing those as additional refs is what
// allows cross-source identity matching in the resolver.
type EntityCandidate struct {
	SourceID     string   `json:"source_id"`
	ExternalRefs []string `json:"external_refs,omitempty"`
	Name         string   `json:"name"`
	TypeHints    []string `json:"type_hints,omitempty"`
	Description  string   `json:"description,omitempty"`
	Aliases      []string `json:"aliases,omitempty"`
	Confidence   float64  `json:"confidence"`
}

// RelationCandidate is a single source's claim that two entities are
// related. Subject and object are referenced by external ref or by name;
// the fusion builder maps them through the resolution result.
type RelationCandidate struct {
	SourceID       string       `json:"source_id"`
	SubjectRef     string       `json:"subject_ref"`
	ObjectRef      string       `json:"object_ref"`
	Type           RelationType `json:"relation_type"`
	EvidenceWeight float64      `json:"evidence_weight"`
}

// ProvenanceEntry records that a source observed an entity under a
// particular external ref. Provenance is append-only; re-adding the same
// (source, ref) pair is idempotent.
type ProvenanceEntry struct {
	Source string `json:"source"`
	Ref    string `json:"ref,omitempty"`
}

// Entity is the canonical, deduplicated representation of one real-world
// entity across all sources. The ID is assigned when the first candidate
// seeds the entity and never changes afterwards; merges mutate the
// existing entity in place.
//
// Every entity carries at least one provenance entry.
type Entity struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Types       []string          `json:"types"`
	Description string            `json:"description,omitempty"`
	Aliases     []string          `json:"aliases,omitempty"`
	Provenance  []ProvenanceEntry `json:"provenance"`
	Importance  float64           `json:"importance"`
}

// Evidence is one source's contribution to a relation's weight.
type Evidence struct {
	Source string  `json:"source"`
	Weight float64 `json:"weight"`
}

// Relation is a canonical weighted edge between two resolved entities.
// There is at most one relation per (subject, object, type) triple;
// additional candidates for the same triple extend Evidence and the
// combined weight is recomputed.
type Relation struct {
	SubjectID string       `json:"subject_id"`
	ObjectID  string       `json:"object_id"`
	Type      RelationType `json:"relation_type"`
	Weight    float64      `json:"weight"`
	Evidence  []Evidence   `json:"evidence"`
}

// FusedGraph is the output of one fusion run: resolved entities plus
// combined relations. It is immutable once returned; incremental fusion
// passes a previous graph back in as the existing state.
type FusedGraph struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}

// FuseStats counts recoverable data problems encountered during a batch.
// Nothing in here is fatal; a batch always yields a best-effort graph.
type FuseStats struct {
	SkippedCandidates int `json:"skipped_candidates"`
	DroppedRelations  int `json:"dropped_relations"`
	SelfLoops         int `json:"self_loops"`
}

// Add accumulates counters from another stats value.
func (s *FuseStats) Add(o FuseStats) {
	s.SkippedCandidates += o.SkippedCandidates
	s.DroppedRelations += o.DroppedRelations
	s.SelfLoops += o.SelfLoops
}

// CoverageReport is the result of scoring an audited entity set against a
// reference graph. Score is the fraction of the reference's total
// importance that the audited set covers. Missing lists uncovered
// entities, most important first.
type CoverageReport struct {
	Score   float64  `json:"score"`
	Covered []string `json:"covered"`
	Missing []Entity `json:"missing"`
}

// Recommendation is a single human-readable suggestion derived from a
// coverage report.
type Recommendation struct {
	Kind     string `json:"kind"`
	EntityID string `json:"entity_id"`
	Message  string `json:"message"`
}

const (
	RecommendationIncludeEntity = "include_entity"
	RecommendationCoverSubtopic = "cover_subtopic"
)
