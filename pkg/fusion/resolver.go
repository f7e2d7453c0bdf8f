package fusion

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/kg-audit/weaver/backend/pkg/common"
)

const aliasMatchThreshold = 0.5

// Resolution is the output of resolving one candidate batch. EntityIDs is
// aligned with the input candidate slice; skipped candidates map to "".
// RefMap resolves external refs and normalized names/aliases to entity
// ids and is what the fusion builder uses to map relation endpoints.
type Resolution struct {
	EntityIDs []string
	Entities  []common.Entity
	RefMap    map[string]string
}

// Resolve clusters entity candidates across sources into canonical
// entities, seeding from the entities of an existing graph when one is
// passed. Matching runs through an ordered cascade, first match wins:
//
//  1. a (source, external_ref) pair already present in some entity's
//     provenance;
//  2. any external ref shared with an entity, regardless of source;
//  3. normalized-name equality plus a non-empty type intersection;
//  4. alias-set Jaccard similarity >= 0.5 plus a non-empty type
//     intersection, ties broken by the smaller entity id.
//
// Candidates are first sorted into a canonical order so that the result
// does not depend on the order concurrently-completing source fetches
// delivered them in. Candidates without a name are skipped and counted.
func Resolve(
	candidates []common.EntityCandidate,
	existing *common.FusedGraph,
	cfg Config,
) (*Resolution, common.FuseStats) {
	r := newResolverState(existing)
	stats := common.FuseStats{}

	order := canonicalOrder(candidates, cfg)
	ids := make([]string, len(candidates))

	for _, idx := range order {
		cand := candidates[idx]
		if strings.TrimSpace(cand.Name) == "" {
			stats.SkippedCandidates++
			continue
		}
		ids[idx] = r.resolveOne(cand)
	}

	return &Resolution{
		EntityIDs: ids,
		Entities:  r.entities,
		RefMap:    r.refMap,
	}, stats
}

// canonicalOrder returns candidate indices stably sorted by
// (source priority, primary external ref, name).
func canonicalOrder(candidates []common.EntityCandidate, cfg Config) []int {
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := candidates[order[a]], candidates[order[b]]
		pa, pb := cfg.priority(ca.SourceID), cfg.priority(cb.SourceID)
		if pa != pb {
			return pa < pb
		}
		ra, rb := primaryRef(ca), primaryRef(cb)
		if ra != rb {
			return ra < rb
		}
		return ca.Name < cb.Name
	})
	return order
}

func primaryRef(c common.EntityCandidate) string {
	if len(c.ExternalRefs) > 0 {
		return c.ExternalRefs[0]
	}
	return ""
}

// entityID derives a stable id from the candidate that seeds an entity.
// The id is a pure function of that first candidate's source, primary
// ref, normalized name and normalized type set, so re-running the same
// batch reproduces the same ids; later merges never change it. The type
// set is part of the derivation because two same-source, ref-less
// candidates sharing a name but not a type match no cascade rule and
// must seed distinct entities.
func entityID(c common.EntityCandidate) string {
	parts := []string{c.SourceID, primaryRef(c), NormalizeName(c.Name)}
	types := make([]string, 0, len(c.TypeHints))
	for t := range normalizeSet(c.TypeHints) {
		types = append(types, t)
	}
	sort.Strings(types)
	parts = append(parts, types...)
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h[:12])
}

type resolverState struct {
	entities []common.Entity
	index    map[string]int // entity id -> position in entities

	sourceRefs map[string]string // source + "\x00" + ref -> entity id
	anyRefs    map[string]string // ref -> entity id
	names      map[string][]string // normalized name -> entity ids
	refMap     map[string]string
}

func newResolverState(existing *common.FusedGraph) *resolverState {
	r := &resolverState{
		index:      make(map[string]int),
		sourceRefs: make(map[string]string),
		anyRefs:    make(map[string]string),
		names:      make(map[string][]string),
		refMap:     make(map[string]string),
	}
	if existing == nil {
		return r
	}
	// Deep-copy seeded entities: the previous graph stays immutable.
	for _, e := range existing.Entities {
		seed := e
		seed.Types = append([]string(nil), e.Types...)
		seed.Aliases = append([]string(nil), e.Aliases...)
		seed.Provenance = append([]common.ProvenanceEntry(nil), e.Provenance...)
		r.entities = append(r.entities, seed)
		r.index[seed.ID] = len(r.entities) - 1
		r.indexEntity(&r.entities[len(r.entities)-1])
	}
	return r
}

func (r *resolverState) indexEntity(e *common.Entity) {
	for _, p := range e.Provenance {
		if p.Ref == "" {
			continue
		}
		r.putSourceRef(p.Source, p.Ref, e.ID)
		r.putAnyRef(p.Ref, e.ID)
	}
	key := NormalizeName(e.Name)
	if key != "" && !containsString(r.names[key], e.ID) {
		r.names[key] = append(r.names[key], e.ID)
		r.putRefMap(key, e.ID)
	}
	for _, a := range e.Aliases {
		n := NormalizeName(a)
		if n != "" {
			r.putRefMap(n, e.ID)
		}
	}
	r.putRefMap(e.ID, e.ID)
}

func (r *resolverState) putSourceRef(source, ref, id string) {
	key := source + "\x00" + ref
	if _, ok := r.sourceRefs[key]; !ok {
		r.sourceRefs[key] = id
	}
}

func (r *resolverState) putAnyRef(ref, id string) {
	if _, ok := r.anyRefs[ref]; !ok {
		r.anyRefs[ref] = id
	}
	r.putRefMap(ref, id)
}

func (r *resolverState) putRefMap(key, id string) {
	if _, ok := r.refMap[key]; !ok {
		r.refMap[key] = id
	}
}

func (r *resolverState) resolveOne(cand common.EntityCandidate) string {
	if id, ok := r.matchByRef(cand); ok {
		r.merge(id, cand)
		return id
	}
	if id, ok := r.matchByName(cand); ok {
		r.merge(id, cand)
		return id
	}
	if id, ok := r.matchByAliases(cand); ok {
		r.merge(id, cand)
		return id
	}
	return r.seed(cand)
}

// matchByRef covers cascade rules 1 and 2. Rule 1 (same source family)
// is checked for every ref before falling back to cross-source matches,
// so a source-native id always beats an embedded foreign id.
func (r *resolverState) matchByRef(cand common.EntityCandidate) (string, bool) {
	for _, ref := range cand.ExternalRefs {
		if ref == "" {
			continue
		}
		if id, ok := r.sourceRefs[cand.SourceID+"\x00"+ref]; ok {
			return id, true
		}
	}
	for _, ref := range cand.ExternalRefs {
		if ref == "" {
			continue
		}
		if id, ok := r.anyRefs[ref]; ok {
			return id, true
		}
	}
	return "", false
}

func (r *resolverState) matchByName(cand common.EntityCandidate) (string, bool) {
	key := NormalizeName(cand.Name)
	if key == "" {
		return "", false
	}
	candTypes := normalizeSet(cand.TypeHints)
	best := ""
	for _, id := range r.names[key] {
		e := &r.entities[r.index[id]]
		if !typesIntersect(candTypes, e.Types) {
			continue
		}
		if best == "" || id < best {
			best = id
		}
	}
	return best, best != ""
}

// matchByAliases scans all known entities; candidate batches are small
// enough that the quadratic worst case has not mattered in practice.
func (r *resolverState) matchByAliases(cand common.EntityCandidate) (string, bool) {
	candAliases := normalizeSet(cand.Aliases)
	if len(candAliases) == 0 {
		return "", false
	}
	candTypes := normalizeSet(cand.TypeHints)
	best := ""
	bestScore := 0.0
	for i := range r.entities {
		e := &r.entities[i]
		if !typesIntersect(candTypes, e.Types) {
			continue
		}
		score := jaccard(candAliases, normalizeSet(e.Aliases))
		if score < aliasMatchThreshold {
			continue
		}
		// Equal similarity to two entities resolves to the smaller id.
		if score > bestScore || (score == bestScore && (best == "" || e.ID < best)) {
			best = e.ID
			bestScore = score
		}
	}
	return best, best != ""
}

func typesIntersect(candTypes map[string]struct{}, entityTypes []string) bool {
	if len(candTypes) == 0 {
		return false
	}
	for _, t := range entityTypes {
		if _, ok := candTypes[NormalizeName(t)]; ok {
			return true
		}
	}
	return false
}

// merge folds a matched candidate into an existing entity. The entity id
// never changes; types and aliases are unioned, the description is kept
// unless empty (candidates arrive in priority order, so the first
// non-empty one wins), and provenance grows idempotently.
func (r *resolverState) merge(id string, cand common.EntityCandidate) {
	e := &r.entities[r.index[id]]

	e.Types = unionSorted(e.Types, cand.TypeHints)
	e.Aliases = unionSorted(e.Aliases, cand.Aliases)
	if e.Description == "" {
		e.Description = strings.TrimSpace(cand.Description)
	}

	refs := cand.ExternalRefs
	if len(refs) == 0 {
		refs = []string{""}
	}
	for _, ref := range refs {
		entry := common.ProvenanceEntry{Source: cand.SourceID, Ref: ref}
		if !containsProvenance(e.Provenance, entry) {
			e.Provenance = append(e.Provenance, entry)
		}
	}

	r.indexEntity(e)
}

func (r *resolverState) seed(cand common.EntityCandidate) string {
	id := entityID(cand)
	if _, ok := r.index[id]; ok {
		// Identical seeding observation (same source, ref, name and type
		// set) repeated, e.g. on an incremental re-fuse; provenance append
		// is idempotent.
		r.merge(id, cand)
		return id
	}

	provenance := make([]common.ProvenanceEntry, 0, len(cand.ExternalRefs))
	for _, ref := range cand.ExternalRefs {
		entry := common.ProvenanceEntry{Source: cand.SourceID, Ref: ref}
		if !containsProvenance(provenance, entry) {
			provenance = append(provenance, entry)
		}
	}
	if len(provenance) == 0 {
		provenance = append(provenance, common.ProvenanceEntry{Source: cand.SourceID})
	}

	e := common.Entity{
		ID:          id,
		Name:        strings.TrimSpace(cand.Name),
		Types:       unionSorted(nil, cand.TypeHints),
		Description: strings.TrimSpace(cand.Description),
		Aliases:     unionSorted(nil, cand.Aliases),
		Provenance:  provenance,
	}
	r.entities = append(r.entities, e)
	r.index[id] = len(r.entities) - 1
	r.indexEntity(&r.entities[len(r.entities)-1])
	return id
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func containsProvenance(s []common.ProvenanceEntry, p common.ProvenanceEntry) bool {
	for _, x := range s {
		if x == p {
			return true
		}
	}
	return false
}
