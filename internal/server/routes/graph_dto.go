package routes

import (
	"github.com/kg-audit/weaver/backend/pkg/common"
)

// graphDTO is the wire shape of a fused graph. The internal model keeps
// per-(source, ref) provenance on every entity; the API flattens that to
// the list of sources that observed the entity and their external ids.
type graphDTO struct {
	Entities  []entityDTO   `json:"entities"`
	Relations []relationDTO `json:"relations"`
}

type entityDTO struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Type        []string `json:"type"`
	Description string   `json:"description,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
	Source      []string `json:"source"`
	ExternalIDs []string `json:"external_ids,omitempty"`
}

type relationDTO struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

func newGraphDTO(g *common.FusedGraph) graphDTO {
	dto := graphDTO{
		Entities:  make([]entityDTO, 0, len(g.Entities)),
		Relations: make([]relationDTO, 0, len(g.Relations)),
	}

	for _, e := range g.Entities {
		var sources, externalIDs []string
		seenSources := map[string]struct{}{}
		seenRefs := map[string]struct{}{}
		for _, p := range e.Provenance {
			if _, ok := seenSources[p.Source]; !ok {
				seenSources[p.Source] = struct{}{}
				sources = append(sources, p.Source)
			}
			if p.Ref == "" {
				continue
			}
			if _, ok := seenRefs[p.Ref]; !ok {
				seenRefs[p.Ref] = struct{}{}
				externalIDs = append(externalIDs, p.Ref)
			}
		}
		dto.Entities = append(dto.Entities, entityDTO{
			ID:          e.ID,
			Name:        e.Name,
			Type:        e.Types,
			Description: e.Description,
			Aliases:     e.Aliases,
			Source:      sources,
			ExternalIDs: externalIDs,
		})
	}

	for _, r := range g.Relations {
		dto.Relations = append(dto.Relations, relationDTO{
			Source: r.SubjectID,
			Target: r.ObjectID,
			Type:   string(r.Type),
			Weight: r.Weight,
		})
	}

	return dto
}
