// Package wikidata adapts the collaborative Wikidata triple store into
// fusion candidates via its SPARQL HTTP endpoint.
package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kg-audit/weaver/backend/pkg/common"
	"github.com/kg-audit/weaver/backend/pkg/fusion"
)

const defaultEndpoint = "https://query.wikidata.org/sparql"

// propertyRelations maps the Wikidata properties the fetch query follows to
// the relation vocabulary of the fused graph.
var propertyRelations = map[string]common.RelationType{
	"P31":  common.RelationInstanceOf,
	"P279": common.RelationSubclassOf,
	"P361": common.RelationPartOf,
	"P527": common.RelationHasPart,
}

// Client fetches candidates from a SPARQL endpoint speaking the standard
// SPARQL 1.1 JSON results format.
type Client struct {
	endpoint   string
	userAgent  string
	limit      int
	httpClient *http.Client
}

// NewClientParams defines the configuration for a Wikidata client.
//
// Endpoint overrides the public query service URL (useful for mirrors and
// tests). Limit caps the number of matched items per keyword (default 50).
type NewClientParams struct {
	Endpoint  string
	UserAgent string
	Limit     int
	Timeout   time.Duration
}

// NewClient creates a Wikidata SPARQL client.
func NewClient(params NewClientParams) *Client {
	endpoint := params.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		userAgent:  params.UserAgent,
		limit:      limit,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ID returns the source identifier recorded in candidate provenance.
func (c *Client) ID() string {
	return fusion.SourceWikidata
}

// Fetch queries the SPARQL endpoint for items matching the keyword, together
// with their typing and composition statements, and maps the result bindings
// to fusion candidates. Q-ids double as external refs, so collaborative
// candidates merge with curated records that embed the same id.
func (c *Client) Fetch(
	ctx context.Context,
	keyword string,
) ([]common.EntityCandidate, []common.RelationCandidate, error) {
	query := buildQuery(keyword, c.limit)

	form := url.Values{}
	form.Set("query", query)
	form.Set("format", "json")

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query sparql endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("sparql endpoint returned status %d", resp.StatusCode)
	}

	var body queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, nil, fmt.Errorf("failed to decode sparql response: %w", err)
	}

	entities, relations := mapBindings(body.Results.Bindings)
	return entities, relations, nil
}

// buildQuery searches item labels and aliases for the keyword and pulls each
// match's description, aliases, type statement and composition statements.
func buildQuery(keyword string, limit int) string {
	escaped := strings.ReplaceAll(keyword, `"`, `\"`)
	return fmt.Sprintf(`
SELECT ?item ?itemLabel ?itemDescription ?itemAltLabel ?prop ?target ?targetLabel WHERE {
  SERVICE wikibase:mwapi {
    bd:serviceParam wikibase:endpoint "www.wikidata.org";
                    wikibase:api "EntitySearch";
                    mwapi:search "%s";
                    mwapi:language "en".
    ?item wikibase:apiOutputItem mwapi:item.
  }
  OPTIONAL {
    VALUES ?prop { wdt:P31 wdt:P279 wdt:P361 wdt:P527 }
    ?item ?prop ?target.
  }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en". }
}
LIMIT %d`, escaped, limit*len(propertyRelations)+limit)
}

type queryResponse struct {
	Results struct {
		Bindings []binding `json:"bindings"`
	} `json:"results"`
}

type binding struct {
	Item            bindingValue `json:"item"`
	ItemLabel       bindingValue `json:"itemLabel"`
	ItemDescription bindingValue `json:"itemDescription"`
	ItemAltLabel    bindingValue `json:"itemAltLabel"`
	Prop            bindingValue `json:"prop"`
	Target          bindingValue `json:"target"`
	TargetLabel     bindingValue `json:"targetLabel"`
}

type bindingValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// mapBindings folds SPARQL result rows into candidates. Rows repeat the item
// columns once per statement, so entity candidates dedupe on Q-id while each
// row with a recognized property becomes one relation candidate. An entity
// first seen as a bare statement target gets upgraded in place when a later
// row carries its full item columns.
func mapBindings(bindings []binding) ([]common.EntityCandidate, []common.RelationCandidate) {
	var entities []common.EntityCandidate
	var relations []common.RelationCandidate
	entityIdx := map[string]int{}
	seenRelations := map[string]bool{}

	upsert := func(qid string, c common.EntityCandidate) {
		idx, ok := entityIdx[qid]
		if !ok {
			entityIdx[qid] = len(entities)
			entities = append(entities, c)
			return
		}
		existing := &entities[idx]
		if existing.Description == "" {
			existing.Description = c.Description
		}
		if len(existing.Aliases) == 0 {
			existing.Aliases = c.Aliases
		}
		if existing.Name == "" {
			existing.Name = c.Name
		}
	}

	for _, b := range bindings {
		qid := entityID(b.Item.Value)
		if qid == "" {
			continue
		}

		upsert(qid, common.EntityCandidate{
			SourceID:     fusion.SourceWikidata,
			ExternalRefs: []string{qid},
			Name:         b.ItemLabel.Value,
			Description:  b.ItemDescription.Value,
			Aliases:      splitAliases(b.ItemAltLabel.Value),
			Confidence:   1.0,
		})

		prop := propertyID(b.Prop.Value)
		relType, ok := propertyRelations[prop]
		if !ok {
			continue
		}
		targetQID := entityID(b.Target.Value)
		if targetQID == "" {
			continue
		}

		// Statement targets become candidates too, so relations never dangle.
		upsert(targetQID, common.EntityCandidate{
			SourceID:     fusion.SourceWikidata,
			ExternalRefs: []string{targetQID},
			Name:         b.TargetLabel.Value,
			Confidence:   1.0,
		})

		relKey := qid + "\x00" + targetQID + "\x00" + string(relType)
		if seenRelations[relKey] {
			continue
		}
		seenRelations[relKey] = true
		relations = append(relations, common.RelationCandidate{
			SourceID:       fusion.SourceWikidata,
			SubjectRef:     qid,
			ObjectRef:      targetQID,
			Type:           relType,
			EvidenceWeight: 1.0,
		})
	}

	return entities, relations
}

// entityID extracts the Q-id from an entity URI like
// http://www.wikidata.org/entity/Q11660.
func entityID(uri string) string {
	idx := strings.LastIndex(uri, "/")
	if idx < 0 || idx == len(uri)-1 {
		return ""
	}
	id := uri[idx+1:]
	if !strings.HasPrefix(id, "Q") {
		return ""
	}
	return id
}

// propertyID extracts the P-id from a property URI like
// http://www.wikidata.org/prop/direct/P31.
func propertyID(uri string) string {
	idx := strings.LastIndex(uri, "/")
	if idx < 0 {
		return ""
	}
	return uri[idx+1:]
}

func splitAliases(altLabel string) []string {
	if altLabel == "" {
		return nil
	}
	parts := strings.Split(altLabel, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
