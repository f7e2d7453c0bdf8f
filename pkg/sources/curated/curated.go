// Package curated adapts an editorially maintained knowledge base, exposed
// as a JSON HTTP API, into fusion candidates. Curated records are the most
// reliable source and carry the highest fusion priority.
package curated

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kg-audit/weaver/backend/pkg/common"
	"github.com/kg-audit/weaver/backend/pkg/fusion"
)

// record mirrors the wire format of the curated KB API.
type record struct {
	Ref         string   `json:"ref"`
	Name        string   `json:"name"`
	Types       []string `json:"types"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases"`
	// WikidataID carries the collaborative-KB identifier a curator attached
	// to the record, if any. Surfacing it as an extra external ref is what
	// lets the resolver merge curated and collaborative candidates.
	WikidataID string `json:"wikidata_id"`

	Relations []recordRelation `json:"relations"`
}

type recordRelation struct {
	SubjectRef string `json:"subject_ref"`
	ObjectRef  string `json:"object_ref"`
	Type       string `json:"type"`
}

type searchResponse struct {
	Records []record `json:"records"`
}

// Client fetches candidates from the curated knowledge base.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClientParams defines the configuration for a curated KB client.
type NewClientParams struct {
	BaseURL string
	ApiKey  string
	Timeout time.Duration
}

// NewClient creates a curated KB client for the given API endpoint.
func NewClient(params NewClientParams) *Client {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    params.BaseURL,
		apiKey:     params.ApiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ID returns the source identifier recorded in candidate provenance.
func (c *Client) ID() string {
	return fusion.SourceCurated
}

// Fetch queries the curated KB for records matching the keyword and maps
// them to fusion candidates. Curated relation assertions carry full evidence
// weight; the per-source reliability discount happens during fusion.
func (c *Client) Fetch(
	ctx context.Context,
	keyword string,
) ([]common.EntityCandidate, []common.RelationCandidate, error) {
	endpoint := fmt.Sprintf("%s/api/records?keyword=%s", c.baseURL, url.QueryEscape(keyword))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query curated kb: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("curated kb returned status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, nil, fmt.Errorf("failed to decode curated kb response: %w", err)
	}

	return mapRecords(body.Records)
}

func mapRecords(records []record) ([]common.EntityCandidate, []common.RelationCandidate, error) {
	entities := make([]common.EntityCandidate, 0, len(records))
	var relations []common.RelationCandidate

	for _, r := range records {
		refs := []string{r.Ref}
		if r.WikidataID != "" {
			refs = append(refs, r.WikidataID)
		}
		entities = append(entities, common.EntityCandidate{
			SourceID:     fusion.SourceCurated,
			ExternalRefs: refs,
			Name:         r.Name,
			TypeHints:    r.Types,
			Description:  r.Description,
			Aliases:      r.Aliases,
			Confidence:   1.0,
		})

		for _, rel := range r.Relations {
			relations = append(relations, common.RelationCandidate{
				SourceID:       fusion.SourceCurated,
				SubjectRef:     rel.SubjectRef,
				ObjectRef:      rel.ObjectRef,
				Type:           common.RelationType(rel.Type),
				EvidenceWeight: 1.0,
			})
		}
	}

	return entities, relations, nil
}
