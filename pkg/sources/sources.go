// Package sources defines the adapter contract for knowledge sources that
// contribute entity and relation candidates to graph fusion, plus a helper
// to fan fetches out concurrently.
package sources

import (
	"context"
	"fmt"

	"github.com/kg-audit/weaver/backend/pkg/common"

	"golang.org/x/sync/errgroup"
)

// Adapter fetches entity and relation candidates for a keyword from one
// knowledge source. ID returns the stable source identifier recorded in
// candidate provenance and looked up in the fusion reliability table.
type Adapter interface {
	ID() string
	Fetch(ctx context.Context, keyword string) ([]common.EntityCandidate, []common.RelationCandidate, error)
}

// FetchAll runs all adapters concurrently and concatenates their results in
// adapter order. Completion order does not matter for fusion output since the
// resolver sorts candidates canonically, but keeping adapter order makes the
// combined slices reproducible for logging and tests.
//
// A single failing adapter fails the whole fetch; partial reference graphs
// would silently deflate coverage scores.
func FetchAll(
	ctx context.Context,
	keyword string,
	adapters []Adapter,
) ([]common.EntityCandidate, []common.RelationCandidate, error) {
	type result struct {
		entities  []common.EntityCandidate
		relations []common.RelationCandidate
	}

	results := make([]result, len(adapters))
	eg, ectx := errgroup.WithContext(ctx)
	for i, adapter := range adapters {
		idx := i
		a := adapter
		eg.Go(func() error {
			entities, relations, err := a.Fetch(ectx, keyword)
			if err != nil {
				return fmt.Errorf("source %s: %w", a.ID(), err)
			}
			results[idx] = result{entities: entities, relations: relations}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	var entities []common.EntityCandidate
	var relations []common.RelationCandidate
	for _, r := range results {
		entities = append(entities, r.entities...)
		relations = append(relations, r.relations...)
	}
	return entities, relations, nil
}
