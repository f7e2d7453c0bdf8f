package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kg-audit/weaver/backend/pkg/common"
	"github.com/kg-audit/weaver/backend/pkg/fusion"
	"github.com/kg-audit/weaver/backend/pkg/logger"
	"github.com/kg-audit/weaver/backend/pkg/sources"
	"github.com/kg-audit/weaver/backend/pkg/store"

	"golang.org/x/sync/errgroup"
)

// ProcessFuseMessage builds (or incrementally extends) the reference graph
// for a keyword: fetch candidates from all sources, fuse them over the
// stored graph, persist the result and refresh entity embeddings. The whole
// run holds the keyword's lease.
func (h *Handler) ProcessFuseMessage(ctx context.Context, msg string) error {
	data := new(FuseMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("failed to unmarshal fuse message: %w", err)
	}
	if data.Keyword == "" {
		return errors.New("fuse message has no keyword")
	}

	return h.lease.WithLease(ctx, leaseKey(data.Keyword), leaseOptions(), func(ctx context.Context) error {
		existing, err := h.store.GetGraph(ctx, data.Keyword)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to load existing graph: %w", err)
		}

		entities, relations, err := sources.FetchAll(ctx, data.Keyword, h.adapters)
		if err != nil {
			return fmt.Errorf("failed to fetch candidates: %w", err)
		}
		logger.Info(
			"[Fuse] Fetched candidates",
			"keyword", data.Keyword,
			"entities", len(entities),
			"relations", len(relations),
		)

		graph, stats := fusion.BuildGraph(entities, relations, existing, h.fuseCfg)
		logger.Info(
			"[Fuse] Built graph",
			"keyword", data.Keyword,
			"entities", len(graph.Entities),
			"relations", len(graph.Relations),
			"skipped_candidates", stats.SkippedCandidates,
			"dropped_relations", stats.DroppedRelations,
			"self_loops", stats.SelfLoops,
		)

		if err := h.store.SaveGraph(ctx, data.Keyword, &graph); err != nil {
			return fmt.Errorf("failed to save graph: %w", err)
		}

		if err := h.refreshEmbeddings(ctx, data.Keyword, graph.Entities); err != nil {
			// Embeddings only assist audit-side name mapping; the graph
			// itself is already persisted.
			logger.Warn("[Fuse] Failed to refresh embeddings", "keyword", data.Keyword, "err", err)
		}

		return nil
	})
}

// refreshEmbeddings embeds every entity's name and description for the
// audit pipeline's similarity fallback. The AI client's internal semaphore
// bounds parallelism.
func (h *Handler) refreshEmbeddings(ctx context.Context, keyword string, entities []common.Entity) error {
	if h.aiClient == nil || len(entities) == 0 {
		return nil
	}

	ids := make([]string, len(entities))
	embeddings := make([][]float32, len(entities))

	eg, ectx := errgroup.WithContext(ctx)
	for i, entity := range entities {
		idx := i
		e := entity
		eg.Go(func() error {
			input := e.Name
			if e.Description != "" {
				input += "\n" + e.Description
			}
			emb, err := h.aiClient.GenerateEmbedding(ectx, []byte(input))
			if err != nil {
				return fmt.Errorf("entity %s: %w", e.ID, err)
			}
			ids[idx] = e.ID
			embeddings[idx] = emb
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	return h.store.SaveEntityEmbeddings(ctx, keyword, ids, embeddings)
}
