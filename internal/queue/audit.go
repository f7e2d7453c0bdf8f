package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kg-audit/weaver/backend/internal/storage"
	"github.com/kg-audit/weaver/backend/pkg/common"
	"github.com/kg-audit/weaver/backend/pkg/coverage"
	"github.com/kg-audit/weaver/backend/pkg/fusion"
	"github.com/kg-audit/weaver/backend/pkg/loader"
	s3loader "github.com/kg-audit/weaver/backend/pkg/loader/s3"
	"github.com/kg-audit/weaver/backend/pkg/loader/web"
	"github.com/kg-audit/weaver/backend/pkg/logger"
	"github.com/kg-audit/weaver/backend/pkg/store"

	"github.com/kg-audit/weaver/backend/internal/util"
)

// similarityThreshold is the minimum cosine similarity for the embedding
// fallback to accept a reference entity as covered by an audited name.
const similarityThreshold = 0.85

// ProcessAuditMessage runs one document audit: load the document, extract
// the entities it talks about, map them onto the keyword's reference graph,
// score coverage, derive recommendations and persist the report.
func (h *Handler) ProcessAuditMessage(ctx context.Context, msg string) error {
	data := new(AuditMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("failed to unmarshal audit message: %w", err)
	}
	if data.AuditID == "" || data.Keyword == "" {
		return errors.New("audit message missing audit_id or keyword")
	}

	if err := h.store.UpdateAuditStatus(ctx, data.AuditID, store.AuditStatusProcessing, ""); err != nil {
		return fmt.Errorf("failed to mark audit processing: %w", err)
	}

	report, err := h.runAudit(ctx, data)
	if err != nil {
		if stErr := h.store.UpdateAuditStatus(ctx, data.AuditID, store.AuditStatusFailed, err.Error()); stErr != nil {
			logger.Error("[Audit] Failed to record failure", "audit_id", data.AuditID, "err", stErr)
		}
		return err
	}

	if err := h.store.CompleteAudit(ctx, data.AuditID, report); err != nil {
		return fmt.Errorf("failed to complete audit: %w", err)
	}

	logger.Info(
		"[Audit] Completed",
		"audit_id", data.AuditID,
		"keyword", data.Keyword,
		"score", report.Score,
		"missing", len(report.Missing),
	)
	return nil
}

func (h *Handler) runAudit(ctx context.Context, data *AuditMsg) (*store.AuditReport, error) {
	graph, err := h.store.GetGraph(ctx, data.Keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference graph: %w", err)
	}

	text, err := h.loadDocument(ctx, data)
	if err != nil {
		return nil, err
	}

	candidates, _, err := h.extractor.Extract(ctx, text, data.Keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to extract audited entities: %w", err)
	}

	audited := h.matchAuditedEntities(ctx, data.Keyword, graph, candidates)

	covReport := coverage.Score(graph, audited)
	recommendations := coverage.Recommend(covReport, coverage.RecommendOptions{})

	report := &store.AuditReport{
		Score:           covReport.Score,
		Covered:         covReport.Covered,
		Missing:         covReport.Missing,
		Recommendations: recommendations,
	}

	if h.s3Client != nil {
		body, err := json.Marshal(report)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal report: %w", err)
		}
		key, err := storage.ArchiveReport(ctx, h.s3Client, data.Keyword, data.AuditID, body)
		if err != nil {
			// The report still lands in Postgres; the archive copy is
			// best-effort.
			logger.Warn("[Audit] Failed to archive report", "audit_id", data.AuditID, "err", err)
		} else {
			report.ArchiveKey = key
		}
	}

	return report, nil
}

// loadDocument resolves the audit input to raw text: inline text wins,
// http(s) locations go through the readability web loader, anything else is
// treated as an S3 key.
func (h *Handler) loadDocument(ctx context.Context, data *AuditMsg) ([]byte, error) {
	if data.Text != "" {
		return []byte(data.Text), nil
	}
	if data.Location == "" {
		return nil, errors.New("audit has neither text nor location")
	}

	var docLoader loader.DocumentLoader
	if strings.HasPrefix(data.Location, "http://") || strings.HasPrefix(data.Location, "https://") {
		docLoader = web.NewWebDocumentLoader()
	} else {
		if h.s3Client == nil {
			return nil, errors.New("audit location is an object key but no S3 client is configured")
		}
		docLoader = s3loader.NewS3DocumentLoaderWithClient(util.GetEnv("AWS_BUCKET"), h.s3Client)
	}

	doc := loader.NewDocument(loader.NewDocumentParams{
		ID:       data.AuditID,
		Location: data.Location,
		Loader:   docLoader,
	})
	text, err := doc.GetText(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return text, nil
}

// matchAuditedEntities maps extracted candidates onto reference entity ids.
// The deterministic lookup mirrors the resolver cascade (refs, normalized
// name, aliases); names it cannot place fall back to embedding similarity
// against the stored entity vectors.
func (h *Handler) matchAuditedEntities(
	ctx context.Context,
	keyword string,
	graph *common.FusedGraph,
	candidates []common.EntityCandidate,
) map[string]struct{} {
	lookup := map[string]string{}
	add := func(key, id string) {
		if key == "" {
			return
		}
		if _, exists := lookup[key]; !exists {
			lookup[key] = id
		}
	}
	for i := range graph.Entities {
		e := &graph.Entities[i]
		for _, p := range e.Provenance {
			add(p.Ref, e.ID)
		}
		add(fusion.NormalizeName(e.Name), e.ID)
		for _, alias := range e.Aliases {
			add(fusion.NormalizeName(alias), e.ID)
		}
	}

	audited := map[string]struct{}{}
	var unmatched []common.EntityCandidate

	for _, c := range candidates {
		if id, ok := matchCandidate(lookup, c); ok {
			audited[id] = struct{}{}
			continue
		}
		unmatched = append(unmatched, c)
	}

	if h.aiClient == nil || len(unmatched) == 0 {
		return audited
	}

	for _, c := range unmatched {
		emb, err := h.aiClient.GenerateEmbedding(ctx, []byte(c.Name))
		if err != nil {
			logger.Warn("[Audit] Embedding fallback failed", "name", c.Name, "err", err)
			continue
		}
		matches, err := h.store.FindSimilarEntities(ctx, keyword, emb, 1)
		if err != nil {
			logger.Warn("[Audit] Similarity lookup failed", "name", c.Name, "err", err)
			continue
		}
		if len(matches) > 0 && matches[0].Similarity >= similarityThreshold {
			audited[matches[0].ID] = struct{}{}
		}
	}

	return audited
}

func matchCandidate(lookup map[string]string, c common.EntityCandidate) (string, bool) {
	for _, ref := range c.ExternalRefs {
		if id, ok := lookup[ref]; ok {
			return id, true
		}
	}
	if id, ok := lookup[fusion.NormalizeName(c.Name)]; ok {
		return id, true
	}
	for _, alias := range c.Aliases {
		if id, ok := lookup[fusion.NormalizeName(alias)]; ok {
			return id, true
		}
	}
	return "", false
}
