// Package pgx implements store.FusionStorage on PostgreSQL with pgvector
// for entity embedding similarity search.
package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kg-audit/weaver/backend/pkg/common"
	"github.com/kg-audit/weaver/backend/pkg/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Store is the PostgreSQL-backed FusionStorage.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store on top of an existing connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// SaveGraph replaces the stored graph for keyword atomically. Entities and
// relations are rewritten inside one transaction; existing embeddings for
// entities that survived the rewrite are preserved.
func (s *Store) SaveGraph(ctx context.Context, keyword string, graph *common.FusedGraph) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `
		INSERT INTO graphs (keyword, updated_at)
		VALUES ($1, now())
		ON CONFLICT (keyword) DO UPDATE SET updated_at = now()
	`, keyword); err != nil {
		return fmt.Errorf("failed to upsert graph: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM graph_relations WHERE keyword = $1
	`, keyword); err != nil {
		return fmt.Errorf("failed to clear relations: %w", err)
	}

	batch := &pgx.Batch{}
	entityIDs := make([]string, 0, len(graph.Entities))
	for _, e := range graph.Entities {
		entityIDs = append(entityIDs, e.ID)
		provenance, err := json.Marshal(e.Provenance)
		if err != nil {
			return fmt.Errorf("failed to marshal provenance: %w", err)
		}
		batch.Queue(`
			INSERT INTO graph_entities
				(keyword, id, name, types, description, aliases, provenance, importance)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (keyword, id) DO UPDATE SET
				name = EXCLUDED.name,
				types = EXCLUDED.types,
				description = EXCLUDED.description,
				aliases = EXCLUDED.aliases,
				provenance = EXCLUDED.provenance,
				importance = EXCLUDED.importance
		`, keyword, e.ID, e.Name, e.Types, e.Description, e.Aliases, provenance, e.Importance)
	}

	// Entities dropped by the rewrite (trimmed by a re-fuse) go away too.
	batch.Queue(`
		DELETE FROM graph_entities
		WHERE keyword = $1 AND NOT (id = ANY($2))
	`, keyword, entityIDs)

	for _, r := range graph.Relations {
		evidence, err := json.Marshal(r.Evidence)
		if err != nil {
			return fmt.Errorf("failed to marshal evidence: %w", err)
		}
		batch.Queue(`
			INSERT INTO graph_relations
				(keyword, subject_id, object_id, relation_type, weight, evidence)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, keyword, r.SubjectID, r.ObjectID, string(r.Type), r.Weight, evidence)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to write graph rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit graph: %w", err)
	}
	return nil
}

// GetGraph loads the stored graph for keyword.
func (s *Store) GetGraph(ctx context.Context, keyword string) (*common.FusedGraph, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM graphs WHERE keyword = $1)
	`, keyword).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check graph: %w", err)
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	graph := &common.FusedGraph{}

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, types, description, aliases, provenance, importance
		FROM graph_entities
		WHERE keyword = $1
		ORDER BY id
	`, keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e common.Entity
		var provenance []byte
		if err := rows.Scan(
			&e.ID, &e.Name, &e.Types, &e.Description, &e.Aliases, &provenance, &e.Importance,
		); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		if err := json.Unmarshal(provenance, &e.Provenance); err != nil {
			return nil, fmt.Errorf("failed to unmarshal provenance: %w", err)
		}
		graph.Entities = append(graph.Entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	relRows, err := s.pool.Query(ctx, `
		SELECT subject_id, object_id, relation_type, weight, evidence
		FROM graph_relations
		WHERE keyword = $1
		ORDER BY subject_id, object_id, relation_type
	`, keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	defer relRows.Close()

	for relRows.Next() {
		var r common.Relation
		var relType string
		var evidence []byte
		if err := relRows.Scan(&r.SubjectID, &r.ObjectID, &relType, &r.Weight, &evidence); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		r.Type = common.RelationType(relType)
		if err := json.Unmarshal(evidence, &r.Evidence); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evidence: %w", err)
		}
		graph.Relations = append(graph.Relations, r)
	}
	if err := relRows.Err(); err != nil {
		return nil, err
	}

	return graph, nil
}

// DeleteGraph removes the graph and all dependent rows via cascade.
func (s *Store) DeleteGraph(ctx context.Context, keyword string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM graphs WHERE keyword = $1`, keyword)
	if err != nil {
		return fmt.Errorf("failed to delete graph: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SaveEntityEmbeddings stores one embedding per entity id.
func (s *Store) SaveEntityEmbeddings(ctx context.Context, keyword string, ids []string, embeddings [][]float32) error {
	if len(ids) != len(embeddings) {
		return fmt.Errorf("ids and embeddings length mismatch: %d vs %d", len(ids), len(embeddings))
	}

	batch := &pgx.Batch{}
	for i, id := range ids {
		batch.Queue(`
			UPDATE graph_entities SET embedding = $3
			WHERE keyword = $1 AND id = $2
		`, keyword, id, pgvector.NewVector(embeddings[i]))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save embeddings: %w", err)
	}
	return nil
}

// FindSimilarEntities returns the closest reference entities by cosine
// distance, best match first. Entities without a stored embedding are
// excluded.
func (s *Store) FindSimilarEntities(ctx context.Context, keyword string, embedding []float32, limit int) ([]store.SimilarEntity, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, 1 - (embedding <=> $2) AS similarity
		FROM graph_entities
		WHERE keyword = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3
	`, keyword, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar entities: %w", err)
	}
	defer rows.Close()

	var out []store.SimilarEntity
	for rows.Next() {
		var e store.SimilarEntity
		if err := rows.Scan(&e.ID, &e.Name, &e.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan similar entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CreateAudit inserts a new audit row.
func (s *Store) CreateAudit(ctx context.Context, audit *store.Audit) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audits (id, keyword, status, location, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, audit.ID, audit.Keyword, string(audit.Status), audit.Location, audit.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to create audit: %w", err)
	}
	return nil
}

// GetAudit loads an audit by id.
func (s *Store) GetAudit(ctx context.Context, id string) (*store.Audit, error) {
	var a store.Audit
	var status string
	var report []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, keyword, status, location, report, error, created_by, created_at, updated_at
		FROM audits WHERE id = $1
	`, id).Scan(
		&a.ID, &a.Keyword, &status, &a.Location, &report, &a.Error,
		&a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get audit: %w", err)
	}
	a.Status = store.AuditStatus(status)
	if len(report) > 0 {
		a.Report = &store.AuditReport{}
		if err := json.Unmarshal(report, a.Report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report: %w", err)
		}
	}
	return &a, nil
}

// UpdateAuditStatus transitions an audit and records a failure message.
func (s *Store) UpdateAuditStatus(ctx context.Context, id string, status store.AuditStatus, errMsg string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE audits SET status = $2, error = $3, updated_at = now()
		WHERE id = $1
	`, id, string(status), errMsg)
	if err != nil {
		return fmt.Errorf("failed to update audit status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CompleteAudit stores the report and marks the audit completed.
func (s *Store) CompleteAudit(ctx context.Context, id string, report *store.AuditReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE audits SET status = $2, report = $3, error = '', updated_at = now()
		WHERE id = $1
	`, id, string(store.AuditStatusCompleted), body)
	if err != nil {
		return fmt.Errorf("failed to complete audit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
