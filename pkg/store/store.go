// Package store defines the persistence contract for fused graphs and
// audit reports.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kg-audit/weaver/backend/pkg/common"
)

// ErrNotFound is returned when a graph or audit does not exist.
var ErrNotFound = errors.New("not found")

// AuditStatus tracks an audit job through the worker pipeline.
type AuditStatus string

const (
	AuditStatusPending    AuditStatus = "pending"
	AuditStatusProcessing AuditStatus = "processing"
	AuditStatusCompleted  AuditStatus = "completed"
	AuditStatusFailed     AuditStatus = "failed"
)

// Audit is one document audit against a keyword's reference graph.
// CreatedBy is the id of the user who requested it; viewing another
// user's audit requires an elevated permission.
type Audit struct {
	ID        string       `json:"id"`
	Keyword   string       `json:"keyword"`
	Status    AuditStatus  `json:"status"`
	Location  string       `json:"location,omitempty"`
	Report    *AuditReport `json:"report,omitempty"`
	Error     string       `json:"error,omitempty"`
	CreatedBy int64        `json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuditReport is the persisted outcome of a completed audit.
type AuditReport struct {
	Score           float64                 `json:"score"`
	Covered         []string                `json:"covered"`
	Missing         []common.Entity         `json:"missing"`
	Recommendations []common.Recommendation `json:"recommendations"`
	// ArchiveKey points at the full JSON report in the S3 archive.
	ArchiveKey string `json:"archive_key,omitempty"`
}

// SimilarEntity is one embedding-similarity match for an audited name.
type SimilarEntity struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// FusionStorage persists fused graphs, entity embeddings and audit reports.
type FusionStorage interface {
	// SaveGraph replaces the stored graph for keyword atomically.
	SaveGraph(ctx context.Context, keyword string, graph *common.FusedGraph) error
	// GetGraph loads the stored graph for keyword, ErrNotFound if missing.
	GetGraph(ctx context.Context, keyword string) (*common.FusedGraph, error)
	// DeleteGraph removes the graph and all dependent rows.
	DeleteGraph(ctx context.Context, keyword string) error

	// SaveEntityEmbeddings stores one embedding per entity id, aligned slices.
	SaveEntityEmbeddings(ctx context.Context, keyword string, ids []string, embeddings [][]float32) error
	// FindSimilarEntities returns the closest reference entities by cosine
	// distance, best match first.
	FindSimilarEntities(ctx context.Context, keyword string, embedding []float32, limit int) ([]SimilarEntity, error)

	CreateAudit(ctx context.Context, audit *Audit) error
	GetAudit(ctx context.Context, id string) (*Audit, error)
	// UpdateAuditStatus transitions an audit; failure details go to errMsg.
	UpdateAuditStatus(ctx context.Context, id string, status AuditStatus, errMsg string) error
	// CompleteAudit stores the report and marks the audit completed.
	CompleteAudit(ctx context.Context, id string, report *AuditReport) error
}
