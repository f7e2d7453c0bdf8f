package queue

import (
	"time"

	"github.com/kg-audit/weaver/backend/pkg/ai"
	"github.com/kg-audit/weaver/backend/pkg/fusion"
	"github.com/kg-audit/weaver/backend/pkg/leaselock"
	"github.com/kg-audit/weaver/backend/pkg/sources"
	"github.com/kg-audit/weaver/backend/pkg/sources/textex"
	"github.com/kg-audit/weaver/backend/pkg/store"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// Handler bundles the dependencies of the worker's message handlers.
// One Handler serves all queues; handlers are safe for sequential use from
// the worker's single consume loop.
type Handler struct {
	store     store.FusionStorage
	lease     *leaselock.Client
	aiClient  ai.ExtractionAIClient
	s3Client  *awss3.Client
	adapters  []sources.Adapter
	extractor *textex.Extractor
	fuseCfg   fusion.Config
}

// NewHandlerParams configures a Handler.
//
// Adapters are the knowledge sources fused into reference graphs.
// S3Client may be nil; report archiving is skipped then.
type NewHandlerParams struct {
	Store     store.FusionStorage
	Lease     *leaselock.Client
	AIClient  ai.ExtractionAIClient
	S3Client  *awss3.Client
	Adapters  []sources.Adapter
	Extractor *textex.Extractor
	FuseCfg   fusion.Config
}

// NewHandler creates the worker message handler.
func NewHandler(params NewHandlerParams) *Handler {
	return &Handler{
		store:     params.Store,
		lease:     params.Lease,
		aiClient:  params.AIClient,
		s3Client:  params.S3Client,
		adapters:  params.Adapters,
		extractor: params.Extractor,
		fuseCfg:   params.FuseCfg,
	}
}

// leaseOptions serializes graph mutations per keyword across workers.
func leaseOptions() leaselock.Options {
	return leaselock.Options{
		TTL:         10 * time.Minute,
		Wait:        true,
		TokenPrefix: "worker-",
	}
}

func leaseKey(keyword string) string {
	return "graph:" + keyword
}
