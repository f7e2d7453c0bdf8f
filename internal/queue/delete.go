package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kg-audit/weaver/backend/internal/storage"
	"github.com/kg-audit/weaver/backend/pkg/logger"
	"github.com/kg-audit/weaver/backend/pkg/store"
)

// ProcessDeleteMessage removes a keyword's reference graph together with its
// audit history and archived reports. Runs under the keyword's lease so an
// in-flight fuse or audit finishes first.
func (h *Handler) ProcessDeleteMessage(ctx context.Context, msg string) error {
	data := new(DeleteMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("failed to unmarshal delete message: %w", err)
	}
	if data.Keyword == "" {
		return errors.New("delete message has no keyword")
	}

	return h.lease.WithLease(ctx, leaseKey(data.Keyword), leaseOptions(), func(ctx context.Context) error {
		if err := h.store.DeleteGraph(ctx, data.Keyword); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logger.Warn("[Delete] No graph stored for keyword", "keyword", data.Keyword)
			} else {
				return fmt.Errorf("failed to delete graph: %w", err)
			}
		}

		if h.s3Client != nil {
			for _, prefix := range []string{"audits/" + data.Keyword + "/", "documents/" + data.Keyword + "/"} {
				if err := storage.DeleteFolder(ctx, h.s3Client, prefix); err != nil {
					logger.Error("[Delete] Failed to clear archive", "prefix", prefix, "err", err)
				}
			}
		}

		logger.Info("[Delete] Removed keyword", "keyword", data.Keyword)
		return nil
	})
}
