package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/kg-audit/weaver/backend/pkg/loader"

	"codeberg.org/readeck/go-readability/v2"
	"golang.org/x/sync/singleflight"
)

// WebDocumentLoader loads audited content from web URLs and extracts readable
// text. For HTML pages, it uses readability to strip navigation and boilerplate
// down to the main article content.
type WebDocumentLoader struct {
	fallback loader.DocumentLoader

	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewWebDocumentLoader creates a new web loader without a fallback loader.
func NewWebDocumentLoader() *WebDocumentLoader {
	return &WebDocumentLoader{
		cache: make(map[string][]byte),
	}
}

// NewWebDocumentLoaderWithFallback creates a web loader with a fallback for
// non-HTML content.
func NewWebDocumentLoaderWithFallback(fallback loader.DocumentLoader) *WebDocumentLoader {
	return &WebDocumentLoader{
		fallback: fallback,
		cache:    make(map[string][]byte),
	}
}

// GetText fetches a URL and extracts readable text content.
// For HTML pages, it uses readability to extract the main article content.
// Concurrent requests for the same document collapse into one fetch.
func (l *WebDocumentLoader) GetText(ctx context.Context, doc loader.Document) ([]byte, error) {
	key := loader.CacheKey(doc)

	l.cacheMu.RLock()
	if cached, ok := l.cache[key]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(key, func() (any, error) {
		l.cacheMu.RLock()
		if cached, ok := l.cache[key]; ok {
			l.cacheMu.RUnlock()
			return cached, nil
		}
		l.cacheMu.RUnlock()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.Location, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch url: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, doc.Location)
		}

		contentType := resp.Header.Get("Content-Type")
		if strings.Contains(contentType, "text/html") {
			u, err := url.Parse(doc.Location)
			if err != nil {
				return nil, fmt.Errorf("failed to parse url: %w", err)
			}
			article, err := readability.FromReader(resp.Body, u)
			if err != nil {
				return nil, fmt.Errorf("failed to parse html: %w", err)
			}
			var builder strings.Builder
			if err := article.RenderText(&builder); err != nil {
				return nil, fmt.Errorf("failed to render article text: %w", err)
			}

			text := []byte(builder.String())
			l.cacheMu.Lock()
			l.cache[key] = text
			l.cacheMu.Unlock()

			return text, nil
		}

		if l.fallback != nil {
			return l.fallback.GetText(ctx, doc)
		}

		result, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		l.cacheMu.Lock()
		l.cache[key] = result
		l.cacheMu.Unlock()

		return result, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}
