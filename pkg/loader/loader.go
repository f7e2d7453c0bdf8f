package loader

import (
	"context"
	"fmt"
)

// Document represents a piece of source text that gets audited against a
// reference graph. The actual content is retrieved via the associated
// DocumentLoader, so a Document can point at a web URL, an S3 object, or
// anything else a loader implementation understands.
type Document struct {
	ID        string
	Location  string
	MaxTokens int
	Loader    DocumentLoader
}

// DocumentLoader retrieves the raw text of a Document.
type DocumentLoader interface {
	GetText(ctx context.Context, doc Document) ([]byte, error)
}

// NewDocumentParams defines the input parameters for creating a new Document.
type NewDocumentParams struct {
	ID        string
	Location  string
	MaxTokens int
	Loader    DocumentLoader
}

// NewDocument creates a Document from the provided parameters.
func NewDocument(params NewDocumentParams) Document {
	return Document{
		ID:        params.ID,
		Location:  params.Location,
		MaxTokens: params.MaxTokens,
		Loader:    params.Loader,
	}
}

// GetText loads the document content through its configured loader.
func (d Document) GetText(ctx context.Context) ([]byte, error) {
	if d.Loader == nil {
		return nil, fmt.Errorf("document %s has no loader", d.ID)
	}
	return d.Loader.GetText(ctx, d)
}

// CacheKey returns the key under which loaders cache document content.
func CacheKey(doc Document) string {
	return doc.ID + ":" + doc.Location
}
