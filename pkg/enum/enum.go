// Package enum discovers documents to analyze.
package enum

import (
	"context"

	"github.com/praetorian-inc/sift/pkg/types"
)

// Document is one unit of text yielded by an enumerator.
type Document struct {
	// Source is the file path, or "path!member" for text pulled out of
	// a container format.
	Source  string
	Content []byte
	ID      types.DocumentID
}

// Enumerator discovers content to analyze from a source.
type Enumerator interface {
	// Enumerate yields documents from the source. The callback may be
	// invoked from several goroutines at once.
	Enumerate(ctx context.Context, callback func(doc Document) error) error
}

// Config for enumeration.
type Config struct {
	// Root is the starting path for enumeration. A regular file is
	// yielded on its own.
	Root string

	// IncludeHidden includes hidden files/directories (starting with .).
	IncludeHidden bool

	// MaxFileSize is the maximum file size to process (0 = no limit).
	MaxFileSize int64

	// FollowSymlinks follows symbolic links.
	FollowSymlinks bool

	// ExtractDocuments enables text extraction from container formats
	// (comma-separated: docx,odt,pdf,eml or 'all').
	ExtractDocuments string
}

func newDocument(source string, content []byte) Document {
	return Document{Source: source, Content: content, ID: types.ComputeDocumentID(content)}
}
