// Package blob stores raw uploaded statement PDFs. The path returned by
// Save is recorded on the upload job and later handed to Fetch by the job
// processor.
package blob

import (
	"context"
	"io"
)

// Store is the blob storage boundary.
type Store interface {
	Save(ctx context.Context, objectName string, r io.Reader) (path string, err error)
	Fetch(ctx context.Context, path string) ([]byte, error)
}
