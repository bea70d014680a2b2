package blob

import (
	"labbook/internal/infra/blob/fs"
)

// NewFilesystem constructs a filesystem-backed Store rooted at root. An empty
// root uses ./labbook-blobs.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}
