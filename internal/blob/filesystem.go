package blob

import (
	"sessionflow/internal/infra/blob/fs"
)

// DefaultFSRoot is the directory the fs driver serves when none is configured.
const DefaultFSRoot = fs.DefaultRoot

// NewFilesystem constructs a filesystem-backed blob.Store rooted at the provided path.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}
