// Package sqlite exposes the SQLite song catalog to code outside this
// module while keeping the implementation internal.
package sqlite

import (
	"github.com/mesh-intelligence/midishelf/internal/sqlite"
	"github.com/mesh-intelligence/midishelf/pkg/types"
)

// NewCatalog returns a detached SQLite catalog.
//
// Example:
//
//	catalog := sqlite.NewCatalog()
//	err := catalog.Attach(types.Config{DataDir: ".midishelf-data"})
//	defer catalog.Detach()
func NewCatalog() types.Catalog {
	return sqlite.NewBackend()
}
