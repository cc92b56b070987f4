package index

import (
	"time"

	"github.com/starford/ansuz/internal/models"
)

// DocIndex defines the interface for metadata index operations.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type DocIndex interface {
	CreateDoc(row DocRow) error
	UpdateDoc(name, description, checksum string, version int, updatedAt time.Time) error
	GetDoc(name string) (*DocRow, error)
	Exists(name string) (bool, error)
	ListDocs() ([]DocRow, error)
	Recent(limit int) ([]DocRow, error)
	AddVersion(rec models.VersionRecord) error
	DeleteVersion(name string, version int) error
	Versions(name string) ([]models.VersionRecord, error)
	Stats() (docs int, versions int, err error)
	Close() error
}

// Verify *DB satisfies DocIndex at compile time.
var _ DocIndex = (*DB)(nil)
