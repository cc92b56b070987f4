// Package storage defines the content-tree file-system abstraction.
package storage

import "github.com/starford/ansuz/internal/models"

// Provider is the interface for content file operations. All paths are
// relative to the store root.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]models.FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path. Used only to roll back a failed create.
	Delete(path string) error
}
