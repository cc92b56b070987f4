// Package models defines the domain types for Ansuz.
package models

import "time"

// Doc is a named, versioned markdown document.
type Doc struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Version     int       `json:"version"`
	Checksum    string    `json:"checksum"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summary is a lightweight representation returned by list and search.
type Summary struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Version     int       `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
	// Dirty reports that the on-disk content no longer matches the
	// checksum recorded at the last committed version.
	Dirty bool `json:"dirty,omitempty"`
}

// VersionRecord is an immutable snapshot marker tied to one history commit.
// One record is produced per mutation and never altered afterwards.
type VersionRecord struct {
	Name       string    `json:"name"`
	Version    int       `json:"version"`
	CommitHash string    `json:"commit_hash"`
	Message    string    `json:"message"`
	HostCommit string    `json:"host_commit,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Status aggregates store-wide counters. Dirty lists documents whose
// on-disk content diverged from the last committed checksum; Untracked
// lists content files present on disk but absent from the index.
type Status struct {
	Documents int       `json:"documents"`
	Versions  int       `json:"versions"`
	Recent    []Summary `json:"recent"`
	Dirty     []string  `json:"dirty,omitempty"`
	Untracked []string  `json:"untracked,omitempty"`
}

// TreeNode is one node of the hierarchy built from dotted names. Name is
// set only when a document exists at this exact node.
type TreeNode struct {
	Segment  string      `json:"segment"`
	Name     string      `json:"name,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// FileInfo describes one content file in the store tree.
type FileInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Decision is one structured decision block parsed from a document body.
type Decision struct {
	Decision  string `json:"decision"`
	Rationale string `json:"rationale"`
	Date      string `json:"date"`
}
