package domain

import "context"

// PersonaStore reads persona files from a directory.
// Implementation: plain directory of markdown files.
type PersonaStore interface {
	// Discover lists persona IDs, sorted. Never fails: an unreadable
	// directory yields an empty list.
	Discover() []PersonaID

	// Load returns the persona content, or ok=false when the file is
	// missing, unreadable or blank.
	Load(id PersonaID) (content string, ok bool)
}

// FileSystemManager handles filesystem operations.
type FileSystemManager interface {
	// IsDir checks if a path exists and is a directory.
	IsDir(path string) bool

	// Copy copies a regular file atomically, creating the destination directory.
	Copy(src, dst string) error
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// KillTree terminates a process and all of its descendants (SIGKILL).
	KillTree(pid int) error
}

// VersionControl wraps the upstream working copy.
// Implementation: git CLI.
type VersionControl interface {
	// IsRepository checks that dir carries a .git marker.
	IsRepository(dir string) bool

	// Revision returns the current HEAD revision of dir.
	Revision(ctx context.Context, dir string) (string, error)

	// Pull fetches and merges upstream changes. Cancelling ctx kills the
	// underlying process tree.
	Pull(ctx context.Context, dir string) error
}

// ManifestStore provides the fixed set of managed files.
type ManifestStore interface {
	// GetAll returns all managed files in a stable order.
	GetAll() []ManagedFile
}

// Synchronizer keeps installed files in sync with the upstream working copy.
type Synchronizer interface {
	// Run performs one update check. It never panics and never returns an
	// error; faults are reported in the result.
	Run(ctx context.Context) *UpdateResult
}
