package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/eliteGoblin/opencode-personas/internal/domain"
)

// FileSystemManagerImpl implements domain.FileSystemManager.
// Paths are taken as given; ~ is resolved once by config.Load.
type FileSystemManagerImpl struct{}

// NewFileSystemManager creates a new filesystem manager.
func NewFileSystemManager() domain.FileSystemManager {
	return &FileSystemManagerImpl{}
}

// IsDir checks if a path exists and is a directory.
func (fm *FileSystemManagerImpl) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Copy copies src to dst atomically, creating dst's directory if needed.
func (fm *FileSystemManagerImpl) Copy(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode().Perm())
}

// Ensure FileSystemManagerImpl implements domain.FileSystemManager.
var _ domain.FileSystemManager = (*FileSystemManagerImpl)(nil)
