package infra

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/opencode-personas/internal/domain"
)

// DirPersonaStore implements domain.PersonaStore over a directory of markdown files.
// Every failure is reported as absence; callers never see an error.
type DirPersonaStore struct {
	dir    string
	logger *zap.Logger
}

// NewDirPersonaStore creates a store reading from dir.
func NewDirPersonaStore(dir string, logger *zap.Logger) *DirPersonaStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirPersonaStore{dir: dir, logger: logger}
}

// Discover lists regular *.md files, suffix stripped, sorted lexicographically.
func (s *DirPersonaStore) Discover() []domain.PersonaID {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Debug("persona directory unavailable", zap.String("dir", s.dir), zap.Error(err))
		return []domain.PersonaID{}
	}

	ids := make([]domain.PersonaID, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue // Subdirectories, symlinks to dirs, sockets
		}
		name := entry.Name()
		if !strings.HasSuffix(name, domain.PersonaFileSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, domain.PersonaFileSuffix)
		if id == "" {
			continue
		}
		ids = append(ids, domain.PersonaID(id))
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Load reads <dir>/<id>.md. Blank content counts as absent.
func (s *DirPersonaStore) Load(id domain.PersonaID) (string, bool) {
	if !validPersonaID(id) {
		return "", false
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		s.logger.Debug("persona unreadable", zap.String("persona", id.String()), zap.Error(err))
		return "", false
	}

	content := string(data)
	if strings.TrimSpace(content) == "" {
		return "", false
	}
	return content, true
}

func (s *DirPersonaStore) path(id domain.PersonaID) string {
	return filepath.Join(s.dir, string(id)+domain.PersonaFileSuffix)
}

// validPersonaID keeps lookups inside the persona directory.
func validPersonaID(id domain.PersonaID) bool {
	name := string(id)
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

// Ensure DirPersonaStore implements domain.PersonaStore.
var _ domain.PersonaStore = (*DirPersonaStore)(nil)
