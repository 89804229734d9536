package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/eliteGoblin/opencode-personas/internal/domain"
)

// mockPersonaStore implements domain.PersonaStore in memory, counting I/O
type mockPersonaStore struct {
	mu            sync.Mutex
	content       map[domain.PersonaID]string
	discoverCalls int
	loadCalls     map[domain.PersonaID]int
}

func newMockPersonaStore(personas map[domain.PersonaID]string) *mockPersonaStore {
	content := make(map[domain.PersonaID]string, len(personas))
	for k, v := range personas {
		content[k] = v
	}
	return &mockPersonaStore{
		content:   content,
		loadCalls: make(map[domain.PersonaID]int),
	}
}

func (m *mockPersonaStore) Discover() []domain.PersonaID {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.discoverCalls++
	ids := make([]domain.PersonaID, 0, len(m.content))
	for id := range m.content {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *mockPersonaStore) Load(id domain.PersonaID) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loadCalls[id]++
	c, ok := m.content[id]
	if !ok || c == "" {
		return "", false
	}
	return c, true
}

func (m *mockPersonaStore) set(id domain.PersonaID, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[id] = content
}

func (m *mockPersonaStore) loads(id domain.PersonaID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCalls[id]
}

func (m *mockPersonaStore) discovers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discoverCalls
}

// mockVCS implements domain.VersionControl with scripted revisions
type mockVCS struct {
	isRepo       bool
	revisions    []string // Returned in order; the last one repeats
	revisionErr  error
	pullErr      error
	pullPanic    bool
	pullCalls    int
	revisionCall int
}

func (m *mockVCS) IsRepository(dir string) bool {
	return m.isRepo
}

func (m *mockVCS) Revision(ctx context.Context, dir string) (string, error) {
	if m.revisionErr != nil {
		return "", m.revisionErr
	}
	i := m.revisionCall
	if i >= len(m.revisions) {
		i = len(m.revisions) - 1
	}
	m.revisionCall++
	return m.revisions[i], nil
}

func (m *mockVCS) Pull(ctx context.Context, dir string) error {
	m.pullCalls++
	if m.pullPanic {
		panic("pull exploded")
	}
	if errors.Is(m.pullErr, context.DeadlineExceeded) {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.pullErr
}

// mockFileSystem implements domain.FileSystemManager, recording copies
type mockFileSystem struct {
	dirs      map[string]bool
	copyErrs  map[string]error // Keyed by source path
	copied    map[string]string
	copyCalls []string
}

func newMockFileSystem(dirs ...string) *mockFileSystem {
	m := &mockFileSystem{
		dirs:     make(map[string]bool),
		copyErrs: make(map[string]error),
		copied:   make(map[string]string),
	}
	for _, d := range dirs {
		m.dirs[d] = true
	}
	return m
}

func (m *mockFileSystem) IsDir(path string) bool {
	return m.dirs[path]
}

func (m *mockFileSystem) Copy(src, dst string) error {
	m.copyCalls = append(m.copyCalls, src)
	if err := m.copyErrs[src]; err != nil {
		return err
	}
	m.copied[src] = dst
	return nil
}

// mockManifest implements domain.ManifestStore
type mockManifest struct {
	files []domain.ManagedFile
}

func (m *mockManifest) GetAll() []domain.ManagedFile {
	return m.files
}

// mockRefresher implements CacheRefresher
type mockRefresher struct {
	calls int
}

func (m *mockRefresher) Refresh() []domain.PersonaID {
	m.calls++
	return nil
}
