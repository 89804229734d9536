package plugin

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/eliteGoblin/opencode-personas/internal/domain"
	"github.com/eliteGoblin/opencode-personas/internal/usecase"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memStore implements domain.PersonaStore in memory
type memStore struct {
	mu      sync.Mutex
	content map[domain.PersonaID]string
}

func newMemStore(personas map[domain.PersonaID]string) *memStore {
	s := &memStore{content: make(map[domain.PersonaID]string)}
	for k, v := range personas {
		s.content[k] = v
	}
	return s
}

func (s *memStore) Discover() []domain.PersonaID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]domain.PersonaID, 0, len(s.content))
	for id := range s.content {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *memStore) Load(id domain.PersonaID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.content[id]
	if !ok || strings.TrimSpace(c) == "" {
		return "", false
	}
	return c, true
}

func (s *memStore) set(id domain.PersonaID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[id] = content
}

// fakeSynchronizer counts runs and optionally blocks until released
type fakeSynchronizer struct {
	mu      sync.Mutex
	runs    int
	release chan struct{}
	started chan struct{}
	result  domain.UpdateResult
}

func newFakeSynchronizer(blocking bool) *fakeSynchronizer {
	f := &fakeSynchronizer{
		started: make(chan struct{}, 16),
		result:  domain.UpdateResult{Status: domain.UpdateUnchanged},
	}
	if blocking {
		f.release = make(chan struct{})
	}
	return f
}

func (f *fakeSynchronizer) Run(ctx context.Context) *domain.UpdateResult {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()

	f.started <- struct{}{}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
		}
	}

	result := f.result
	return &result
}

func (f *fakeSynchronizer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func newTestPlugin(t *testing.T, store domain.PersonaStore, synchronizer domain.Synchronizer) *Plugin {
	t.Helper()
	svc := usecase.NewPersonaService(store, time.Hour, "strict", zap.NewNop())
	p := New(Config{AutoUpdate: true}, svc, synchronizer, zap.NewNop())
	p.Init(context.Background())
	return p
}

func writePersona(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+domain.PersonaFileSuffix), []byte(content), 0644))
}
