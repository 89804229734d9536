// Package usecase contains application business logic.
package usecase

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/opencode-personas/internal/cache"
	"github.com/eliteGoblin/opencode-personas/internal/domain"
)

// PersonaService owns the process-wide persona state: the active persona plus
// the discovery and content caches. Each instance is independent.
type PersonaService struct {
	mu             sync.Mutex
	store          domain.PersonaStore
	discovery      *cache.DiscoveryCache
	content        *cache.ContentCache
	defaultPersona domain.PersonaID
	active         domain.PersonaID
	logger         *zap.Logger
}

// NewPersonaService creates a service with no active persona.
func NewPersonaService(
	store domain.PersonaStore,
	ttl time.Duration,
	defaultPersona domain.PersonaID,
	logger *zap.Logger,
) *PersonaService {
	return NewPersonaServiceWithCaches(
		store,
		cache.NewDiscoveryCache(store, ttl),
		cache.NewContentCache(store),
		defaultPersona,
		logger,
	)
}

// NewPersonaServiceWithCaches creates a service with injected caches (for testing).
func NewPersonaServiceWithCaches(
	store domain.PersonaStore,
	discovery *cache.DiscoveryCache,
	content *cache.ContentCache,
	defaultPersona domain.PersonaID,
	logger *zap.Logger,
) *PersonaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersonaService{
		store:          store,
		discovery:      discovery,
		content:        content,
		defaultPersona: defaultPersona,
		logger:         logger,
	}
}

// Init performs startup discovery and selects the default persona if it exists.
// Returns the discovered personas.
func (s *PersonaService) Init() []domain.PersonaID {
	s.mu.Lock()
	defer s.mu.Unlock()

	available := s.store.Discover()
	s.discovery.Seed(available)

	if s.defaultPersona != "" && domain.ContainsPersona(available, s.defaultPersona) {
		s.active = s.defaultPersona
		if _, ok := s.content.Get(s.active); !ok {
			s.logger.Debug("default persona has no content", zap.String("persona", s.active.String()))
		}
	}

	return available
}

// Current returns the active persona, empty if none.
func (s *PersonaService) Current() domain.PersonaID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active
}

// Available returns the discovered personas, re-scanning when stale or forced.
func (s *PersonaService) Available(forceRefresh bool) []domain.PersonaID {
	return s.discovery.Get(forceRefresh)
}

// SwitchTo makes id the active persona. id must be in the current discovery
// snapshot; otherwise an *domain.UnknownPersonaError is returned and nothing
// changes. The content entry for id is always reloaded from disk.
func (s *PersonaService) SwitchTo(id domain.PersonaID) (domain.SwitchReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	available := s.discovery.Get(false)
	if !domain.ContainsPersona(available, id) {
		return domain.SwitchReport{}, &domain.UnknownPersonaError{Requested: id, Available: available}
	}

	s.content.Invalidate(id)
	if _, ok := s.content.Get(id); !ok {
		s.logger.Debug("switched persona has no content yet", zap.String("persona", id.String()))
	}

	report := domain.SwitchReport{From: s.active, To: id}
	s.active = id

	s.logger.Info("persona switched",
		zap.String("from", domain.DisplayPersona(report.From)),
		zap.String("to", report.To.String()))

	return report, nil
}

// ActiveContent returns the active persona's content, or ok=false if there is
// no active persona or its content is unavailable.
func (s *PersonaService) ActiveContent() (domain.PersonaID, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == "" {
		return "", "", false
	}
	content, ok := s.content.Get(s.active)
	return s.active, content, ok
}

// Refresh drops all cached content, re-discovers personas and reloads the
// active persona, as one step, so the next prompt sees updated files.
func (s *PersonaService) Refresh() []domain.PersonaID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.content.InvalidateAll()
	s.discovery.Invalidate()
	available := s.discovery.Get(false)

	if s.active != "" {
		if _, ok := s.content.Get(s.active); !ok {
			s.logger.Warn("active persona unavailable after refresh", zap.String("persona", s.active.String()))
		}
	}

	s.logger.Debug("persona caches refreshed",
		zap.Int("personas", len(available)),
		zap.Int("cached", s.content.Len()))

	return available
}

// InvalidateDiscovery forces the next listing to re-scan.
func (s *PersonaService) InvalidateDiscovery() {
	s.discovery.Invalidate()
}
