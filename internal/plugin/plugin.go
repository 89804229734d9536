// Package plugin exposes persona selection and upstream updates to the
// assistant host through its hook surface.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/eliteGoblin/opencode-personas/internal/domain"
	"github.com/eliteGoblin/opencode-personas/internal/usecase"
)

// CommandName is the host command handled by the plugin.
const CommandName = "persona"

// forceArgument re-scans the persona directory instead of switching.
const forceArgument = "force"

// updateKey collapses concurrent synchronizer runs.
const updateKey = "update"

// Config holds plugin settings.
type Config struct {
	AutoUpdate bool // Run the synchronizer on top-level session creation
}

// Plugin implements the host hooks.
type Plugin struct {
	config  Config
	service *usecase.PersonaService
	updater domain.Synchronizer
	logger  *zap.Logger

	group singleflight.Group
	wg    sync.WaitGroup

	mu      sync.Mutex
	baseCtx context.Context
	last    *domain.UpdateResult
}

// New creates the plugin. synchronizer may be nil to disable updates.
func New(config Config, service *usecase.PersonaService, synchronizer domain.Synchronizer, logger *zap.Logger) *Plugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Plugin{
		config:  config,
		service: service,
		updater: synchronizer,
		logger:  logger,
		baseCtx: context.Background(),
	}
}

// Init performs startup discovery and selects the default persona.
// ctx bounds background update runs started later.
func (p *Plugin) Init(ctx context.Context) []domain.PersonaID {
	p.mu.Lock()
	p.baseCtx = ctx
	p.mu.Unlock()

	available := p.service.Init()

	p.logger.Info("personas plugin loaded",
		zap.String("default", domain.DisplayPersona(p.service.Current())),
		zap.String("available", domain.JoinPersonaIDs(available)))

	return available
}

// HandleEvent reacts to host events. A top-level session start launches an
// update check in the background; everything else is ignored.
func (p *Plugin) HandleEvent(ev domain.HostEvent) {
	if !ev.IsTopLevelSession() {
		return
	}
	if !p.config.AutoUpdate || p.updater == nil {
		return
	}
	p.TriggerUpdate()
}

// TriggerUpdate starts a synchronizer run without waiting for it. A run
// already in flight absorbs the trigger.
func (p *Plugin) TriggerUpdate() {
	if p.updater == nil {
		return
	}

	p.mu.Lock()
	ctx := p.baseCtx
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.RunUpdate(ctx)
	}()
}

// RunUpdate runs the synchronizer and waits for it. Callers arriving while a
// run is in flight share its result.
func (p *Plugin) RunUpdate(ctx context.Context) *domain.UpdateResult {
	if p.updater == nil {
		return &domain.UpdateResult{Status: domain.UpdateSkipped}
	}

	v, _, shared := p.group.Do(updateKey, func() (interface{}, error) {
		return p.updater.Run(ctx), nil
	})
	result := v.(*domain.UpdateResult)

	if shared {
		p.logger.Debug("joined in-flight update check")
	}

	p.mu.Lock()
	p.last = result
	p.mu.Unlock()

	return result
}

// LastUpdate returns the result of the most recent update run, nil if none.
func (p *Plugin) LastUpdate() *domain.UpdateResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Wait blocks until background update runs finish.
func (p *Plugin) Wait() {
	p.wg.Wait()
}

// TransformSystem returns system with the active persona's content appended.
// system itself is not modified.
func (p *Plugin) TransformSystem(system []string) []string {
	id, content, ok := p.service.ActiveContent()
	if !ok {
		return system
	}

	p.logger.Debug("persona prompt injected",
		zap.String("persona", id.String()),
		zap.Int("length", len(content)))

	// Never write into the caller's backing array
	return append(system[:len(system):len(system)], content)
}

// ExecuteCommand handles the persona command. handled is false for any other
// command, leaving it to the host.
func (p *Plugin) ExecuteCommand(name, arguments string) (parts []domain.CommandPart, handled bool) {
	if name != CommandName {
		return nil, false
	}
	return []domain.CommandPart{{Text: p.personaCommand(arguments)}}, true
}

func (p *Plugin) personaCommand(arguments string) string {
	requested := strings.ToLower(strings.TrimSpace(arguments))

	switch requested {
	case forceArgument:
		refreshed := p.service.Available(true)
		return fmt.Sprintf("[Personas] Cache refreshed. Available: %s. Current: %s",
			domain.JoinPersonaIDs(refreshed), domain.DisplayPersona(p.service.Current()))

	case "":
		return fmt.Sprintf("[Personas] Available: %s. Current: %s",
			domain.JoinPersonaIDs(p.service.Available(false)), domain.DisplayPersona(p.service.Current()))
	}

	report, err := p.service.SwitchTo(domain.PersonaID(requested))
	if err != nil {
		var unknown *domain.UnknownPersonaError
		if errors.As(err, &unknown) {
			return fmt.Sprintf(`[Personas] Unknown persona "%s". Available: %s`,
				requested, domain.JoinPersonaIDs(unknown.Available))
		}
		p.logger.Warn("persona switch failed", zap.Error(err))
		return fmt.Sprintf(`[Personas] Could not switch to "%s": %v`, requested, err)
	}

	return fmt.Sprintf(`[Personas] Switched from "%s" to "%s". All subsequent responses will use the new persona.`,
		domain.DisplayPersona(report.From), report.To.String())
}
