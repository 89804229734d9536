package plugin

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/eliteGoblin/opencode-personas/internal/domain"
	"github.com/eliteGoblin/opencode-personas/internal/infra"
)

// Hook names accepted on the host channel.
const (
	HookEvent           = "event"
	HookSystemTransform = "system.transform"
	HookCommandExecute  = "command.execute"
)

// maxRequestSize bounds a single request line; system prompts can be large.
const maxRequestSize = 16 * 1024 * 1024

// Request is one line sent by the host.
type Request struct {
	ID        string           `json:"id"`
	Hook      string           `json:"hook"`
	Event     domain.HostEvent `json:"event"`
	System    []string         `json:"system,omitempty"`
	Command   string           `json:"command,omitempty"`
	Arguments string           `json:"arguments,omitempty"`
}

// Response is one line written back to the host.
type Response struct {
	ID      string               `json:"id"`
	System  []string             `json:"system,omitempty"`
	Parts   []domain.CommandPart `json:"parts,omitempty"`
	Handled *bool                `json:"handled,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// HostConfig holds host loop settings.
type HostConfig struct {
	WatchDir string // Persona directory to watch; empty disables watching
}

// Host serves the plugin over a JSON-lines stream.
type Host struct {
	config HostConfig
	plugin *Plugin
	logger *zap.Logger
}

// NewHost creates a host loop for plugin.
func NewHost(config HostConfig, plugin *Plugin, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{config: config, plugin: plugin, logger: logger}
}

type readResult struct {
	req Request
	err error
}

// Run reads requests from r and writes responses to w until r is exhausted or
// ctx is cancelled. Background updates are waited for before returning.
func (h *Host) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	defer h.plugin.Wait()

	changes := make(chan string, 1)
	if h.config.WatchDir != "" {
		watcher, err := infra.NewDirWatcher(h.config.WatchDir, func(name string) {
			select {
			case changes <- name:
			default: // One pending invalidation covers any number of changes
			}
		}, h.logger)
		if err != nil {
			h.logger.Warn("persona directory watch unavailable", zap.Error(err))
		} else if err := watcher.Start(ctx); err != nil {
			h.logger.Warn("persona directory watch unavailable", zap.Error(err))
			watcher.Close()
		} else {
			defer watcher.Close()
		}
	}

	done := make(chan struct{})
	defer close(done)
	requests := h.readRequests(r, done)

	enc := json.NewEncoder(w)

	h.logger.Info("host loop started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("host loop stopping")
			return ctx.Err()

		case <-changes:
			h.plugin.service.InvalidateDiscovery()

		case res, ok := <-requests:
			if !ok {
				h.logger.Info("host closed input, stopping")
				return nil
			}
			var resp Response
			if res.err != nil {
				h.logger.Warn("invalid host request", zap.Error(res.err))
				resp = Response{Error: res.err.Error()}
			} else {
				resp = h.dispatch(res.req)
			}
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("failed to write response: %w", err)
			}
		}
	}
}

// readRequests decodes lines from r until EOF. Blank lines are skipped.
func (h *Host) readRequests(r io.Reader, done <-chan struct{}) <-chan readResult {
	out := make(chan readResult)

	go func() {
		defer close(out)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxRequestSize)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var res readResult
			if err := json.Unmarshal(line, &res.req); err != nil {
				res.err = fmt.Errorf("failed to decode request: %w", err)
			}

			select {
			case out <- res:
			case <-done:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			h.logger.Warn("failed to read host input", zap.Error(err))
		}
	}()

	return out
}

func (h *Host) dispatch(req Request) Response {
	resp := Response{ID: req.ID}

	switch req.Hook {
	case HookEvent:
		h.plugin.HandleEvent(req.Event)

	case HookSystemTransform:
		resp.System = h.plugin.TransformSystem(req.System)

	case HookCommandExecute:
		parts, handled := h.plugin.ExecuteCommand(req.Command, req.Arguments)
		resp.Parts = parts
		resp.Handled = &handled

	default:
		resp.Error = fmt.Sprintf("unknown hook %q", req.Hook)
	}

	return resp
}
