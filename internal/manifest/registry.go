package manifest

import (
	"github.com/eliteGoblin/opencode-personas/internal/config"
	"github.com/eliteGoblin/opencode-personas/internal/domain"
)

// Registry holds the managed file set in registration order.
type Registry struct {
	files map[string]domain.ManagedFile
	order []string
}

// NewRegistry creates a registry with the default managed files for cfg:
// bundled personas, then the plugin entry, then the command descriptor.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		files: make(map[string]domain.ManagedFile),
	}

	for _, name := range cfg.BundledPersonas {
		r.Register(BundledPersona(cfg, name))
	}
	r.Register(PluginEntry(cfg))
	r.Register(CommandDescriptor(cfg))

	return r
}

// NewRegistryWithFiles creates a registry with custom files (for testing).
func NewRegistryWithFiles(files ...domain.ManagedFile) *Registry {
	r := &Registry{
		files: make(map[string]domain.ManagedFile),
	}
	for _, f := range files {
		r.Register(f)
	}
	return r
}

// Register adds a managed file. Re-registering an ID replaces it in place.
func (r *Registry) Register(f domain.ManagedFile) {
	if _, exists := r.files[f.ID]; !exists {
		r.order = append(r.order, f.ID)
	}
	r.files[f.ID] = f
}

// GetAll returns all managed files in registration order.
func (r *Registry) GetAll() []domain.ManagedFile {
	result := make([]domain.ManagedFile, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.files[id])
	}
	return result
}

// List returns all managed file IDs in registration order.
func (r *Registry) List() []string {
	return append([]string(nil), r.order...)
}

// Ensure Registry implements domain.ManifestStore.
var _ domain.ManifestStore = (*Registry)(nil)
