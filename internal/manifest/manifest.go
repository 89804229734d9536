// Package manifest defines the fixed set of files an update copies from the
// upstream working copy into their installed locations.
package manifest

import (
	"path/filepath"

	"github.com/eliteGoblin/opencode-personas/internal/config"
	"github.com/eliteGoblin/opencode-personas/internal/domain"
)

// Managed file IDs outside the persona set.
const (
	PluginID  = "plugin"
	CommandID = "command"

	personaIDPrefix = "persona:"
)

// Upstream layout, relative to the working copy.
const (
	upstreamPersonasDir = "personas"
	upstreamPluginEntry = "src/index.ts"
	upstreamCommandFile = "commands/persona.md"
	commandFileName     = "persona.md"
)

// PersonaFileID returns the managed file ID of a bundled persona.
func PersonaFileID(name string) string {
	return personaIDPrefix + name
}

// BundledPersona maps a bundled persona between upstream and install.
func BundledPersona(cfg *config.Config, name string) domain.ManagedFile {
	file := name + domain.PersonaFileSuffix
	return domain.ManagedFile{
		ID:          PersonaFileID(name),
		Source:      filepath.Join(cfg.SourceRepoDir, upstreamPersonasDir, file),
		Destination: filepath.Join(cfg.PersonasDir, file),
	}
}

// PluginEntry maps the plugin's own source entry point.
func PluginEntry(cfg *config.Config) domain.ManagedFile {
	return domain.ManagedFile{
		ID:          PluginID,
		Source:      filepath.Join(cfg.SourceRepoDir, filepath.FromSlash(upstreamPluginEntry)),
		Destination: cfg.PluginTarget,
	}
}

// CommandDescriptor maps the /persona command descriptor.
func CommandDescriptor(cfg *config.Config) domain.ManagedFile {
	return domain.ManagedFile{
		ID:          CommandID,
		Source:      filepath.Join(cfg.SourceRepoDir, filepath.FromSlash(upstreamCommandFile)),
		Destination: filepath.Join(cfg.CommandsDir, commandFileName),
	}
}
