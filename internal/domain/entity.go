// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"strings"
)

// PersonaID identifies a persona file: its file name without the ".md" suffix.
// Comparison is case-sensitive.
type PersonaID string

// String returns the identifier as plain text.
func (id PersonaID) String() string {
	return string(id)
}

// PersonaFileSuffix is the only file suffix recognized in the persona directory.
const PersonaFileSuffix = ".md"

// JoinPersonaIDs renders a persona list for user-facing messages.
// An empty list renders as "(none)".
func JoinPersonaIDs(ids []PersonaID) string {
	if len(ids) == 0 {
		return "(none)"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}

// ContainsPersona reports whether id is a member of ids.
func ContainsPersona(ids []PersonaID, id PersonaID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// DisplayPersona renders an active persona for messages and logs.
func DisplayPersona(id PersonaID) string {
	if id == "" {
		return "(none)"
	}
	return string(id)
}

// SwitchReport describes a completed persona switch.
type SwitchReport struct {
	From PersonaID
	To   PersonaID
}

// UnknownPersonaError is returned when a switch names a persona that is not
// in the current discovery snapshot.
type UnknownPersonaError struct {
	Requested PersonaID
	Available []PersonaID
}

func (e *UnknownPersonaError) Error() string {
	return fmt.Sprintf("unknown persona %q (available: %s)", e.Requested, JoinPersonaIDs(e.Available))
}

// ManagedFile is one file kept in sync with the upstream working copy.
type ManagedFile struct {
	ID          string // e.g. "persona:strict", "plugin", "command"
	Source      string // Path inside the upstream working copy
	Destination string // Installed location
}

// UpdateStatus is the outcome of a single synchronizer run.
type UpdateStatus string

const (
	UpdateSkipped   UpdateStatus = "skipped"   // Upstream missing or not a git working copy
	UpdateUnchanged UpdateStatus = "unchanged" // Revision did not move
	UpdateApplied   UpdateStatus = "applied"   // Files copied and caches refreshed
	UpdateFailed    UpdateStatus = "failed"    // Caught fault, see Err
)

// UpdateResult captures what happened during a single synchronizer run.
type UpdateResult struct {
	Status      UpdateStatus
	Before      string
	After       string
	Copied      []string // Managed file IDs copied successfully
	Failed      []string // Managed file IDs whose copy failed
	PullTimeout bool
	Err         error
	DurationMs  int64
}

// Partial reports whether some managed files were not updated.
func (r *UpdateResult) Partial() bool {
	return r.Status == UpdateApplied && len(r.Failed) > 0
}

// ShortRevision abbreviates a revision identifier for logs.
func ShortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// Host event types consumed by the plugin.
const (
	EventSessionCreated = "session.created"
)

// HostEvent is an event dispatched by the assistant host.
type HostEvent struct {
	Type       string          `json:"type"`
	Properties EventProperties `json:"properties"`
}

// EventProperties holds the subset of event properties the plugin reads.
type EventProperties struct {
	ParentID string `json:"parentID,omitempty"`
	Info     struct {
		ParentID string `json:"parentID,omitempty"`
	} `json:"info"`
}

// IsTopLevelSession reports whether the event creates a non-nested session.
func (e HostEvent) IsTopLevelSession() bool {
	if e.Type != EventSessionCreated {
		return false
	}
	return e.Properties.ParentID == "" && e.Properties.Info.ParentID == ""
}

// CommandPart is one text part of a command reply.
type CommandPart struct {
	Text string `json:"text"`
}
