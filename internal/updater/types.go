package updater

import (
	"context"
	"time"
)

// State represents the current state of the update process.
type State string

// Update states.
const (
	StateIdle       State = "idle"
	StateChecking   State = "checking"
	StateAvailable  State = "available"
	StateRestarting State = "restarting"
	StateError      State = "error"
)

// Service defines the interface for update operations. It only checks for
// and announces availability of newer router builds; applying a new build
// is the deployment system's job (a fresh container image, not an in-place
// binary swap), so there is no ApplyUpdate/Rollback here.
type Service interface {
	// CheckForUpdate checks for available updates without downloading.
	CheckForUpdate(ctx context.Context) (*UpdateInfo, error)

	// GetStatus returns current update state and info.
	GetStatus(ctx context.Context) *Status

	// Restart signals the process to exit so a supervisor restarts it
	// against a freshly deployed binary.
	Restart(ctx context.Context) error

	// IsEnabled returns whether the update service is enabled.
	IsEnabled() bool

	// DisabledReason returns why the service is disabled, empty if enabled.
	DisabledReason() string
}

// UpdateInfo contains information about an available update.
type UpdateInfo struct {
	CurrentVersion  string    `json:"current_version"`
	LatestVersion   string    `json:"latest_version"`
	ReleaseNotes    string    `json:"release_notes"`
	ReleaseURL      string    `json:"release_url"`
	PublishedAt     time.Time `json:"published_at"`
	AssetSize       int       `json:"asset_size"`
	UpdateAvailable bool      `json:"update_available"`
}

// Status contains the current state of the updater.
type Status struct {
	State          State      `json:"state"`
	CurrentVersion string     `json:"current_version"`
	TargetVersion  string     `json:"target_version,omitempty"`
	Error          string     `json:"error,omitempty"`
	LastChecked    *time.Time `json:"last_checked,omitempty"`
}

// Options contains configuration for the updater service.
type Options struct {
	Repository string // GitHub repo slug, e.g. "patchbay/patchbay"
	Prerelease bool   // Whether to include prereleases
}
