// Package backup defines the backup/restore engine the template workflow drives,
// the archive packer, and a reference engine working on the service's own course tables.
package backup

import (
	"context"
	"io"

	"github.com/yourorg/course-template-service/internal/model"
)

// Archive format details
const (
	ArchiveExt         = ".mbz"
	ArchiveContentType = "application/vnd.moodle.backup"
)

// Artifact is a finished backup produced by the engine
type Artifact interface {
	// Name is the engine's own filename for the backup
	Name() string
	// Open returns the archive content
	Open() (io.ReadCloser, error)
	// Delete removes the engine's copy of the backup
	Delete() error
}

// Engine creates course archives and plans restores from extracted archives
type Engine interface {
	// CreateArchive serializes a course using the given settings
	CreateArchive(ctx context.Context, courseID int, settings Settings, userID int) (Artifact, error)

	// NewRestorePlan reads an extracted archive in workDir and prepares applying it to
	// courseID using the target mode
	NewRestorePlan(ctx context.Context, workDir string, courseID int, mode model.TargetMode, userID int) (RestorePlan, error)
}

// RestorePlan is a prepared restore that can be adjusted before execution
type RestorePlan interface {
	// Setting returns the current value of a plan setting
	Setting(name string) (string, bool)
	// SetSetting overrides a plan setting. Unknown settings are an error.
	SetSetting(name, value string) error
	// RequiresConversion reports whether the archive is in an older format
	RequiresConversion() bool
	// Convert upgrades the archive to the current format
	Convert(ctx context.Context) error
	// Precheck validates the plan against the target
	Precheck(ctx context.Context) error
	// Execute applies the archive content to the target course
	Execute(ctx context.Context) error
}
