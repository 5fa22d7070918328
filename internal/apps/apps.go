// Package apps enumerates installed launchable applications and resolves
// launch handles for them. The scheduling core only sees the Directory
// interface; the desktop-entry implementation below is the host-specific
// collaborator.
package apps

import (
	"context"
	"errors"
)

// ErrNotInstalled is returned by Resolve when no launchable entry exists for
// the requested identifier.
var ErrNotInstalled = errors.New("apps: not installed")

// ErrLaunchBlocked is returned by a Handle when a direct launch cannot be
// performed from the daemon's context (no reachable graphical session, no
// launcher binary). The caller is expected to fall back to a notification.
var ErrLaunchBlocked = errors.New("apps: direct launch blocked")

// App describes one installed launchable application.
type App struct {
	ID   string // stable identifier (desktop entry id)
	Name string // human-readable name, may go stale after renames
	Icon string // icon name or path, informational only
}

// Handle is a resolved launch target.
type Handle interface {
	// Launch starts the application's main entry point without user
	// interaction. It returns ErrLaunchBlocked when the host refuses a
	// background-initiated start.
	Launch(ctx context.Context) error
}

// Directory lists installed applications and resolves launch handles.
// Implementations must be safe for concurrent use.
type Directory interface {
	List(ctx context.Context) ([]App, error)
	Resolve(ctx context.Context, id string) (Handle, error)
}
