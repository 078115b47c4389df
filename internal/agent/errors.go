package agent

import "errors"

// Discovery and load errors.
var (
	// ErrAgentNotFound is returned when no source resolves an id in any tier.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrParseFailed is returned when an agent file has a malformed header.
	ErrParseFailed = errors.New("agent definition parse failed")

	// ErrSourceVanished is returned when a source file disappeared between
	// resolution and read, and one rebuild retry did not recover it.
	ErrSourceVanished = errors.New("agent source vanished")

	// ErrDirectoryUnreadable is returned for a scan directory that exists
	// but cannot be read. Recovered locally; other tiers proceed.
	ErrDirectoryUnreadable = errors.New("agent directory unreadable")

	// ErrTimeout is returned when an operation exceeds its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrNotRunning is returned by facade operations before Start.
	ErrNotRunning = errors.New("core not running")

	// ErrStopped is returned by facade operations after Stop.
	ErrStopped = errors.New("core stopped")
)
